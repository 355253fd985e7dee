package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/lexops/privguard/internal/logger"
	"github.com/lexops/privguard/internal/privacy"
	"go.uber.org/zap"
)

// PostgresStore persists audit entries in PostgreSQL for multi-seat
// deployments.
type PostgresStore struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// PostgresConfig contains database configuration
type PostgresConfig struct {
	DatabaseURL  string
	MaxOpenConns int
	MaxIdleConns int
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id                  TEXT PRIMARY KEY,
	action              TEXT NOT NULL,
	session_ref         TEXT NOT NULL DEFAULT '',
	user_ref            TEXT NOT NULL DEFAULT '',
	case_ref            TEXT NOT NULL DEFAULT '',
	reason              TEXT NOT NULL,
	pii_match_count     INTEGER NOT NULL DEFAULT 0,
	pii_kinds           TEXT NOT NULL DEFAULT '',
	anonymization_count INTEGER NOT NULL DEFAULT 0,
	privacy_mode        TEXT NOT NULL DEFAULT '',
	provider            TEXT NOT NULL DEFAULT '',
	timestamp           TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_entries_timestamp ON audit_entries (timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_entries_session ON audit_entries (session_ref);
`

// NewPostgresStore connects to the database and ensures the audit schema.
func NewPostgresStore(config PostgresConfig, log *logger.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure audit schema: %w", err)
	}

	log.Info("Audit store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
	)

	return &PostgresStore{db: db, logger: log}, nil
}

// Append inserts one entry. Entries are immutable; there is no update path.
func (s *PostgresStore) Append(entry Entry) error {
	kinds := make([]string, len(entry.PiiKinds))
	for i, k := range entry.PiiKinds {
		kinds[i] = string(k)
	}

	_, err := s.db.Exec(`
		INSERT INTO audit_entries (
			id, action, session_ref, user_ref, case_ref, reason,
			pii_match_count, pii_kinds, anonymization_count,
			privacy_mode, provider, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.Action, entry.SessionRef, entry.UserRef,
		entry.CaseRef, entry.Reason, entry.PiiMatchCount,
		strings.Join(kinds, ","), entry.AnonymizationCount,
		entry.PrivacyMode, entry.Provider, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Query returns matching entries newest first.
func (s *PostgresStore) Query(filter Filter) ([]Entry, error) {
	query := `
		SELECT id, action, session_ref, user_ref, case_ref, reason,
		       pii_match_count, pii_kinds, anonymization_count,
		       privacy_mode, provider, timestamp
		FROM audit_entries
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, filter.Action)
		argIdx++
	}
	if filter.SessionRef != "" {
		query += fmt.Sprintf(" AND session_ref = $%d", argIdx)
		args = append(args, filter.SessionRef)
		argIdx++
	}
	if filter.UserRef != "" {
		query += fmt.Sprintf(" AND user_ref = $%d", argIdx)
		args = append(args, filter.UserRef)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, filter.Since)
		argIdx++
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kinds string
		var ts time.Time
		if err := rows.Scan(
			&e.ID, &e.Action, &e.SessionRef, &e.UserRef, &e.CaseRef,
			&e.Reason, &e.PiiMatchCount, &kinds, &e.AnonymizationCount,
			&e.PrivacyMode, &e.Provider, &ts,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp = ts
		if kinds != "" {
			for _, k := range strings.Split(kinds, ",") {
				e.PiiKinds = append(e.PiiKinds, privacy.Kind(k))
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// maskDatabaseURL hides credentials in connection strings for logging.
func maskDatabaseURL(url string) string {
	if at := strings.Index(url, "@"); at != -1 {
		if scheme := strings.Index(url, "://"); scheme != -1 {
			return url[:scheme+3] + "***:***" + url[at:]
		}
	}
	return url
}
