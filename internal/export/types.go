package export

import (
	"strings"
	"time"

	"github.com/lexops/privguard/internal/audit"
)

// AuditRow is the flattened, file-friendly projection of an audit entry.
// Like the entry itself it carries classification metadata only.
type AuditRow struct {
	ID                 string `csv:"id" parquet:"id" json:"id"`
	Timestamp          string `csv:"timestamp" parquet:"timestamp" json:"timestamp"`
	Action             string `csv:"action" parquet:"action" json:"action"`
	SessionRef         string `csv:"session_ref" parquet:"session_ref" json:"session_ref"`
	UserRef            string `csv:"user_ref" parquet:"user_ref" json:"user_ref"`
	CaseRef            string `csv:"case_ref" parquet:"case_ref" json:"case_ref"`
	Reason             string `csv:"reason" parquet:"reason" json:"reason"`
	PrivacyMode        string `csv:"privacy_mode" parquet:"privacy_mode" json:"privacy_mode"`
	PiiMatchCount      int    `csv:"pii_match_count" parquet:"pii_match_count" json:"pii_match_count"`
	PiiKinds           string `csv:"pii_kinds" parquet:"pii_kinds" json:"pii_kinds"`
	AnonymizationCount int    `csv:"anonymization_count" parquet:"anonymization_count" json:"anonymization_count"`
	Provider           string `csv:"provider" parquet:"provider" json:"provider"`
}

// RowOf flattens an audit entry for export.
func RowOf(entry audit.Entry) AuditRow {
	kinds := make([]string, len(entry.PiiKinds))
	for i, k := range entry.PiiKinds {
		kinds[i] = string(k)
	}
	return AuditRow{
		ID:                 entry.ID,
		Timestamp:          entry.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:             string(entry.Action),
		SessionRef:         entry.SessionRef,
		UserRef:            entry.UserRef,
		CaseRef:            entry.CaseRef,
		Reason:             entry.Reason,
		PrivacyMode:        entry.PrivacyMode,
		PiiMatchCount:      entry.PiiMatchCount,
		PiiKinds:           strings.Join(kinds, ","),
		AnonymizationCount: entry.AnonymizationCount,
		Provider:           entry.Provider,
	}
}

// Result summarizes one export run.
type Result struct {
	Rows     int           `json:"rows"`
	Format   FileFormat    `json:"format"`
	Path     string        `json:"path"`
	Duration time.Duration `json:"duration"`
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatParquet FileFormat = "parquet"
	FormatCSV     FileFormat = "csv"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch {
	case strings.HasSuffix(filename, ".parquet"):
		return FormatParquet
	case strings.HasSuffix(filename, ".csv"):
		return FormatCSV
	case strings.HasSuffix(filename, ".json"):
		return FormatJSON
	default:
		return FormatParquet
	}
}
