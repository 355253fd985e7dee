// Package export writes audit trail extracts to parquet, CSV, or JSON files
// for compliance reporting.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/lexops/privguard/internal/audit"
)

// Exporter pulls entries out of an audit store and writes them to a file.
type Exporter struct {
	recorder *audit.Recorder
	logger   *zap.Logger
}

// New creates an exporter backed by the given recorder.
func New(recorder *audit.Recorder, logger *zap.Logger) *Exporter {
	return &Exporter{recorder: recorder, logger: logger}
}

// Export queries the audit trail and writes matching entries to outputPath.
// The file format is derived from the extension.
func (e *Exporter) Export(ctx context.Context, filter audit.Filter, outputPath string) (*Result, error) {
	start := time.Now()
	format := DetectFileFormat(outputPath)

	e.logger.Info("Starting audit export",
		zap.String("output", outputPath),
		zap.String("format", string(format)))

	entries, err := e.recorder.Query(filter)
	if err != nil {
		return nil, fmt.Errorf("audit query failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]AuditRow, len(entries))
	for i, entry := range entries {
		rows[i] = RowOf(entry)
	}

	switch format {
	case FormatParquet:
		err = writeParquet(outputPath, rows)
	case FormatCSV:
		err = writeCSV(outputPath, rows)
	case FormatJSON:
		err = writeJSON(outputPath, rows)
	default:
		err = fmt.Errorf("unsupported file format: %s", format)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{
		Rows:     len(rows),
		Format:   format,
		Path:     outputPath,
		Duration: time.Since(start),
	}

	e.logger.Info("Audit export completed",
		zap.Int("rows", result.Rows),
		zap.Duration("duration", result.Duration))

	return result, nil
}

func writeParquet(path string, rows []AuditRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewWriter(file)
	for i := range rows {
		if err := writer.Write(&rows[i]); err != nil {
			return fmt.Errorf("failed to write parquet row: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

func writeCSV(path string, rows []AuditRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{
		"id", "timestamp", "action", "session_ref", "user_ref", "case_ref",
		"reason", "privacy_mode", "pii_match_count", "pii_kinds",
		"anonymization_count", "provider",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.ID, row.Timestamp, row.Action, row.SessionRef, row.UserRef,
			row.CaseRef, row.Reason, row.PrivacyMode,
			strconv.Itoa(row.PiiMatchCount), row.PiiKinds,
			strconv.Itoa(row.AnonymizationCount), row.Provider,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func writeJSON(path string, rows []AuditRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for i := range rows {
		if err := encoder.Encode(&rows[i]); err != nil {
			return fmt.Errorf("failed to write JSON row: %w", err)
		}
	}
	return nil
}
