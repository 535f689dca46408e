package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rovshanmuradov/gateway-broadcaster/internal/storage/models"
	"go.uber.org/zap"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case FormatCSV, FormatJSON:
		return ExportFormat(s), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format        ExportFormat
	StartTime     time.Time
	EndTime       time.Time
	TxTypeFilter  string
	StatusFilter  string
	OnlyConfirmed bool
	OutputDir     string
}

// RecordExporter writes journal records to disk.
type RecordExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewRecordExporter(logger *zap.Logger) *RecordExporter {
	return &RecordExporter{
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// ExportRecords filters, sorts and writes records, returning the file path.
func (e *RecordExporter) ExportRecords(records []*models.TransactionRecord, options ExportOptions) (string, error) {
	filtered := filterRecords(records, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no records match the export criteria")
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, e.filename(options))

	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	switch options.Format {
	case FormatCSV:
		err = WriteCSV(file, filtered)
	case FormatJSON:
		err = WriteJSON(file, filtered, e.now())
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Records exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

func filterRecords(records []*models.TransactionRecord, options ExportOptions) []*models.TransactionRecord {
	var filtered []*models.TransactionRecord
	for _, rec := range records {
		if !options.StartTime.IsZero() && rec.CreatedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && rec.CreatedAt.After(options.EndTime) {
			continue
		}
		if options.TxTypeFilter != "" && rec.TxType != options.TxTypeFilter {
			continue
		}
		if options.StatusFilter != "" && rec.Status != options.StatusFilter {
			continue
		}
		if options.OnlyConfirmed && rec.Status != models.StatusConfirmed {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}

func (e *RecordExporter) filename(options ExportOptions) string {
	prefix := "broadcasts_all"
	if options.TxTypeFilter != "" {
		prefix = "broadcasts_" + options.TxTypeFilter
	}
	if options.StatusFilter != "" {
		prefix += "_" + options.StatusFilter
	}
	return fmt.Sprintf("%s_%s.%s", prefix, e.now().Format("20060102_150405"), options.Format)
}

// CSVHeaders returns the column names written by WriteCSV.
func CSVHeaders() []string {
	return []string{
		"created_at", "operation_id", "operation", "tx_type", "chain", "network", "connector",
		"wallet", "signature", "status", "attempts", "priority_fee_per_cu", "compute_units",
		"fee_sol", "duration_ms", "error",
	}
}

func csvRow(rec *models.TransactionRecord) []string {
	fee := ""
	if rec.FeeSOL.Valid {
		fee = strconv.FormatFloat(rec.FeeSOL.Float64, 'f', 9, 64)
	}
	return []string{
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.OperationID,
		rec.OperationName,
		rec.TxType,
		rec.Chain,
		rec.Network,
		rec.Connector,
		rec.WalletAddress,
		rec.Signature.String,
		rec.Status,
		strconv.Itoa(rec.Attempts),
		strconv.FormatInt(rec.PriorityFeePerCU, 10),
		strconv.FormatInt(rec.ComputeUnits, 10),
		fee,
		strconv.FormatInt(rec.DurationMs, 10),
		rec.ErrorMessage.String,
	}
}

// WriteCSV writes records with a header row.
func WriteCSV(w io.Writer, records []*models.TransactionRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, rec := range records {
		if err := writer.Write(csvRow(rec)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", rec.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// jsonRecord flattens the nullable columns for readers of the export.
type jsonRecord struct {
	CreatedAt        time.Time `json:"created_at"`
	OperationID      string    `json:"operation_id"`
	Operation        string    `json:"operation"`
	TxType           string    `json:"tx_type"`
	Chain            string    `json:"chain"`
	Network          string    `json:"network"`
	Connector        string    `json:"connector"`
	Wallet           string    `json:"wallet"`
	Signature        string    `json:"signature,omitempty"`
	Status           string    `json:"status"`
	Attempts         int       `json:"attempts"`
	PriorityFeePerCU int64     `json:"priority_fee_per_cu"`
	ComputeUnits     int64     `json:"compute_units"`
	FeeSOL           *float64  `json:"fee_sol,omitempty"`
	DurationMs       int64     `json:"duration_ms"`
	Error            string    `json:"error,omitempty"`
}

// WriteJSON writes records together with summary statistics.
func WriteJSON(w io.Writer, records []*models.TransactionRecord, exportedAt time.Time) error {
	out := make([]jsonRecord, 0, len(records))
	for _, rec := range records {
		jr := jsonRecord{
			CreatedAt:        rec.CreatedAt,
			OperationID:      rec.OperationID,
			Operation:        rec.OperationName,
			TxType:           rec.TxType,
			Chain:            rec.Chain,
			Network:          rec.Network,
			Connector:        rec.Connector,
			Wallet:           rec.WalletAddress,
			Signature:        rec.Signature.String,
			Status:           rec.Status,
			Attempts:         rec.Attempts,
			PriorityFeePerCU: rec.PriorityFeePerCU,
			ComputeUnits:     rec.ComputeUnits,
			DurationMs:       rec.DurationMs,
			Error:            rec.ErrorMessage.String,
		}
		if rec.FeeSOL.Valid {
			fee := rec.FeeSOL.Float64
			jr.FeeSOL = &fee
		}
		out = append(out, jr)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	data := struct {
		ExportTime  time.Time     `json:"export_time"`
		RecordCount int           `json:"record_count"`
		Summary     ExportSummary `json:"summary"`
		Records     []jsonRecord  `json:"records"`
	}{
		ExportTime:  exportedAt,
		RecordCount: len(out),
		Summary:     Summarize(records),
		Records:     out,
	}
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportSummary contains summary statistics for exported records.
type ExportSummary struct {
	Total               int            `json:"total"`
	ByStatus            map[string]int `json:"by_status"`
	ByTxType            map[string]int `json:"by_tx_type"`
	ConfirmationRate    float64        `json:"confirmation_rate"`
	AvgAttempts         float64        `json:"avg_attempts"`
	AvgPriorityFeePerCU float64        `json:"avg_priority_fee_per_cu"`
	TotalFeeSOL         float64        `json:"total_fee_sol"`
	StartDate           time.Time      `json:"start_date"`
	EndDate             time.Time      `json:"end_date"`
}

// Summarize aggregates records. Fee averages cover confirmed records only.
func Summarize(records []*models.TransactionRecord) ExportSummary {
	summary := ExportSummary{
		Total:    len(records),
		ByStatus: make(map[string]int),
		ByTxType: make(map[string]int),
	}
	if len(records) == 0 {
		return summary
	}

	var attempts, confirmed int
	var feeSum float64
	for i, rec := range records {
		summary.ByStatus[rec.Status]++
		summary.ByTxType[rec.TxType]++
		attempts += rec.Attempts
		if rec.FeeSOL.Valid {
			summary.TotalFeeSOL += rec.FeeSOL.Float64
		}
		if rec.Status == models.StatusConfirmed {
			confirmed++
			feeSum += float64(rec.PriorityFeePerCU)
		}
		if i == 0 || rec.CreatedAt.Before(summary.StartDate) {
			summary.StartDate = rec.CreatedAt
		}
		if rec.CreatedAt.After(summary.EndDate) {
			summary.EndDate = rec.CreatedAt
		}
	}

	summary.ConfirmationRate = float64(confirmed) / float64(len(records)) * 100
	summary.AvgAttempts = float64(attempts) / float64(len(records))
	if confirmed > 0 {
		summary.AvgPriorityFeePerCU = feeSum / float64(confirmed)
	}
	return summary
}
