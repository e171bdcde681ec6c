// Package report persists run reports to disk in JSON, CSV and YAML.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/solfleet/solfleet/internal/swap"
)

// Format selects an output file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// Writer persists run reports.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string, logger *zap.Logger) *Writer {
	return &Writer{dir: dir, logger: logger.Named("report")}
}

// Write persists the report in one format and returns the file path.
func (w *Writer) Write(report *swap.Report, format Format) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	path := filepath.Join(w.dir, w.filename(report, format))

	var err error
	switch format {
	case FormatJSON:
		err = w.writeJSON(report, path)
	case FormatCSV:
		err = w.writeCSV(report, path)
	case FormatYAML:
		err = w.writeYAML(report, path)
	default:
		err = fmt.Errorf("unsupported report format: %s", format)
	}
	if err != nil {
		return "", err
	}

	w.logger.Info("report written",
		zap.String("file", path),
		zap.String("format", string(format)),
		zap.Int("results", len(report.SwapResults)))
	return path, nil
}

// WriteAll persists the report in every requested format. The first failure
// stops the sequence.
func (w *Writer) WriteAll(report *swap.Report, formats ...Format) ([]string, error) {
	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		path, err := w.Write(report, format)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (w *Writer) filename(report *swap.Report, format Format) string {
	timestamp := report.Metadata.StartedAt.Format("20060102_150405")
	return fmt.Sprintf("fleet_%s_%s.%s", report.Configuration.Operation, timestamp, format)
}

func (w *Writer) writeJSON(report *swap.Report, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating JSON report: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("encoding JSON report: %w", err)
	}
	return nil
}

func (w *Writer) writeYAML(report *swap.Report, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating YAML report: %w", err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	defer encoder.Close()
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("encoding YAML report: %w", err)
	}
	return nil
}

// writeCSV flattens the per-wallet results; run-level summaries stay in the
// JSON and YAML files.
func (w *Writer) writeCSV(report *swap.Report, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating CSV report: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"wallet_index", "wallet_address", "status", "input_amount",
		"output_amount", "transaction_id", "fee_amount", "price_impact_bps",
		"duration_ms", "attempts", "error_kind", "error_detail",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for _, result := range report.SwapResults {
		row := []string{
			strconv.Itoa(result.WalletIndex),
			result.WalletAddress,
			string(result.Status),
			strconv.FormatUint(result.InputAmount, 10),
			optUint(result.OutputAmount),
			result.TxID,
			optUint(result.FeeAmount),
			optInt(result.PriceImpactBps),
			strconv.FormatInt(result.DurationMS, 10),
			strconv.Itoa(result.Attempts),
			string(result.ErrorKind),
			result.ErrorDetail,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	return writer.Error()
}

func optUint(v *uint64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatUint(*v, 10)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
