package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"stats-indexer/internal/indexing/application"
)

// BuildRunPDF renders a one-page PDF summary of a run.
func BuildRunPDF(result application.RunResult) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Statistics Index Run")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	for _, line := range summaryRows(result) {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %v", line.label, line.value))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(100, 6, "Index", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Documents", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, name := range sortedKeys(result.Partitions) {
		pdf.CellFormat(100, 6, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%d", result.Partitions[name]), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(result.Skipped) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(100, 6, "Skip reason", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Statistics", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, reason := range sortedKeys(result.Skipped) {
			pdf.CellFormat(100, 6, reason, "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, fmt.Sprintf("%d", result.Skipped[reason]), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRunXLSX renders a workbook with summary, partitions and skipped sheets.
func BuildRunXLSX(result application.RunResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	partitionsSheet := "partitions"
	skippedSheet := "skipped"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(partitionsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(skippedSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Statistics Index Run")
	for i, line := range summaryRows(result) {
		row := i + 3
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), line.label)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), line.value)
	}

	_ = f.SetCellValue(partitionsSheet, "A1", "Index")
	_ = f.SetCellValue(partitionsSheet, "B1", "Documents")
	for i, name := range sortedKeys(result.Partitions) {
		row := i + 2
		_ = f.SetCellValue(partitionsSheet, fmt.Sprintf("A%d", row), name)
		_ = f.SetCellValue(partitionsSheet, fmt.Sprintf("B%d", row), result.Partitions[name])
	}

	_ = f.SetCellValue(skippedSheet, "A1", "Reason")
	_ = f.SetCellValue(skippedSheet, "B1", "Statistics")
	for i, reason := range sortedKeys(result.Skipped) {
		row := i + 2
		_ = f.SetCellValue(skippedSheet, fmt.Sprintf("A%d", row), reason)
		_ = f.SetCellValue(skippedSheet, fmt.Sprintf("B%d", row), result.Skipped[reason])
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type summaryRow struct {
	label string
	value any
}

func summaryRows(result application.RunResult) []summaryRow {
	rows := []summaryRow{
		{"Run", result.RunID},
		{"Status", result.Status},
		{"Started", result.StartedAt.Format(time.RFC3339)},
		{"Finished", result.FinishedAt.Format(time.RFC3339)},
		{"Cutoff", result.Cutoff},
		{"Base Currency", result.BaseCurrency},
		{"Index Prefix", result.IndexPrefix},
		{"Programs", result.Programs},
		{"Statistics", result.Statistics},
		{"Records", result.Records},
		{"Skipped", result.SkippedTotal()},
		{"Rate Buckets", result.RateBuckets},
		{"Bulk Status", result.Write.Status},
		{"Duration (ms)", result.Durations.TotalMillis},
	}
	if result.Error != "" {
		rows = append(rows, summaryRow{"Error", result.Error})
	}
	return rows
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FileExporter writes XLSX and PDF run summaries into a directory.
type FileExporter struct {
	dir string
}

// NewFileExporter constructs an exporter rooted at dir.
func NewFileExporter(dir string) (*FileExporter, error) {
	if dir == "" {
		return nil, errors.New("report: directory required")
	}
	return &FileExporter{dir: dir}, nil
}

// Export writes <date>-<run_id>.xlsx and .pdf.
func (e *FileExporter) Export(ctx context.Context, result application.RunResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return err
	}
	base := filepath.Join(e.dir, fmt.Sprintf("%s-%s", result.StartedAt.Format("20060102"), result.RunID))

	xlsx, err := BuildRunXLSX(result)
	if err != nil {
		return fmt.Errorf("report: xlsx: %w", err)
	}
	if err := os.WriteFile(base+".xlsx", xlsx, 0o644); err != nil {
		return err
	}
	pdf, err := BuildRunPDF(result)
	if err != nil {
		return fmt.Errorf("report: pdf: %w", err)
	}
	return os.WriteFile(base+".pdf", pdf, 0o644)
}
