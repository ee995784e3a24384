package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/consultation-extract/internal/common"
	"github.com/joseph-ayodele/consultation-extract/internal/entity"
	"github.com/joseph-ayodele/consultation-extract/internal/schema"
)

const (
	// SheetName matches the default sheet of a fresh workbook.
	SheetName = "Sheet1"
	// SourceColumn is the first header cell.
	SourceColumn = "Source File"
)

// Writer produces the report workbook.
type Writer struct {
	logger *slog.Logger
}

func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// RenderXLSX builds the workbook for result with the default writer.
func RenderXLSX(result entity.BatchResult, s *schema.Schema) ([]byte, error) {
	return NewWriter(nil).Render(result, s)
}

// WriteXLSX writes the workbook for result to path with the default writer.
func WriteXLSX(result entity.BatchResult, s *schema.Schema, path string) error {
	return NewWriter(nil).Write(result, s, path)
}

// Headers is the header row: the source file then every schema column in order.
func Headers(s *schema.Schema) []string {
	return append([]string{SourceColumn}, s.Columns()...)
}

// Row renders one record in header order.
func Row(rec entity.Record, s *schema.Schema) []string {
	row := make([]string, 0, len(s.Fields)+1)
	row = append(row, filepath.Base(rec.Source))
	for _, f := range s.Fields {
		row = append(row, rec.Get(f.Name))
	}
	return row
}

// Render returns the workbook as bytes: one header row, then one row per record
// in result order.
func (w *Writer) Render(result entity.BatchResult, s *schema.Schema) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			w.logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()

	headers := Headers(s)
	if err := f.SetSheetRow(SheetName, "A1", toCells(headers)); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(SheetName, "A1", last, style)
	}

	for i, rec := range result.Records {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, toCells(Row(rec, s))); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(SheetName, col, col, columnWidth(h, s))
	}
	_ = f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders the workbook and replaces path atomically: the bytes go to a
// temporary file in the same directory, which is then renamed over path.
// Every failure is an OUTPUT_WRITE_ERROR.
func (w *Writer) Write(result entity.BatchResult, s *schema.Schema, path string) error {
	start := time.Now()
	data, err := w.Render(result, s)
	if err != nil {
		return common.OutputWriteError("render workbook", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return common.OutputWriteError(fmt.Sprintf("create output directory %s", dir), err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return common.OutputWriteError(fmt.Sprintf("create temp file in %s", dir), err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return common.OutputWriteError(fmt.Sprintf("write %s", tmpName), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return common.OutputWriteError(fmt.Sprintf("sync %s", tmpName), err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return common.OutputWriteError(fmt.Sprintf("close %s", tmpName), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return common.OutputWriteError(fmt.Sprintf("chmod %s", tmpName), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return common.OutputWriteError(fmt.Sprintf("replace %s", path), err)
	}

	w.logger.Info("export.xlsx.ok",
		"path", path,
		"rows", len(result.Records),
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func toCells(values []string) *[]any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return &cells
}

func columnWidth(header string, s *schema.Schema) float64 {
	if header == SourceColumn {
		return 32
	}
	for _, f := range s.Fields {
		if f.Column != header {
			continue
		}
		switch f.Type {
		case schema.TypeDate:
			return 16
		case schema.TypeEnum:
			return 24
		case schema.TypeEnumList:
			return 48
		}
	}
	return 36
}
