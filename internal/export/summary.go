package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/joseph-ayodele/consultation-extract/internal/entity"
	"github.com/joseph-ayodele/consultation-extract/internal/schema"
)

const maxCellWidth = 40

// PrintRecord prints every field of one record, one "Column: value" line each.
func PrintRecord(w io.Writer, rec entity.Record, s *schema.Schema) {
	fmt.Fprintf(w, "  %s (%s)\n", filepath.Base(rec.Source), rec.Status)
	for _, f := range s.Fields {
		fmt.Fprintf(w, "    %s: %s\n", f.Column, rec.Get(f.Name))
	}
	if rec.Err != "" {
		fmt.Fprintf(w, "    error: %s\n", rec.Err)
	}
}

// PrintSummary prints a table with one line per record followed by the batch totals.
// Cells are padded by display width so CJK and accented names stay aligned.
func PrintSummary(w io.Writer, result entity.BatchResult, s *schema.Schema) {
	headers := []string{"#", SourceColumn, "Status"}
	var lead []schema.Field
	for _, f := range s.Fields {
		if len(lead) == 2 {
			break
		}
		lead = append(lead, f)
		headers = append(headers, f.Column)
	}
	headers = append(headers, "Fallbacks")

	rows := make([][]string, 0, len(result.Records))
	for i, rec := range result.Records {
		row := []string{strconv.Itoa(i + 1), filepath.Base(rec.Source), string(rec.Status)}
		for _, f := range lead {
			row = append(row, rec.Get(f.Name))
		}
		row = append(row, strconv.Itoa(len(rec.Fallbacks)))
		rows = append(rows, row)
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, c := range row {
			widths[i] = max(widths[i], min(runewidth.StringWidth(c), maxCellWidth))
		}
	}

	line := func(cells []string) {
		parts := make([]string, len(cells))
		for i, c := range cells {
			c = runewidth.Truncate(c, maxCellWidth, "…")
			parts[i] = runewidth.FillRight(c, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(headers)
	sep := make([]string, len(widths))
	for i, n := range widths {
		sep[i] = strings.Repeat("-", n)
	}
	fmt.Fprintln(w, strings.Join(sep, "  "))
	for _, row := range rows {
		line(row)
	}

	st := result.Stats
	fmt.Fprintf(w, "\n%d documents: %d ok, %d reused, %d failed, %d field fallbacks\n",
		len(result.Records), st.Succeeded, st.Reused, st.Failed, st.Fallbacks)
}
