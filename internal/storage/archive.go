package storage

import (
	"context"
	"fmt"
	"os"
	"path"
)

// XLSXContentType is the media type of the report workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportKey is where a run's workbook is archived.
func ReportKey(runID string) string {
	return path.Join("reports", runID+".xlsx")
}

// ArchiveReport uploads the workbook at localPath under ReportKey(runID).
func ArchiveReport(ctx context.Context, st Storage, runID, localPath string) (ObjectInfo, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("open report: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	fi, err := f.Stat()
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat report: %w", err)
	}
	info, err := st.Put(ctx, ReportKey(runID), f, PutObjectOptions{
		Size:        fi.Size(),
		ContentType: XLSXContentType,
		Metadata:    map[string]string{"run-id": runID},
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("upload report: %w", err)
	}
	return info, nil
}
