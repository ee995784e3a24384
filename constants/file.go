package constants

import "strings"

// DocxMIME is the content type sent when uploading reports to the extraction service.
const DocxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// AllowedExtensions holds the default allowed file extensions for report discovery.
var AllowedExtensions = map[string]struct{}{
	"docx": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsOfficeLockFile reports whether name is a Word owner/lock file (~$report.docx).
func IsOfficeLockFile(name string) bool {
	return strings.HasPrefix(name, "~$")
}
