package constants

import "strings"

// Document formats the OCR layer knows how to handle.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// FileTypes holds the allowed values for the file_type column of the files table.
var FileTypes = []string{"pdf", "jpg", "jpeg", "png"}

// AllowedExtensions holds the default allowed file extensions for invoice uploads and ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// MaxUploadBytes is the largest document accepted by the upload flow (10MB).
const MaxUploadBytes = 10 * 1024 * 1024

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat maps a media type / extension to PDF or IMAGE. Unknown values map to "".
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png":
		return IMAGE
	default:
		return ""
	}
}

// MediaTypeFromMIME turns "image/png" or "application/pdf" into the short media type ("png", "pdf").
func MediaTypeFromMIME(mime string) string {
	mime = strings.TrimSpace(strings.ToLower(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	if i := strings.LastIndex(mime, "/"); i >= 0 {
		mime = mime[i+1:]
	}
	return NormalizeExt(mime)
}

// ContentType returns the MIME type stored alongside a blob of the given media type.
func ContentType(mediaType string) string {
	switch NormalizeExt(mediaType) {
	case "pdf":
		return "application/pdf"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
