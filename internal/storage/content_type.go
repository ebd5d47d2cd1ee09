package storage

import (
	"mime"
	"path/filepath"
	"strings"
)

// DetectContentType returns the MIME type for a key, from its extension.
// Attachments uploaded from phones sometimes lack an extension; those are
// reported as application/octet-stream and sniffed by the image decoder.
func DetectContentType(providedType, key string) string {
	if providedType != "" {
		return providedType
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(key))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// IsImage returns true if the content type is any image format.
func IsImage(contentType string) bool {
	base := strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
	return strings.HasPrefix(base, "image/")
}
