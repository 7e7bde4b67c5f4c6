package routing

import (
	"path/filepath"
	"strings"

	"github.com/jonesrussell/media-archiver/internal/models"
)

// kindExtensions maps each media kind to its recognized file extensions.
// Extensions not listed anywhere classify as blobs.
var kindExtensions = map[models.MediaKind][]string{
	models.KindImages: {".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tiff", ".svg"},
	models.KindVideos: {".mp4", ".mov", ".mkv", ".avi", ".webm", ".m4v", ".flv"},
	models.KindAudio:  {".mp3", ".wav", ".ogg", ".flac", ".m4a", ".aac", ".opus"},
	models.KindDocs:   {".pdf", ".txt", ".md", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".csv", ".json", ".html"},
}

// extensionKind is the reverse index, built once at package init.
var extensionKind = func() map[string]models.MediaKind {
	idx := make(map[string]models.MediaKind)
	for kind, exts := range kindExtensions {
		for _, ext := range exts {
			idx[ext] = kind
		}
	}
	return idx
}()

// KindFromPath classifies a file by extension. Unmatched extensions fall
// through to the blobs bucket.
func KindFromPath(path string) models.MediaKind {
	ext := strings.ToLower(filepath.Ext(path))
	if kind, ok := extensionKind[ext]; ok {
		return kind
	}
	return models.KindBlobs
}

// KnownExtension reports whether the extension belongs to any kind's
// allowlist. The policy engine rejects files that fail this check.
func KnownExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := extensionKind[ext]
	return ok
}
