package media

import (
	"net/url"

	"github.com/iburn/mediacache/internal/models"
)

// DownloadPath returns the cache directory <root>/MediaFiles, creating it on first access
func DownloadPath(root string) string {
	return models.DownloadPath(root)
}

// LocalMediaURL returns the file URL fileName is cached at under root
func LocalMediaURL(root, fileName string) *url.URL {
	return &url.URL{Scheme: "file", Path: models.LocalMediaPath(root, fileName)}
}

// FileName returns the deterministic cache file name of record for kind
func FileName(record Record, kind models.MediaKind) string {
	return models.MediaFileName(record.UniqueID(), kind)
}
