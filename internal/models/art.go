package models

import (
	"net/url"
	"os"
	"path/filepath"
	"time"
)

const mediaFolderName = "MediaFiles"

// ArtObject is an art installation from the event catalog
type ArtObject struct {
	UID    string `boltholdKey:"UID" json:"uid"`
	Name   string `boltholdIndex:"Name" json:"name"`
	Artist string `json:"artist"`
	Year   int    `json:"year"`

	// Remote media, empty when the installation has none
	RemoteAudio     string `json:"audio_url"`
	RemoteThumbnail string `json:"thumbnail_url"`

	UpdatedAt time.Time `json:"-"`

	mediaRoot string
}

// UniqueID returns the stable identifier used to name cached files
func (a *ArtObject) UniqueID() string {
	return a.UID
}

// RemoteAudioURL returns the audio source, nil when absent or unparsable
func (a *ArtObject) RemoteAudioURL() *url.URL {
	return parseRemote(a.RemoteAudio)
}

// RemoteThumbnailURL returns the thumbnail source, nil when absent or unparsable
func (a *ArtObject) RemoteThumbnailURL() *url.URL {
	return parseRemote(a.RemoteThumbnail)
}

// LocalAudioURL returns the cached audio file, nil unless it exists on disk
func (a *ArtObject) LocalAudioURL() *url.URL {
	return a.localURL(MediaKindAudio)
}

// LocalThumbnailURL returns the cached thumbnail file, nil unless it exists on disk
func (a *ArtObject) LocalThumbnailURL() *url.URL {
	return a.localURL(MediaKindImage)
}

func (a *ArtObject) localURL(kind MediaKind) *url.URL {
	if a.mediaRoot == "" || a.UID == "" {
		return nil
	}
	path := LocalMediaPath(a.mediaRoot, MediaFileName(a.UID, kind))
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return &url.URL{Scheme: "file", Path: path}
}

func parseRemote(raw string) *url.URL {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return u
}

// DownloadPath returns <root>/MediaFiles, creating it when missing
func DownloadPath(root string) string {
	path := filepath.Join(root, mediaFolderName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		_ = os.MkdirAll(path, 0755)
	}
	return path
}

// LocalMediaPath returns the cache path for fileName under root
func LocalMediaPath(root, fileName string) string {
	return filepath.Join(DownloadPath(root), fileName)
}

// MediaFileName returns <uniqueID>.<ext>, or the bare id when the kind has no extension
func MediaFileName(uniqueID string, kind MediaKind) string {
	ext := kind.Extension()
	if ext == "" {
		return uniqueID
	}
	return uniqueID + "." + ext
}
