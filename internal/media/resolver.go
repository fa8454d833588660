package media

import (
	"net/url"

	"github.com/iburn/mediacache/internal/models"
)

// Record is a catalog entry that may reference remote media
type Record interface {
	UniqueID() string
	RemoteAudioURL() *url.URL
	LocalAudioURL() *url.URL
	RemoteThumbnailURL() *url.URL
	LocalThumbnailURL() *url.URL
}

// Resolve returns the remote and local URL of record for kind.
// Images map to the thumbnail pair, audio to the audio pair, unknown to nothing.
func Resolve(record Record, kind models.MediaKind) (remote, local *url.URL) {
	switch kind {
	case models.MediaKindImage:
		return record.RemoteThumbnailURL(), record.LocalThumbnailURL()
	case models.MediaKindAudio:
		return record.RemoteAudioURL(), record.LocalAudioURL()
	default:
		return nil, nil
	}
}

// RemoteURL returns only the remote half of Resolve
func RemoteURL(record Record, kind models.MediaKind) *url.URL {
	switch kind {
	case models.MediaKindImage:
		return record.RemoteThumbnailURL()
	case models.MediaKindAudio:
		return record.RemoteAudioURL()
	default:
		return nil
	}
}

// NeedsDownload reports whether a resolved pair is a download candidate:
// a remote source exists and nothing is cached locally.
func NeedsDownload(remote, local *url.URL) bool {
	return remote != nil && local == nil
}
