package models

import (
	"fmt"
	"strings"
)

// MediaKind selects which remote/local URL pair and file extension apply
type MediaKind int

const (
	MediaKindUnknown MediaKind = iota
	MediaKindAudio
	MediaKindImage
)

// Extension returns the cache file extension for the kind, empty for unknown
func (k MediaKind) Extension() string {
	switch k {
	case MediaKindAudio:
		return "mp3"
	case MediaKindImage:
		return "jpg"
	default:
		return ""
	}
}

func (k MediaKind) String() string {
	switch k {
	case MediaKindAudio:
		return "audio"
	case MediaKindImage:
		return "image"
	default:
		return "unknown"
	}
}

// ParseMediaKind parses "audio" or "image"
func ParseMediaKind(s string) (MediaKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "audio":
		return MediaKindAudio, nil
	case "image":
		return MediaKindImage, nil
	default:
		return MediaKindUnknown, fmt.Errorf("unknown media kind %q", s)
	}
}
