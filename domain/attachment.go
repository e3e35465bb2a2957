package domain

import (
	"path"
	"strings"
)

// PreviewKind classifies how an attached file renders in a message.
type PreviewKind int

const (
	PreviewFile PreviewKind = iota
	PreviewImage
	PreviewVideo
)

// PreviewKindOf derives the preview type from the file extension of the
// attachment URL. Anything unrecognized falls back to a generic download.
func PreviewKindOf(fileURL string) PreviewKind {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileURL), "."))
	switch ext {
	case "png", "jpg", "jpeg", "gif", "webp", "svg":
		return PreviewImage
	case "mp4", "webm", "mov":
		return PreviewVideo
	default:
		return PreviewFile
	}
}
