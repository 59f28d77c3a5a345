package service

import (
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const maxOriginalNameLength = 255

// newKeyBase returns "<YYYY-MM-DD>-<uuid>" for a new object.
func newKeyBase(now time.Time) string {
	return now.UTC().Format("2006-01-02") + "-" + uuid.NewString()
}

// thumbKey derives the thumbnail key stored next to key.
func thumbKey(key string) string {
	ext := path.Ext(key)
	return strings.TrimSuffix(key, ext) + "-thumb.webp"
}

// sanitizeOriginalName keeps only the base name, drops control characters
// and caps the length.
func sanitizeOriginalName(raw string) string {
	name := raw
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if len(name) > maxOriginalNameLength {
		name = strings.ToValidUTF8(name[:maxOriginalNameLength], "")
	}
	return name
}
