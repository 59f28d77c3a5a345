package service

import "alcyxob/media-service/internal/domain"

const (
	MaxMediaFiles      = 12
	MaxMediaFileSize   = 50 << 20
	MaxPrivateFiles    = 3
	MaxPrivateFileSize = 12 << 20
	MaxDataURLSize     = 4 << 20
)

var imageMimes = map[string]bool{
	domain.MimeJPEG: true,
	domain.MimePNG:  true,
	domain.MimeWEBP: true,
	domain.MimeAVIF: true,
	domain.MimeGIF:  true,
	domain.MimeHEIC: true,
	domain.MimeHEIF: true,
}

var mediaMimes = map[string]bool{
	domain.MimeMP4:       true,
	domain.MimeWEBM:      true,
	domain.MimeQuickTime: true,
}

func init() {
	for m := range imageMimes {
		mediaMimes[m] = true
	}
}

// Policy bounds one upload surface.
type Policy struct {
	Surface     string
	MaxFiles    int
	MaxFileSize int64
	Allowed     map[string]bool
	KeyPrefix   string
	Thumbnails  bool
}

var (
	MediaPolicy = Policy{
		Surface:     "media",
		MaxFiles:    MaxMediaFiles,
		MaxFileSize: MaxMediaFileSize,
		Allowed:     mediaMimes,
		Thumbnails:  true,
	}
	PrivatePolicy = Policy{
		Surface:     "private",
		MaxFiles:    MaxPrivateFiles,
		MaxFileSize: MaxPrivateFileSize,
		Allowed:     imageMimes,
		KeyPrefix:   "private/",
	}
	DataURLPolicy = Policy{
		Surface:     "base64",
		MaxFiles:    1,
		MaxFileSize: MaxDataURLSize,
		Allowed:     imageMimes,
		Thumbnails:  true,
	}
)

func (p Policy) allows(mime string) bool {
	return p.Allowed[domain.NormalizeMime(mime)]
}
