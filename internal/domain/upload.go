package domain

import (
	"strings"
	"time"
)

// Kind groups stored assets by broad media family.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindOther Kind = "other"
)

// Storage driver names as they appear in descriptors and persisted rows.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// UploadedAsset describes one accepted file. It is built once per file and
// never mutated; public uploads are not persisted.
type UploadedAsset struct {
	Storage      string `json:"storage"`
	StorageKey   string `json:"storage_key"`
	URL          string `json:"url"`
	Mime         string `json:"mime"`
	Kind         Kind   `json:"kind"`
	Size         int64  `json:"size"`
	OriginalName string `json:"original_name"`
	ThumbKey     string `json:"thumb_key,omitempty"`
	ThumbURL     string `json:"thumb_url,omitempty"`
}

// PrivateUpload is the persisted record behind a gated upload. The row is the
// only thing consulted when deciding who may read the stored bytes.
type PrivateUpload struct {
	ID           string    `json:"id"`
	OwnerUserID  string    `json:"owner_user_id"`
	Purpose      string    `json:"purpose"`
	Storage      string    `json:"storage"`
	StorageKey   string    `json:"storage_key"`
	Mime         string    `json:"mime"`
	Kind         Kind      `json:"kind"`
	SizeBytes    int64     `json:"size_bytes"`
	OriginalName string    `json:"original_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// PrivateDescriptor is what callers get back for a private upload. URL always
// points at the gated retrieval endpoint, never at the storage location.
type PrivateDescriptor struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	Mime         string `json:"mime"`
	Kind         Kind   `json:"kind"`
	Size         int64  `json:"size"`
	OriginalName string `json:"original_name"`
}

// Supported mime types.
const (
	MimeJPEG      = "image/jpeg"
	MimePNG       = "image/png"
	MimeWEBP      = "image/webp"
	MimeAVIF      = "image/avif"
	MimeGIF       = "image/gif"
	MimeHEIC      = "image/heic"
	MimeHEIF      = "image/heif"
	MimeMP4       = "video/mp4"
	MimeWEBM      = "video/webm"
	MimeQuickTime = "video/quicktime"
)

var extensions = map[string]string{
	MimeJPEG:      "jpg",
	MimePNG:       "png",
	MimeWEBP:      "webp",
	MimeAVIF:      "avif",
	MimeGIF:       "gif",
	MimeHEIC:      "jpg", // converted before storage
	MimeHEIF:      "jpg",
	MimeMP4:       "mp4",
	MimeWEBM:      "webm",
	MimeQuickTime: "mov",
}

// NormalizeMime lowercases a declared content type and drops parameters.
// "image/jpg" is folded into "image/jpeg".
func NormalizeMime(raw string) string {
	m := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	if m == "image/jpg" || m == "image/pjpeg" {
		return MimeJPEG
	}
	return m
}

// ExtensionForMime returns the storage extension for a mime type, or "bin".
func ExtensionForMime(mime string) string {
	if ext, ok := extensions[NormalizeMime(mime)]; ok {
		return ext
	}
	return "bin"
}

// IsHEIC reports whether the mime type must be converted to JPEG first.
func IsHEIC(mime string) bool {
	m := NormalizeMime(mime)
	return m == MimeHEIC || m == MimeHEIF
}

// KindForMime classifies a mime type.
func KindForMime(mime string) Kind {
	m := NormalizeMime(mime)
	switch {
	case strings.HasPrefix(m, "image/"):
		return KindImage
	case strings.HasPrefix(m, "video/"):
		return KindVideo
	default:
		return KindOther
	}
}
