// Package transcode normalises HEIC uploads to JPEG and derives WEBP
// thumbnails. Every output is re-sniffed before it is reported as written.
package transcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"

	"alcyxob/media-service/internal/domain"
	"alcyxob/media-service/internal/sniff"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
	"github.com/rwcarlsen/goexif/exif"
)

// ErrOutputMismatch means an encoder produced bytes that do not sniff as the
// expected format.
var ErrOutputMismatch = errors.New("transcoded output failed content check")

const (
	DefaultJPEGQuality    = 90
	DefaultThumbnailWidth = 900
	DefaultThumbQuality   = 80
)

// Transcoder holds encoding parameters.
type Transcoder struct {
	JPEGQuality    int
	ThumbnailWidth int
	ThumbQuality   float32
}

func New() *Transcoder {
	return &Transcoder{
		JPEGQuality:    DefaultJPEGQuality,
		ThumbnailWidth: DefaultThumbnailWidth,
		ThumbQuality:   DefaultThumbQuality,
	}
}

// HEICToJPEG decodes the HEIC file at src, applies its EXIF orientation and
// writes a JPEG to dst. dst is removed again if the result does not sniff
// as JPEG.
func (t *Transcoder) HEICToJPEG(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	img, err := goheif.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding heic: %w", err)
	}
	if raw, err := goheif.ExtractExif(f); err == nil {
		img = applyOrientation(img, exifOrientation(raw))
	}

	if err := imaging.Save(img, dst, imaging.JPEGQuality(t.JPEGQuality)); err != nil {
		return fmt.Errorf("encoding jpeg: %w", err)
	}
	return verify(dst, domain.MimeJPEG)
}

// Thumbnail writes a WEBP rendition of src to dst, at most ThumbnailWidth
// wide. Smaller images keep their size.
func (t *Transcoder) Thumbnail(src, dst string) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decoding image: %w", err)
	}
	if img.Bounds().Dx() > t.ThumbnailWidth {
		img = imaging.Resize(img, t.ThumbnailWidth, 0, imaging.Lanczos)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := webp.Encode(out, img, &webp.Options{Quality: t.ThumbQuality}); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("encoding webp: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return verify(dst, domain.MimeWEBP)
}

func verify(path, want string) error {
	got, err := sniff.DetectFile(path)
	if err == nil && got != want {
		err = fmt.Errorf("%w: want %s, got %q", ErrOutputMismatch, want, got)
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// exifOrientation returns the orientation tag from a raw EXIF block, or 1.
// HEIF exif items carry a header before the TIFF data, so parsing starts at
// the TIFF byte-order mark.
func exifOrientation(raw []byte) int {
	start := bytes.Index(raw, []byte("II*\x00"))
	if mm := bytes.Index(raw, []byte("MM\x00*")); mm >= 0 && (start < 0 || mm < start) {
		start = mm
	}
	if start < 0 {
		return 1
	}
	x, err := exif.Decode(bytes.NewReader(raw[start:]))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
