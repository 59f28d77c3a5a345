// Package sniff identifies image formats from their leading magic bytes.
package sniff

import (
	"bytes"
	"errors"
	"io"
	"os"

	"alcyxob/media-service/internal/domain"
)

// HeaderSize is how many leading bytes are read from a file before matching.
const HeaderSize = 64

type signature struct {
	mime  string
	match func(b []byte) bool
}

// Checked in order; the first match wins.
var signatures = []signature{
	{domain.MimeJPEG, func(b []byte) bool {
		return bytes.HasPrefix(b, []byte{0xFF, 0xD8, 0xFF})
	}},
	{domain.MimePNG, func(b []byte) bool {
		return bytes.HasPrefix(b, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
	}},
	{domain.MimeGIF, func(b []byte) bool {
		return bytes.HasPrefix(b, []byte("GIF87a")) || bytes.HasPrefix(b, []byte("GIF89a"))
	}},
	{domain.MimeWEBP, func(b []byte) bool {
		return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WEBP"
	}},
	{domain.MimeAVIF, func(b []byte) bool {
		if len(b) < 12 || string(b[4:8]) != "ftyp" {
			return false
		}
		brand := string(b[8:12])
		return brand == "avif" || brand == "avis"
	}},
}

// Detect returns the image mime type whose signature matches b, or "" when
// nothing matches.
func Detect(b []byte) string {
	for _, sig := range signatures {
		if sig.match(b) {
			return sig.mime
		}
	}
	return ""
}

// DetectFile reads the head of the file at path and runs Detect over it.
func DetectFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, HeaderSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return Detect(head[:n]), nil
}

// Matches reports whether a sniffed type agrees with the declared one.
// An empty sniff result never matches.
func Matches(declared, sniffed string) bool {
	if sniffed == "" {
		return false
	}
	return domain.NormalizeMime(declared) == sniffed
}
