package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"alcyxob/media-service/internal/domain"
	"alcyxob/media-service/internal/sniff"
)

// UploadService accepts public uploads.
type UploadService interface {
	// UploadMedia stores a multipart batch of images and videos.
	UploadMedia(ctx context.Context, files []IncomingFile) (*Result, error)
	// UploadDataURL stores a single base64 image from a data URL.
	UploadDataURL(ctx context.Context, dataURL string) (*Result, error)
}

// uploadService implements the UploadService interface.
type uploadService struct {
	pipeline *Pipeline
}

// NewUploadService creates a new instance of uploadService.
func NewUploadService(pipeline *Pipeline) UploadService {
	return &uploadService{pipeline: pipeline}
}

func (s *uploadService) UploadMedia(ctx context.Context, files []IncomingFile) (*Result, error) {
	return s.pipeline.ingest(ctx, files, MediaPolicy)
}

func (s *uploadService) UploadDataURL(ctx context.Context, dataURL string) (*Result, error) {
	mime, payload, err := parseDataURL(dataURL)
	if err != nil {
		return nil, newError(KindValidation, MsgInvalidDataURL, err)
	}
	if !DataURLPolicy.allows(mime) {
		return nil, newError(KindValidation, MsgUnsupportedImage, errors.New(mime))
	}
	if estimateBase64Size(payload) > MaxDataURLSize {
		return nil, newError(KindSizeLimit, MsgTooLarge, nil)
	}
	data, err := decodeBase64(payload)
	if err != nil || len(data) == 0 {
		return nil, newError(KindValidation, MsgInvalidBase64, err)
	}
	if len(data) > MaxDataURLSize {
		return nil, newError(KindSizeLimit, MsgTooLarge, nil)
	}

	// HEIC is checked after conversion; everything else is checked before
	// any byte reaches the disk.
	if !domain.IsHEIC(mime) {
		if sniffed := sniff.Detect(data); !sniff.Matches(mime, sniffed) {
			return nil, newError(KindTypeLimit, MsgContentMismatch, errors.New("declared "+mime+", sniffed "+sniffed))
		}
	}

	file := IncomingFile{
		Name:         "upload." + domain.ExtensionForMime(mime),
		DeclaredMime: mime,
		Size:         int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
	return s.pipeline.ingest(ctx, []IncomingFile{file}, DataURLPolicy)
}

// parseDataURL splits "data:<mime>[;param];base64,<payload>".
func parseDataURL(raw string) (mime, payload string, err error) {
	raw = strings.TrimSpace(raw)
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return "", "", errors.New("missing data: prefix")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", errors.New("missing payload separator")
	}
	params := strings.Split(header, ";")
	if len(params) < 2 || !strings.EqualFold(strings.TrimSpace(params[len(params)-1]), "base64") {
		return "", "", errors.New("data URL is not base64 encoded")
	}
	mime = domain.NormalizeMime(params[0])
	if !strings.HasPrefix(mime, "image/") {
		return "", "", errors.New("data URL is not an image")
	}
	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return "", "", errors.New("empty payload")
	}
	return mime, payload, nil
}

func estimateBase64Size(data string) int64 {
	length := len(data)
	padding := 0
	if strings.HasSuffix(data, "==") {
		padding = 2
	} else if strings.HasSuffix(data, "=") {
		padding = 1
	}
	decoded := (length/4)*3 - padding
	if decoded < 0 {
		return 0
	}
	return int64(decoded)
}

// decodeBase64 attempts standard and raw base64 decoding.
func decodeBase64(value string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(value)
}
