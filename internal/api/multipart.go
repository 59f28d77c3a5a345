package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"alcyxob/media-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// multipartOverhead covers boundaries, part headers and small fields.
	multipartOverhead = 1 << 20
	maxFieldSize      = 4 << 10

	MsgInvalidMultipart = "Invalid multipart upload."
)

var (
	errPartTooLarge = errors.New("multipart file exceeds size limit")
	errSpool        = errors.New("spooling multipart file")
)

// multipartBatch is one request's parts, with file parts spooled to temp
// files so the pipeline can read them concurrently.
type multipartBatch struct {
	files   []service.IncomingFile
	fields  map[string]string
	spooled []string
}

// cleanup removes every spooled temp file.
func (b *multipartBatch) cleanup(log *zap.SugaredLogger) {
	for _, path := range b.spooled {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnw("Failed to remove spooled upload", "path", path, "error", err)
		}
	}
	b.spooled = nil
}

func (b *multipartBatch) spool(part *multipart.Part, limit int64) (service.IncomingFile, error) {
	tmp, err := os.CreateTemp("", "upload-*")
	if err != nil {
		return service.IncomingFile{}, fmt.Errorf("%w: %v", errSpool, err)
	}
	path := tmp.Name()
	b.spooled = append(b.spooled, path)

	n, copyErr := io.Copy(tmp, io.LimitReader(part, limit+1))
	closeErr := tmp.Close()
	switch {
	case copyErr != nil:
		return service.IncomingFile{}, copyErr
	case closeErr != nil:
		return service.IncomingFile{}, fmt.Errorf("%w: %v", errSpool, closeErr)
	case n > limit:
		return service.IncomingFile{}, errPartTooLarge
	}

	return service.IncomingFile{
		Name:         part.FileName(),
		DeclaredMime: part.Header.Get("Content-Type"),
		Size:         n,
		Open: func() (io.ReadCloser, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}, nil
}

// readMultipart walks the parts in order. It stops with a count error as soon
// as a file part beyond policy.MaxFiles appears and with a size error once a
// single part grows past policy.MaxFileSize. Type checks are left to the
// service. The caller must call cleanup on success.
func (h *UploadHandler) readMultipart(c *gin.Context, policy service.Policy) (*multipartBatch, bool) {
	limit := int64(policy.MaxFiles)*(policy.MaxFileSize+1) + multipartOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	mr, err := c.Request.MultipartReader()
	if err != nil {
		h.reject(c, policy.Surface, service.KindValidation, http.StatusBadRequest, MsgInvalidMultipart)
		return nil, false
	}

	batch := &multipartBatch{fields: make(map[string]string)}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return batch, true
		}
		if err != nil {
			batch.cleanup(h.log)
			h.rejectMultipart(c, policy.Surface, err)
			return nil, false
		}

		if err := h.readPart(batch, part, policy); err != nil {
			part.Close()
			batch.cleanup(h.log)
			var serr *service.Error
			if errors.As(err, &serr) {
				h.fail(c, policy.Surface, err)
			} else {
				h.rejectMultipart(c, policy.Surface, err)
			}
			return nil, false
		}
		part.Close()
	}
}

func (h *UploadHandler) readPart(batch *multipartBatch, part *multipart.Part, policy service.Policy) error {
	if part.FileName() == "" {
		if part.FormName() == "" || part.FormName() == filesField {
			return nil
		}
		value, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
		if err != nil {
			return err
		}
		if len(value) > maxFieldSize {
			return errors.New("form field too large")
		}
		if _, seen := batch.fields[part.FormName()]; !seen {
			batch.fields[part.FormName()] = string(value)
		}
		return nil
	}

	if part.FormName() != filesField {
		return nil
	}
	if len(batch.files) == policy.MaxFiles {
		return service.TooManyFiles(policy.MaxFiles)
	}
	f, err := batch.spool(part, policy.MaxFileSize)
	if err != nil {
		return err
	}
	batch.files = append(batch.files, f)
	return nil
}

func (h *UploadHandler) rejectMultipart(c *gin.Context, surface string, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), errors.Is(err, errPartTooLarge):
		h.reject(c, surface, service.KindSizeLimit, http.StatusRequestEntityTooLarge, service.MsgTooLarge)
	case errors.Is(err, errSpool):
		h.log.Errorw("Could not spool upload", "surface", surface, "error", err)
		h.reject(c, surface, service.KindInternal, http.StatusInternalServerError, service.MsgStoreFailed)
	default:
		h.reject(c, surface, service.KindValidation, http.StatusBadRequest, MsgInvalidMultipart)
	}
}
