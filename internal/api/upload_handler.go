package api

import (
	"context"
	"errors"
	"net/http"

	"alcyxob/media-service/internal/metrics"
	"alcyxob/media-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	maxJSONBody = 8 << 20

	filesField   = "files"
	purposeField = "purpose"
)

type UploadHandler struct {
	uploads service.UploadService
	private service.PrivateMediaService
	metrics *metrics.Recorder
	log     *zap.SugaredLogger
}

func NewUploadHandler(
	uploads service.UploadService,
	private service.PrivateMediaService,
	rec *metrics.Recorder,
	log *zap.SugaredLogger,
) *UploadHandler {
	return &UploadHandler{uploads: uploads, private: private, metrics: rec, log: log}
}

// --- DTOs ---

type DataURLRequest struct {
	DataURL string `json:"dataUrl" binding:"required"`
}

// UploadMedia godoc
// @Summary Upload images and videos
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param files formData file true "Up to 12 files, 50MB each"
// @Success 201 {array} domain.UploadedAsset
// @Failure 400,401,413,415,429 {object} gin.H
// @Router /uploads/media [post]
func (h *UploadHandler) UploadMedia(c *gin.Context) {
	policy := service.MediaPolicy
	batch, ok := h.readMultipart(c, policy)
	if !ok {
		return
	}
	defer batch.cleanup(h.log)

	res, err := h.uploads.UploadMedia(pipelineContext(c), batch.files)
	if err != nil {
		h.fail(c, policy.Surface, err)
		return
	}
	h.deliver(c, res, res.Assets)
}

// UploadPrivateMedia godoc
// @Summary Upload images readable only by their owner and admins
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param files formData file true "Up to 3 images, 12MB each"
// @Param purpose formData string true "What the upload is for"
// @Success 201 {array} domain.PrivateDescriptor
// @Failure 400,401,413,415,429 {object} gin.H
// @Router /uploads/private/media [post]
func (h *UploadHandler) UploadPrivateMedia(c *gin.Context) {
	policy := service.PrivatePolicy
	batch, ok := h.readMultipart(c, policy)
	if !ok {
		return
	}
	defer batch.cleanup(h.log)

	res, err := h.private.Upload(pipelineContext(c), principalFromContext(c), batch.fields[purposeField], batch.files)
	if err != nil {
		h.fail(c, policy.Surface, err)
		return
	}
	h.deliver(c, res, res.Private)
}

// UploadDataURL godoc
// @Summary Upload one image as a base64 data URL
// @Tags Uploads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DataURLRequest true "data:image/<type>;base64,<payload>"
// @Success 201 {object} domain.UploadedAsset
// @Failure 400,401,413,415,429 {object} gin.H
// @Router /uploads [post]
func (h *UploadHandler) UploadDataURL(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBody)

	var req DataURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(c, service.DataURLPolicy.Surface, service.KindSizeLimit, http.StatusRequestEntityTooLarge, service.MsgTooLarge)
			return
		}
		h.reject(c, service.DataURLPolicy.Surface, service.KindValidation, http.StatusBadRequest, "dataUrl is required.")
		return
	}

	res, err := h.uploads.UploadDataURL(pipelineContext(c), req.DataURL)
	if err != nil {
		h.fail(c, service.DataURLPolicy.Surface, err)
		return
	}
	h.deliver(c, res, res.Assets[0])
}

// pipelineContext detaches pipeline work from the client connection so a
// dropped client does not abort half-written files.
func pipelineContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// deliver writes the 201 and rolls the batch back when the response could
// not be written.
func (h *UploadHandler) deliver(c *gin.Context, res *service.Result, body interface{}) {
	c.JSON(http.StatusCreated, body)
	if len(c.Errors) == 0 && c.Request.Context().Err() == nil {
		return
	}
	h.log.Warnw("Upload response not delivered, discarding stored files",
		"path", c.FullPath(), "errors", c.Errors.String(), "ctx_err", c.Request.Context().Err())
	res.Discard(pipelineContext(c))
}

// fail maps a service error to its status code.
func (h *UploadHandler) fail(c *gin.Context, surface string, err error) {
	kind := service.KindOf(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		h.log.Errorw("Upload failed", "surface", surface, "error", err)
	} else {
		h.log.Infow("Upload rejected", "surface", surface, "kind", kind.String(), "error", err)
	}
	h.reject(c, surface, kind, status, service.MessageOf(err))
}

func (h *UploadHandler) reject(c *gin.Context, surface string, kind service.ErrorKind, status int, msg string) {
	h.metrics.RecordRejection(surface, kind.String())
	abortWithError(c, status, msg)
}

func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindSizeLimit:
		return http.StatusRequestEntityTooLarge
	case service.KindTypeLimit:
		return http.StatusUnsupportedMediaType
	case service.KindAuth:
		return http.StatusUnauthorized
	case service.KindAccess:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
