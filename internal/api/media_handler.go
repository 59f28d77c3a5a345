package api

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"alcyxob/media-service/internal/metrics"
	"alcyxob/media-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MediaHandler serves stored files back to callers.
type MediaHandler struct {
	private   service.PrivateMediaService
	uploadDir string
	metrics   *metrics.Recorder
	log       *zap.SugaredLogger
}

func NewMediaHandler(private service.PrivateMediaService, uploadDir string, rec *metrics.Recorder, log *zap.SugaredLogger) *MediaHandler {
	return &MediaHandler{private: private, uploadDir: uploadDir, metrics: rec, log: log}
}

// GetPrivate godoc
// @Summary Stream a private upload
// @Description Only the owner and admins may read. Unknown ids are 404 for everyone.
// @Tags Uploads
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Private upload ID"
// @Success 200 {file} binary
// @Failure 401,403,404 {object} gin.H
// @Router /uploads/private/{id} [get]
func (h *MediaHandler) GetPrivate(c *gin.Context) {
	obj, err := h.private.Open(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		kind := service.KindOf(err)
		h.metrics.RecordPrivateRead(kind.String())
		if kind == service.KindInternal {
			h.log.Errorw("Private read failed", "id", c.Param("id"), "error", err)
		}
		abortWithError(c, statusForKind(kind), service.MessageOf(err))
		return
	}
	defer obj.Body.Close()
	h.metrics.RecordPrivateRead("ok")

	size := obj.Upload.SizeBytes
	if size <= 0 {
		size = -1
	}
	extra := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"Cache-Control":          "private, no-store",
	}
	if obj.Upload.OriginalName != "" {
		extra["Content-Disposition"] = mime.FormatMediaType("inline", map[string]string{"filename": obj.Upload.OriginalName})
	}
	c.DataFromReader(http.StatusOK, size, obj.Upload.Mime, obj.Body, extra)
}

// ServePublic streams a public file from the local upload directory. Only
// flat keys are served, so nothing under private/ is reachable here.
func (h *MediaHandler) ServePublic(c *gin.Context) {
	key := c.Param("key")
	if key == "" || strings.ContainsAny(key, `/\`) || !filepath.IsLocal(key) {
		abortWithError(c, http.StatusNotFound, "File not found.")
		return
	}
	path := filepath.Join(h.uploadDir, key)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			h.log.Warnw("Failed to stat public file", "key", key, "error", err)
		}
		abortWithError(c, http.StatusNotFound, "File not found.")
		return
	}
	c.Header("X-Content-Type-Options", "nosniff")
	c.File(path)
}
