package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"alcyxob/media-service/internal/domain"
	"alcyxob/media-service/internal/metrics"
	"alcyxob/media-service/internal/sniff"
	"alcyxob/media-service/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Transcoder converts HEIC sources and derives thumbnails.
type Transcoder interface {
	HEICToJPEG(src, dst string) error
	Thumbnail(src, dst string) error
}

// IncomingFile is one untrusted file as received by the router.
type IncomingFile struct {
	Name         string
	DeclaredMime string
	// Size as reported by the client, or -1 when unknown. The real size is
	// enforced while the bytes are written.
	Size int64
	Open func() (io.ReadCloser, error)
}

// Result is a successful batch. Discard undoes it, for when the response
// could not be delivered.
type Result struct {
	Assets  []domain.UploadedAsset
	Private []domain.PrivateDescriptor
	batch   *batch
}

// Discard deletes everything the batch stored.
func (r *Result) Discard(ctx context.Context) {
	if r != nil && r.batch != nil {
		r.batch.rollback(ctx)
	}
}

// Pipeline runs transcode, sniff, upload and thumbnail for each file of a
// request. It is shared by the public and private services.
type Pipeline struct {
	driver          storage.Driver
	uploadDir       string
	imageProcessing bool
	transcoder      Transcoder
	metrics         *metrics.Recorder
	log             *zap.SugaredLogger
	now             func() time.Time
}

func NewPipeline(
	driver storage.Driver,
	uploadDir string,
	imageProcessing bool,
	transcoder Transcoder,
	rec *metrics.Recorder,
	log *zap.SugaredLogger,
) *Pipeline {
	return &Pipeline{
		driver:          driver,
		uploadDir:       uploadDir,
		imageProcessing: imageProcessing,
		transcoder:      transcoder,
		metrics:         rec,
		log:             log,
		now:             time.Now,
	}
}

// Driver returns the storage driver the pipeline writes through.
func (p *Pipeline) Driver() storage.Driver { return p.driver }

// ingest validates and stores files as one batch. Any failing file fails
// the batch and everything already written is removed before returning.
func (p *Pipeline) ingest(ctx context.Context, files []IncomingFile, policy Policy) (*Result, error) {
	if len(files) == 0 {
		return nil, newError(KindValidation, MsgNoFiles, nil)
	}
	if len(files) > policy.MaxFiles {
		return nil, TooManyFiles(policy.MaxFiles)
	}
	for _, f := range files {
		if !policy.allows(f.DeclaredMime) {
			return nil, newError(KindTypeLimit, MsgUnsupportedType, fmt.Errorf("declared %q", f.DeclaredMime))
		}
		if f.Size > policy.MaxFileSize {
			return nil, newError(KindSizeLimit, MsgTooLarge, fmt.Errorf("declared size %d", f.Size))
		}
	}

	start := p.now()
	b := newBatch(p.driver, p.log)
	defer b.release()

	assets := make([]domain.UploadedAsset, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			asset, err := p.processFile(gctx, b, f, policy)
			if err != nil {
				return err
			}
			assets[i] = asset
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.rollback(ctx)
		return nil, err
	}

	for _, a := range assets {
		p.metrics.RecordStored(policy.Surface, a.Storage, string(a.Kind), a.Size)
	}
	p.metrics.ObserveBatch(policy.Surface, p.now().Sub(start))
	return &Result{Assets: assets, batch: b}, nil
}

// processFile runs the strictly sequential per-file steps.
func (p *Pipeline) processFile(ctx context.Context, b *batch, f IncomingFile, policy Policy) (domain.UploadedAsset, error) {
	declared := domain.NormalizeMime(f.DeclaredMime)
	base := policy.KeyPrefix + newKeyBase(p.now())
	key := base + "." + domain.ExtensionForMime(declared)
	path := p.pathFor(key)
	mime := declared

	if domain.IsHEIC(declared) {
		src := p.pathFor(base + ".heic")
		b.addScratch(src)
		if err := p.write(f, src, policy.MaxFileSize); err != nil {
			return domain.UploadedAsset{}, err
		}
		b.addStaged(path)
		err := p.convertHEIC(src, path)
		b.remove(src)
		if err != nil {
			return domain.UploadedAsset{}, newError(KindTypeLimit, MsgHEICFailed, err)
		}
		mime = domain.MimeJPEG
	} else {
		b.addStaged(path)
		if err := p.write(f, path, policy.MaxFileSize); err != nil {
			return domain.UploadedAsset{}, err
		}
	}

	kind := domain.KindForMime(mime)
	switch kind {
	case domain.KindImage:
		sniffed, err := sniff.DetectFile(path)
		if err != nil {
			return domain.UploadedAsset{}, newError(KindInternal, MsgStoreFailed, err)
		}
		if !sniff.Matches(mime, sniffed) {
			return domain.UploadedAsset{}, newError(KindTypeLimit, MsgContentMismatch,
				fmt.Errorf("declared %s, sniffed %q", mime, sniffed))
		}
	case domain.KindVideo:
		p.observeVideo(path, mime)
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.UploadedAsset{}, newError(KindInternal, MsgStoreFailed, err)
	}

	var thumbPath string
	if p.imageProcessing && policy.Thumbnails && kind == domain.KindImage {
		thumbPath = p.thumbnail(b, key, path)
	}

	loc, err := p.driver.Upload(ctx, storage.Handle{Key: key, Path: path, ContentType: mime})
	if err != nil {
		return domain.UploadedAsset{}, newError(KindInternal, MsgStoreFailed, err)
	}
	b.addObject(key)

	asset := domain.UploadedAsset{
		Storage:      loc.Storage,
		StorageKey:   loc.StorageKey,
		URL:          loc.URL,
		Mime:         mime,
		Kind:         kind,
		Size:         info.Size(),
		OriginalName: sanitizeOriginalName(f.Name),
	}

	if thumbPath != "" {
		tk := thumbKey(key)
		tloc, err := p.driver.Upload(ctx, storage.Handle{Key: tk, Path: thumbPath, ContentType: domain.MimeWEBP})
		if err != nil {
			p.log.Warnw("Thumbnail upload failed", "key", tk, "error", err)
			b.remove(thumbPath)
		} else {
			b.addObject(tk)
			asset.ThumbKey = tloc.StorageKey
			asset.ThumbURL = tloc.URL
		}
	}
	return asset, nil
}

func (p *Pipeline) pathFor(key string) string {
	return filepath.Join(p.uploadDir, filepath.FromSlash(key))
}

// write streams f to dst, failing with a size error once more than limit
// bytes arrive.
func (p *Pipeline) write(f IncomingFile, dst string, limit int64) error {
	rc, err := f.Open()
	if err != nil {
		return newError(KindInternal, MsgStoreFailed, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return newError(KindInternal, MsgStoreFailed, err)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return newError(KindInternal, MsgStoreFailed, err)
	}
	n, copyErr := io.Copy(out, io.LimitReader(rc, limit+1))
	closeErr := out.Close()

	switch {
	case copyErr != nil:
		return newError(KindInternal, MsgStoreFailed, copyErr)
	case n > limit:
		os.Remove(dst)
		return newError(KindSizeLimit, MsgTooLarge, fmt.Errorf("more than %d bytes", limit))
	case closeErr != nil:
		return newError(KindInternal, MsgStoreFailed, closeErr)
	}
	return nil
}

func (p *Pipeline) convertHEIC(src, dst string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("heic decoder panic: %v", r)
		}
	}()
	return p.transcoder.HEICToJPEG(src, dst)
}

// thumbnail renders the thumbnail next to the original and returns its
// path, or "" when rendering failed. Failures never fail the upload.
func (p *Pipeline) thumbnail(b *batch, key, src string) (path string) {
	dst := p.pathFor(thumbKey(key))
	b.addStaged(dst)
	defer func() {
		if r := recover(); r != nil {
			p.log.Warnw("Thumbnail generation panicked", "key", key, "panic", r)
			b.remove(dst)
			path = ""
		}
	}()
	if err := p.transcoder.Thumbnail(src, dst); err != nil {
		p.log.Warnw("Thumbnail generation failed", "key", key, "error", err)
		b.remove(dst)
		return ""
	}
	return dst
}

// observeVideo logs when a generic detector disagrees with the declared
// video type. Video is accepted on its declared mime.
func (p *Pipeline) observeVideo(path, declared string) {
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return
	}
	if !detected.Is(declared) {
		p.log.Warnw("Video content does not match declared type", "declared", declared, "detected", detected.String())
	}
}
