package service

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"

	"alcyxob/media-service/internal/storage"

	"go.uber.org/zap"
)

// batch tracks everything one request wrote so a failure can undo all of it.
//
// scratch files are intermediate (a HEIC source) and are removed when the
// scope ends whatever the outcome. staged files and stored objects are kept
// on success and removed by rollback.
type batch struct {
	driver storage.Driver
	log    *zap.SugaredLogger

	mu         sync.Mutex
	scratch    []string
	staged     []string
	objects    []string
	undo       []func(context.Context) error
	rolledBack bool
}

func newBatch(driver storage.Driver, log *zap.SugaredLogger) *batch {
	return &batch{driver: driver, log: log}
}

func (b *batch) addScratch(path string) {
	b.mu.Lock()
	b.scratch = append(b.scratch, path)
	b.mu.Unlock()
}

func (b *batch) addStaged(path string) {
	b.mu.Lock()
	b.staged = append(b.staged, path)
	b.mu.Unlock()
}

func (b *batch) addObject(key string) {
	b.mu.Lock()
	b.objects = append(b.objects, key)
	b.mu.Unlock()
}

// onRollback registers an extra compensation step, run after files and
// objects are removed.
func (b *batch) onRollback(fn func(context.Context) error) {
	b.mu.Lock()
	b.undo = append(b.undo, fn)
	b.mu.Unlock()
}

// release removes scratch files. Called on every exit path.
func (b *batch) release() {
	b.mu.Lock()
	paths := b.scratch
	b.scratch = nil
	b.mu.Unlock()
	for _, p := range paths {
		b.remove(p)
	}
}

// rollback deletes every staged file, stored object and registered row.
// It runs at most once; failures are logged and swallowed.
func (b *batch) rollback(ctx context.Context) {
	b.mu.Lock()
	if b.rolledBack {
		b.mu.Unlock()
		return
	}
	b.rolledBack = true
	staged, objects, undo := b.staged, b.objects, b.undo
	b.mu.Unlock()

	for _, p := range staged {
		b.remove(p)
	}
	for _, key := range objects {
		if err := b.driver.Delete(ctx, key); err != nil {
			b.log.Warnw("Failed to delete stored object during rollback", "key", key, "error", err)
		}
	}
	for _, fn := range undo {
		if err := fn(ctx); err != nil {
			b.log.Warnw("Rollback step failed", "error", err)
		}
	}
	if len(staged)+len(objects) > 0 {
		b.log.Infow("Rolled back upload batch", "staged", len(staged), "objects", len(objects))
	}
}

func (b *batch) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		b.log.Warnw("Failed to remove temp file", "path", path, "error", err)
	}
}
