package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"alcyxob/media-service/internal/domain"
	"alcyxob/media-service/internal/repository"

	"github.com/google/uuid"
)

// PrivateUploadRepository is an in-process store for development runs and tests.
type PrivateUploadRepository struct {
	mu   sync.RWMutex
	rows map[string]domain.PrivateUpload
}

func NewPrivateUploadRepository() *PrivateUploadRepository {
	return &PrivateUploadRepository{rows: make(map[string]domain.PrivateUpload)}
}

func (r *PrivateUploadRepository) Create(_ context.Context, upload *domain.PrivateUpload) (string, error) {
	if upload.OwnerUserID == "" || upload.StorageKey == "" {
		return "", errors.New("private upload requires owner and storage key")
	}
	upload.ID = uuid.NewString()
	upload.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	r.rows[upload.ID] = *upload
	r.mu.Unlock()
	return upload.ID, nil
}

func (r *PrivateUploadRepository) GetByID(_ context.Context, id string) (*domain.PrivateUpload, error) {
	r.mu.RLock()
	row, ok := r.rows[id]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (r *PrivateUploadRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

// Put stores a row as-is, bypassing Create's validation.
func (r *PrivateUploadRepository) Put(row domain.PrivateUpload) {
	r.mu.Lock()
	r.rows[row.ID] = row
	r.mu.Unlock()
}

// Len returns the number of stored rows.
func (r *PrivateUploadRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}
