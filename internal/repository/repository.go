package repository

import (
	"context"
	"errors"

	"alcyxob/media-service/internal/domain"
)

var (
	ErrNotFound = RepositoryError("not found")
	// ErrUnknownDriver is returned when database.driver names no backend.
	ErrUnknownDriver = errors.New("unknown database driver")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// PrivateUploadRepository persists the private_uploads rows.
type PrivateUploadRepository interface {
	// Create stores the row and returns its generated ID. ID and CreatedAt
	// are set on the passed value.
	Create(ctx context.Context, upload *domain.PrivateUpload) (string, error)
	// GetByID returns ErrNotFound for unknown or malformed IDs.
	GetByID(ctx context.Context, id string) (*domain.PrivateUpload, error)
	// Delete removes a row. Used to undo rows of a failed batch.
	Delete(ctx context.Context, id string) error
}
