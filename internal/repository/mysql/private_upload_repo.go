package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"alcyxob/media-service/internal/domain"
	"alcyxob/media-service/internal/repository"

	"github.com/google/uuid"
)

type PrivateUploadRepository struct {
	db *sql.DB
}

func NewPrivateUploadRepository(db *sql.DB) *PrivateUploadRepository {
	return &PrivateUploadRepository{db: db}
}

func (r *PrivateUploadRepository) Create(ctx context.Context, upload *domain.PrivateUpload) (string, error) {
	if upload.OwnerUserID == "" || upload.StorageKey == "" {
		return "", errors.New("private upload requires owner and storage key")
	}
	id := uuid.NewString()
	createdAt := time.Now().UTC()

	query := `
		INSERT INTO private_uploads
			(id, user_id, purpose, storage, storage_key, mime, kind, size_bytes, original_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		id,
		upload.OwnerUserID,
		upload.Purpose,
		upload.Storage,
		upload.StorageKey,
		upload.Mime,
		string(upload.Kind),
		upload.SizeBytes,
		upload.OriginalName,
		createdAt,
	)
	if err != nil {
		return "", err
	}

	upload.ID = id
	upload.CreatedAt = createdAt
	return id, nil
}

func (r *PrivateUploadRepository) GetByID(ctx context.Context, id string) (*domain.PrivateUpload, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}

	query := `
		SELECT id, user_id, purpose, storage, storage_key, mime, kind, size_bytes, original_name, created_at
		FROM private_uploads
		WHERE id = ?
	`
	var (
		row  domain.PrivateUpload
		kind string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&row.ID,
		&row.OwnerUserID,
		&row.Purpose,
		&row.Storage,
		&row.StorageKey,
		&row.Mime,
		&kind,
		&row.SizeBytes,
		&row.OriginalName,
		&row.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	row.Kind = domain.Kind(kind)
	return &row, nil
}

func (r *PrivateUploadRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM private_uploads WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
