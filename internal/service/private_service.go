package service

import (
	"context"
	"errors"
	"io"
	"net/url"
	"regexp"
	"strings"

	"alcyxob/media-service/internal/domain"
	"alcyxob/media-service/internal/repository"
	"alcyxob/media-service/internal/storage"
)

// PrivateURLPrefix is the gated retrieval endpoint for private uploads.
const PrivateURLPrefix = storage.LocalURLPrefix + "private/"

var purposePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// PrivateURL returns the gated retrieval URL of a private upload.
func PrivateURL(id string) string {
	return PrivateURLPrefix + url.PathEscape(id)
}

// PrivateObject is an authorised private upload ready to stream.
type PrivateObject struct {
	Upload *domain.PrivateUpload
	Body   io.ReadCloser
}

type PrivateMediaService interface {
	// Upload stores images whose retrieval is restricted to owner and admins.
	Upload(ctx context.Context, owner domain.Principal, purpose string, files []IncomingFile) (*Result, error)
	// Open authorises requester and opens the stored bytes.
	Open(ctx context.Context, requester domain.Principal, id string) (*PrivateObject, error)
}

type privateMediaService struct {
	pipeline *Pipeline
	repo     repository.PrivateUploadRepository
}

func NewPrivateMediaService(pipeline *Pipeline, repo repository.PrivateUploadRepository) PrivateMediaService {
	return &privateMediaService{pipeline: pipeline, repo: repo}
}

func (s *privateMediaService) Upload(ctx context.Context, owner domain.Principal, purpose string, files []IncomingFile) (*Result, error) {
	purpose = strings.TrimSpace(purpose)
	if !purposePattern.MatchString(purpose) {
		return nil, newError(KindValidation, MsgMissingPurpose, nil)
	}
	if owner.UserID == "" {
		return nil, newError(KindAuth, MsgAuthRequired, nil)
	}

	res, err := s.pipeline.ingest(ctx, files, PrivatePolicy)
	if err != nil {
		return nil, err
	}

	descriptors := make([]domain.PrivateDescriptor, 0, len(res.Assets))
	for _, a := range res.Assets {
		row := &domain.PrivateUpload{
			OwnerUserID:  owner.UserID,
			Purpose:      purpose,
			Storage:      a.Storage,
			StorageKey:   a.StorageKey,
			Mime:         a.Mime,
			Kind:         a.Kind,
			SizeBytes:    a.Size,
			OriginalName: a.OriginalName,
		}
		id, err := s.repo.Create(ctx, row)
		if err != nil {
			res.Discard(ctx)
			return nil, newError(KindInternal, MsgStoreFailed, err)
		}
		res.batch.onRollback(func(ctx context.Context) error {
			return s.repo.Delete(ctx, id)
		})
		descriptors = append(descriptors, domain.PrivateDescriptor{
			ID:           id,
			URL:          PrivateURL(id),
			Mime:         a.Mime,
			Kind:         a.Kind,
			Size:         a.Size,
			OriginalName: a.OriginalName,
		})
	}

	// Storage URLs of private files never leave the service.
	res.Assets = nil
	res.Private = descriptors
	return res, nil
}

// Open checks existence before ownership so a missing row and a missing key
// look the same to every caller.
func (s *privateMediaService) Open(ctx context.Context, requester domain.Principal, id string) (*PrivateObject, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, MsgNotFound, err)
		}
		return nil, newError(KindInternal, "Could not load upload.", err)
	}
	if row.StorageKey == "" {
		return nil, newError(KindNotFound, MsgNotFound, nil)
	}
	if !requester.CanRead(row.OwnerUserID) {
		return nil, newError(KindAccess, MsgForbidden, nil)
	}

	body, err := s.pipeline.driver.Open(ctx, row.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, newError(KindNotFound, MsgNotFound, err)
		}
		return nil, newError(KindInternal, "Could not load upload.", err)
	}
	return &PrivateObject{Upload: row, Body: body}, nil
}
