package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"procureflow.io/procureflow/internal/blob"
	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/repository"
)

// AttachmentService validates uploads and moves their bytes through the
// blob backend. The store keeps only metadata plus the opaque storage
// ref; lifecycle rules (which statuses accept uploads, audit events) stay
// with the engine.
type AttachmentService struct {
	store    repository.Store
	blobs    blob.Backend
	maxBytes int64
	allowed  map[string]struct{}
	// allowedList preserves configuration order for error params.
	allowedList []string
}

// NewAttachmentService creates an AttachmentService. Extensions are
// matched case-insensitively without the leading dot.
func NewAttachmentService(store repository.Store, blobs blob.Backend, maxBytes int64, allowedExtensions []string) *AttachmentService {
	allowed := make(map[string]struct{}, len(allowedExtensions))
	list := make([]string, 0, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if normalized == "" {
			continue
		}
		if _, dup := allowed[normalized]; dup {
			continue
		}
		allowed[normalized] = struct{}{}
		list = append(list, normalized)
	}
	return &AttachmentService{
		store:       store,
		blobs:       blobs,
		maxBytes:    maxBytes,
		allowed:     allowed,
		allowedList: list,
	}
}

// ValidateFilename checks the file extension against the allowed set.
func (s *AttachmentService) ValidateFilename(filename string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if _, ok := s.allowed[ext]; !ok {
		return apperrors.ErrAttachmentExtension(ext, s.allowedList)
	}
	return nil
}

// Store validates the file and writes its bytes to the blob backend,
// returning the storage ref and actual size. Content is read through a
// size gate so an oversized upload is rejected without buffering it whole.
func (s *AttachmentService) Store(ctx context.Context, filename string, r io.Reader) (string, int64, error) {
	if err := s.ValidateFilename(filename); err != nil {
		return "", 0, err
	}

	ref, size, err := s.blobs.Put(ctx, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", 0, apperrors.ErrStorageFailure(fmt.Errorf("store attachment %s: %w", filename, err))
	}
	if size > s.maxBytes {
		return "", 0, apperrors.ErrAttachmentTooLarge(size, s.maxBytes)
	}
	return ref, size, nil
}

// Open streams the bytes behind a storage ref.
func (s *AttachmentService) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	rc, err := s.blobs.Open(ctx, ref)
	if err != nil {
		return nil, apperrors.ErrStorageFailure(fmt.Errorf("open attachment ref %s: %w", ref, err))
	}
	return rc, nil
}

// CategoryByName resolves a team's active category by name.
func (s *AttachmentService) CategoryByName(ctx context.Context, teamID, name string) (*domain.AttachmentCategory, error) {
	c, err := s.store.Categories().GetByName(ctx, teamID, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.BadRequest(apperrors.CodeCategoryUnknown, "attachment category does not belong to the team").
				WithParams(map[string]interface{}{"team_id": teamID, "category": name})
		}
		return nil, fmt.Errorf("resolve category %s of team %s: %w", name, teamID, err)
	}
	return c, nil
}

// RequiredCategories returns the team's categories with required=true.
func (s *AttachmentService) RequiredCategories(ctx context.Context, teamID string) ([]*domain.AttachmentCategory, error) {
	cats, err := s.store.Categories().Required(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("required categories of team %s: %w", teamID, err)
	}
	return cats, nil
}

// ListByRequest returns the request's active attachments, oldest first.
func (s *AttachmentService) ListByRequest(ctx context.Context, requestID string) ([]*domain.Attachment, error) {
	atts, err := s.store.Attachments().ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("attachments of request %s: %w", requestID, err)
	}
	return atts, nil
}

// GetByID returns one attachment's metadata.
func (s *AttachmentService) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	a, err := s.store.Attachments().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeAttachmentNotFound, "attachment not found")
		}
		return nil, fmt.Errorf("get attachment %s: %w", id, err)
	}
	return a, nil
}
