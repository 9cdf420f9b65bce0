package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/repository"
)

// UploadInput carries one incoming attachment.
type UploadInput struct {
	RequestID string
	ActorID   string
	Filename  string
	MimeType  string
	// Category is the optional team attachment category name.
	Category string
	Content  io.Reader
}

// UploadAttachment validates and stores the file bytes in the blob
// backend, then binds the metadata row to the request. Allowed in any
// non-terminal state; an upload by a prior approver is also bound to that
// approver's latest decision on the request. The blob write happens
// outside the transaction, so a failed insert can leave an unreferenced
// blob behind (content addressing makes that harmless).
func (e *Engine) UploadAttachment(ctx context.Context, in UploadInput) (*domain.Attachment, error) {
	if err := e.attachments.ValidateFilename(in.Filename); err != nil {
		return nil, err
	}

	head, err := e.store.Requests().GetByID(ctx, in.RequestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrRequestNotFound(in.RequestID)
		}
		return nil, err
	}
	if head.Status.Terminal() {
		return nil, apperrors.ErrInvalidTransition("upload_attachment", string(head.Status))
	}

	var categoryID *string
	var categoryName string
	if in.Category != "" {
		cat, err := e.attachments.CategoryByName(ctx, head.TeamID, in.Category)
		if err != nil {
			return nil, err
		}
		categoryID = &cat.ID
		categoryName = cat.Name
	}

	ref, size, err := e.attachments.Store(ctx, in.Filename, in.Content)
	if err != nil {
		return nil, err
	}

	var (
		att    *domain.Attachment
		events []*domain.LifecycleEvent
	)
	err = e.inTx(ctx, func(tx repository.Tx) error {
		events = nil

		r, err := lockRequest(ctx, tx, in.RequestID)
		if err != nil {
			return err
		}
		if r.Status.Terminal() {
			return apperrors.ErrInvalidTransition("upload_attachment", string(r.Status))
		}

		var historyID *string
		if r.RequestorID != in.ActorID {
			latest, err := tx.Approvals().LatestByApprover(ctx, r.ID, in.ActorID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperrors.ErrPermissionDenied("only the requestor or a prior approver may attach files")
				}
				return err
			}
			historyID = &latest.ID
		}

		att = &domain.Attachment{
			ID:                e.ids.NewID(),
			RequestID:         r.ID,
			CategoryID:        categoryID,
			Filename:          in.Filename,
			StorageRef:        ref,
			FileSize:          size,
			MimeType:          in.MimeType,
			UploadedBy:        in.ActorID,
			UploadedAt:        e.clock.Now(),
			ApprovalHistoryID: historyID,
			Active:            true,
		}
		if err := tx.Attachments().Create(ctx, att); err != nil {
			return fmt.Errorf("create attachment: %w", err)
		}

		meta := map[string]interface{}{domain.MetaKeyFilename: in.Filename}
		if categoryName != "" {
			meta[domain.MetaKeyCategory] = categoryName
		}
		if err := e.audit(ctx, tx, r, in.ActorID, domain.EventAttachmentUpload, meta); err != nil {
			return err
		}
		events = append(events, e.event(domain.EventAttachmentUpload, r, in.ActorID, nil))
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events)
	logger.Info("Attachment uploaded",
		zap.String("request_id", in.RequestID),
		zap.String("attachment_id", att.ID),
		zap.String("filename", in.Filename),
		zap.Int64("size", size),
	)
	return att, nil
}

// RemoveAttachment soft-disables an attachment while the request is still
// a DRAFT. After submission attachments are append-only; the blob bytes
// always stay in the backend.
func (e *Engine) RemoveAttachment(ctx context.Context, requestID, attachmentID, actorID string) error {
	var events []*domain.LifecycleEvent
	err := e.inTx(ctx, func(tx repository.Tx) error {
		events = nil

		r, err := lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if r.RequestorID != actorID {
			return apperrors.ErrPermissionDenied("only the requestor may remove attachments")
		}
		if r.Status != domain.StatusDraft {
			return apperrors.ErrInvalidTransition("remove_attachment", string(r.Status))
		}

		a, err := tx.Attachments().GetByID(ctx, attachmentID)
		if err != nil || a.RequestID != requestID || !a.Active {
			return apperrors.NotFound(apperrors.CodeAttachmentNotFound, "attachment not found").
				WithParams(map[string]interface{}{"attachment_id": attachmentID})
		}
		if err := tx.Attachments().SoftDelete(ctx, attachmentID); err != nil {
			return fmt.Errorf("remove attachment: %w", err)
		}

		if err := e.audit(ctx, tx, r, actorID, domain.EventAttachmentRemoved, map[string]interface{}{
			domain.MetaKeyFilename: a.Filename,
		}); err != nil {
			return err
		}
		events = append(events, e.event(domain.EventAttachmentRemoved, r, actorID, nil))
		return nil
	})
	if err != nil {
		return err
	}

	e.publish(ctx, events)
	logger.Info("Attachment removed",
		zap.String("request_id", requestID),
		zap.String("attachment_id", attachmentID),
	)
	return nil
}
