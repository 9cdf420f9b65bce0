package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/repository"
)

// DraftInput carries the header fields for draft creation.
type DraftInput struct {
	RequestorID   string
	TeamID        string
	PurchaseType  domain.PurchaseType
	VendorName    string
	VendorAccount string
	Subject       string
	Description   string
}

// HeaderPatch updates header fields on an editable request. Nil pointers
// leave the column untouched.
type HeaderPatch struct {
	VendorName    *string
	VendorAccount *string
	Subject       *string
	Description   *string
}

// DraftCreate resolves the team's active template pair, pins both template
// versions onto a new DRAFT request, and records REQUEST_CREATED. The
// pinned versions stay authoritative for the request's whole life even
// when later versions supersede them.
func (e *Engine) DraftCreate(ctx context.Context, in DraftInput) (*domain.PurchaseRequest, error) {
	if in.PurchaseType != domain.PurchaseTypeService && in.PurchaseType != domain.PurchaseTypeGood {
		return nil, apperrors.ErrLookupNotFound(domain.LookupTypePurchaseType, string(in.PurchaseType))
	}
	if fieldErrs := validateHeader(in.VendorName, in.Subject); len(fieldErrs) > 0 {
		return nil, apperrors.BadRequest(apperrors.CodeInvalidRequestBody, "missing required header fields").
			WithFieldErrors(fieldErrs)
	}

	var (
		req    *domain.PurchaseRequest
		events []*domain.LifecycleEvent
	)
	err := e.inTx(ctx, func(tx repository.Tx) error {
		events = nil

		if _, err := tx.Users().GetByID(ctx, in.RequestorID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound(apperrors.CodeUserNotFound, "requestor not found")
			}
			return err
		}
		if _, err := tx.Teams().GetByID(ctx, in.TeamID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound(apperrors.CodeTeamNotFound, "team not found")
			}
			return err
		}

		cfg, err := tx.Configs().ResolveActive(ctx, in.TeamID, in.PurchaseType)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.ErrConfigurationMissing(in.TeamID, string(in.PurchaseType))
			}
			return err
		}

		now := e.clock.Now()
		req = &domain.PurchaseRequest{
			ID:                 e.ids.NewID(),
			RequestorID:        in.RequestorID,
			TeamID:             in.TeamID,
			PurchaseType:       in.PurchaseType,
			Status:             domain.StatusDraft,
			FormTemplateID:     cfg.FormTemplateID,
			WorkflowTemplateID: cfg.WorkflowTemplateID,
			VendorName:         strings.TrimSpace(in.VendorName),
			VendorAccount:      strings.TrimSpace(in.VendorAccount),
			Subject:            strings.TrimSpace(in.Subject),
			Description:        in.Description,
			Active:             true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.Requests().Create(ctx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		meta := map[string]interface{}{domain.MetaKeyToStatus: string(domain.StatusDraft)}
		if err := e.audit(ctx, tx, req, in.RequestorID, domain.EventRequestCreated, meta); err != nil {
			return err
		}
		events = append(events, e.event(domain.EventRequestCreated, req, in.RequestorID, nil))
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events)
	logger.Info("Purchase request drafted",
		zap.String("request_id", req.ID),
		zap.String("team_id", req.TeamID),
		zap.String("requestor_id", req.RequestorID),
		zap.String("purchase_type", string(req.PurchaseType)),
	)
	return req, nil
}

// SetField stores a typed value for one pinned form field. Allowed only
// while the requestor may still edit (DRAFT, REJECTED); the old and new
// rendered values land in the FIELD_UPDATE audit event.
func (e *Engine) SetField(ctx context.Context, requestID, actorID, fieldID string, value domain.FieldValue) (*domain.RequestFieldValue, error) {
	var (
		stored *domain.RequestFieldValue
		events []*domain.LifecycleEvent
	)
	err := e.inTx(ctx, func(tx repository.Tx) error {
		events = nil

		r, err := lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if r.RequestorID != actorID {
			return apperrors.ErrPermissionDenied("only the requestor may edit the request")
		}
		if !r.Status.Editable() {
			return apperrors.ErrInvalidTransition("update_field", string(r.Status))
		}

		tpl, err := tx.FormTemplates().GetWithFields(ctx, r.FormTemplateID)
		if err != nil {
			return fmt.Errorf("load pinned form template: %w", err)
		}
		field, ok := fieldByStableID(tpl.Fields, fieldID)
		if !ok {
			return apperrors.NotFound(apperrors.CodeFieldNotFound, "field not part of the pinned form template").
				WithParams(map[string]interface{}{"field_id": fieldID})
		}
		if err := checkValueAgainstField(field, value); err != nil {
			return err
		}

		var oldRendered *string
		if prev, err := tx.FieldValues().Get(ctx, r.ID, field.ID); err == nil {
			rendered := prev.Value.Render()
			oldRendered = &rendered
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		now := e.clock.Now()
		stored = &domain.RequestFieldValue{
			ID:          e.ids.NewID(),
			RequestID:   r.ID,
			FormFieldID: field.ID,
			Value:       value,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.FieldValues().Upsert(ctx, stored); err != nil {
			return fmt.Errorf("store field value: %w", err)
		}
		// Upsert keeps the existing row id on replace; re-read the row we
		// actually persisted.
		if stored, err = tx.FieldValues().Get(ctx, r.ID, field.ID); err != nil {
			return err
		}

		newRendered := value.Render()
		change := domain.FieldChange{
			FieldRefID: &field.ID,
			FieldName:  field.FieldID,
			OldValue:   oldRendered,
			NewValue:   &newRendered,
		}
		if err := e.audit(ctx, tx, r, actorID, domain.EventFieldUpdate, nil, change); err != nil {
			return err
		}
		events = append(events, e.event(domain.EventFieldUpdate, r, actorID, nil))
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events)
	return stored, nil
}

// UpdateHeader patches the request's header columns while editable. Every
// effective change lands as a FieldChange row with no form-field binding.
func (e *Engine) UpdateHeader(ctx context.Context, requestID, actorID string, patch HeaderPatch) (*domain.PurchaseRequest, error) {
	var (
		req    *domain.PurchaseRequest
		events []*domain.LifecycleEvent
	)
	err := e.inTx(ctx, func(tx repository.Tx) error {
		events = nil

		r, err := lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if r.RequestorID != actorID {
			return apperrors.ErrPermissionDenied("only the requestor may edit the request")
		}
		if !r.Status.Editable() {
			return apperrors.ErrInvalidTransition("update_header", string(r.Status))
		}

		var changes []domain.FieldChange
		apply := func(name string, column *string, next *string, required bool) error {
			if next == nil {
				return nil
			}
			trimmed := strings.TrimSpace(*next)
			if required && trimmed == "" {
				return apperrors.BadRequest(apperrors.CodeInvalidRequestBody, "header field cannot be empty").
					WithFieldErrors([]apperrors.FieldError{{Field: name, Code: "required"}})
			}
			if *column == trimmed {
				return nil
			}
			old := *column
			changes = append(changes, domain.FieldChange{
				FieldName: name,
				OldValue:  &old,
				NewValue:  &trimmed,
			})
			*column = trimmed
			return nil
		}

		if err := apply("vendor_name", &r.VendorName, patch.VendorName, true); err != nil {
			return err
		}
		if err := apply("vendor_account", &r.VendorAccount, patch.VendorAccount, false); err != nil {
			return err
		}
		if err := apply("subject", &r.Subject, patch.Subject, true); err != nil {
			return err
		}
		if err := apply("description", &r.Description, patch.Description, false); err != nil {
			return err
		}

		req = r
		if len(changes) == 0 {
			return nil
		}

		r.UpdatedAt = e.clock.Now()
		if err := tx.Requests().Update(ctx, r); err != nil {
			return fmt.Errorf("update request header: %w", err)
		}
		if err := e.audit(ctx, tx, r, actorID, domain.EventFieldUpdate, nil, changes...); err != nil {
			return err
		}
		events = append(events, e.event(domain.EventFieldUpdate, r, actorID, nil))
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events)
	return req, nil
}

func validateHeader(vendorName, subject string) []apperrors.FieldError {
	var out []apperrors.FieldError
	if strings.TrimSpace(vendorName) == "" {
		out = append(out, apperrors.FieldError{Field: "vendor_name", Code: "required"})
	}
	if strings.TrimSpace(subject) == "" {
		out = append(out, apperrors.FieldError{Field: "subject", Code: "required"})
	}
	return out
}

func fieldByStableID(fields []domain.FormField, fieldID string) (domain.FormField, bool) {
	for _, f := range fields {
		if f.FieldID == fieldID {
			return f, true
		}
	}
	return domain.FormField{}, false
}

// checkValueAgainstField enforces the tagged-union and dropdown rules for
// one incoming value.
func checkValueAgainstField(field domain.FormField, value domain.FieldValue) error {
	if field.Type == domain.FieldTypeFileUpload {
		return apperrors.BadRequest(apperrors.CodeInvalidRequestBody, "FILE_UPLOAD fields are satisfied by attachments, not values").
			WithFieldErrors([]apperrors.FieldError{{Field: field.FieldID, Code: "not_settable"}})
	}
	if value.Type != field.Type {
		return apperrors.BadRequest(apperrors.CodeInvalidRequestBody, "value type does not match the field's declared type").
			WithFieldErrors([]apperrors.FieldError{{
				Field:   field.FieldID,
				Code:    "type_mismatch",
				Message: fmt.Sprintf("field is %s, value is %s", field.Type, value.Type),
			}})
	}
	if err := value.Validate(); err != nil {
		return apperrors.BadRequest(apperrors.CodeInvalidRequestBody, "malformed field value").
			WithFieldErrors([]apperrors.FieldError{{Field: field.FieldID, Code: "invalid", Message: err.Error()}})
	}
	if field.Type == domain.FieldTypeDropdown && value.Dropdown != nil {
		allowed := false
		for _, opt := range field.DropdownOptions {
			if *value.Dropdown == opt {
				allowed = true
				break
			}
		}
		if !allowed {
			return apperrors.BadRequest(apperrors.CodeInvalidRequestBody, "value is not one of the dropdown options").
				WithFieldErrors([]apperrors.FieldError{{Field: field.FieldID, Code: "not_an_option"}})
		}
	}
	return nil
}
