package errors

import "net/http"

// Error code constants.
// Errors carry code + params only, no hardcoded user-facing copy.
// Frontend handles i18n translation. Backend logs always in English.

// Lifecycle error codes.
const (
	CodeLookupNotFound        = "LOOKUP_NOT_FOUND"
	CodeConfigurationMissing  = "CONFIGURATION_MISSING"
	CodePermissionDenied      = "PERMISSION_DENIED"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeRejectionCommentShort = "REJECTION_COMMENT_REQUIRED"
	CodeAlreadyActed          = "ALREADY_ACTED"
	CodeTemplateInvariant     = "TEMPLATE_INVARIANT_VIOLATED"
	CodeConcurrentUpdate      = "CONCURRENT_UPDATE"
	CodeStorageFailure        = "STORAGE_FAILURE"
)

// Entity lookup error codes.
const (
	CodeRequestNotFound    = "REQUEST_NOT_FOUND"
	CodeTemplateNotFound   = "TEMPLATE_NOT_FOUND"
	CodeTeamNotFound       = "TEAM_NOT_FOUND"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeAttachmentNotFound = "ATTACHMENT_NOT_FOUND"
	CodeFieldNotFound      = "FIELD_NOT_FOUND"
)

// Attachment validation error codes.
const (
	CodeAttachmentTooLarge  = "ATTACHMENT_TOO_LARGE"
	CodeAttachmentExtension = "ATTACHMENT_EXTENSION_NOT_ALLOWED"
	CodeCategoryUnknown     = "ATTACHMENT_CATEGORY_UNKNOWN"
)

// Auth error codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// Transport validation error codes.
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
)

// Convenience constructors using predefined codes.

// ErrLookupNotFound signals a missing or inactive lookup row.
func ErrLookupNotFound(typeCode, code string) *AppError {
	return &AppError{
		Code:       CodeLookupNotFound,
		Message:    "lookup not found",
		HTTPStatus: http.StatusNotFound,
		Params:     map[string]interface{}{"type_code": typeCode, "code": code},
	}
}

// ErrConfigurationMissing signals no active config for (team, purchase type).
func ErrConfigurationMissing(teamID, purchaseType string) *AppError {
	return &AppError{
		Code:       CodeConfigurationMissing,
		Message:    "no active purchase configuration for team and purchase type",
		HTTPStatus: http.StatusNotFound,
		Params:     map[string]interface{}{"team_id": teamID, "purchase_type": purchaseType},
	}
}

// ErrPermissionDenied signals a missing role or ownership.
func ErrPermissionDenied(reason string) *AppError {
	return &AppError{
		Code:       CodePermissionDenied,
		Message:    "permission denied",
		HTTPStatus: http.StatusForbidden,
		Params:     map[string]interface{}{"reason": reason},
	}
}

// ErrInvalidTransition signals an operation incompatible with the current status.
func ErrInvalidTransition(operation, status string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    "operation not allowed in current status",
		HTTPStatus: http.StatusConflict,
		Params:     map[string]interface{}{"operation": operation, "status": status},
	}
}

// ErrValidationFailed carries the structured remediation list for submit.
func ErrValidationFailed(missingFields, missingAttachments []string) *AppError {
	if missingFields == nil {
		missingFields = []string{}
	}
	if missingAttachments == nil {
		missingAttachments = []string{}
	}
	return &AppError{
		Code:       CodeValidationFailed,
		Message:    "request is missing required fields or attachments",
		HTTPStatus: http.StatusUnprocessableEntity,
		Params: map[string]interface{}{
			"missing_fields":      missingFields,
			"missing_attachments": missingAttachments,
		},
	}
}

// ErrRejectionCommentRequired signals a reject comment below the threshold.
func ErrRejectionCommentRequired(minChars int) *AppError {
	return &AppError{
		Code:       CodeRejectionCommentShort,
		Message:    "rejection comment is required",
		HTTPStatus: http.StatusBadRequest,
		Params:     map[string]interface{}{"min_chars": minChars},
	}
}

// ErrAlreadyActed signals a duplicate approval at the same step.
func ErrAlreadyActed(requestID, stepName string) *AppError {
	return &AppError{
		Code:       CodeAlreadyActed,
		Message:    "approver already acted at this step",
		HTTPStatus: http.StatusConflict,
		Params:     map[string]interface{}{"request_id": requestID, "step": stepName},
	}
}

// ErrTemplateInvariant signals an attempt to persist an invalid template.
func ErrTemplateInvariant(detail string) *AppError {
	return &AppError{
		Code:       CodeTemplateInvariant,
		Message:    "template violates structural invariants",
		HTTPStatus: http.StatusBadRequest,
		Params:     map[string]interface{}{"detail": detail},
	}
}

// ErrConcurrentUpdate signals lock contention after the retry budget.
func ErrConcurrentUpdate(err error) *AppError {
	return &AppError{
		Code:       CodeConcurrentUpdate,
		Message:    "request was modified concurrently, retry the operation",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

// ErrStorageFailure signals an unavailable blob backend.
func ErrStorageFailure(err error) *AppError {
	return &AppError{
		Code:       CodeStorageFailure,
		Message:    "attachment storage unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// ErrRequestNotFound signals an unknown or inactive purchase request.
func ErrRequestNotFound(requestID string) *AppError {
	return &AppError{
		Code:       CodeRequestNotFound,
		Message:    "purchase request not found",
		HTTPStatus: http.StatusNotFound,
		Params:     map[string]interface{}{"request_id": requestID},
	}
}

// ErrAttachmentTooLarge signals a file above the configured ceiling.
func ErrAttachmentTooLarge(size, limit int64) *AppError {
	return &AppError{
		Code:       CodeAttachmentTooLarge,
		Message:    "attachment exceeds maximum size",
		HTTPStatus: http.StatusUnprocessableEntity,
		Params:     map[string]interface{}{"size": size, "limit": limit},
	}
}

// ErrAttachmentExtension signals a file extension outside the allowed set.
func ErrAttachmentExtension(ext string, allowed []string) *AppError {
	return &AppError{
		Code:       CodeAttachmentExtension,
		Message:    "attachment extension not allowed",
		HTTPStatus: http.StatusUnprocessableEntity,
		Params:     map[string]interface{}{"extension": ext, "allowed": allowed},
	}
}
