package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/governance/lifecycle"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
)

// CreateDraftRequest is the payload for POST /requests.
type CreateDraftRequest struct {
	TeamID        string              `json:"team_id" binding:"required"`
	PurchaseType  domain.PurchaseType `json:"purchase_type" binding:"required"`
	VendorName    string              `json:"vendor_name" binding:"required"`
	VendorAccount string              `json:"vendor_account,omitempty"`
	Subject       string              `json:"subject" binding:"required"`
	Description   string              `json:"description,omitempty"`
}

// UpdateHeaderRequest patches header columns on an editable request. Absent
// fields are left untouched.
type UpdateHeaderRequest struct {
	VendorName    *string `json:"vendor_name,omitempty"`
	VendorAccount *string `json:"vendor_account,omitempty"`
	Subject       *string `json:"subject,omitempty"`
	Description   *string `json:"description,omitempty"`
}

// CreateDraft handles POST /requests.
func (s *Server) CreateDraft(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req CreateDraftRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := s.engine.DraftCreate(c.Request.Context(), lifecycle.DraftInput{
		RequestorID:   userID,
		TeamID:        req.TeamID,
		PurchaseType:  req.PurchaseType,
		VendorName:    req.VendorName,
		VendorAccount: req.VendorAccount,
		Subject:       req.Subject,
		Description:   req.Description,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetRequest handles GET /requests/{request_id}. The response is the
// hydrated view: header, field values, attachments, decision history, and
// the current step when one is pinned.
func (s *Server) GetRequest(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	view, err := s.engine.GetRequest(c.Request.Context(), c.Param("request_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListMyRequests handles GET /requests. Repeated status parameters narrow
// the listing; without them every status is returned.
func (s *Server) ListMyRequests(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	var statuses []domain.Status
	for _, raw := range c.QueryArray("status") {
		st := domain.Status(strings.ToUpper(strings.TrimSpace(raw)))
		if !st.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    apperrors.CodeInvalidRequestBody,
				"message": "unknown status filter: " + raw,
			})
			return
		}
		statuses = append(statuses, st)
	}

	reqs, err := s.engine.ListByRequestor(c.Request.Context(), userID, statuses)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": reqs})
}

// UpdateRequestHeader handles PATCH /requests/{request_id}.
func (s *Server) UpdateRequestHeader(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req UpdateHeaderRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := s.engine.UpdateHeader(c.Request.Context(), c.Param("request_id"), userID, lifecycle.HeaderPatch{
		VendorName:    req.VendorName,
		VendorAccount: req.VendorAccount,
		Subject:       req.Subject,
		Description:   req.Description,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// SetRequestField handles PUT /requests/{request_id}/fields/{field_id}.
// The body is the tagged value union; the engine checks it against the
// pinned field's declared type.
func (s *Server) SetRequestField(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var value domain.FieldValue
	if !bindJSON(c, &value) {
		return
	}

	stored, err := s.engine.SetField(c.Request.Context(), c.Param("request_id"), userID, c.Param("field_id"), value)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}

// UploadAttachment handles POST /requests/{request_id}/attachments. The
// body is multipart form data: a required file part and an optional
// category naming a team attachment category.
func (s *Server) UploadAttachment(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    apperrors.CodeInvalidRequestBody,
			"message": "multipart file part is required",
		})
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()

	att, err := s.engine.UploadAttachment(c.Request.Context(), lifecycle.UploadInput{
		RequestID: c.Param("request_id"),
		ActorID:   userID,
		Filename:  fh.Filename,
		MimeType:  fh.Header.Get("Content-Type"),
		Category:  c.PostForm("category"),
		Content:   f,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, att)
}

// RemoveAttachment handles
// DELETE /requests/{request_id}/attachments/{attachment_id}.
func (s *Server) RemoveAttachment(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	err := s.engine.RemoveAttachment(c.Request.Context(), c.Param("request_id"), c.Param("attachment_id"), userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
