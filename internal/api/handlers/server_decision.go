package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "procureflow.io/procureflow/internal/pkg/errors"
)

// DecisionRequest carries an approver verdict. RoleCode names the team
// role the actor decides under; the engine verifies the actor holds it.
type DecisionRequest struct {
	RoleCode string `json:"role_code" binding:"required"`
	Comment  string `json:"comment,omitempty"`
}

// SubmitRequest handles POST /requests/{request_id}/submit.
func (s *Server) SubmitRequest(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	updated, err := s.engine.Submit(c.Request.Context(), c.Param("request_id"), userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// ApproveRequest handles POST /requests/{request_id}/approve.
func (s *Server) ApproveRequest(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req DecisionRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := s.engine.Approve(c.Request.Context(), c.Param("request_id"), userID, req.RoleCode, req.Comment)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// RejectRequest handles POST /requests/{request_id}/reject.
func (s *Server) RejectRequest(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req DecisionRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := s.engine.Reject(c.Request.Context(), c.Param("request_id"), userID, req.RoleCode, req.Comment)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// ResubmitRequest handles POST /requests/{request_id}/resubmit.
func (s *Server) ResubmitRequest(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	updated, err := s.engine.Resubmit(c.Request.Context(), c.Param("request_id"), userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// WithdrawRequest handles POST /requests/{request_id}/withdraw.
func (s *Server) WithdrawRequest(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	updated, err := s.engine.Withdraw(c.Request.Context(), c.Param("request_id"), userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// GetRequestAudit handles GET /requests/{request_id}/audit. A
// submission_id query narrows the trail to one submission cycle.
func (s *Server) GetRequestAudit(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	ctx := c.Request.Context()
	requestID := c.Param("request_id")

	if _, err := s.store.Requests().GetByID(ctx, requestID); err != nil {
		s.fail(c, apperrors.ErrRequestNotFound(requestID))
		return
	}

	if submissionID := strings.TrimSpace(c.Query("submission_id")); submissionID != "" {
		events, err := s.ledger.ForSubmission(ctx, submissionID)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": events})
		return
	}

	events, err := s.ledger.ForRequest(ctx, requestID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": events})
}
