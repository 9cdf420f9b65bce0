package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetApproverInbox handles GET /inbox/approver.
func (s *Server) GetApproverInbox(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	reqs, err := s.inbox.Approver(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": reqs})
}

// GetFinanceInbox handles GET /inbox/finance.
func (s *Server) GetFinanceInbox(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	reqs, err := s.inbox.Finance(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": reqs})
}

// GetRequestorInbox handles GET /inbox/requestor.
func (s *Server) GetRequestorInbox(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	reqs, err := s.inbox.Requestor(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": reqs})
}

// GetInboxCounts handles GET /inbox/counts.
func (s *Server) GetInboxCounts(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	counts, err := s.inbox.CountAll(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
