package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func validatorRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mw, err := NewOpenAPIValidator()
	if err != nil {
		t.Fatalf("NewOpenAPIValidator() error = %v", err)
	}
	router := gin.New()
	router.Use(mw)
	return router
}

func TestOpenAPIValidatorRejectsEmptyDraftCreate(t *testing.T) {
	router := validatorRouter(t)
	router.POST("/api/v1/requests", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"id": "pr-1"})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty draft body, got %d", resp.Code)
	}
}

func TestOpenAPIValidatorAcceptsValidDraftCreate(t *testing.T) {
	router := validatorRouter(t)
	router.POST("/api/v1/requests", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"id": "pr-1"})
	})

	body := `{
		"team_id":"team-1",
		"purchase_type":"SERVICE",
		"vendor_name":"Acme",
		"subject":"Office chairs"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for valid draft body, got %d body=%s", resp.Code, resp.Body.String())
	}
}

func TestOpenAPIValidatorRejectsUnknownPurchaseType(t *testing.T) {
	router := validatorRouter(t)
	router.POST("/api/v1/requests", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"id": "pr-1"})
	})

	body := `{
		"team_id":"team-1",
		"purchase_type":"LEASE",
		"vendor_name":"Acme",
		"subject":"Office chairs"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown purchase type, got %d", resp.Code)
	}
}

func TestOpenAPIValidatorRejectsRejectWithoutComment(t *testing.T) {
	router := validatorRouter(t)
	router.POST("/api/v1/requests/:request_id/reject", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("request_id")})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests/pr-1/reject",
		bytes.NewBufferString(`{"role_code":"MANAGER"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for reject without comment, got %d", resp.Code)
	}
}

func TestOpenAPIValidatorPassesThroughUncontractedPaths(t *testing.T) {
	router := validatorRouter(t)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected health path to bypass validation, got %d", resp.Code)
	}
}

func TestOpenAPIValidatorAllowsBodylessLifecycleActions(t *testing.T) {
	router := validatorRouter(t)
	router.POST("/api/v1/requests/:request_id/submit", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("request_id")})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests/pr-1/submit", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for bodyless submit, got %d body=%s", resp.Code, resp.Body.String())
	}
}
