package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"

	"procureflow.io/procureflow/internal/api/contract"
)

// MustOpenAPIValidator creates the contract validator middleware and panics
// on setup failure. Setup can only fail on a broken embedded document, so a
// panic at boot is the right failure mode.
func MustOpenAPIValidator() gin.HandlerFunc {
	mw, err := NewOpenAPIValidator()
	if err != nil {
		panic(fmt.Sprintf("init openapi validator: %v", err))
	}
	return mw
}

// NewOpenAPIValidator validates incoming requests against the embedded
// OpenAPI contract. Paths outside the contract (health, static) pass
// through untouched. Response validation is deliberately not performed;
// the contract is enforced at the request boundary only.
func NewOpenAPIValidator() (gin.HandlerFunc, error) {
	doc, err := contract.Document()
	if err != nil {
		return nil, err
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("create contract router: %w", err)
	}

	return func(c *gin.Context) {
		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			if isPathNotFoundError(err) {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "OPENAPI_ROUTE_INVALID",
				"message": err.Error(),
			})
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				// Bearer auth is enforced by the JWT middleware; the
				// contract check only cares about shape.
				AuthenticationFunc: func(context.Context, *openapi3filter.AuthenticationInput) error {
					return nil
				},
			},
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "OPENAPI_REQUEST_INVALID",
				"message": err.Error(),
			})
			return
		}

		c.Next()
	}, nil
}

func isPathNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if err == routers.ErrPathNotFound {
		return true
	}
	if strings.Contains(err.Error(), routers.ErrPathNotFound.Error()) {
		return true
	}
	if routeErr, ok := err.(*routers.RouteError); ok && strings.Contains(routeErr.Reason, routers.ErrPathNotFound.Error()) {
		return true
	}
	return false
}
