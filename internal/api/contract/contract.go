// Package contract embeds the hand-written OpenAPI document for the
// ProcureFlow HTTP API. The document is the source of truth for request
// validation; handlers bind their own DTOs and must stay in sync with it.
package contract

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var raw []byte

// Document parses and validates the embedded OpenAPI contract.
func Document() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("parse openapi contract: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi contract: %w", err)
	}
	return doc, nil
}

// Raw returns the embedded YAML bytes, served at /api/v1/openapi.yaml.
func Raw() []byte {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}
