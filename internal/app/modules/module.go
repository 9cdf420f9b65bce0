// Package modules contains domain-oriented dependency units for the
// composition root. Each module owns the construction of its services and
// contributes them to the shared HTTP server deps; bootstrap only sequences
// the modules.
package modules

import (
	"context"

	"github.com/riverqueue/river"

	"procureflow.io/procureflow/internal/api/handlers"
)

// Module represents a domain-specific dependency unit in the composition root.
type Module interface {
	// Name returns a stable module identifier for logging/debugging.
	Name() string

	// ContributeServerDeps injects module-owned dependencies into the HTTP server deps.
	ContributeServerDeps(*handlers.ServerDeps)

	// RegisterWorkers registers module workers into a shared River worker registry.
	RegisterWorkers(*river.Workers)

	// Shutdown performs module-local graceful cleanup.
	Shutdown(context.Context) error
}
