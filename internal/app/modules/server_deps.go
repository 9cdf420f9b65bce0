package modules

import (
	"context"
	"strings"

	"procureflow.io/procureflow/internal/api/handlers"
	"procureflow.io/procureflow/internal/api/middleware"
	"procureflow.io/procureflow/internal/config"
)

// NewServerDeps builds base server deps then lets each module contribute explicit wiring.
func NewServerDeps(cfg *config.Config, infra *Infrastructure, mods []Module) handlers.ServerDeps {
	verificationKeys := make([][]byte, 0, len(cfg.Security.JWTVerificationKeys))
	for _, key := range cfg.Security.JWTVerificationKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		verificationKeys = append(verificationKeys, []byte(key))
	}

	deps := handlers.ServerDeps{
		Store: infra.Store,
		JWTCfg: middleware.JWTConfig{
			SigningKey:       []byte(cfg.Security.JWTSecret),
			VerificationKeys: verificationKeys,
			Issuer:           "procureflow",
			ExpiresIn:        cfg.Security.TokenTTL,
		},
		IDs:   infra.IDs,
		Clock: infra.Clock,
		ReadyCheck: func(ctx context.Context) error {
			return infra.Pool.Ping(ctx)
		},
	}
	for _, mod := range mods {
		if mod == nil {
			continue
		}
		mod.ContributeServerDeps(&deps)
	}
	return deps
}
