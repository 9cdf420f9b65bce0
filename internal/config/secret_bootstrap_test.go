package config

import (
	"testing"
)

func TestEnsureSecrets_GeneratesMissingValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	if err := cfg.ensureSecrets(); err != nil {
		t.Fatalf("ensureSecrets() error = %v", err)
	}

	if cfg.Security.JWTSecret == "" {
		t.Fatal("jwt secret should be auto-generated")
	}
	// 32 random bytes hex-encoded -> 64 chars.
	if len(cfg.Security.JWTSecret) != 64 {
		t.Fatalf("jwt secret length = %d, want 64", len(cfg.Security.JWTSecret))
	}
}

func TestEnsureSecrets_PreservesProvidedValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Security: SecurityConfig{
			JWTSecret: "abcdefghijklmnopqrstuvwxyzABCDEF123456", // 38 chars
		},
	}

	if err := cfg.ensureSecrets(); err != nil {
		t.Fatalf("ensureSecrets() error = %v", err)
	}

	if got := cfg.Security.JWTSecret; got != "abcdefghijklmnopqrstuvwxyzABCDEF123456" {
		t.Fatalf("jwt secret changed unexpectedly: %q", got)
	}
}

func TestConfigValidate_RejectsShortJWTSecret(t *testing.T) {
	t.Parallel()

	cfg := validConfigFixture()
	cfg.Security.JWTSecret = "short-secret"
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for short jwt secret, got nil")
	}
}

func TestConfigValidate_RejectsBadWorkflowKnobs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attachment ceiling", func(c *Config) { c.Workflow.MaxAttachmentBytes = 0 }},
		{"zero comment minimum", func(c *Config) { c.Workflow.RejectionMinCommentChars = 0 }},
		{"zero retry attempts", func(c *Config) { c.Workflow.ConcurrentRetryAttempts = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfigFixture()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
		})
	}
}

func validConfigFixture() *Config {
	return &Config{
		Security: SecurityConfig{
			JWTSecret: "abcdefghijklmnopqrstuvwxyzABCDEF123456",
		},
		Workflow: WorkflowConfig{
			MaxAttachmentBytes:       10 * 1024 * 1024,
			RejectionMinCommentChars: 10,
			ConcurrentRetryAttempts:  3,
		},
	}
}
