package service

import (
	"context"
	"testing"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/testutil"
)

func newRegistry(t *testing.T) (*LookupRegistry, *testutil.Fixture) {
	t.Helper()
	f := testutil.NewFixture(t)
	return NewLookupRegistry(f.Store, f.IDs, f.Clock), f
}

func TestLookupRegistryResolve(t *testing.T) {
	t.Parallel()
	reg, _ := newRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		typeCode string
		code     string
		wantErr  string
	}{
		{name: "status resolves", typeCode: domain.LookupTypeRequestStatus, code: "DRAFT"},
		{name: "role resolves", typeCode: domain.LookupTypeCompanyRole, code: "MANAGER"},
		{name: "unknown code", typeCode: domain.LookupTypeRequestStatus, code: "NOPE", wantErr: apperrors.CodeLookupNotFound},
		{name: "unknown type", typeCode: "COLOR", code: "RED", wantErr: apperrors.CodeLookupNotFound},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := reg.Resolve(ctx, tc.typeCode, tc.code)
			if tc.wantErr != "" {
				appErr, ok := apperrors.IsAppError(err)
				if !ok || appErr.Code != tc.wantErr {
					t.Fatalf("Resolve() error = %v, want code %s", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.Code != tc.code || got.TypeCode != tc.typeCode {
				t.Fatalf("Resolve() = %s/%s, want %s/%s", got.TypeCode, got.Code, tc.typeCode, tc.code)
			}
		})
	}
}

func TestLookupRegistryCacheHit(t *testing.T) {
	t.Parallel()
	reg, f := newRegistry(t)
	ctx := context.Background()

	first, err := reg.Resolve(ctx, domain.LookupTypeCompanyRole, "FINANCE")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// A write bypassing the registry is invisible until the cache flushes.
	if err := f.Store.Lookups().SetActive(ctx, first.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	cached, err := reg.Resolve(ctx, domain.LookupTypeCompanyRole, "FINANCE")
	if err != nil {
		t.Fatalf("Resolve() after direct store write error = %v", err)
	}
	if cached.ID != first.ID {
		t.Fatalf("cached lookup id = %s, want %s", cached.ID, first.ID)
	}
}

func TestLookupRegistryFlushOnWrite(t *testing.T) {
	t.Parallel()
	reg, _ := newRegistry(t)
	ctx := context.Background()

	l, err := reg.Resolve(ctx, domain.LookupTypeCompanyRole, "DIRECTOR")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// Deactivation through the registry flushes the cache.
	if err := reg.SetActive(ctx, l.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	if _, err := reg.Resolve(ctx, domain.LookupTypeCompanyRole, "DIRECTOR"); err == nil {
		t.Fatal("Resolve() after deactivation should fail")
	}

	// Registering flushes too, so new rows resolve immediately.
	if _, err := reg.Register(ctx, domain.LookupTypeCompanyRole, "AUDITOR", "Auditor"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	got, err := reg.Resolve(ctx, domain.LookupTypeCompanyRole, "AUDITOR")
	if err != nil {
		t.Fatalf("Resolve() new role error = %v", err)
	}
	if got.Title != "Auditor" {
		t.Fatalf("Title = %s, want Auditor", got.Title)
	}
}

func TestLookupRegistryListByType(t *testing.T) {
	t.Parallel()
	reg, _ := newRegistry(t)

	roles, err := reg.ListByType(context.Background(), domain.LookupTypeCompanyRole)
	if err != nil {
		t.Fatalf("ListByType() error = %v", err)
	}
	if len(roles) != 4 {
		t.Fatalf("ListByType() returned %d roles, want 4", len(roles))
	}
	for i := 1; i < len(roles); i++ {
		if roles[i-1].Code > roles[i].Code {
			t.Fatalf("roles not sorted by code: %s before %s", roles[i-1].Code, roles[i].Code)
		}
	}
}
