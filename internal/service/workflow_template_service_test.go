package service

import (
	"context"
	"testing"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/testutil"
)

func newWorkflowService(t *testing.T, financeLast bool) (*WorkflowTemplateService, *testutil.Fixture) {
	t.Helper()
	f := testutil.NewFixture(t)
	return NewWorkflowTemplateService(f.Store, f.IDs, f.Clock, financeLast), f
}

func TestWorkflowTemplateCreate(t *testing.T) {
	t.Parallel()
	svc, f := newWorkflowService(t, true)
	ctx := context.Background()

	steps := []domain.WorkflowTemplateStep{
		f.Step(1, "Manager", false, f.RoleManager),
		f.Step(2, "Finance", true, f.RoleFinance),
	}
	v1, err := svc.Create(ctx, "two-step", "standard pipeline", steps)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if v1.VersionNumber != 1 || len(v1.Steps) != 2 {
		t.Fatalf("created v%d with %d steps, want v1 with 2", v1.VersionNumber, len(v1.Steps))
	}
	if !v1.Steps[1].IsFinanceReview {
		t.Fatal("finance step lost its flag")
	}

	v2, err := svc.Create(ctx, "two-step", "standard pipeline", steps)
	if err != nil {
		t.Fatalf("Create() second error = %v", err)
	}
	if v2.VersionNumber != 2 {
		t.Fatalf("second version = %d, want 2", v2.VersionNumber)
	}
}

func TestWorkflowTemplateInvariants(t *testing.T) {
	t.Parallel()
	svc, f := newWorkflowService(t, true)
	ctx := context.Background()

	tests := []struct {
		name  string
		steps []domain.WorkflowTemplateStep
	}{
		{
			name:  "single step",
			steps: []domain.WorkflowTemplateStep{f.Step(1, "Finance", true, f.RoleFinance)},
		},
		{
			name: "gap in step orders",
			steps: []domain.WorkflowTemplateStep{
				f.Step(1, "Manager", false, f.RoleManager),
				f.Step(3, "Finance", true, f.RoleFinance),
			},
		},
		{
			name: "orders not starting at 1",
			steps: []domain.WorkflowTemplateStep{
				f.Step(2, "Manager", false, f.RoleManager),
				f.Step(3, "Finance", true, f.RoleFinance),
			},
		},
		{
			name: "no finance step",
			steps: []domain.WorkflowTemplateStep{
				f.Step(1, "Manager", false, f.RoleManager),
				f.Step(2, "Director", false, f.RoleDirector),
			},
		},
		{
			name: "two finance steps",
			steps: []domain.WorkflowTemplateStep{
				f.Step(1, "Finance A", true, f.RoleFinance),
				f.Step(2, "Finance B", true, f.RoleFinance),
			},
		},
		{
			name: "finance step not last",
			steps: []domain.WorkflowTemplateStep{
				f.Step(1, "Finance", true, f.RoleFinance),
				f.Step(2, "Manager", false, f.RoleManager),
			},
		},
		{
			name: "empty role set",
			steps: []domain.WorkflowTemplateStep{
				f.Step(1, "Manager", false),
				f.Step(2, "Finance", true, f.RoleFinance),
			},
		},
		{
			name: "role listed twice on a step",
			steps: []domain.WorkflowTemplateStep{
				f.Step(1, "Manager", false, f.RoleManager, f.RoleManager),
				f.Step(2, "Finance", true, f.RoleFinance),
			},
		},
		{
			name: "blank step name",
			steps: []domain.WorkflowTemplateStep{
				f.Step(1, "  ", false, f.RoleManager),
				f.Step(2, "Finance", true, f.RoleFinance),
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "bad-workflow", "", tc.steps)
			appErr, ok := apperrors.IsAppError(err)
			if !ok || appErr.Code != apperrors.CodeTemplateInvariant {
				t.Fatalf("Create() error = %v, want code %s", err, apperrors.CodeTemplateInvariant)
			}
		})
	}
}

func TestWorkflowTemplateRoleVerification(t *testing.T) {
	t.Parallel()
	svc, f := newWorkflowService(t, true)
	ctx := context.Background()

	t.Run("unknown role id", func(t *testing.T) {
		steps := []domain.WorkflowTemplateStep{
			f.Step(1, "Manager", false, domain.Lookup{ID: "missing-role", Code: "GHOST"}),
			f.Step(2, "Finance", true, f.RoleFinance),
		}
		_, err := svc.Create(ctx, "ghost", "", steps)
		appErr, ok := apperrors.IsAppError(err)
		if !ok || appErr.Code != apperrors.CodeTemplateInvariant {
			t.Fatalf("Create() error = %v, want code %s", err, apperrors.CodeTemplateInvariant)
		}
	})

	t.Run("non-role lookup id", func(t *testing.T) {
		status, err := f.Store.Lookups().Resolve(ctx, domain.LookupTypeRequestStatus, "DRAFT")
		if err != nil {
			t.Fatalf("resolve status lookup: %v", err)
		}
		steps := []domain.WorkflowTemplateStep{
			f.Step(1, "Manager", false, *status),
			f.Step(2, "Finance", true, f.RoleFinance),
		}
		_, err = svc.Create(ctx, "wrong-type", "", steps)
		appErr, ok := apperrors.IsAppError(err)
		if !ok || appErr.Code != apperrors.CodeTemplateInvariant {
			t.Fatalf("Create() error = %v, want code %s", err, apperrors.CodeTemplateInvariant)
		}
	})
}

func TestWorkflowTemplateFinanceLastRelaxed(t *testing.T) {
	t.Parallel()
	svc, f := newWorkflowService(t, false)

	steps := []domain.WorkflowTemplateStep{
		f.Step(1, "Finance", true, f.RoleFinance),
		f.Step(2, "Manager", false, f.RoleManager),
	}
	if _, err := svc.Create(context.Background(), "finance-first", "", steps); err != nil {
		t.Fatalf("Create() with relaxed ordering error = %v", err)
	}
}

func TestWorkflowTemplateCloneAndBump(t *testing.T) {
	t.Parallel()
	svc, f := newWorkflowService(t, true)
	ctx := context.Background()

	steps := []domain.WorkflowTemplateStep{
		f.Step(1, "Manager", false, f.RoleManager, f.RoleDirector),
		f.Step(2, "Finance", true, f.RoleFinance),
	}
	v1, err := svc.Create(ctx, "two-step", "", steps)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("identical sequence is a no-op", func(t *testing.T) {
		same, err := svc.CloneAndBump(ctx, v1.ID, "", steps)
		if err != nil {
			t.Fatalf("CloneAndBump() error = %v", err)
		}
		if same.ID != v1.ID {
			t.Fatalf("identical clone produced new version %s", same.ID)
		}
	})

	t.Run("role set change bumps and preserves roles by id", func(t *testing.T) {
		mutated := []domain.WorkflowTemplateStep{
			f.Step(1, "Manager", false, f.RoleManager),
			f.Step(2, "Finance", true, f.RoleFinance),
		}
		v2, err := svc.CloneAndBump(ctx, v1.ID, "tightened", mutated)
		if err != nil {
			t.Fatalf("CloneAndBump() error = %v", err)
		}
		if v2.VersionNumber != 2 {
			t.Fatalf("clone version = %d, want 2", v2.VersionNumber)
		}
		if len(v2.Steps[0].ApproverRoles) != 1 || v2.Steps[0].ApproverRoles[0].ID != f.RoleManager.ID {
			t.Fatalf("step roles = %+v, want only MANAGER", v2.Steps[0].ApproverRoles)
		}

		// Source version keeps its original role set.
		old, err := svc.GetWithSteps(ctx, v1.ID)
		if err != nil {
			t.Fatalf("GetWithSteps() error = %v", err)
		}
		if len(old.Steps[0].ApproverRoles) != 2 {
			t.Fatalf("published version mutated: roles = %+v", old.Steps[0].ApproverRoles)
		}
	})
}
