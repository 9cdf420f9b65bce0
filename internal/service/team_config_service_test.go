package service

import (
	"context"
	"testing"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/testutil"
)

func TestTeamConfigAssign(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	svc := NewTeamConfigService(f.Store, f.IDs, f.Clock)
	ctx := context.Background()

	form := f.MustFormTemplate(t, "service-form", 1,
		f.Field("amount", "Amount", domain.FieldTypeNumber, true, 1),
	)
	wf := f.MustWorkflow(t, "service-flow", 1,
		f.Step(1, "Manager", false, f.RoleManager),
		f.Step(2, "Finance", true, f.RoleFinance),
	)

	cfg, err := svc.Assign(ctx, f.Team.ID, domain.PurchaseTypeService, form.ID, wf.ID)
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if !cfg.Active {
		t.Fatal("assigned config not active")
	}

	got, err := svc.ResolveActive(ctx, f.Team.ID, domain.PurchaseTypeService)
	if err != nil {
		t.Fatalf("ResolveActive() error = %v", err)
	}
	if got.ID != cfg.ID {
		t.Fatalf("ResolveActive() = %s, want %s", got.ID, cfg.ID)
	}
}

func TestTeamConfigReassignDeactivatesPrevious(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	svc := NewTeamConfigService(f.Store, f.IDs, f.Clock)
	ctx := context.Background()

	form := f.MustFormTemplate(t, "goods-form", 1,
		f.Field("item", "Item", domain.FieldTypeText, true, 1),
	)
	wfOld := f.MustWorkflow(t, "goods-flow", 1,
		f.Step(1, "Manager", false, f.RoleManager),
		f.Step(2, "Finance", true, f.RoleFinance),
	)
	wfNew := f.MustWorkflow(t, "goods-flow", 2,
		f.Step(1, "Director", false, f.RoleDirector),
		f.Step(2, "Finance", true, f.RoleFinance),
	)

	first, err := svc.Assign(ctx, f.Team.ID, domain.PurchaseTypeGood, form.ID, wfOld.ID)
	if err != nil {
		t.Fatalf("Assign() first error = %v", err)
	}
	second, err := svc.Assign(ctx, f.Team.ID, domain.PurchaseTypeGood, form.ID, wfNew.ID)
	if err != nil {
		t.Fatalf("Assign() second error = %v", err)
	}

	active, err := svc.ResolveActive(ctx, f.Team.ID, domain.PurchaseTypeGood)
	if err != nil {
		t.Fatalf("ResolveActive() error = %v", err)
	}
	if active.ID != second.ID {
		t.Fatalf("active config = %s, want %s", active.ID, second.ID)
	}
	if active.WorkflowTemplateID != wfNew.ID {
		t.Fatalf("active workflow = %s, want %s", active.WorkflowTemplateID, wfNew.ID)
	}

	// Only one binding per (team, purchase type) stays active.
	all, err := svc.ListByTeam(ctx, f.Team.ID)
	if err != nil {
		t.Fatalf("ListByTeam() error = %v", err)
	}
	activeCount := 0
	for _, c := range all {
		if c.PurchaseType == domain.PurchaseTypeGood && c.Active {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Fatalf("active configs for GOOD = %d, want 1", activeCount)
	}
	if first.ID == second.ID {
		t.Fatal("reassign reused config id")
	}
}

func TestTeamConfigResolveMissing(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	svc := NewTeamConfigService(f.Store, f.IDs, f.Clock)

	_, err := svc.ResolveActive(context.Background(), f.Team.ID, domain.PurchaseTypeService)
	appErr, ok := apperrors.IsAppError(err)
	if !ok || appErr.Code != apperrors.CodeConfigurationMissing {
		t.Fatalf("ResolveActive() error = %v, want code %s", err, apperrors.CodeConfigurationMissing)
	}
}

func TestTeamConfigResolveHydratesTemplates(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	svc := NewTeamConfigService(f.Store, f.IDs, f.Clock)
	ctx := context.Background()

	form := f.MustFormTemplate(t, "service-form", 1,
		f.Field("amount", "Amount", domain.FieldTypeNumber, true, 1),
		f.Field("notes", "Notes", domain.FieldTypeText, false, 2),
	)
	wf := f.MustWorkflow(t, "service-flow", 1,
		f.Step(1, "Manager", false, f.RoleManager),
		f.Step(2, "Finance", true, f.RoleFinance),
	)
	if _, err := svc.Assign(ctx, f.Team.ID, domain.PurchaseTypeService, form.ID, wf.ID); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	eff, err := svc.Resolve(ctx, f.Team.ID, domain.PurchaseTypeService)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(eff.FormTemplate.Fields) != 2 {
		t.Fatalf("form fields = %d, want 2", len(eff.FormTemplate.Fields))
	}
	if len(eff.WorkflowTemplate.Steps) != 2 {
		t.Fatalf("workflow steps = %d, want 2", len(eff.WorkflowTemplate.Steps))
	}
	if eff.Config.FormTemplateID != form.ID {
		t.Fatalf("config form template = %s, want %s", eff.Config.FormTemplateID, form.ID)
	}
}

func TestTeamConfigAssignValidatesReferences(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	svc := NewTeamConfigService(f.Store, f.IDs, f.Clock)
	ctx := context.Background()

	form := f.MustFormTemplate(t, "service-form", 1,
		f.Field("amount", "Amount", domain.FieldTypeNumber, true, 1),
	)
	wf := f.MustWorkflow(t, "service-flow", 1,
		f.Step(1, "Manager", false, f.RoleManager),
		f.Step(2, "Finance", true, f.RoleFinance),
	)

	tests := []struct {
		name       string
		teamID     string
		formID     string
		workflowID string
	}{
		{name: "unknown team", teamID: "no-such-team", formID: form.ID, workflowID: wf.ID},
		{name: "unknown form template", teamID: f.Team.ID, formID: "no-such-form", workflowID: wf.ID},
		{name: "unknown workflow template", teamID: f.Team.ID, formID: form.ID, workflowID: "no-such-flow"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Assign(ctx, tc.teamID, domain.PurchaseTypeService, tc.formID, tc.workflowID)
			if _, ok := apperrors.IsAppError(err); !ok {
				t.Fatalf("Assign() error = %v, want AppError", err)
			}
		})
	}
}
