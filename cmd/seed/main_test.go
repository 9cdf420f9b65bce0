package main

import (
	"testing"

	"procureflow.io/procureflow/internal/domain"
)

func TestSeededLookups_CoversEngineEnums(t *testing.T) {
	t.Parallel()

	byKey := make(map[string]seededLookup)
	for _, l := range seededLookups() {
		key := l.TypeCode + "/" + l.Code
		if _, dup := byKey[key]; dup {
			t.Fatalf("duplicate seeded lookup: %s", key)
		}
		if l.Title == "" {
			t.Fatalf("seeded lookup %s has no title", key)
		}
		byKey[key] = l
	}

	for _, s := range domain.AllStatuses {
		if _, ok := byKey[domain.LookupTypeRequestStatus+"/"+string(s)]; !ok {
			t.Fatalf("missing status lookup: %s", s)
		}
	}
	for _, pt := range []domain.PurchaseType{domain.PurchaseTypeService, domain.PurchaseTypeGood} {
		if _, ok := byKey[domain.LookupTypePurchaseType+"/"+string(pt)]; !ok {
			t.Fatalf("missing purchase type lookup: %s", pt)
		}
	}
	for _, role := range []string{"REQUESTER", "MANAGER", "DIRECTOR", "FINANCE", "ADMIN"} {
		if _, ok := byKey[domain.LookupTypeCompanyRole+"/"+role]; !ok {
			t.Fatalf("missing role lookup: %s", role)
		}
	}
}

const demoFixtureYAML = `
team: Marketing
categories:
  - name: Invoice
    required: true
  - name: Quote
    required: false
users:
  - username: req
    email: req@example.com
    full_name: Rey Questor
    password: changeme
    roles: [REQUESTER]
  - username: mgr
    email: mgr@example.com
    full_name: Mana Gerr
    password: changeme
    roles: [MANAGER]
  - username: fin
    email: fin@example.com
    full_name: Fin Reviewer
    password: changeme
    roles: [FINANCE]
form_template:
  name: service-purchase
  fields:
    - field_id: amount
      label: Amount
      type: NUMBER
      required: true
      order: 1
    - field_id: cost_center
      label: Cost Center
      type: DROPDOWN
      required: true
      order: 2
      dropdown_options: [CC-100, CC-200]
    - field_id: invoice_file
      label: Invoice
      type: FILE_UPLOAD
      required: true
      order: 3
      attachment_category: Invoice
workflow_template:
  name: two-step
  description: Manager then finance
  steps:
    - name: Manager Review
      roles: [MANAGER]
    - name: Finance Review
      roles: [FINANCE]
      finance: true
configs:
  - purchase_type: SERVICE
`

func TestParseFixture_Demo(t *testing.T) {
	t.Parallel()

	fx, err := parseFixture([]byte(demoFixtureYAML))
	if err != nil {
		t.Fatalf("parseFixture: %v", err)
	}
	if fx.Team != "Marketing" {
		t.Errorf("team = %q, want Marketing", fx.Team)
	}
	if len(fx.Users) != 3 || len(fx.Categories) != 2 {
		t.Errorf("users/categories = %d/%d, want 3/2", len(fx.Users), len(fx.Categories))
	}
	if len(fx.Form.Fields) != 3 {
		t.Fatalf("form fields = %d, want 3", len(fx.Form.Fields))
	}
	if got := fx.Form.Fields[2].AttachmentCategory; got != "Invoice" {
		t.Errorf("file upload category = %q, want Invoice", got)
	}
	if !fx.Workflow.Steps[1].Finance {
		t.Error("second workflow step should be the finance step")
	}
}

func TestParseFixture_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		yaml string
	}{
		{"no team", "categories: []"},
		{"no fields", "team: T\nworkflow_template:\n  steps:\n    - name: A\n    - name: B"},
		{
			"one step", `
team: T
form_template:
  fields:
    - {field_id: f, label: F, type: TEXT, order: 1}
workflow_template:
  steps:
    - name: Only
      finance: true
`,
		},
		{
			"bad field type", `
team: T
form_template:
  fields:
    - {field_id: f, label: F, type: TELEPATHY, order: 1}
workflow_template:
  steps:
    - name: A
    - name: B
      finance: true
`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseFixture([]byte(tc.yaml)); err == nil {
				t.Fatalf("parseFixture accepted invalid fixture")
			}
		})
	}
}
