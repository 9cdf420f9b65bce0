package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/repository/memory"
)

// SeqIDs issues deterministic, lexically ordered ids so test failures
// print stable identifiers and CreatedAt ties sort predictably.
type SeqIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSeqIDs creates a SeqIDs generator with the given prefix.
func NewSeqIDs(prefix string) *SeqIDs {
	return &SeqIDs{prefix: prefix}
}

// NewID returns the next id in sequence.
func (g *SeqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// TickClock returns strictly increasing timestamps, one tick per call,
// so audit and history ordering assertions are deterministic.
type TickClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewTickClock creates a TickClock starting at start.
func NewTickClock(start time.Time, step time.Duration) *TickClock {
	return &TickClock{now: start, step: step}
}

// Now returns the current instant and advances the clock by one step.
func (c *TickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Fixture is an in-memory store seeded with the standard test graph: the
// role/status/purchase-type lookups, one team, and one user per role.
// Templates, categories, and config bindings are added per test through
// the Must helpers.
type Fixture struct {
	Store *memory.Store
	IDs   *SeqIDs
	Clock *TickClock

	Team domain.Team

	Requestor domain.User
	Manager   domain.User
	Director  domain.User
	Finance   domain.User

	RoleRequester domain.Lookup
	RoleManager   domain.Lookup
	RoleDirector  domain.Lookup
	RoleFinance   domain.Lookup
}

// NewFixture seeds the store. The clock starts at a fixed instant and
// advances one second per observation.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()

	f := &Fixture{
		Store: memory.NewStore(),
		IDs:   NewSeqIDs("fx"),
		Clock: NewTickClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), time.Second),
	}
	ctx := context.Background()

	for _, status := range domain.AllStatuses {
		f.mustLookup(t, ctx, domain.LookupTypeRequestStatus, string(status))
	}
	f.mustLookup(t, ctx, domain.LookupTypePurchaseType, string(domain.PurchaseTypeService))
	f.mustLookup(t, ctx, domain.LookupTypePurchaseType, string(domain.PurchaseTypeGood))

	f.RoleRequester = f.mustLookup(t, ctx, domain.LookupTypeCompanyRole, "REQUESTER")
	f.RoleManager = f.mustLookup(t, ctx, domain.LookupTypeCompanyRole, "MANAGER")
	f.RoleDirector = f.mustLookup(t, ctx, domain.LookupTypeCompanyRole, "DIRECTOR")
	f.RoleFinance = f.mustLookup(t, ctx, domain.LookupTypeCompanyRole, "FINANCE")

	now := f.Clock.Now()
	f.Team = domain.Team{ID: f.IDs.NewID(), Name: "Marketing", Active: true, CreatedAt: now, UpdatedAt: now}
	if err := f.Store.Teams().Create(ctx, &f.Team); err != nil {
		t.Fatalf("seed team: %v", err)
	}

	f.Requestor = f.MustUser(t, "req", f.RoleRequester)
	f.Manager = f.MustUser(t, "mgr", f.RoleManager)
	f.Director = f.MustUser(t, "dir", f.RoleDirector)
	f.Finance = f.MustUser(t, "fin", f.RoleFinance)

	return f
}

func (f *Fixture) mustLookup(t *testing.T, ctx context.Context, typeCode, code string) domain.Lookup {
	t.Helper()
	now := f.Clock.Now()
	l := domain.Lookup{
		ID:        f.IDs.NewID(),
		TypeCode:  typeCode,
		Code:      code,
		Title:     code,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.Store.Lookups().Create(ctx, &l); err != nil {
		t.Fatalf("seed lookup %s/%s: %v", typeCode, code, err)
	}
	return l
}

// MustUser creates an active user on the fixture team holding the given roles.
func (f *Fixture) MustUser(t *testing.T, username string, roles ...domain.Lookup) domain.User {
	t.Helper()
	ctx := context.Background()
	now := f.Clock.Now()
	u := domain.User{
		ID:        f.IDs.NewID(),
		Username:  username,
		Email:     username + "@example.com",
		FullName:  username,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.Store.Users().Create(ctx, &u); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	for _, role := range roles {
		f.MustGrant(t, u.ID, role)
	}
	return u
}

// MustGrant assigns a role to the user on the fixture team.
func (f *Fixture) MustGrant(t *testing.T, userID string, role domain.Lookup) {
	t.Helper()
	now := f.Clock.Now()
	s := domain.AccessScope{
		ID:        f.IDs.NewID(),
		UserID:    userID,
		TeamID:    f.Team.ID,
		RoleID:    role.ID,
		RoleCode:  role.Code,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.Store.Scopes().Create(context.Background(), &s); err != nil {
		t.Fatalf("seed scope %s→%s: %v", userID, role.Code, err)
	}
}

// Field builds a form field definition.
func (f *Fixture) Field(fieldID, label string, ft domain.FieldType, required bool, order int) domain.FormField {
	return domain.FormField{FieldID: fieldID, Label: label, Type: ft, Required: required, Order: order}
}

// MustFormTemplate persists a form template version with the given fields.
func (f *Fixture) MustFormTemplate(t *testing.T, name string, version int, fields ...domain.FormField) *domain.FormTemplate {
	t.Helper()
	now := f.Clock.Now()
	tpl := &domain.FormTemplate{
		ID:            f.IDs.NewID(),
		Name:          name,
		VersionNumber: version,
		Active:        true,
		CreatedBy:     f.Requestor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Fields:        make([]domain.FormField, len(fields)),
	}
	for i, field := range fields {
		field.ID = f.IDs.NewID()
		field.TemplateID = tpl.ID
		tpl.Fields[i] = field
	}
	if err := f.Store.FormTemplates().Create(context.Background(), tpl); err != nil {
		t.Fatalf("seed form template %s v%d: %v", name, version, err)
	}
	return tpl
}

// Step builds a workflow step definition.
func (f *Fixture) Step(order int, name string, finance bool, roles ...domain.Lookup) domain.WorkflowTemplateStep {
	s := domain.WorkflowTemplateStep{StepOrder: order, StepName: name, IsFinanceReview: finance}
	for _, role := range roles {
		s.ApproverRoles = append(s.ApproverRoles, domain.Role{ID: role.ID, Code: role.Code})
	}
	return s
}

// MustWorkflow persists a workflow template version with the given steps.
func (f *Fixture) MustWorkflow(t *testing.T, name string, version int, steps ...domain.WorkflowTemplateStep) *domain.WorkflowTemplate {
	t.Helper()
	now := f.Clock.Now()
	tpl := &domain.WorkflowTemplate{
		ID:            f.IDs.NewID(),
		Name:          name,
		VersionNumber: version,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
		Steps:         make([]domain.WorkflowTemplateStep, len(steps)),
	}
	for i, step := range steps {
		step.ID = f.IDs.NewID()
		step.TemplateID = tpl.ID
		step.CreatedAt = now
		step.UpdatedAt = now
		tpl.Steps[i] = step
	}
	if err := f.Store.WorkflowTemplates().Create(context.Background(), tpl); err != nil {
		t.Fatalf("seed workflow template %s v%d: %v", name, version, err)
	}
	return tpl
}

// MustBind activates a config binding the fixture team and purchase type
// to the template pair.
func (f *Fixture) MustBind(t *testing.T, pt domain.PurchaseType, formTemplateID, workflowTemplateID string) *domain.TeamPurchaseConfig {
	t.Helper()
	now := f.Clock.Now()
	cfg := &domain.TeamPurchaseConfig{
		ID:                 f.IDs.NewID(),
		TeamID:             f.Team.ID,
		PurchaseType:       pt,
		FormTemplateID:     formTemplateID,
		WorkflowTemplateID: workflowTemplateID,
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := f.Store.Configs().Create(context.Background(), cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	return cfg
}

// MustCategory creates an attachment category on the fixture team.
func (f *Fixture) MustCategory(t *testing.T, name string, required bool) *domain.AttachmentCategory {
	t.Helper()
	now := f.Clock.Now()
	c := &domain.AttachmentCategory{
		ID:        f.IDs.NewID(),
		TeamID:    f.Team.ID,
		Name:      name,
		Required:  required,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.Store.Categories().Create(context.Background(), c); err != nil {
		t.Fatalf("seed category %s: %v", name, err)
	}
	return c
}
