// Package main provides data seeding for ProcureFlow.
//
// Seeding is idempotent: lookup rows and the bootstrap admin are created
// with create-if-absent semantics, and a demo fixture is skipped entirely
// when its team already exists. Schema migrations run first when the
// database is behind.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/config"
	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/infrastructure"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/repository"
	"procureflow.io/procureflow/internal/repository/postgres"
	"procureflow.io/procureflow/internal/service"
)

func main() {
	fixturePath := flag.String("fixture", "", "optional YAML demo fixture (team, templates, users)")
	flag.Parse()

	if err := run(*fixturePath); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func run(fixturePath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store := postgres.NewStore(db.Pool)
	ids := domain.UUIDGenerator{}
	clock := domain.UTCClock{}
	registry := service.NewLookupRegistry(store, ids, clock)

	logger.Info("Starting data seeding...")

	if err := seedLookups(ctx, registry); err != nil {
		return fmt.Errorf("seed lookups: %w", err)
	}
	if err := seedBootstrapAdmin(ctx, store, ids, clock); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if fixturePath != "" {
		fx, err := loadFixture(fixturePath)
		if err != nil {
			return fmt.Errorf("load fixture %s: %w", fixturePath, err)
		}
		if err := seedFixture(ctx, cfg, store, registry, ids, clock, fx); err != nil {
			return fmt.Errorf("seed fixture %s: %w", fixturePath, err)
		}
	}

	logger.Info("Data seeding completed successfully")
	return nil
}

// seededLookup is one registry row created on bootstrap.
type seededLookup struct {
	TypeCode string
	Code     string
	Title    string
}

func seededLookups() []seededLookup {
	statusTitles := map[domain.Status]string{
		domain.StatusDraft:           "Draft",
		domain.StatusPendingApproval: "Pending Approval",
		domain.StatusInReview:        "In Review",
		domain.StatusRejected:        "Rejected",
		domain.StatusResubmitted:     "Resubmitted",
		domain.StatusFullyApproved:   "Fully Approved",
		domain.StatusFinanceReview:   "Finance Review",
		domain.StatusCompleted:       "Completed",
		domain.StatusArchived:        "Archived",
	}

	out := make([]seededLookup, 0, len(domain.AllStatuses)+8)
	for _, s := range domain.AllStatuses {
		out = append(out, seededLookup{domain.LookupTypeRequestStatus, string(s), statusTitles[s]})
	}
	out = append(out,
		seededLookup{domain.LookupTypePurchaseType, string(domain.PurchaseTypeService), "Service"},
		seededLookup{domain.LookupTypePurchaseType, string(domain.PurchaseTypeGood), "Good"},
		seededLookup{domain.LookupTypeCompanyRole, "REQUESTER", "Requester"},
		seededLookup{domain.LookupTypeCompanyRole, "MANAGER", "Manager"},
		seededLookup{domain.LookupTypeCompanyRole, "DIRECTOR", "Director"},
		seededLookup{domain.LookupTypeCompanyRole, "FINANCE", "Finance Reviewer"},
		seededLookup{domain.LookupTypeCompanyRole, "ADMIN", "Administrator"},
	)
	return out
}

func seedLookups(ctx context.Context, registry *service.LookupRegistry) error {
	for _, l := range seededLookups() {
		if _, err := registry.Resolve(ctx, l.TypeCode, l.Code); err == nil {
			continue
		}
		if _, err := registry.Register(ctx, l.TypeCode, l.Code, l.Title); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				logger.Info("Lookup already exists, skipping",
					zap.String("type", l.TypeCode), zap.String("code", l.Code))
				continue
			}
			return fmt.Errorf("register %s/%s: %w", l.TypeCode, l.Code, err)
		}
		logger.Info("Seeded lookup", zap.String("type", l.TypeCode), zap.String("code", l.Code))
	}
	return nil
}

// seedBootstrapAdmin creates the bootstrap admin account (admin/admin).
// The password must be rotated after first login; the hash is bcrypt.
func seedBootstrapAdmin(ctx context.Context, store repository.Store, ids domain.IDGenerator, clock domain.Clock) error {
	if _, err := store.Users().GetByUsername(ctx, "admin"); err == nil {
		logger.Info("Bootstrap admin already exists, skipping")
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("probe admin user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}

	now := clock.Now()
	admin := &domain.User{
		ID:           ids.NewID(),
		Username:     "admin",
		Email:        "admin@localhost",
		FullName:     "Bootstrap Administrator",
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.Users().Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logger.Info("Bootstrap admin already exists, skipping")
			return nil
		}
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	logger.Info("Seeded bootstrap admin", zap.String("username", admin.Username))
	return nil
}

// fixtureFile is the YAML shape of a demo fixture: one team with its
// attachment categories, users with team roles, one form and one workflow
// template, and the purchase-type bindings between them.
type fixtureFile struct {
	Team       string            `yaml:"team"`
	Categories []fixtureCategory `yaml:"categories"`
	Users      []fixtureUser     `yaml:"users"`
	Form       fixtureForm       `yaml:"form_template"`
	Workflow   fixtureWorkflow   `yaml:"workflow_template"`
	Configs    []fixtureConfig   `yaml:"configs"`
}

type fixtureCategory struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required"`
}

type fixtureUser struct {
	Username string   `yaml:"username"`
	Email    string   `yaml:"email"`
	FullName string   `yaml:"full_name"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

type fixtureForm struct {
	Name   string         `yaml:"name"`
	Fields []fixtureField `yaml:"fields"`
}

type fixtureField struct {
	FieldID            string   `yaml:"field_id"`
	Label              string   `yaml:"label"`
	Type               string   `yaml:"type"`
	Required           bool     `yaml:"required"`
	Order              int      `yaml:"order"`
	DropdownOptions    []string `yaml:"dropdown_options"`
	AttachmentCategory string   `yaml:"attachment_category"`
}

type fixtureWorkflow struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Steps       []fixtureStep `yaml:"steps"`
}

type fixtureStep struct {
	Name    string   `yaml:"name"`
	Roles   []string `yaml:"roles"`
	Finance bool     `yaml:"finance"`
}

type fixtureConfig struct {
	PurchaseType string `yaml:"purchase_type"`
}

func loadFixture(path string) (*fixtureFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseFixture(raw)
}

func parseFixture(raw []byte) (*fixtureFile, error) {
	var fx fixtureFile
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if strings.TrimSpace(fx.Team) == "" {
		return nil, errors.New("fixture has no team name")
	}
	if len(fx.Form.Fields) == 0 {
		return nil, errors.New("fixture form template has no fields")
	}
	if len(fx.Workflow.Steps) < 2 {
		return nil, errors.New("fixture workflow needs at least 2 steps")
	}
	for _, f := range fx.Form.Fields {
		if !domain.FieldType(f.Type).Valid() {
			return nil, fmt.Errorf("fixture field %s has unknown type %q", f.FieldID, f.Type)
		}
	}
	return &fx, nil
}

// seedFixture creates the demo team graph. The team name is the
// idempotency anchor: when it already exists the whole fixture is skipped.
func seedFixture(ctx context.Context, cfg *config.Config, store repository.Store, registry *service.LookupRegistry, ids domain.IDGenerator, clock domain.Clock, fx *fixtureFile) error {
	if _, err := store.Teams().GetByName(ctx, fx.Team); err == nil {
		logger.Info("Fixture team already exists, skipping fixture", zap.String("team", fx.Team))
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("probe team %s: %w", fx.Team, err)
	}

	now := clock.Now()
	team := &domain.Team{ID: ids.NewID(), Name: fx.Team, Active: true, CreatedAt: now, UpdatedAt: now}
	if err := store.Teams().Create(ctx, team); err != nil {
		return fmt.Errorf("create team %s: %w", fx.Team, err)
	}

	for _, c := range fx.Categories {
		cat := &domain.AttachmentCategory{
			ID: ids.NewID(), TeamID: team.ID, Name: c.Name, Required: c.Required,
			Active: true, CreatedAt: now, UpdatedAt: now,
		}
		if err := store.Categories().Create(ctx, cat); err != nil {
			return fmt.Errorf("create category %s: %w", c.Name, err)
		}
	}

	directory := service.NewAccessDirectory(store, ids, clock)
	for _, u := range fx.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.Username, err)
		}
		user := &domain.User{
			ID: ids.NewID(), Username: u.Username, Email: u.Email, FullName: u.FullName,
			PasswordHash: string(hash), Active: true, CreatedAt: now, UpdatedAt: now,
		}
		if err := store.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("create user %s: %w", u.Username, err)
		}
		for _, roleCode := range u.Roles {
			role, err := registry.ResolveRole(ctx, roleCode)
			if err != nil {
				return fmt.Errorf("resolve role %s: %w", roleCode, err)
			}
			if _, err := directory.Grant(ctx, user.ID, team.ID, role.ID, nil); err != nil {
				return fmt.Errorf("grant %s to %s: %w", roleCode, u.Username, err)
			}
		}
	}

	forms := service.NewFormTemplateService(store, ids, clock)
	fields := make([]domain.FormField, 0, len(fx.Form.Fields))
	for _, f := range fx.Form.Fields {
		fields = append(fields, domain.FormField{
			FieldID:            f.FieldID,
			Label:              f.Label,
			Type:               domain.FieldType(f.Type),
			Required:           f.Required,
			Order:              f.Order,
			DropdownOptions:    f.DropdownOptions,
			AttachmentCategory: f.AttachmentCategory,
		})
	}
	form, err := forms.Create(ctx, fx.Form.Name, "seed", fields)
	if err != nil {
		return fmt.Errorf("create form template %s: %w", fx.Form.Name, err)
	}

	workflows := service.NewWorkflowTemplateService(store, ids, clock, cfg.Workflow.RequireFinanceReviewLast)
	steps := make([]domain.WorkflowTemplateStep, 0, len(fx.Workflow.Steps))
	for i, s := range fx.Workflow.Steps {
		roles := make([]domain.Role, 0, len(s.Roles))
		for _, code := range s.Roles {
			role, err := registry.ResolveRole(ctx, code)
			if err != nil {
				return fmt.Errorf("resolve step role %s: %w", code, err)
			}
			roles = append(roles, domain.Role{ID: role.ID, Code: role.Code})
		}
		steps = append(steps, domain.WorkflowTemplateStep{
			StepOrder:       i + 1,
			StepName:        s.Name,
			IsFinanceReview: s.Finance,
			ApproverRoles:   roles,
		})
	}
	workflow, err := workflows.Create(ctx, fx.Workflow.Name, fx.Workflow.Description, steps)
	if err != nil {
		return fmt.Errorf("create workflow template %s: %w", fx.Workflow.Name, err)
	}

	configs := service.NewTeamConfigService(store, ids, clock)
	for _, c := range fx.Configs {
		pt := domain.PurchaseType(c.PurchaseType)
		if _, err := configs.Assign(ctx, team.ID, pt, form.ID, workflow.ID); err != nil {
			return fmt.Errorf("assign config %s/%s: %w", fx.Team, c.PurchaseType, err)
		}
	}

	logger.Info("Seeded demo fixture",
		zap.String("team", fx.Team),
		zap.Int("users", len(fx.Users)),
		zap.String("form_template", form.ID),
		zap.String("workflow_template", workflow.ID),
	)
	return nil
}
