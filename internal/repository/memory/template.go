package memory

import (
	"context"
	"fmt"
	"slices"

	"procureflow.io/procureflow/internal/domain"
)

// ── form templates ────────────────────────────────────────────────────────────

type formTemplateRepo struct {
	src source
}

func (r *formTemplateRepo) Create(ctx context.Context, t *domain.FormTemplate) error {
	d, release := r.src.acquire()
	defer release()

	for _, existing := range d.formTemplates {
		if existing.Name == t.Name && existing.VersionNumber == t.VersionNumber {
			return duplicate(fmt.Sprintf("form template %s v%d", t.Name, t.VersionNumber))
		}
	}
	for i := range t.Fields {
		t.Fields[i].TemplateID = t.ID
	}
	d.formTemplates[t.ID] = copyFormTemplate(*t)
	return nil
}

func (r *formTemplateRepo) GetByID(ctx context.Context, id string) (*domain.FormTemplate, error) {
	d, release := r.src.acquire()
	defer release()

	t, ok := d.formTemplates[id]
	if !ok {
		return nil, notFound("form template", id)
	}
	t = copyFormTemplate(t)
	t.Fields = nil
	return &t, nil
}

func (r *formTemplateRepo) GetWithFields(ctx context.Context, id string) (*domain.FormTemplate, error) {
	d, release := r.src.acquire()
	defer release()

	t, ok := d.formTemplates[id]
	if !ok {
		return nil, notFound("form template", id)
	}
	t = copyFormTemplate(t)
	slices.SortFunc(t.Fields, func(a, b domain.FormField) int { return a.Order - b.Order })
	return &t, nil
}

func (r *formTemplateRepo) MaxVersionForUpdate(ctx context.Context, name string) (int, error) {
	d, release := r.src.acquire()
	defer release()

	max := 0
	for _, t := range d.formTemplates {
		if t.Name == name && t.VersionNumber > max {
			max = t.VersionNumber
		}
	}
	return max, nil
}

func (r *formTemplateRepo) ListVersions(ctx context.Context, name string) ([]*domain.FormTemplate, error) {
	d, release := r.src.acquire()
	defer release()

	var out []*domain.FormTemplate
	for _, t := range d.formTemplates {
		if t.Name != name {
			continue
		}
		t := copyFormTemplate(t)
		t.Fields = nil
		out = append(out, &t)
	}
	slices.SortFunc(out, func(a, b *domain.FormTemplate) int { return b.VersionNumber - a.VersionNumber })
	return out, nil
}

func (r *formTemplateRepo) SetActive(ctx context.Context, id string, active bool) error {
	d, release := r.src.acquire()
	defer release()

	t, ok := d.formTemplates[id]
	if !ok {
		return notFound("form template", id)
	}
	t.Active = active
	d.formTemplates[id] = t
	return nil
}

// ── workflow templates ────────────────────────────────────────────────────────

type workflowTemplateRepo struct {
	src source
}

func (r *workflowTemplateRepo) Create(ctx context.Context, t *domain.WorkflowTemplate) error {
	d, release := r.src.acquire()
	defer release()

	for _, existing := range d.workflows {
		if existing.Name == t.Name && existing.VersionNumber == t.VersionNumber {
			return duplicate(fmt.Sprintf("workflow template %s v%d", t.Name, t.VersionNumber))
		}
	}
	for i := range t.Steps {
		t.Steps[i].TemplateID = t.ID
	}
	d.workflows[t.ID] = copyWorkflowTemplate(*t)
	return nil
}

func (r *workflowTemplateRepo) GetByID(ctx context.Context, id string) (*domain.WorkflowTemplate, error) {
	d, release := r.src.acquire()
	defer release()

	t, ok := d.workflows[id]
	if !ok {
		return nil, notFound("workflow template", id)
	}
	t = copyWorkflowTemplate(t)
	t.Steps = nil
	return &t, nil
}

func (r *workflowTemplateRepo) GetWithSteps(ctx context.Context, id string) (*domain.WorkflowTemplate, error) {
	d, release := r.src.acquire()
	defer release()

	t, ok := d.workflows[id]
	if !ok {
		return nil, notFound("workflow template", id)
	}
	t = copyWorkflowTemplate(t)
	slices.SortFunc(t.Steps, func(a, b domain.WorkflowTemplateStep) int { return a.StepOrder - b.StepOrder })
	return &t, nil
}

func (r *workflowTemplateRepo) GetStep(ctx context.Context, stepID string) (*domain.WorkflowTemplateStep, error) {
	d, release := r.src.acquire()
	defer release()

	for _, t := range d.workflows {
		for _, s := range t.Steps {
			if s.ID == stepID {
				s.ApproverRoles = slices.Clone(s.ApproverRoles)
				return &s, nil
			}
		}
	}
	return nil, notFound("workflow step", stepID)
}

func (r *workflowTemplateRepo) MaxVersionForUpdate(ctx context.Context, name string) (int, error) {
	d, release := r.src.acquire()
	defer release()

	max := 0
	for _, t := range d.workflows {
		if t.Name == name && t.VersionNumber > max {
			max = t.VersionNumber
		}
	}
	return max, nil
}

func (r *workflowTemplateRepo) ListVersions(ctx context.Context, name string) ([]*domain.WorkflowTemplate, error) {
	d, release := r.src.acquire()
	defer release()

	var out []*domain.WorkflowTemplate
	for _, t := range d.workflows {
		if t.Name != name {
			continue
		}
		t := copyWorkflowTemplate(t)
		t.Steps = nil
		out = append(out, &t)
	}
	slices.SortFunc(out, func(a, b *domain.WorkflowTemplate) int { return b.VersionNumber - a.VersionNumber })
	return out, nil
}

func (r *workflowTemplateRepo) SetActive(ctx context.Context, id string, active bool) error {
	d, release := r.src.acquire()
	defer release()

	t, ok := d.workflows[id]
	if !ok {
		return notFound("workflow template", id)
	}
	t.Active = active
	d.workflows[id] = t
	return nil
}
