package memory

import (
	"context"
	"slices"
	"strings"

	"procureflow.io/procureflow/internal/domain"
)

// ── team purchase configs ─────────────────────────────────────────────────────

type configRepo struct {
	src source
}

func (r *configRepo) Create(ctx context.Context, c *domain.TeamPurchaseConfig) error {
	d, release := r.src.acquire()
	defer release()

	if c.Active {
		for _, existing := range d.configs {
			if existing.TeamID == c.TeamID && existing.PurchaseType == c.PurchaseType && existing.Active {
				return duplicate("active config team=" + c.TeamID + " type=" + string(c.PurchaseType))
			}
		}
	}
	d.configs[c.ID] = *c
	return nil
}

func (r *configRepo) ResolveActive(ctx context.Context, teamID string, pt domain.PurchaseType) (*domain.TeamPurchaseConfig, error) {
	d, release := r.src.acquire()
	defer release()

	for _, c := range d.configs {
		if c.TeamID == teamID && c.PurchaseType == pt && c.Active {
			return &c, nil
		}
	}
	return nil, notFound("config", teamID+"/"+string(pt))
}

func (r *configRepo) DeactivateActive(ctx context.Context, teamID string, pt domain.PurchaseType) error {
	d, release := r.src.acquire()
	defer release()

	for id, c := range d.configs {
		if c.TeamID == teamID && c.PurchaseType == pt && c.Active {
			c.Active = false
			d.configs[id] = c
		}
	}
	return nil
}

func (r *configRepo) ListByTeam(ctx context.Context, teamID string) ([]*domain.TeamPurchaseConfig, error) {
	d, release := r.src.acquire()
	defer release()

	var out []*domain.TeamPurchaseConfig
	for _, c := range d.configs {
		if c.TeamID == teamID {
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *domain.TeamPurchaseConfig) int {
		if n := strings.Compare(string(a.PurchaseType), string(b.PurchaseType)); n != 0 {
			return n
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// ── attachment categories ─────────────────────────────────────────────────────

type categoryRepo struct {
	src source
}

func (r *categoryRepo) Create(ctx context.Context, c *domain.AttachmentCategory) error {
	d, release := r.src.acquire()
	defer release()

	for _, existing := range d.categories {
		if existing.TeamID == c.TeamID && existing.Name == c.Name {
			return duplicate("attachment category " + c.Name)
		}
	}
	d.categories[c.ID] = *c
	return nil
}

func (r *categoryRepo) GetByName(ctx context.Context, teamID, name string) (*domain.AttachmentCategory, error) {
	d, release := r.src.acquire()
	defer release()

	for _, c := range d.categories {
		if c.TeamID == teamID && c.Name == name && c.Active {
			return &c, nil
		}
	}
	return nil, notFound("attachment category", name)
}

func (r *categoryRepo) ListByTeam(ctx context.Context, teamID string) ([]*domain.AttachmentCategory, error) {
	return r.list(teamID, false)
}

func (r *categoryRepo) Required(ctx context.Context, teamID string) ([]*domain.AttachmentCategory, error) {
	return r.list(teamID, true)
}

func (r *categoryRepo) list(teamID string, requiredOnly bool) ([]*domain.AttachmentCategory, error) {
	d, release := r.src.acquire()
	defer release()

	var out []*domain.AttachmentCategory
	for _, c := range d.categories {
		if c.TeamID != teamID || !c.Active {
			continue
		}
		if requiredOnly && !c.Required {
			continue
		}
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *domain.AttachmentCategory) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}
