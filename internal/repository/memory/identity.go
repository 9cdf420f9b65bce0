package memory

import (
	"context"
	"slices"
	"strings"

	"procureflow.io/procureflow/internal/domain"
)

// ── lookups ───────────────────────────────────────────────────────────────────

type lookupRepo struct {
	src source
}

func (r *lookupRepo) Create(ctx context.Context, l *domain.Lookup) error {
	d, release := r.src.acquire()
	defer release()

	for _, existing := range d.lookups {
		if existing.TypeCode == l.TypeCode && existing.Code == l.Code {
			return duplicate("lookup " + l.TypeCode + "/" + l.Code)
		}
	}
	d.lookups[l.ID] = *l
	return nil
}

func (r *lookupRepo) GetByID(ctx context.Context, id string) (*domain.Lookup, error) {
	d, release := r.src.acquire()
	defer release()

	l, ok := d.lookups[id]
	if !ok {
		return nil, notFound("lookup", id)
	}
	return &l, nil
}

func (r *lookupRepo) Resolve(ctx context.Context, typeCode, code string) (*domain.Lookup, error) {
	d, release := r.src.acquire()
	defer release()

	for _, l := range d.lookups {
		if l.TypeCode == typeCode && l.Code == code && l.Active {
			return &l, nil
		}
	}
	return nil, notFound("lookup", typeCode+"/"+code)
}

func (r *lookupRepo) ListByType(ctx context.Context, typeCode string) ([]*domain.Lookup, error) {
	d, release := r.src.acquire()
	defer release()

	var out []*domain.Lookup
	for _, l := range d.lookups {
		if l.TypeCode == typeCode && l.Active {
			out = append(out, &l)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Lookup) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (r *lookupRepo) SetActive(ctx context.Context, id string, active bool) error {
	d, release := r.src.acquire()
	defer release()

	l, ok := d.lookups[id]
	if !ok {
		return notFound("lookup", id)
	}
	l.Active = active
	d.lookups[id] = l
	return nil
}

// ── teams ─────────────────────────────────────────────────────────────────────

type teamRepo struct {
	src source
}

func (r *teamRepo) Create(ctx context.Context, t *domain.Team) error {
	d, release := r.src.acquire()
	defer release()

	for _, existing := range d.teams {
		if existing.Name == t.Name {
			return duplicate("team " + t.Name)
		}
	}
	d.teams[t.ID] = *t
	return nil
}

func (r *teamRepo) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	d, release := r.src.acquire()
	defer release()

	t, ok := d.teams[id]
	if !ok {
		return nil, notFound("team", id)
	}
	return &t, nil
}

func (r *teamRepo) GetByName(ctx context.Context, name string) (*domain.Team, error) {
	d, release := r.src.acquire()
	defer release()

	for _, t := range d.teams {
		if t.Name == name {
			return &t, nil
		}
	}
	return nil, notFound("team", name)
}

func (r *teamRepo) List(ctx context.Context) ([]*domain.Team, error) {
	d, release := r.src.acquire()
	defer release()

	var out []*domain.Team
	for _, t := range d.teams {
		if t.Active {
			out = append(out, &t)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Team) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// ── users ─────────────────────────────────────────────────────────────────────

type userRepo struct {
	src source
}

func (r *userRepo) Create(ctx context.Context, u *domain.User) error {
	d, release := r.src.acquire()
	defer release()

	for _, existing := range d.users {
		if existing.Username == u.Username {
			return duplicate("user " + u.Username)
		}
	}
	d.users[u.ID] = *u
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	d, release := r.src.acquire()
	defer release()

	u, ok := d.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	d, release := r.src.acquire()
	defer release()

	for _, u := range d.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, notFound("user", username)
}

func (r *userRepo) List(ctx context.Context) ([]*domain.User, error) {
	d, release := r.src.acquire()
	defer release()

	var out []*domain.User
	for _, u := range d.users {
		if u.Active {
			out = append(out, &u)
		}
	}
	slices.SortFunc(out, func(a, b *domain.User) int { return strings.Compare(a.Username, b.Username) })
	return out, nil
}

// ── access scopes ─────────────────────────────────────────────────────────────

type scopeRepo struct {
	src source
}

func (r *scopeRepo) Create(ctx context.Context, s *domain.AccessScope) error {
	d, release := r.src.acquire()
	defer release()

	for _, existing := range d.scopes {
		if existing.UserID == s.UserID && existing.TeamID == s.TeamID && existing.RoleID == s.RoleID {
			return duplicate("scope user=" + s.UserID + " team=" + s.TeamID)
		}
	}
	d.scopes[s.ID] = copyScope(*s)
	return nil
}

func (r *scopeRepo) RolesOf(ctx context.Context, userID, teamID string) ([]domain.Role, error) {
	d, release := r.src.acquire()
	defer release()

	if u, ok := d.users[userID]; !ok || !u.Active {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var out []domain.Role
	for _, s := range d.scopes {
		if s.UserID != userID || s.TeamID != teamID || !s.Active {
			continue
		}
		role, ok := d.lookups[s.RoleID]
		if !ok || !role.Active {
			continue
		}
		if _, dup := seen[role.ID]; dup {
			continue
		}
		seen[role.ID] = struct{}{}
		out = append(out, domain.Role{ID: role.ID, Code: role.Code})
	}
	slices.SortFunc(out, func(a, b domain.Role) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (r *scopeRepo) UserIDsWithRole(ctx context.Context, teamID, roleID string) ([]string, error) {
	d, release := r.src.acquire()
	defer release()

	seen := make(map[string]struct{})
	var out []string
	for _, s := range d.scopes {
		if s.TeamID != teamID || s.RoleID != roleID || !s.Active {
			continue
		}
		if u, ok := d.users[s.UserID]; !ok || !u.Active {
			continue
		}
		if _, dup := seen[s.UserID]; dup {
			continue
		}
		seen[s.UserID] = struct{}{}
		out = append(out, s.UserID)
	}
	slices.Sort(out)
	return out, nil
}

func (r *scopeRepo) ListByUser(ctx context.Context, userID string) ([]*domain.AccessScope, error) {
	d, release := r.src.acquire()
	defer release()

	var out []*domain.AccessScope
	for _, s := range d.scopes {
		if s.UserID != userID || !s.Active {
			continue
		}
		s := copyScope(s)
		if role, ok := d.lookups[s.RoleID]; ok {
			s.RoleCode = role.Code
		}
		out = append(out, &s)
	}
	slices.SortFunc(out, func(a, b *domain.AccessScope) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}
