package handlers

import (
	"net/http"
	"testing"

	"procureflow.io/procureflow/internal/domain"
)

func TestListLookupsFiltersByType(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(t, h.Requestor.ID, http.MethodGet, "/api/v1/lookups?type_code=COMPANY_ROLE", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var page struct {
		Items []*domain.Lookup `json:"items"`
	}
	decode(t, w, &page)
	if len(page.Items) != 4 {
		t.Fatalf("role lookups = %d, want 4", len(page.Items))
	}
	for _, l := range page.Items {
		if l.TypeCode != domain.LookupTypeCompanyRole {
			t.Fatalf("unexpected type %s", l.TypeCode)
		}
	}

	w = h.do(t, h.Requestor.ID, http.MethodGet, "/api/v1/lookups", nil)
	decode(t, w, &page)
	// 9 statuses + 2 purchase types + 4 roles.
	if len(page.Items) != 15 {
		t.Fatalf("all lookups = %d, want 15", len(page.Items))
	}
}

func TestCreateAndListTeams(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(t, h.Requestor.ID, http.MethodPost, "/api/v1/teams", CreateTeamRequest{Name: "Procurement"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var team domain.Team
	decode(t, w, &team)
	if team.Name != "Procurement" || !team.Active {
		t.Fatalf("team = %+v", team)
	}

	w = h.do(t, h.Requestor.ID, http.MethodPost, "/api/v1/teams", CreateTeamRequest{Name: "Procurement"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", w.Code)
	}

	w = h.do(t, h.Requestor.ID, http.MethodGet, "/api/v1/teams", nil)
	var page struct {
		Items []*domain.Team `json:"items"`
	}
	decode(t, w, &page)
	if len(page.Items) != 2 {
		t.Fatalf("teams = %d, want 2 (fixture + created)", len(page.Items))
	}
}

func TestCreateTeamRejectsBlankName(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(t, h.Requestor.ID, http.MethodPost, "/api/v1/teams", map[string]string{"name": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateUser(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(t, h.Requestor.ID, http.MethodPost, "/api/v1/users", CreateUserRequest{
		Username: "newhire",
		Email:    "newhire@example.com",
		FullName: "New Hire",
		Password: "initial-pw-123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var user domain.User
	decode(t, w, &user)
	if user.Username != "newhire" || !user.Active {
		t.Fatalf("user = %+v", user)
	}
	if w.Body.String() == "" || user.PasswordHash != "" {
		t.Fatal("password hash must not serialize")
	}

	// The created account can log in.
	w = h.do(t, "", http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Username: "newhire",
		Password: "initial-pw-123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(t, h.Requestor.ID, http.MethodPost, "/api/v1/users", CreateUserRequest{
		Username: h.Manager.Username,
		Email:    "other@example.com",
		FullName: "Other",
		Password: "pw",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestUpsertTeamMemberGrantsRoles(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	hire := h.MustUser(t, "hire")

	w := h.do(t, h.Requestor.ID, http.MethodPost, "/api/v1/teams/"+h.Team.ID+"/members", UpsertMemberRequest{
		UserID:    hire.ID,
		RoleCodes: []string{"MANAGER", "FINANCE"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var member TeamMember
	decode(t, w, &member)
	if member.User.ID != hire.ID {
		t.Fatalf("member user = %s", member.User.ID)
	}
	if len(member.Roles) != 2 {
		t.Fatalf("roles = %+v, want 2", member.Roles)
	}

	// Granting again is a no-op, not a duplicate error.
	w = h.do(t, h.Requestor.ID, http.MethodPost, "/api/v1/teams/"+h.Team.ID+"/members", UpsertMemberRequest{
		UserID:    hire.ID,
		RoleCodes: []string{"MANAGER"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("repeat status = %d, body %s", w.Code, w.Body.String())
	}
	decode(t, w, &member)
	if len(member.Roles) != 2 {
		t.Fatalf("roles after repeat = %+v, want still 2", member.Roles)
	}
}

func TestUpsertTeamMemberUnknownRole(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(t, h.Requestor.ID, http.MethodPost, "/api/v1/teams/"+h.Team.ID+"/members", UpsertMemberRequest{
		UserID:    h.Manager.ID,
		RoleCodes: []string{"WIZARD"},
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body %s", w.Code, w.Body.String())
	}
}

func TestListTeamMembers(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	w := h.do(t, h.Requestor.ID, http.MethodGet, "/api/v1/teams/"+h.Team.ID+"/members", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var page struct {
		Items []TeamMember `json:"items"`
	}
	decode(t, w, &page)
	// Fixture seeds four role holders.
	if len(page.Items) != 4 {
		t.Fatalf("members = %d, want 4", len(page.Items))
	}

	w = h.do(t, h.Requestor.ID, http.MethodGet, "/api/v1/teams/t-missing/members", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown team status = %d, want 404", w.Code)
	}
}
