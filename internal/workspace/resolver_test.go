package workspace

import (
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/opsledger/backend/internal/models"
)

var (
	orgA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	orgB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	orgC = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

func member(org uuid.UUID, status models.MembershipStatus) models.Membership {
	return models.Membership{ID: uuid.New(), OrganizationID: org, UserID: uuid.New(), Role: "member", Status: status}
}

func userWithOrg(org *uuid.UUID) *models.User {
	return &models.User{ID: uuid.New(), Email: "pat@example.com", Role: models.GlobalRoleUser, ActiveOrganizationID: org}
}

func TestResolveAnonymous(t *testing.T) {
	res := Resolve(nil, nil, nil, nil)
	if res.RecommendedRoute != RouteLogin {
		t.Fatalf("route = %q, want %q", res.RecommendedRoute, RouteLogin)
	}
	if res.ActiveOrgID != nil || res.ScopeStatus != ScopeNone {
		t.Fatalf("anonymous must not resolve an organization: %+v", res)
	}
}

func TestResolveSuperadminWithoutMemberships(t *testing.T) {
	admin := &Identity{UserID: uuid.New(), Superadmin: true}

	t.Run("cookie alone selects the organization", func(t *testing.T) {
		res := Resolve(admin, nil, nil, &orgB)
		if res.ActiveOrgID == nil || *res.ActiveOrgID != orgB {
			t.Fatalf("active org = %v, want %s", res.ActiveOrgID, orgB)
		}
		if res.ScopeStatus != ScopeValid {
			t.Fatalf("scope = %q, want valid", res.ScopeStatus)
		}
		if len(res.Repairs) != 0 {
			t.Fatalf("superadmin cookie trust must not emit repairs: %v", res.Repairs)
		}
	})

	t.Run("no cookie routes to admin", func(t *testing.T) {
		res := Resolve(admin, nil, nil, nil)
		if res.ActiveOrgID != nil {
			t.Fatalf("resolved %v without any signal", res.ActiveOrgID)
		}
		if res.RecommendedRoute != RouteAdmin {
			t.Fatalf("route = %q, want %q", res.RecommendedRoute, RouteAdmin)
		}
	})
}

func TestResolveNoActiveMemberships(t *testing.T) {
	id := &Identity{UserID: uuid.New()}

	t.Run("brand new user", func(t *testing.T) {
		res := Resolve(id, nil, userWithOrg(nil), nil)
		if res.ActiveOrgID != nil {
			t.Fatalf("resolved %v for a user with no organizations", res.ActiveOrgID)
		}
		if res.RecommendedRoute != RouteStart || res.ScopeStatus != ScopeNone {
			t.Fatalf("got route=%q scope=%q, want start/none", res.RecommendedRoute, res.ScopeStatus)
		}
	})

	t.Run("pending membership does not count", func(t *testing.T) {
		res := Resolve(id, []models.Membership{member(orgA, models.MembershipPending)}, userWithOrg(nil), nil)
		if res.ActiveOrgID != nil || res.OrganizationsCount != 0 {
			t.Fatalf("pending membership must not resolve: %+v", res)
		}
	})

	t.Run("stale cookie reports invalid", func(t *testing.T) {
		res := Resolve(id, nil, userWithOrg(nil), &orgA)
		if res.ScopeStatus != ScopeInvalid {
			t.Fatalf("scope = %q, want invalid", res.ScopeStatus)
		}
		if !res.CookieStale {
			t.Fatal("CookieStale not set for a cookie naming an org without membership")
		}
		if res.ActiveOrgID != nil {
			t.Fatalf("stale cookie must never resolve: %v", res.ActiveOrgID)
		}
	})
}

func TestResolveSingleMembership(t *testing.T) {
	id := &Identity{UserID: uuid.New()}
	ms := []models.Membership{member(orgA, models.MembershipActive)}

	t.Run("auto-selects the only organization", func(t *testing.T) {
		res := Resolve(id, ms, userWithOrg(&orgA), &orgA)
		if res.ActiveOrgID == nil || *res.ActiveOrgID != orgA {
			t.Fatalf("active org = %v, want %s", res.ActiveOrgID, orgA)
		}
		if res.ScopeStatus != ScopeValid || res.RecommendedRoute != RouteDashboard {
			t.Fatalf("got scope=%q route=%q", res.ScopeStatus, res.RecommendedRoute)
		}
		if len(res.Repairs) != 0 {
			t.Fatalf("aligned signals must not emit repairs: %v", res.Repairs)
		}
	})

	t.Run("missing cookie emits cookie repair", func(t *testing.T) {
		res := Resolve(id, ms, userWithOrg(&orgA), nil)
		want := []Repair{{Target: RepairCookie, OrgID: orgA}}
		if !reflect.DeepEqual(res.Repairs, want) {
			t.Fatalf("repairs = %v, want %v", res.Repairs, want)
		}
	})

	t.Run("divergent cookie and profile emit both repairs", func(t *testing.T) {
		res := Resolve(id, ms, userWithOrg(&orgB), &orgB)
		want := []Repair{{Target: RepairCookie, OrgID: orgA}, {Target: RepairProfile, OrgID: orgA}}
		if !reflect.DeepEqual(res.Repairs, want) {
			t.Fatalf("repairs = %v, want %v", res.Repairs, want)
		}
		if *res.ActiveOrgID != orgA {
			t.Fatalf("single membership must win over divergent signals, got %v", res.ActiveOrgID)
		}
	})

	t.Run("repairs converge after one application", func(t *testing.T) {
		first := Resolve(id, ms, userWithOrg(nil), nil)
		if len(first.Repairs) == 0 {
			t.Fatal("expected repairs on first resolution")
		}
		// Apply the instructions and resolve again: fixpoint, nothing left.
		second := Resolve(id, ms, userWithOrg(&orgA), &orgA)
		if len(second.Repairs) != 0 {
			t.Fatalf("second resolution still wants repairs: %v", second.Repairs)
		}
		if *first.ActiveOrgID != *second.ActiveOrgID {
			t.Fatal("resolution changed after repairs were applied")
		}
	})
}

func TestResolveMultipleMemberships(t *testing.T) {
	id := &Identity{UserID: uuid.New()}
	ms := []models.Membership{
		member(orgA, models.MembershipActive),
		member(orgB, models.MembershipActive),
		member(orgC, models.MembershipRevoked),
	}

	t.Run("cookie naming a member org wins", func(t *testing.T) {
		res := Resolve(id, ms, userWithOrg(&orgA), &orgB)
		if res.ActiveOrgID == nil || *res.ActiveOrgID != orgB {
			t.Fatalf("active org = %v, want cookie org %s", res.ActiveOrgID, orgB)
		}
		if res.OrganizationsCount != 2 {
			t.Fatalf("organizations count = %d, want 2 (revoked excluded)", res.OrganizationsCount)
		}
	})

	t.Run("stale cookie falls back to profile pointer", func(t *testing.T) {
		res := Resolve(id, ms, userWithOrg(&orgA), &orgC)
		if res.ActiveOrgID == nil || *res.ActiveOrgID != orgA {
			t.Fatalf("active org = %v, want profile org %s", res.ActiveOrgID, orgA)
		}
		if !res.CookieStale {
			t.Fatal("stale cookie not flagged")
		}
		want := []Repair{{Target: RepairCookie, OrgID: orgA}}
		if !reflect.DeepEqual(res.Repairs, want) {
			t.Fatalf("repairs = %v, want %v", res.Repairs, want)
		}
	})

	t.Run("no usable signal requires explicit selection", func(t *testing.T) {
		res := Resolve(id, ms, userWithOrg(nil), nil)
		if res.ActiveOrgID != nil {
			t.Fatalf("ambiguity must never be auto-resolved, got %v", res.ActiveOrgID)
		}
		if res.ScopeStatus != ScopeNone || res.RecommendedRoute != RouteSelectOrg {
			t.Fatalf("got scope=%q route=%q, want none/select-org", res.ScopeStatus, res.RecommendedRoute)
		}
	})

	t.Run("profile pointing at a foreign org does not resolve", func(t *testing.T) {
		res := Resolve(id, ms, userWithOrg(&orgC), nil)
		if res.ActiveOrgID != nil {
			t.Fatalf("revoked-org profile pointer resolved to %v", res.ActiveOrgID)
		}
	})
}

func TestResolveIsIdempotent(t *testing.T) {
	id := &Identity{UserID: uuid.New()}
	ms := []models.Membership{
		member(orgA, models.MembershipActive),
		member(orgB, models.MembershipActive),
	}
	profile := userWithOrg(&orgB)

	first := Resolve(id, ms, profile, &orgA)
	for i := 0; i < 5; i++ {
		again := Resolve(id, ms, profile, &orgA)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("resolution %d diverged: %+v vs %+v", i, first, again)
		}
	}
}
