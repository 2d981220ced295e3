package workspace

import (
	"github.com/google/uuid"

	"github.com/opsledger/backend/internal/models"
)

// ScopeStatus describes how the active organization was (or was not) resolved.
type ScopeStatus string

const (
	// ScopeValid means an active organization was resolved from a trusted signal.
	ScopeValid ScopeStatus = "valid"
	// ScopeInvalid means a cookie named an organization the user holds no
	// active membership in and no fallback signal resolved the scope.
	ScopeInvalid ScopeStatus = "invalid"
	// ScopeNone means no organization could be resolved: either the user has
	// none, or several and no signal disambiguates. Never auto-picked.
	ScopeNone ScopeStatus = "none"
)

// Route is the landing route the resolver recommends to callers.
type Route string

const (
	RouteLogin     Route = "login"
	RouteStart     Route = "start"
	RouteAdmin     Route = "admin"
	RouteDashboard Route = "dashboard"
	// RouteSelectOrg signals that the user holds several organizations and
	// must pick one explicitly. Ambiguity is never resolved by guessing.
	RouteSelectOrg Route = "select-org"
)

// RepairTarget names the stale pointer a Repair instruction corrects.
type RepairTarget string

const (
	RepairCookie  RepairTarget = "cookie"
	RepairProfile RepairTarget = "profile"
)

// Repair is a write instruction emitted by the resolver. The resolver never
// writes anything itself; the caller executes these.
type Repair struct {
	Target RepairTarget `json:"target"`
	OrgID  uuid.UUID    `json:"org_id"`
}

// Identity is the authenticated caller. A nil *Identity means anonymous.
type Identity struct {
	UserID     uuid.UUID
	Email      string
	Superadmin bool
}

// Resolved is the authoritative per-request workspace state. It is recomputed
// on every request and never cached across requests.
type Resolved struct {
	ActiveOrgID        *uuid.UUID  `json:"active_org_id"`
	OrganizationsCount int         `json:"organizations_count"`
	IsAutoProvisioned  bool        `json:"is_auto_provisioned"`
	IsSuperadmin       bool        `json:"is_superadmin"`
	RecommendedRoute   Route       `json:"recommended_route"`
	ScopeStatus        ScopeStatus `json:"scope_status"`
	Repairs            []Repair    `json:"repairs,omitempty"`

	// CookieStale is set when a non-nil cookie named an organization the
	// (non-superadmin) user holds no active membership in. The caller logs it
	// as a scope violation; it is never fatal.
	CookieStale bool `json:"-"`
}

// Resolve computes the active organization for a request from the four
// per-request signals. Pure: no I/O, no clock, idempotent for equal inputs.
//
// Priority order, first match wins:
//  1. anonymous -> login
//  2. superadmin with zero membership rows -> trust cookie alone, else admin
//  3. zero active memberships -> start (auto-provisioning is the caller's job)
//  4. one active membership -> that org, self-healing cookie and profile
//  5. several -> cookie if it matches one, else profile pointer, else
//     explicit selection required
func Resolve(identity *Identity, memberships []models.Membership, profile *models.User, cookieOrgID *uuid.UUID) Resolved {
	if identity == nil {
		return Resolved{RecommendedRoute: RouteLogin, ScopeStatus: ScopeNone}
	}

	res := Resolved{
		IsSuperadmin:     identity.Superadmin,
		RecommendedRoute: RouteDashboard,
	}

	if identity.Superadmin && len(memberships) == 0 {
		// Superadmins are not constrained by membership rows: a cookie alone
		// selects the organization they operate.
		if cookieOrgID != nil {
			org := *cookieOrgID
			res.ActiveOrgID = &org
			res.ScopeStatus = ScopeValid
			return res
		}
		res.RecommendedRoute = RouteAdmin
		res.ScopeStatus = ScopeNone
		return res
	}

	active := activeMemberships(memberships)
	res.OrganizationsCount = len(active)
	res.CookieStale = cookieOrgID != nil && !identity.Superadmin && !holdsActiveMembership(active, *cookieOrgID)

	switch len(active) {
	case 0:
		res.RecommendedRoute = RouteStart
		if res.CookieStale {
			res.ScopeStatus = ScopeInvalid
		} else {
			res.ScopeStatus = ScopeNone
		}
		return res

	case 1:
		// Single membership is authoritative regardless of cookie or profile:
		// auto-select and instruct the caller to repair whatever diverges.
		org := active[0].OrganizationID
		res.ActiveOrgID = &org
		res.ScopeStatus = ScopeValid
		if cookieOrgID == nil || *cookieOrgID != org {
			res.Repairs = append(res.Repairs, Repair{Target: RepairCookie, OrgID: org})
		}
		if profile == nil || profile.ActiveOrganizationID == nil || *profile.ActiveOrganizationID != org {
			res.Repairs = append(res.Repairs, Repair{Target: RepairProfile, OrgID: org})
		}
		return res
	}

	// Several active memberships: a stale cookie is discarded (not fatal) and
	// the profile pointer is the only fallback. Never pick among candidates.
	if cookieOrgID != nil && holdsActiveMembership(active, *cookieOrgID) {
		org := *cookieOrgID
		res.ActiveOrgID = &org
		res.ScopeStatus = ScopeValid
		return res
	}
	if profile != nil && profile.ActiveOrganizationID != nil && holdsActiveMembership(active, *profile.ActiveOrganizationID) {
		org := *profile.ActiveOrganizationID
		res.ActiveOrgID = &org
		res.ScopeStatus = ScopeValid
		if cookieOrgID == nil || *cookieOrgID != org {
			res.Repairs = append(res.Repairs, Repair{Target: RepairCookie, OrgID: org})
		}
		return res
	}
	res.ScopeStatus = ScopeNone
	res.RecommendedRoute = RouteSelectOrg
	return res
}

func activeMemberships(memberships []models.Membership) []models.Membership {
	var out []models.Membership
	for _, m := range memberships {
		if m.Status == models.MembershipActive {
			out = append(out, m)
		}
	}
	return out
}

func holdsActiveMembership(active []models.Membership, orgID uuid.UUID) bool {
	for _, m := range active {
		if m.OrganizationID == orgID {
			return true
		}
	}
	return false
}
