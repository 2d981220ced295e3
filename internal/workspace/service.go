package workspace

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsledger/backend/internal/models"
)

// MembershipStore lists a user's membership rows across all organizations.
type MembershipStore interface {
	ListMembershipsForUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error)
}

// ProfileStore reads and repairs the user's profile (the stored organization pointer).
type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateActiveOrganization(ctx context.Context, userID uuid.UUID, orgID *uuid.UUID) error
}

// Provisioner creates a first organization for a brand-new user. Optional
// collaborator; the resolver itself never provisions.
type Provisioner interface {
	ProvisionFirstOrganization(ctx context.Context, user *models.User) (*models.Organization, error)
}

// Service orchestrates workspace resolution: it gathers the per-request inputs,
// runs the pure resolver, executes profile repair instructions, and hands
// cookie repairs back to the HTTP layer.
type Service struct {
	members     MembershipStore
	profiles    ProfileStore
	provisioner Provisioner
	logger      *zap.Logger
}

// NewService creates a workspace resolution service.
func NewService(members MembershipStore, profiles ProfileStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{members: members, profiles: profiles, logger: logger}
}

// SetProvisioner wires the first-organization auto-provisioning collaborator.
func (s *Service) SetProvisioner(p Provisioner) { s.provisioner = p }

// Resolve computes the active organization for the user. Profile repairs are
// applied before returning; the returned Resolved.Repairs holds only cookie
// repairs, which the HTTP layer must apply via Set-Cookie.
//
// Returns ErrUnauthenticated when no user row exists for the id.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID, cookieOrgID *uuid.UUID) (Resolved, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return Resolved{}, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return Resolved{}, ErrUnauthenticated
	}

	memberships, err := s.members.ListMembershipsForUser(ctx, userID)
	if err != nil {
		return Resolved{}, fmt.Errorf("load memberships: %w", err)
	}

	identity := &Identity{UserID: profile.ID, Email: profile.Email, Superadmin: profile.IsSuperadmin()}
	res := Resolve(identity, memberships, profile, cookieOrgID)

	// Brand-new user with no memberships at all: hand off to the provisioning
	// collaborator, then resolve again against the fresh membership row.
	if res.ActiveOrgID == nil && !identity.Superadmin && len(memberships) == 0 && s.provisioner != nil {
		org, perr := s.provisioner.ProvisionFirstOrganization(ctx, profile)
		if perr != nil {
			return Resolved{}, fmt.Errorf("auto-provision organization: %w", perr)
		}
		s.logger.Info("auto-provisioned first organization",
			zap.String("user_id", userID.String()),
			zap.String("org_id", org.ID.String()))
		memberships, err = s.members.ListMembershipsForUser(ctx, userID)
		if err != nil {
			return Resolved{}, fmt.Errorf("reload memberships: %w", err)
		}
		res = Resolve(identity, memberships, profile, cookieOrgID)
		res.IsAutoProvisioned = true
	}

	if res.CookieStale {
		// Expected occurrence (cross-subdomain hop, revoked membership), not
		// an attack signal by itself. Logged and downgraded, never fatal.
		s.logger.Warn("scope violation: cookie names organization without active membership",
			zap.String("user_id", userID.String()),
			zap.String("cookie_org_id", cookieOrgID.String()),
			zap.String("scope_status", string(res.ScopeStatus)))
	}

	cookieRepairs := res.Repairs[:0:0]
	for _, r := range res.Repairs {
		switch r.Target {
		case RepairProfile:
			orgID := r.OrgID
			if err := s.profiles.UpdateActiveOrganization(ctx, userID, &orgID); err != nil {
				return Resolved{}, fmt.Errorf("repair profile organization: %w", err)
			}
			s.logger.Info("repaired stale profile organization pointer",
				zap.String("user_id", userID.String()),
				zap.String("org_id", orgID.String()))
		case RepairCookie:
			cookieRepairs = append(cookieRepairs, r)
		}
	}
	res.Repairs = cookieRepairs
	return res, nil
}

// CanOperate reports whether the user may act as the given organization:
// superadmins always, everyone else only with an active membership.
func (s *Service) CanOperate(ctx context.Context, userID, orgID uuid.UUID) (bool, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return false, ErrUnauthenticated
	}
	if profile.IsSuperadmin() {
		return true, nil
	}
	memberships, err := s.members.ListMembershipsForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load memberships: %w", err)
	}
	for _, m := range memberships {
		if m.OrganizationID == orgID && m.Status == models.MembershipActive {
			return true, nil
		}
	}
	return false, nil
}

// Switch records an explicit, audited context switch: the profile pointer is
// updated so the selection survives cookie loss. Cookie writing is the HTTP
// layer's job.
func (s *Service) Switch(ctx context.Context, userID, orgID uuid.UUID) error {
	ok, err := s.CanOperate(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrScopeMismatch
	}
	if err := s.profiles.UpdateActiveOrganization(ctx, userID, &orgID); err != nil {
		return fmt.Errorf("update profile organization: %w", err)
	}
	s.logger.Info("workspace switched",
		zap.String("user_id", userID.String()),
		zap.String("org_id", orgID.String()))
	return nil
}
