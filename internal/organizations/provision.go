package organizations

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/workspace"
)

// SubscriptionStarter opens a trial subscription for a freshly created
// organization. Implemented by the billing repository.
type SubscriptionStarter interface {
	StartTrial(ctx context.Context, orgID uuid.UUID, days int) error
}

// Provisioner creates a first organization for brand-new users. It implements
// workspace.Provisioner so the resolver's caller can hand off to it.
type Provisioner struct {
	repo      *Repository
	subs      SubscriptionStarter
	trialDays int
	logger    *zap.Logger
}

// NewProvisioner creates an auto-provisioning collaborator.
func NewProvisioner(repo *Repository, subs SubscriptionStarter, trialDays int, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{repo: repo, subs: subs, trialDays: trialDays, logger: logger}
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)

// ProvisionFirstOrganization creates a personal organization for the user,
// adds them as active owner, and starts a trial subscription.
func (p *Provisioner) ProvisionFirstOrganization(ctx context.Context, user *models.User) (*models.Organization, error) {
	name := strings.TrimSpace(user.FullName)
	if name == "" {
		name = user.Email
	}
	org := &models.Organization{
		Name: name,
		Slug: personalSlug(user.Email),
	}
	if err := p.repo.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	if err := p.repo.AddMember(ctx, org.ID, user.ID, string(workspace.RoleOwner), models.MembershipActive); err != nil {
		return nil, fmt.Errorf("add owner membership: %w", err)
	}
	if p.subs != nil {
		if err := p.subs.StartTrial(ctx, org.ID, p.trialDays); err != nil {
			return nil, fmt.Errorf("start trial: %w", err)
		}
	}
	p.logger.Info("provisioned personal organization",
		zap.String("user_id", user.ID.String()),
		zap.String("org_id", org.ID.String()),
		zap.String("slug", org.Slug))
	return org, nil
}

// personalSlug derives a unique slug from the email local part plus a short
// random suffix, so collisions across users with the same name are impossible.
func personalSlug(email string) string {
	local := email
	if i := strings.IndexByte(email, '@'); i >= 0 {
		local = email[:i]
	}
	local = nonSlugChars.ReplaceAllString(strings.ToLower(local), "-")
	local = strings.Trim(local, "-")
	if local == "" {
		local = "workspace"
	}
	if len(local) > 24 {
		local = local[:24]
	}
	return local + "-" + uuid.New().String()[:8]
}
