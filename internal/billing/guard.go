package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsledger/backend/internal/models"
)

// ErrReadOnlyMode means the organization's billing state blocks writes. The
// user recovers by changing plan; nothing is retried here.
var ErrReadOnlyMode = errors.New("organization is in read-only mode")

// MsgReadOnlyMode is the user-facing blocked-action message.
const MsgReadOnlyMode = "your organization is in read-only mode; update your billing plan to make changes"

// SubscriptionGetter loads an organization's subscription record.
type SubscriptionGetter interface {
	GetByOrgID(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error)
}

// Guard blocks write operations for organizations in a restricted billing
// state. Orthogonal to scope resolution: scope decides which organization,
// this guard decides whether it may currently write.
type Guard struct {
	subs   SubscriptionGetter
	now    func() time.Time
	logger *zap.Logger
}

// NewGuard creates a billing guard.
func NewGuard(subs SubscriptionGetter, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{subs: subs, now: time.Now, logger: logger}
}

// Restricted reports whether the subscription blocks writes. A missing record
// is restricted (fail-closed): only explicitly provisioned organizations write.
func Restricted(s *models.Subscription, now time.Time) bool {
	if s == nil {
		return true
	}
	switch s.Status {
	case models.SubscriptionPastDue, models.SubscriptionPaused, models.SubscriptionCanceled:
		return true
	case models.SubscriptionTrialing:
		return s.TrialEndsAt != nil && now.After(*s.TrialEndsAt)
	case models.SubscriptionActive:
		return false
	}
	// Unknown provider status: fail closed.
	return true
}

// EnsureNotPaused fails with ErrReadOnlyMode before any write proceeds when
// the organization is billing-restricted.
func (g *Guard) EnsureNotPaused(ctx context.Context, orgID uuid.UUID) error {
	sub, err := g.subs.GetByOrgID(ctx, orgID)
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}
	if Restricted(sub, g.now()) {
		status := "none"
		if sub != nil {
			status = string(sub.Status)
		}
		g.logger.Info("write blocked by billing state",
			zap.String("org_id", orgID.String()),
			zap.String("status", status))
		return ErrReadOnlyMode
	}
	return nil
}

// EnsureActivePlan is EnsureNotPaused plus a paid-plan requirement: trialing
// organizations are also rejected. Used by operations reserved for paid plans.
func (g *Guard) EnsureActivePlan(ctx context.Context, orgID uuid.UUID) error {
	sub, err := g.subs.GetByOrgID(ctx, orgID)
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil || sub.Status != models.SubscriptionActive {
		return ErrReadOnlyMode
	}
	return nil
}
