package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsledger/backend/internal/models"
)

func TestRestricted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name string
		sub  *models.Subscription
		want bool
	}{
		{"no subscription record", nil, true},
		{"active", &models.Subscription{Status: models.SubscriptionActive}, false},
		{"past due", &models.Subscription{Status: models.SubscriptionPastDue}, true},
		{"paused", &models.Subscription{Status: models.SubscriptionPaused}, true},
		{"canceled", &models.Subscription{Status: models.SubscriptionCanceled}, true},
		{"trialing within trial", &models.Subscription{Status: models.SubscriptionTrialing, TrialEndsAt: &future}, false},
		{"trialing expired", &models.Subscription{Status: models.SubscriptionTrialing, TrialEndsAt: &past}, true},
		{"trialing without deadline", &models.Subscription{Status: models.SubscriptionTrialing}, false},
		{"unknown provider status", &models.Subscription{Status: "grandfathered"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Restricted(tt.sub, now); got != tt.want {
				t.Fatalf("Restricted = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeSubs struct {
	subs map[uuid.UUID]*models.Subscription
}

func (f fakeSubs) GetByOrgID(_ context.Context, orgID uuid.UUID) (*models.Subscription, error) {
	return f.subs[orgID], nil
}

func TestGuardEnsureNotPaused(t *testing.T) {
	activeOrg, pausedOrg := uuid.New(), uuid.New()
	g := NewGuard(fakeSubs{subs: map[uuid.UUID]*models.Subscription{
		activeOrg: {OrganizationID: activeOrg, Status: models.SubscriptionActive},
		pausedOrg: {OrganizationID: pausedOrg, Status: models.SubscriptionPaused},
	}}, zap.NewNop())
	ctx := context.Background()

	if err := g.EnsureNotPaused(ctx, activeOrg); err != nil {
		t.Fatalf("active org blocked: %v", err)
	}
	if err := g.EnsureNotPaused(ctx, pausedOrg); !errors.Is(err, ErrReadOnlyMode) {
		t.Fatalf("err = %v, want ErrReadOnlyMode", err)
	}
	if err := g.EnsureNotPaused(ctx, uuid.New()); !errors.Is(err, ErrReadOnlyMode) {
		t.Fatalf("unprovisioned org must fail closed, got %v", err)
	}
}

func TestGuardEnsureActivePlan(t *testing.T) {
	trialOrg := uuid.New()
	future := time.Now().Add(24 * time.Hour)
	g := NewGuard(fakeSubs{subs: map[uuid.UUID]*models.Subscription{
		trialOrg: {OrganizationID: trialOrg, Status: models.SubscriptionTrialing, TrialEndsAt: &future},
	}}, zap.NewNop())

	// A healthy trial may write but is not a paid plan.
	if err := g.EnsureNotPaused(context.Background(), trialOrg); err != nil {
		t.Fatalf("trial org blocked from writing: %v", err)
	}
	if err := g.EnsureActivePlan(context.Background(), trialOrg); !errors.Is(err, ErrReadOnlyMode) {
		t.Fatalf("err = %v, want ErrReadOnlyMode for trial on paid-only operation", err)
	}
}
