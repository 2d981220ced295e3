package workspace

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsledger/backend/internal/models"
)

type fakeMembers struct {
	rows  map[uuid.UUID][]models.Membership
	calls int
}

func (f *fakeMembers) ListMembershipsForUser(_ context.Context, userID uuid.UUID) ([]models.Membership, error) {
	f.calls++
	return f.rows[userID], nil
}

type fakeProfiles struct {
	users   map[uuid.UUID]*models.User
	updates []uuid.UUID // org ids written, in order
}

func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeProfiles) UpdateActiveOrganization(_ context.Context, userID uuid.UUID, orgID *uuid.UUID) error {
	u, ok := f.users[userID]
	if !ok {
		return errors.New("no such user")
	}
	u.ActiveOrganizationID = orgID
	if orgID != nil {
		f.updates = append(f.updates, *orgID)
	}
	return nil
}

type fakeProvisioner struct {
	members *fakeMembers
	orgID   uuid.UUID
	calls   int
}

func (f *fakeProvisioner) ProvisionFirstOrganization(_ context.Context, user *models.User) (*models.Organization, error) {
	f.calls++
	f.members.rows[user.ID] = []models.Membership{{
		ID:             uuid.New(),
		OrganizationID: f.orgID,
		UserID:         user.ID,
		Role:           string(RoleOwner),
		Status:         models.MembershipActive,
	}}
	return &models.Organization{ID: f.orgID, Name: "Personal", Slug: "personal"}, nil
}

func newTestService(users map[uuid.UUID]*models.User, rows map[uuid.UUID][]models.Membership) (*Service, *fakeMembers, *fakeProfiles) {
	members := &fakeMembers{rows: rows}
	profiles := &fakeProfiles{users: users}
	return NewService(members, profiles, zap.NewNop()), members, profiles
}

func TestServiceResolveUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(map[uuid.UUID]*models.User{}, map[uuid.UUID][]models.Membership{})
	_, err := svc.Resolve(context.Background(), uuid.New(), nil)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestServiceResolveRepairsProfile(t *testing.T) {
	userID := uuid.New()
	users := map[uuid.UUID]*models.User{
		userID: {ID: userID, Email: "pat@example.com", Role: models.GlobalRoleUser, ActiveOrganizationID: &orgB},
	}
	rows := map[uuid.UUID][]models.Membership{
		userID: {member(orgA, models.MembershipActive)},
	}
	svc, _, profiles := newTestService(users, rows)

	res, err := svc.Resolve(context.Background(), userID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.ActiveOrgID == nil || *res.ActiveOrgID != orgA {
		t.Fatalf("active org = %v, want %s", res.ActiveOrgID, orgA)
	}
	if len(profiles.updates) != 1 || profiles.updates[0] != orgA {
		t.Fatalf("profile updates = %v, want exactly one write of %s", profiles.updates, orgA)
	}
	// Only cookie repairs go back to the HTTP layer.
	for _, r := range res.Repairs {
		if r.Target != RepairCookie {
			t.Fatalf("non-cookie repair leaked to caller: %+v", r)
		}
	}

	// A second resolution reads the repaired pointer and writes nothing.
	if _, err := svc.Resolve(context.Background(), userID, &orgA); err != nil {
		t.Fatal(err)
	}
	if len(profiles.updates) != 1 {
		t.Fatalf("profile written again after repair: %v", profiles.updates)
	}
}

func TestServiceResolveAutoProvisions(t *testing.T) {
	userID := uuid.New()
	users := map[uuid.UUID]*models.User{
		userID: {ID: userID, Email: "new@example.com", Role: models.GlobalRoleUser},
	}
	svc, members, _ := newTestService(users, map[uuid.UUID][]models.Membership{})
	prov := &fakeProvisioner{members: members, orgID: orgC}
	svc.SetProvisioner(prov)

	res, err := svc.Resolve(context.Background(), userID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if prov.calls != 1 {
		t.Fatalf("provisioner calls = %d, want 1", prov.calls)
	}
	if !res.IsAutoProvisioned {
		t.Fatal("IsAutoProvisioned not set")
	}
	if res.ActiveOrgID == nil || *res.ActiveOrgID != orgC {
		t.Fatalf("active org = %v, want provisioned %s", res.ActiveOrgID, orgC)
	}

	// Resolving again must not provision a second organization.
	if _, err := svc.Resolve(context.Background(), userID, nil); err != nil {
		t.Fatal(err)
	}
	if prov.calls != 1 {
		t.Fatalf("provisioner called again: %d", prov.calls)
	}
}

func TestServiceResolveSuperadminSkipsProvisioning(t *testing.T) {
	userID := uuid.New()
	users := map[uuid.UUID]*models.User{
		userID: {ID: userID, Email: "root@example.com", Role: models.GlobalRoleSuperadmin},
	}
	svc, members, _ := newTestService(users, map[uuid.UUID][]models.Membership{})
	prov := &fakeProvisioner{members: members, orgID: orgC}
	svc.SetProvisioner(prov)

	res, err := svc.Resolve(context.Background(), userID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if prov.calls != 0 {
		t.Fatal("superadmin must not be auto-provisioned")
	}
	if res.RecommendedRoute != RouteAdmin {
		t.Fatalf("route = %q, want admin", res.RecommendedRoute)
	}
}

func TestServiceCanOperate(t *testing.T) {
	memberID, adminID := uuid.New(), uuid.New()
	users := map[uuid.UUID]*models.User{
		memberID: {ID: memberID, Role: models.GlobalRoleUser},
		adminID:  {ID: adminID, Role: models.GlobalRoleSuperadmin},
	}
	rows := map[uuid.UUID][]models.Membership{
		memberID: {member(orgA, models.MembershipActive), member(orgB, models.MembershipRevoked)},
	}
	svc, _, _ := newTestService(users, rows)
	ctx := context.Background()

	tests := []struct {
		name   string
		userID uuid.UUID
		orgID  uuid.UUID
		want   bool
	}{
		{"active membership", memberID, orgA, true},
		{"revoked membership", memberID, orgB, false},
		{"no membership", memberID, orgC, false},
		{"superadmin anywhere", adminID, orgC, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.CanOperate(ctx, tt.userID, tt.orgID)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("CanOperate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServiceSwitch(t *testing.T) {
	userID := uuid.New()
	users := map[uuid.UUID]*models.User{
		userID: {ID: userID, Role: models.GlobalRoleUser},
	}
	rows := map[uuid.UUID][]models.Membership{
		userID: {member(orgA, models.MembershipActive), member(orgB, models.MembershipActive)},
	}
	svc, _, profiles := newTestService(users, rows)
	ctx := context.Background()

	if err := svc.Switch(ctx, userID, orgB); err != nil {
		t.Fatal(err)
	}
	if got := users[userID].ActiveOrganizationID; got == nil || *got != orgB {
		t.Fatalf("profile pointer = %v, want %s", got, orgB)
	}

	err := svc.Switch(ctx, userID, orgC)
	if !errors.Is(err, ErrScopeMismatch) {
		t.Fatalf("err = %v, want ErrScopeMismatch", err)
	}
	if len(profiles.updates) != 1 {
		t.Fatalf("denied switch still wrote profile: %v", profiles.updates)
	}
}
