package workspace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsledger/backend/internal/middleware"
	"github.com/opsledger/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authAs(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Next()
	}
}

func TestRequireScopeRejectsWithoutOrganization(t *testing.T) {
	userID := uuid.New()
	svc, _, _ := newTestService(
		map[uuid.UUID]*models.User{userID: {ID: userID, Role: models.GlobalRoleUser}},
		map[uuid.UUID][]models.Membership{},
	)

	router := gin.New()
	router.GET("/clients", authAs(userID), RequireScope(svc), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clients", nil))

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Scope") {
		t.Fatalf("body %q does not name the scope failure", w.Body.String())
	}
}

func TestRequireScopePassesAndRepairsCookie(t *testing.T) {
	userID := uuid.New()
	svc, _, _ := newTestService(
		map[uuid.UUID]*models.User{userID: {ID: userID, Role: models.GlobalRoleUser, ActiveOrganizationID: &orgA}},
		map[uuid.UUID][]models.Membership{userID: {member(orgA, models.MembershipActive)}},
	)

	var seenOrg uuid.UUID
	router := gin.New()
	router.GET("/clients", authAs(userID), RequireScope(svc), func(c *gin.Context) {
		seenOrg = ActiveOrgID(c)
		c.Status(http.StatusOK)
	})

	// No cookie on the request: the middleware must set one while serving.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clients", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if seenOrg != orgA {
		t.Fatalf("handler saw org %s, want %s", seenOrg, orgA)
	}
	setCookie := strings.Join(w.Header().Values("Set-Cookie"), "; ")
	if !strings.Contains(setCookie, CookieName+"="+orgA.String()) {
		t.Fatalf("missing self-healing cookie, got %q", setCookie)
	}
}

func TestRequireScopeIgnoresGarbageCookie(t *testing.T) {
	userID := uuid.New()
	svc, _, _ := newTestService(
		map[uuid.UUID]*models.User{userID: {ID: userID, Role: models.GlobalRoleUser, ActiveOrganizationID: &orgA}},
		map[uuid.UUID][]models.Membership{userID: {member(orgA, models.MembershipActive)}},
	)

	router := gin.New()
	router.GET("/clients", authAs(userID), RequireScope(svc), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-uuid"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("garbage cookie failed the request: %d %s", w.Code, w.Body.String())
	}
}

func TestOrganizationGateFallback(t *testing.T) {
	userID := uuid.New()
	svc, _, _ := newTestService(
		map[uuid.UUID]*models.User{userID: {ID: userID, Role: models.GlobalRoleUser}},
		map[uuid.UUID][]models.Membership{},
	)

	router := gin.New()
	router.GET("/dashboard", authAs(userID), OrganizationGate(svc), func(c *gin.Context) {
		c.String(http.StatusOK, "dashboard content")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("gate must answer 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "needs_organization") || strings.Contains(body, "dashboard content") {
		t.Fatalf("gate served wrapped content instead of fallback: %q", body)
	}
}

func TestGuardSameOrg(t *testing.T) {
	g := NewGuard(zap.NewNop())

	run := func(resourceOrg uuid.UUID) (*httptest.ResponseRecorder, bool) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/clients/1", nil)
		c.Set(ContextOrgID, orgA)
		ok := g.SameOrg(c, resourceOrg)
		return w, ok
	}

	if _, ok := run(orgA); !ok {
		t.Fatal("same-org resource rejected")
	}
	w, ok := run(orgB)
	if ok {
		t.Fatal("cross-org resource allowed")
	}
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Scope mismatch") {
		t.Fatalf("body %q does not name the mismatch", w.Body.String())
	}
}
