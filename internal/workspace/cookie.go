package workspace

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CookieName is the context cookie carrying the selected organization id.
	// Deliberately not httpOnly: client-side view logic reads it.
	CookieName = "app-org-id"

	// SwitchCookieMaxAge applies to explicit user-initiated switches.
	SwitchCookieMaxAge = 7 * 24 * time.Hour
	// BridgeCookieMaxAge applies to temporary superadmin bridge contexts.
	BridgeCookieMaxAge = 24 * time.Hour
)

// CookieOrgID reads the context cookie. Absent or unparseable values are both
// treated as "no cookie"; a garbage cookie never fails the request.
func CookieOrgID(c *gin.Context) *uuid.UUID {
	raw, err := c.Cookie(CookieName)
	if err != nil || raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

// SetOrgCookie writes the context cookie (SameSite=Lax, path /).
func SetOrgCookie(c *gin.Context, orgID uuid.UUID, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, orgID.String(), int(maxAge.Seconds()), "/", "", false, false)
}

// ClearOrgCookie removes the context cookie.
func ClearOrgCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", false, false)
}

// ApplyCookieRepairs executes cookie-target repair instructions emitted by the
// resolver. Profile repairs are handled by the service; anything else is skipped.
func ApplyCookieRepairs(c *gin.Context, repairs []Repair) {
	for _, r := range repairs {
		if r.Target == RepairCookie {
			SetOrgCookie(c, r.OrgID, SwitchCookieMaxAge)
		}
	}
}
