package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"casino-platform/internal/clientinfo"
)

const sessionCookieMaxAge = 12 * 60 * 60

// ClientEnv attaches the caller's environment to the request context and
// makes sure the browser carries a session cookie for session correlation.
func ClientEnv(secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sid, err := c.Cookie(clientinfo.SessionCookie); err != nil || sid == "" {
			sid = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(clientinfo.SessionCookie, sid, sessionCookieMaxAge, "/", "", secureCookie, true)
			c.Request.AddCookie(&http.Cookie{Name: clientinfo.SessionCookie, Value: sid})
		}

		env := clientinfo.EnvFromRequest(c.Request, c.ClientIP())
		c.Request = c.Request.WithContext(clientinfo.WithEnv(c.Request.Context(), env))
		c.Next()
	}
}
