package clientinfo

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// SessionCookie names the cookie that scopes a browser session.
const SessionCookie = "audit_sid"

// Headers the SPA sends with every call so the collector sees the same
// environment the browser would.
const (
	HeaderScreen          = "X-Client-Screen"
	HeaderTimezoneOffset  = "X-Client-Tz-Offset"
	HeaderTimezone        = "X-Client-Timezone"
	HeaderCanvasSignature = "X-Client-Canvas"
)

// Env is the caller environment the collector derives client info from.
type Env struct {
	ClientIP         string
	UserAgent        string
	Language         string
	ScreenResolution string
	// TimezoneOffset is minutes from UTC as reported by the browser.
	TimezoneOffset   int
	Timezone         string
	CanvasSignature  string
	SessionKey       string
}

// EnvFromRequest reads the environment from request headers and the session cookie.
// clientIP should be the already-resolved client address (e.g. gin's ClientIP()).
func EnvFromRequest(r *http.Request, clientIP string) Env {
	env := Env{
		ClientIP:         clientIP,
		UserAgent:        r.UserAgent(),
		Language:         primaryLanguage(r.Header.Get("Accept-Language")),
		ScreenResolution: strings.TrimSpace(r.Header.Get(HeaderScreen)),
		Timezone:         strings.TrimSpace(r.Header.Get(HeaderTimezone)),
		CanvasSignature:  strings.TrimSpace(r.Header.Get(HeaderCanvasSignature)),
	}
	if v := strings.TrimSpace(r.Header.Get(HeaderTimezoneOffset)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			env.TimezoneOffset = n
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		env.SessionKey = c.Value
	}
	return env
}

func primaryLanguage(acceptLanguage string) string {
	first, _, _ := strings.Cut(acceptLanguage, ",")
	first, _, _ = strings.Cut(first, ";")
	return strings.TrimSpace(first)
}

type envKey struct{}

func WithEnv(ctx context.Context, env Env) context.Context {
	return context.WithValue(ctx, envKey{}, env)
}

// EnvFrom returns the environment attached to ctx; ok=false for background work.
func EnvFrom(ctx context.Context) (Env, bool) {
	if ctx == nil {
		return Env{}, false
	}
	env, ok := ctx.Value(envKey{}).(Env)
	return env, ok
}
