package clientinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"casino-platform/internal/metrics"
)

// Unknown is reported for any field a lookup could not resolve.
const Unknown = "unknown"

// Info is the best-effort actor context attached to every audit event.
type Info struct {
	IPAddress         string `json:"ip_address"`
	UserAgent         string `json:"user_agent"`
	DeviceFingerprint string `json:"device_fingerprint"`
	SessionID         string `json:"session_id"`
	Timezone          string `json:"timezone"`
	CountryCode       string `json:"country_code"`
}

// Cache stores lookup results between calls. utils.RedisCache satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

type Options struct {
	// IPLookupURL returns {"ip": "..."} for the caller. Empty disables the lookup.
	IPLookupURL string
	// GeoLookupURL returns {"country_code": "..."}; "{ip}" is substituted,
	// otherwise the IP is appended as a path segment. Empty disables the lookup.
	GeoLookupURL string

	Timeout  time.Duration
	CacheTTL time.Duration
	RPS      int

	HTTPClient *http.Client
	Cache      Cache
	Sessions   SessionStore
	Logger     *slog.Logger
}

// Collector derives client info for audit events. It never fails: every
// unresolvable field degrades to Unknown.
type Collector struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	ipCB    *gobreaker.CircuitBreaker[string]
	geoCB   *gobreaker.CircuitBreaker[string]
	log     *slog.Logger
}

func NewCollector(opts Options) *Collector {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.RPS <= 0 {
		opts.RPS = 5
	}
	if opts.Sessions == nil {
		opts.Sessions = NewMemorySessionStore()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Collector{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), opts.RPS),
		ipCB:    newBreaker("clientinfo-ip", log),
		geoCB:   newBreaker("clientinfo-geo", log),
		log:     log,
	}
}

func newBreaker(name string, log *slog.Logger) *gobreaker.CircuitBreaker[string] {
	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("lookup breaker state change", slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
}

// Collect resolves client info for env. It performs up to two outbound calls
// (IP, geolocation); callers on a latency-sensitive path should not wait on it.
func (c *Collector) Collect(ctx context.Context, env Env) Info {
	info := Info{
		UserAgent:         env.UserAgent,
		DeviceFingerprint: Fingerprint(env),
		Timezone:          env.Timezone,
	}
	if info.UserAgent == "" {
		info.UserAgent = Unknown
	}
	if info.Timezone == "" {
		info.Timezone = Unknown
	}

	sid, err := c.opts.Sessions.SessionID(ctx, env.SessionKey)
	if err != nil {
		c.log.Warn("session id lookup failed", slog.Any("err", err))
		sid = NewSessionID(time.Now())
	}
	info.SessionID = sid

	info.IPAddress = env.ClientIP
	if info.IPAddress == "" {
		info.IPAddress = c.lookupIP(ctx)
	}
	info.CountryCode = c.lookupCountry(ctx, info.IPAddress)
	return info
}

type ipResponse struct {
	IP string `json:"ip"`
}

type geoResponse struct {
	CountryCode    string `json:"country_code"`
	CountryCodeAlt string `json:"countryCode"`
}

func (c *Collector) lookupIP(ctx context.Context) string {
	if c.opts.IPLookupURL == "" {
		return Unknown
	}
	ip, err := c.ipCB.Execute(func() (string, error) {
		var out ipResponse
		if err := c.getJSON(ctx, c.opts.IPLookupURL, &out); err != nil {
			return "", err
		}
		if out.IP == "" {
			return "", errors.New("empty ip in response")
		}
		return out.IP, nil
	})
	if err != nil {
		metrics.ClientInfoLookupFailures.WithLabelValues("ip").Inc()
		c.log.Debug("ip lookup failed", slog.Any("err", err))
		return Unknown
	}
	return ip
}

func (c *Collector) lookupCountry(ctx context.Context, ip string) string {
	if c.opts.GeoLookupURL == "" || ip == "" || ip == Unknown {
		return Unknown
	}

	cacheKey := "geo:" + ip
	if c.opts.Cache != nil {
		var cached string
		if found, err := c.opts.Cache.GetJSON(ctx, cacheKey, &cached); err == nil && found && cached != "" {
			return cached
		}
	}

	code, err := c.geoCB.Execute(func() (string, error) {
		var out geoResponse
		if err := c.getJSON(ctx, geoURL(c.opts.GeoLookupURL, ip), &out); err != nil {
			return "", err
		}
		code := out.CountryCode
		if code == "" {
			code = out.CountryCodeAlt
		}
		if code == "" {
			return "", errors.New("empty country code in response")
		}
		return strings.ToUpper(code), nil
	})
	if err != nil {
		metrics.ClientInfoLookupFailures.WithLabelValues("geo").Inc()
		c.log.Debug("geo lookup failed", slog.String("ip", ip), slog.Any("err", err))
		return Unknown
	}

	if c.opts.Cache != nil {
		if err := c.opts.Cache.SetJSON(ctx, cacheKey, code, c.opts.CacheTTL); err != nil {
			c.log.Debug("geo cache write failed", slog.Any("err", err))
		}
	}
	return code
}

func geoURL(base, ip string) string {
	if strings.Contains(base, "{ip}") {
		return strings.ReplaceAll(base, "{ip}", ip)
	}
	return strings.TrimRight(base, "/") + "/" + ip
}

func (c *Collector) getJSON(ctx context.Context, url string, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("lookup %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(dst)
}
