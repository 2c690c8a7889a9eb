package clientinfo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"casino-platform/pkg/logger"
)

type memCache struct {
	mu   sync.Mutex
	vals map[string]string
}

func (m *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	if !ok {
		return false, nil
	}
	*(dst.(*string)) = v
	return true, nil
}

func (m *memCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = v.(string)
	return nil
}

func lookupServer(t *testing.T, geoHits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ip":"203.0.113.7"}`))
	})
	mux.HandleFunc("/geo/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(geoHits, 1)
		if strings.TrimPrefix(r.URL.Path, "/geo/") != "203.0.113.7" {
			http.Error(w, "unexpected ip", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"country_code":"tr"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCollect_ResolvesViaLookups(t *testing.T) {
	var hits int32
	srv := lookupServer(t, &hits)
	c := NewCollector(Options{
		IPLookupURL:  srv.URL + "/ip",
		GeoLookupURL: srv.URL + "/geo",
		Cache:        &memCache{vals: map[string]string{}},
		Logger:       logger.Discard(),
	})

	env := Env{UserAgent: "Mozilla/5.0", Language: "tr-TR", Timezone: "Europe/Istanbul", SessionKey: "k1"}
	info := c.Collect(context.Background(), env)

	if info.IPAddress != "203.0.113.7" {
		t.Fatalf("expected looked-up ip, got %q", info.IPAddress)
	}
	if info.CountryCode != "TR" {
		t.Fatalf("expected TR, got %q", info.CountryCode)
	}
	if info.Timezone != "Europe/Istanbul" || info.UserAgent != "Mozilla/5.0" {
		t.Fatalf("unexpected env passthrough: %+v", info)
	}
	if info.DeviceFingerprint != Fingerprint(env) {
		t.Fatalf("fingerprint mismatch")
	}

	// Second call served from cache.
	_ = c.Collect(context.Background(), env)
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected one geo hit, got %d", hits)
	}
}

func TestCollect_PrefersRequestIP(t *testing.T) {
	var hits int32
	srv := lookupServer(t, &hits)
	c := NewCollector(Options{IPLookupURL: srv.URL + "/does-not-exist", GeoLookupURL: srv.URL + "/geo/{ip}", Logger: logger.Discard()})

	info := c.Collect(context.Background(), Env{ClientIP: "203.0.113.7"})
	if info.IPAddress != "203.0.113.7" || info.CountryCode != "TR" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestCollect_FailSoftOnErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCollector(Options{IPLookupURL: srv.URL, GeoLookupURL: srv.URL, Logger: logger.Discard()})
	info := c.Collect(context.Background(), Env{})

	if info.IPAddress != Unknown || info.CountryCode != Unknown {
		t.Fatalf("expected unknown on lookup failure, got %+v", info)
	}
	if info.UserAgent != Unknown || info.Timezone != Unknown {
		t.Fatalf("expected unknown for empty env fields, got %+v", info)
	}
	if !strings.HasPrefix(info.SessionID, "session_") {
		t.Fatalf("expected session id, got %q", info.SessionID)
	}
}

func TestCollect_TimeoutIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewCollector(Options{IPLookupURL: srv.URL, Timeout: 50 * time.Millisecond, Logger: logger.Discard()})
	start := time.Now()
	info := c.Collect(context.Background(), Env{})
	if info.IPAddress != Unknown {
		t.Fatalf("expected unknown, got %q", info.IPAddress)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("lookup did not respect timeout")
	}
}

func TestCollect_NoLookupsConfigured(t *testing.T) {
	c := NewCollector(Options{Logger: logger.Discard()})
	info := c.Collect(context.Background(), Env{ClientIP: "198.51.100.1"})
	if info.IPAddress != "198.51.100.1" || info.CountryCode != Unknown {
		t.Fatalf("unexpected info: %+v", info)
	}
}
