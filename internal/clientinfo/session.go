package clientinfo

import (
	"context"
	"crypto/rand"
	"strconv"
	"sync"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewSessionID returns "session_<unix-ms>_<9 base36 chars>".
func NewSessionID(now time.Time) string {
	b := make([]byte, 9)
	if _, err := rand.Read(b); err != nil {
		return "session_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + strconv.FormatInt(now.UnixNano()%1e9, 36)
	}
	for i := range b {
		b[i] = base36[int(b[i])%len(base36)]
	}
	return "session_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(b)
}

// SessionStore maps a browser session key to its audit session id.
// The id is created on first use and stays stable for the session's lifetime.
type SessionStore interface {
	SessionID(ctx context.Context, key string) (string, error)
}

// stringSetNX is satisfied by utils.RedisCache.
type stringSetNX interface {
	SetNXString(ctx context.Context, key, value string, ttl time.Duration) (string, error)
}

// RedisSessionStore keeps session ids in Redis with a TTL per session.
type RedisSessionStore struct {
	cache stringSetNX
	ttl   time.Duration
	clock func() time.Time
}

func NewRedisSessionStore(cache stringSetNX, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisSessionStore{cache: cache, ttl: ttl, clock: time.Now}
}

func (s *RedisSessionStore) SessionID(ctx context.Context, key string) (string, error) {
	if key == "" {
		return NewSessionID(s.clock()), nil
	}
	return s.cache.SetNXString(ctx, "session:"+key, NewSessionID(s.clock()), s.ttl)
}

// MemorySessionStore is an in-process SessionStore for tests and single-node dev.
type MemorySessionStore struct {
	mu  sync.Mutex
	ids map[string]string
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{ids: map[string]string{}}
}

func (s *MemorySessionStore) SessionID(_ context.Context, key string) (string, error) {
	if key == "" {
		return NewSessionID(time.Now()), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.ids[key]; ok {
		return id, nil
	}
	id := NewSessionID(time.Now())
	s.ids[key] = id
	return id, nil
}
