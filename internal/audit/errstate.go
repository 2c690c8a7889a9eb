package audit

import (
	"sync"
	"time"
)

// ErrorRecord is the last failure seen by a fail-soft component.
type ErrorRecord struct {
	Source  string    `json:"source"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// ErrorState keeps the most recent failure for the admin error banner.
// A nil *ErrorState is valid and records nothing.
type ErrorState struct {
	mu   sync.RWMutex
	last *ErrorRecord
}

func NewErrorState() *ErrorState { return &ErrorState{} }

func (s *ErrorState) Record(source string, err error) {
	if s == nil || err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &ErrorRecord{Source: source, Message: err.Error(), At: time.Now().UTC()}
}

func (s *ErrorState) Last() (ErrorRecord, bool) {
	if s == nil {
		return ErrorRecord{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return ErrorRecord{}, false
	}
	return *s.last, true
}

func (s *ErrorState) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = nil
}
