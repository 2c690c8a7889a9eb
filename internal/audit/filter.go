package audit

import "time"

// Filter narrows the audit trail. Zero values mean "no constraint"; all set
// fields are AND-combined and date bounds are inclusive.
type Filter struct {
	EventType    EventType
	ActorType    ActorType
	ActorID      string
	TargetType   string
	TargetID     string
	Severity     Severity
	Status       Status
	StartDate    *time.Time
	EndDate      *time.Time
	RiskScoreMin *int
	RiskScoreMax *int
	CountryCode  string

	// Limit <= 0 returns everything from Offset on.
	Limit  int
	Offset int
}

// Matches reports whether e satisfies every constraint of f. Paging is ignored.
func (f Filter) Matches(e Event) bool {
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.ActorType != "" && e.ActorType != f.ActorType {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.TargetType != "" && e.TargetType != f.TargetType {
		return false
	}
	if f.TargetID != "" && e.TargetID != f.TargetID {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.StartDate != nil && e.OccurredAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && e.OccurredAt.After(*f.EndDate) {
		return false
	}
	if f.RiskScoreMin != nil && e.Risk() < *f.RiskScoreMin {
		return false
	}
	if f.RiskScoreMax != nil && e.Risk() > *f.RiskScoreMax {
		return false
	}
	if f.CountryCode != "" && e.CountryCode != f.CountryCode {
		return false
	}
	return true
}

// page applies Offset/Limit to an already ordered slice.
func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
