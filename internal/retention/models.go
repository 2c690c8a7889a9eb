package retention

import (
	"time"

	"casino-platform/internal/audit"
)

// Policy says how long events of one type are kept. There is at most one
// policy per event type.
type Policy struct {
	ID                  string          `json:"id"`
	EventType           audit.EventType `json:"event_type"`
	RetentionDays       int             `json:"retention_days"`
	AutoDelete          bool            `json:"auto_delete"`
	ArchiveBeforeDelete bool            `json:"archive_before_delete"`
	IsEnabled           bool            `json:"is_enabled"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// sweepable reports whether the global expiry sweep may delete this type's
// events. Archiving policies go through the scheduled policy pass instead.
func (p Policy) sweepable() bool {
	return p.IsEnabled && p.AutoDelete && !p.ArchiveBeforeDelete
}

// PolicyInput is the admin-editable part of a policy.
type PolicyInput struct {
	EventType           string `json:"event_type" validate:"required,audit_event_type"`
	RetentionDays       int    `json:"retention_days" validate:"min=1,max=36500"`
	AutoDelete          bool   `json:"auto_delete"`
	ArchiveBeforeDelete bool   `json:"archive_before_delete"`
}

type ComplianceRequirement struct {
	Description         string   `json:"description"`
	RetentionPeriodDays int      `json:"retention_period_days"`
	Requirements        []string `json:"requirements"`
}

// ComplianceResult only says whether any event exists inside the regime's
// window. It does not check coverage or continuity.
type ComplianceResult struct {
	Compliant    bool                  `json:"compliant"`
	RecordsFound int64                 `json:"records_found"`
	Requirement  ComplianceRequirement `json:"requirement"`
	WindowStart  time.Time             `json:"window_start"`
}

type CleanupResult struct {
	Deleted   string          `json:"deleted"`
	EventType audit.EventType `json:"event_type,omitempty"`
	Count     int64           `json:"count"`
	Archived  int64           `json:"archived"`
	Cutoff    time.Time       `json:"cutoff"`
}

// ArchiveKey identifies the slice of events an archive run covers:
// every event of EventType with occurred_at < Cutoff.
type ArchiveKey struct {
	EventType audit.EventType
	Cutoff    time.Time
}
