package audit

import "time"

// Event is one immutable audit record.
//
// Invariants:
// - Events are append-only; the only later transition is physical deletion
//   (optionally preceded by archival) driven by retention.
// - Severity and Status always resolve to a value; RiskScore is within [0,100].
// - ExpiresAt nil means the record is retained indefinitely.
type Event struct {
	ID            string `json:"id" db:"id"`
	EventID       string `json:"event_id" db:"event_id"`
	CorrelationID string `json:"correlation_id,omitempty" db:"correlation_id"`

	ActorType              ActorType `json:"actor_type" db:"actor_type"`
	ActorID                string    `json:"actor_id,omitempty" db:"actor_id"`
	ActorEmail             string    `json:"actor_email,omitempty" db:"actor_email"`
	ActorIPAddress         string    `json:"actor_ip_address,omitempty" db:"actor_ip_address"`
	ActorUserAgent         string    `json:"actor_user_agent,omitempty" db:"actor_user_agent"`
	ActorDeviceFingerprint string    `json:"actor_device_fingerprint,omitempty" db:"actor_device_fingerprint"`
	ActorSessionID         string    `json:"actor_session_id,omitempty" db:"actor_session_id"`

	// Subject of the event (optional).
	TargetType string `json:"target_type,omitempty" db:"target_type"`
	TargetID   string `json:"target_id,omitempty" db:"target_id"`
	TargetName string `json:"target_name,omitempty" db:"target_name"`

	EventType   EventType `json:"event_type" db:"event_type"`
	Action      string    `json:"action" db:"action"`
	Description string    `json:"description,omitempty" db:"description"`

	OldValues map[string]any `json:"old_values,omitempty" db:"old_values"`
	NewValues map[string]any `json:"new_values,omitempty" db:"new_values"`
	// Metadata always carries client_info and timestamp once logged.
	Metadata map[string]any `json:"metadata,omitempty" db:"metadata"`

	Severity        Severity `json:"severity" db:"severity"`
	Status          Status   `json:"status" db:"status"`
	RiskScore       *int     `json:"risk_score,omitempty" db:"risk_score"`
	ComplianceFlags []string `json:"compliance_flags" db:"compliance_flags"`
	SecurityFlags   []string `json:"security_flags" db:"security_flags"`

	CountryCode string     `json:"country_code,omitempty" db:"country_code"`
	Region      string     `json:"region,omitempty" db:"region"`
	City        string     `json:"city,omitempty" db:"city"`
	Timezone    string     `json:"timezone,omitempty" db:"timezone"`
	OccurredAt  time.Time  `json:"occurred_at" db:"occurred_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// Risk returns the risk score, treating an unset score as 0.
func (e Event) Risk() int {
	if e.RiskScore == nil {
		return 0
	}
	return *e.RiskScore
}

// Score is a convenience for building events with an explicit risk score.
func Score(n int) *int { return &n }

type ActorType string

const (
	ActorUser     ActorType = "user"
	ActorAdmin    ActorType = "admin"
	ActorSystem   ActorType = "system"
	ActorAPI      ActorType = "api"
	ActorBot      ActorType = "bot"
	ActorExternal ActorType = "external"
)

func (a ActorType) Valid() bool {
	switch a {
	case ActorUser, ActorAdmin, ActorSystem, ActorAPI, ActorBot, ActorExternal:
		return true
	}
	return false
}

type EventType string

const (
	EventUserLogin        EventType = "user_login"
	EventUserLogout       EventType = "user_logout"
	EventUserRegistration EventType = "user_registration"
	EventPasswordChange   EventType = "password_change"
	EventProfileUpdate    EventType = "profile_update"
	EventKYCVerification  EventType = "kyc_verification"
	EventDeposit          EventType = "deposit"
	EventWithdrawal       EventType = "withdrawal"
	EventBetPlaced        EventType = "bet_placed"
	EventGameSession      EventType = "game_session"
	EventBonusClaimed     EventType = "bonus_claimed"
	EventAdminAction      EventType = "admin_action"
	EventSecurityAlert    EventType = "security_alert"
	EventDataAccess       EventType = "data_access"
	EventDataExport       EventType = "data_export"
	EventSystemError      EventType = "system_error"
	EventAPICall          EventType = "api_call"
	EventReportGenerated  EventType = "report_generated"
	EventRetentionCleanup EventType = "retention_cleanup"
)

var eventTypes = map[EventType]struct{}{
	EventUserLogin: {}, EventUserLogout: {}, EventUserRegistration: {}, EventPasswordChange: {},
	EventProfileUpdate: {}, EventKYCVerification: {}, EventDeposit: {}, EventWithdrawal: {},
	EventBetPlaced: {}, EventGameSession: {}, EventBonusClaimed: {}, EventAdminAction: {},
	EventSecurityAlert: {}, EventDataAccess: {}, EventDataExport: {}, EventSystemError: {},
	EventAPICall: {}, EventReportGenerated: {}, EventRetentionCleanup: {},
}

func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// EventTypes lists the closed vocabulary.
func EventTypes() []EventType {
	out := make([]EventType, 0, len(eventTypes))
	for t := range eventTypes {
		out = append(out, t)
	}
	return out
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// HighRiskThreshold is the risk score from which an event counts as high risk in summaries.
const HighRiskThreshold = 70

// SummaryRow aggregates one event type over a time window.
type SummaryRow struct {
	EventType     EventType `json:"event_type"`
	TotalCount    int64     `json:"total_count"`
	UniqueActors  int64     `json:"unique_actors"`
	HighRiskCount int64     `json:"high_risk_count"`
	CriticalCount int64     `json:"critical_count"`
	AvgRiskScore  float64   `json:"avg_risk_score"`
}
