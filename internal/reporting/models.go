package reporting

import "time"

type ReportType string

const (
	TypeSecuritySummary       ReportType = "security_summary"
	TypeComplianceAudit       ReportType = "compliance_audit"
	TypeUserActivity          ReportType = "user_activity"
	TypeFinancialTransactions ReportType = "financial_transactions"
	TypeRiskAssessment        ReportType = "risk_assessment"
)

func (t ReportType) Valid() bool {
	switch t {
	case TypeSecuritySummary, TypeComplianceAudit, TypeUserActivity, TypeFinancialTransactions, TypeRiskAssessment:
		return true
	}
	return false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// transitions lists the allowed next states. Completed and failed are terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusGenerating, StatusFailed},
	StatusGenerating: {StatusCompleted, StatusFailed},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusGenerating, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s Status) CanMoveTo(next Status) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Report is a request for an audit report. File production happens outside
// this service; it only tracks the lifecycle and where the result ended up.
type Report struct {
	ID          string         `json:"id"`
	ReportName  string         `json:"report_name"`
	ReportType  ReportType     `json:"report_type"`
	Parameters  map[string]any `json:"parameters"`
	Status      Status         `json:"status"`
	FileURL     string         `json:"file_url,omitempty"`
	Error       string         `json:"error,omitempty"`
	GeneratedAt *time.Time     `json:"generated_at,omitempty"`
	RequestedBy string         `json:"requested_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type CreateRequest struct {
	ReportName string         `json:"report_name" validate:"required,max=200"`
	ReportType string         `json:"report_type" validate:"required,oneof=security_summary compliance_audit user_activity financial_transactions risk_assessment"`
	Parameters map[string]any `json:"parameters"`
}

type ListFilter struct {
	Status      Status
	ReportType  ReportType
	RequestedBy string
	Limit       int
	Offset      int
}

func (f ListFilter) matches(r Report) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.ReportType != "" && r.ReportType != f.ReportType {
		return false
	}
	if f.RequestedBy != "" && r.RequestedBy != f.RequestedBy {
		return false
	}
	return true
}
