package audit

import (
	"context"
	"strconv"
	"strings"
)

// Risk thresholds for money movement, in major currency units.
const (
	LargeDepositThreshold    = 10_000
	LargeWithdrawalThreshold = 5_000
)

// The *Event constructors build the canonical shape of common events so
// they can go through either Logger.LogEvent or Batcher.EnqueueEvent.

func LoginEvent(method string) Event {
	return Event{
		EventType:   EventUserLogin,
		Action:      "LOGIN",
		Description: "User logged in",
		Severity:    SeverityLow,
		RiskScore:   Score(10),
		Metadata:    map[string]any{"method": method},
	}
}

func LogoutEvent() Event {
	return Event{
		EventType:   EventUserLogout,
		Action:      "LOGOUT",
		Description: "User logged out",
		Severity:    SeverityLow,
		RiskScore:   Score(0),
	}
}

// FailedLoginEvent records a rejected sign-in attempt for email.
func FailedLoginEvent(email, reason string) Event {
	return Event{
		EventType:     EventSecurityAlert,
		Action:        "LOGIN_FAILED",
		Description:   "Failed login attempt",
		ActorEmail:    email,
		Severity:      SeverityHigh,
		RiskScore:     Score(60),
		SecurityFlags: []string{"failed_login"},
		Metadata:      map[string]any{"reason": reason},
	}
}

func DepositEvent(amount float64, currency, method string) Event {
	risk := 30
	if amount > LargeDepositThreshold {
		risk = 70
	}
	return Event{
		EventType:       EventDeposit,
		Action:          "CREATE",
		Description:     "Deposit of " + formatAmount(amount, currency),
		TargetType:      "transaction",
		Severity:        SeverityMedium,
		RiskScore:       Score(risk),
		NewValues:       map[string]any{"amount": amount, "currency": strings.ToUpper(currency), "method": method},
		ComplianceFlags: []string{"financial_transaction"},
	}
}

// WithdrawalEvent is always high severity; only the risk score depends on the amount.
func WithdrawalEvent(amount float64, currency, method string) Event {
	risk := 50
	if amount > LargeWithdrawalThreshold {
		risk = 80
	}
	return Event{
		EventType:       EventWithdrawal,
		Action:          "CREATE",
		Description:     "Withdrawal of " + formatAmount(amount, currency),
		TargetType:      "transaction",
		Severity:        SeverityHigh,
		RiskScore:       Score(risk),
		NewValues:       map[string]any{"amount": amount, "currency": strings.ToUpper(currency), "method": method},
		ComplianceFlags: []string{"financial_transaction", "aml_check"},
	}
}

// AdminActionEvent records a back-office change to a target, with before/after values.
func AdminActionEvent(action, targetType, targetID string, oldValues, newValues map[string]any) Event {
	return Event{
		EventType:   EventAdminAction,
		Action:      action,
		Description: "Admin " + strings.ToLower(action) + " on " + targetType,
		ActorType:   ActorAdmin,
		TargetType:  targetType,
		TargetID:    targetID,
		OldValues:   oldValues,
		NewValues:   newValues,
		Severity:    SeverityMedium,
		RiskScore:   Score(40),
	}
}

// SecurityEvent is a generic security alert. Risk follows severity.
func SecurityEvent(description string, severity Severity, flags []string) Event {
	if severity == "" {
		severity = SeverityHigh
	}
	return Event{
		EventType:     EventSecurityAlert,
		Action:        "ALERT",
		Description:   description,
		Severity:      severity,
		RiskScore:     Score(severityRisk(severity)),
		SecurityFlags: flags,
	}
}

func (l *Logger) LogLogin(ctx context.Context, method string) (string, error) {
	return l.LogEvent(ctx, LoginEvent(method))
}

func (l *Logger) LogLogout(ctx context.Context) (string, error) {
	return l.LogEvent(ctx, LogoutEvent())
}

func (l *Logger) LogFailedLogin(ctx context.Context, email, reason string) (string, error) {
	return l.LogEvent(ctx, FailedLoginEvent(email, reason))
}

func (l *Logger) LogDeposit(ctx context.Context, amount float64, currency, method string) (string, error) {
	return l.LogEvent(ctx, DepositEvent(amount, currency, method))
}

func (l *Logger) LogWithdrawal(ctx context.Context, amount float64, currency, method string) (string, error) {
	return l.LogEvent(ctx, WithdrawalEvent(amount, currency, method))
}

func (l *Logger) LogAdminAction(ctx context.Context, action, targetType, targetID string, oldValues, newValues map[string]any) (string, error) {
	return l.LogEvent(ctx, AdminActionEvent(action, targetType, targetID, oldValues, newValues))
}

func (l *Logger) LogSecurityEvent(ctx context.Context, description string, severity Severity, flags []string) (string, error) {
	return l.LogEvent(ctx, SecurityEvent(description, severity, flags))
}

func severityRisk(s Severity) int {
	switch s {
	case SeverityCritical:
		return 90
	case SeverityHigh:
		return 70
	case SeverityMedium:
		return 50
	default:
		return 20
	}
}

func formatAmount(amount float64, currency string) string {
	return strconv.FormatFloat(amount, 'f', 2, 64) + " " + strings.ToUpper(currency)
}
