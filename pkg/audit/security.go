// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
//
// This is separate from the business audit trail in the audit_log table:
// nothing here is persisted, and nothing here blocks a request.
package audit

import (
	"context"
	"encoding/json"
	"time"

	libinjection "github.com/corazawaf/libinjection-go"
	"go.uber.org/zap"

	"github.com/aviaops/flightops/pkg/auth"
	"github.com/aviaops/flightops/pkg/logging"
	"github.com/aviaops/flightops/pkg/metrics"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionPattern is logged when libinjection flags free-text input.
	EventSQLInjectionPattern SecurityEventType = "sql_injection_pattern"
	// EventAuthFailure is logged for rejected logins and webhook calls.
	EventAuthFailure SecurityEventType = "auth_failure"
	// EventPermissionDenied is logged when the access policy rejects an operation.
	EventPermissionDenied SecurityEventType = "permission_denied"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"` // Telegram user ID from the session token
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionFinding describes one free-text field that matched an injection pattern.
type InjectionFinding struct {
	Field       string `json:"field"`
	Value       string `json:"value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// maxLoggedValue caps how much of a suspicious value lands in the log.
const maxLoggedValue = 256

// CheckForInjection runs libinjection over value and returns a finding, or nil if clean.
func CheckForInjection(field, value string) *InjectionFinding {
	if value == "" {
		return nil
	}
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionFinding{
		Field:       field,
		Value:       logging.TruncateString(value, maxLoggedValue),
		Fingerprint: string(fingerprint),
	}
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is configured with "security_audit" namespace for easy filtering in SIEM systems.
// m may be nil.
func NewSecurityAuditor(logger *zap.Logger, m *metrics.Metrics) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit"), metrics: m}
}

// ScanFreeText checks every field with libinjection and logs each match.
// All SQL is parameterized, so matches are recorded for visibility only;
// the request proceeds.
func (a *SecurityAuditor) ScanFreeText(ctx context.Context, fields map[string]string, clientIP string) []*InjectionFinding {
	var findings []*InjectionFinding
	for name, value := range fields {
		finding := CheckForInjection(name, value)
		if finding == nil {
			continue
		}
		findings = append(findings, finding)
		a.metrics.Suspicious(name)

		userID := auth.GetExternalIDFromContext(ctx)
		eventJSON := a.marshal(SecurityEvent{
			Timestamp: time.Now().UTC(),
			EventType: EventSQLInjectionPattern,
			UserID:    userID,
			ClientIP:  clientIP,
			Details:   finding,
			Severity:  "warning",
		})

		a.logger.Warn("SQL injection pattern in free text",
			zap.String("event_json", eventJSON),
			zap.String("field", name),
			zap.String("fingerprint", finding.Fingerprint),
			zap.String("client_ip", clientIP),
			zap.String("user_id", userID),
			zap.String("severity", "warning"),
		)
	}
	return findings
}

// LogAuthFailure records a rejected login or webhook call.
func (a *SecurityAuditor) LogAuthFailure(ctx context.Context, reason, clientIP string) {
	userID := auth.GetExternalIDFromContext(ctx)

	eventJSON := a.marshal(SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventAuthFailure,
		UserID:    userID,
		ClientIP:  clientIP,
		Details:   map[string]string{"reason": reason},
		Severity:  "warning",
	})

	a.logger.Warn("Authentication failed",
		zap.String("event_json", eventJSON),
		zap.String("reason", reason),
		zap.String("client_ip", clientIP),
		zap.String("severity", "warning"),
	)
}

// LogPermissionDenied records an operation rejected by the access policy.
// These are usually UI bugs or curiosity, so they log at INFO.
func (a *SecurityAuditor) LogPermissionDenied(ctx context.Context, role, operation, clientIP string) {
	a.metrics.Denied(operation)

	userID := auth.GetExternalIDFromContext(ctx)
	eventJSON := a.marshal(SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventPermissionDenied,
		UserID:    userID,
		ClientIP:  clientIP,
		Details:   map[string]string{"role": role, "operation": operation},
		Severity:  "info",
	})

	a.logger.Info("Permission denied",
		zap.String("event_json", eventJSON),
		zap.String("role", role),
		zap.String("operation", operation),
		zap.String("client_ip", clientIP),
		zap.String("user_id", userID),
		zap.String("severity", "info"),
	)
}

func (a *SecurityAuditor) marshal(event SecurityEvent) string {
	// Marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)
	return string(eventJSON)
}
