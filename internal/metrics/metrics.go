// Package metrics holds the Prometheus instruments for the audit subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuditEventsLogged counts LogEvent outcomes ("ok", "error").
	AuditEventsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_logged_total",
			Help: "Total number of audit events written, by result",
		},
		[]string{"result"},
	)

	AuditQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_batch_queue_depth",
			Help: "Number of audit writes waiting for the next batch",
		},
	)

	AuditBatchJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_batch_jobs_total",
			Help: "Audit writes executed by the batcher, by result",
		},
		[]string{"result"},
	)

	AuditBatchDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_batch_dropped_total",
			Help: "Audit writes rejected because the batch queue was full",
		},
	)

	AuditBatchSkippedTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_batch_skipped_ticks_total",
			Help: "Timer ticks ignored because a drain was still running",
		},
	)

	// RetentionDeleted counts rows removed by cleanup passes ("expiry", "manual", "policy").
	RetentionDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_deleted_rows_total",
			Help: "Audit events deleted by retention cleanup, by mode",
		},
		[]string{"mode"},
	)

	RetentionArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_archived_rows_total",
			Help: "Audit events archived before deletion",
		},
	)

	ClientInfoLookupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clientinfo_lookup_failures_total",
			Help: "Failed external client-info lookups, by lookup",
		},
		[]string{"lookup"},
	)

	ReportsRequested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_reports_requested_total",
			Help: "Audit report requests created, by report type",
		},
		[]string{"report_type"},
	)
)
