// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "onboarding_worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	TriggerInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_trigger_invocations_total",
			Help: "Step sequence invocations by sequence and outcome",
		},
		[]string{"sequence", "outcome"},
	)

	TriggerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onboarding_trigger_duration_seconds",
			Help:    "Wall time of one step sequence",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"sequence"},
	)

	TriggerStepFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_trigger_step_failures_total",
			Help: "Failed steps by step name and kind",
		},
		[]string{"step", "kind"},
	)

	CallbacksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_callbacks_total",
			Help: "Inbound decision callbacks by source, correlation strategy and outcome",
		},
		[]string{"source", "strategy", "outcome"},
	)

	WorkflowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_workflow_transitions_total",
			Help: "Workflow status transitions",
		},
		[]string{"to"},
	)

	ApproverDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_approver_decisions_total",
			Help: "Recorded approver decisions by ordinal and decision",
		},
		[]string{"approver", "decision"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_notifications_total",
			Help: "Decision notifications by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
)
