package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	ResolverRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_resolver_requests_total",
		Help: "The total number of intent resolution requests by outcome",
	}, []string{"outcome"})

	ResolverLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_resolver_latency_seconds",
		Help:    "Time taken by the intent resolver to answer",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
	})

	DescriptorsPrepared = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_descriptors_prepared_total",
		Help: "The total number of transaction descriptors prepared by contract key",
	}, []string{"contract_key"})

	ApprovalsRequired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_approvals_required_total",
		Help: "The number of prepared transactions that needed a prior ERC-20 approval",
	})

	PreparationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_preparation_errors_total",
		Help: "Total number of transaction preparation failures by type",
	}, []string{"error_type"})

	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_executions_total",
		Help: "The total number of execution sessions by terminal state",
	}, []string{"outcome"})

	ConfirmationPolls = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_confirmation_poll_attempts",
		Help:    "Poll attempts needed before a transaction receipt settled",
		Buckets: prometheus.LinearBuckets(1, 5, 12),
	})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_sessions_active",
		Help: "The number of execution sessions currently in a non-terminal state",
	})

	TokenBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipeline_token_balance",
		Help: "Last observed wallet balance by token symbol",
	}, []string{"symbol"})

	GatewayReadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_gateway_read_errors_total",
		Help: "Total number of degraded ledger reads by call",
	}, []string{"call"})
)
