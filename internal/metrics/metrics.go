// Package metrics exposes Prometheus counters for the review lifecycle and
// the retention sweeper.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proofdeck_uploads_total",
		Help: "Number of review versions uploaded.",
	})

	CompressionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proofdeck_compression_failures_total",
		Help: "Number of uploads rejected because the compressor failed.",
	})

	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proofdeck_review_actions_total",
		Help: "Number of reviewer actions recorded, by action type.",
	}, []string{"action"})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proofdeck_public_rate_limited_total",
		Help: "Number of public actions rejected by the rate limiter.",
	})

	SweeperRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proofdeck_sweeper_runs_total",
		Help: "Number of completed retention sweeper runs.",
	})

	ReclaimedVersionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proofdeck_reclaimed_versions_total",
		Help: "Number of version files reclaimed by the sweeper.",
	})

	ReclaimedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proofdeck_reclaimed_bytes_total",
		Help: "Compressed bytes freed by the sweeper.",
	})

	TokensDeactivatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proofdeck_tokens_deactivated_total",
		Help: "Public version links deactivated after the approval window.",
	})
)
