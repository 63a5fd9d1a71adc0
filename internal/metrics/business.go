// SPDX-License-Identifier: MIT

// Package metrics defines the Prometheus collectors exported by cutroom.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	subtitleAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cutroom_subtitle_adjustments_total",
		Help: "Subtitle timing adjustments by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	subtitleCuesShifted = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cutroom_subtitle_cues_shifted",
		Help:    "Number of cues in each adjusted subtitle document",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	transcodesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cutroom_transcodes_total",
		Help: "ffmpeg invocations by operation and outcome",
	}, []string{"op", "outcome"})

	transcodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cutroom_transcode_duration_seconds",
		Help:    "Wall clock time of ffmpeg invocations",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 180, 600},
	}, []string{"op"})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cutroom_downloads_total",
		Help: "Video download jobs by final status",
	}, []string{"status"}) // status=completed|failed

	downloadRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cutroom_download_retries_total",
		Help: "Download attempts that were retried after a failure",
	})

	downloadQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cutroom_download_queue_depth",
		Help: "Download jobs waiting for a worker",
	})

	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cutroom_upstream_requests_total",
		Help: "Outbound calls to third-party APIs by upstream and outcome",
	}, []string{"upstream", "outcome"})

	upstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cutroom_upstream_request_duration_seconds",
		Help:    "Latency of outbound calls to third-party APIs",
		Buckets: prometheus.DefBuckets,
	}, []string{"upstream"})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cutroom_cache_lookups_total",
		Help: "Upstream response cache lookups by namespace and result",
	}, []string{"namespace", "result"}) // result=hit|miss

	rateLimitRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cutroom_ratelimit_rejections_total",
		Help: "Requests rejected by the per-client limiter",
	}, []string{"class"})

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cutroom_config_reloads_total",
		Help: "Configuration hot reloads by outcome",
	}, []string{"outcome"})
)

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordSubtitleAdjustment counts one adjust-timing request.
func RecordSubtitleAdjustment(cues int, err error) {
	subtitleAdjustmentsTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		subtitleCuesShifted.Observe(float64(cues))
	}
}

// RecordTranscode counts one ffmpeg run.
func RecordTranscode(op string, took time.Duration, err error) {
	transcodesTotal.WithLabelValues(op, outcome(err)).Inc()
	transcodeDuration.WithLabelValues(op).Observe(took.Seconds())
}

// RecordDownload counts a finished download job.
func RecordDownload(status string) {
	downloadsTotal.WithLabelValues(status).Inc()
}

// IncDownloadRetry counts a retried download attempt.
func IncDownloadRetry() {
	downloadRetriesTotal.Inc()
}

// SetDownloadQueueDepth publishes the current number of queued jobs.
func SetDownloadQueueDepth(n int) {
	downloadQueueDepth.Set(float64(n))
}

// RecordUpstream counts one outbound API call.
func RecordUpstream(upstream string, took time.Duration, err error) {
	upstreamRequestsTotal.WithLabelValues(upstream, outcome(err)).Inc()
	upstreamLatency.WithLabelValues(upstream).Observe(took.Seconds())
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(namespace, result).Inc()
}

// IncRateLimitRejection counts a request refused by the limiter.
func IncRateLimitRejection(class string) {
	rateLimitRejectionsTotal.WithLabelValues(class).Inc()
}

// RecordConfigReload counts a hot reload attempt.
func RecordConfigReload(err error) {
	configReloadsTotal.WithLabelValues(outcome(err)).Inc()
}
