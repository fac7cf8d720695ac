// Package telemetry provides OpenTelemetry integration for the application.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/chebizarro/nostr-git-sub004/pkg/logger"
)

const (
	// MeterName is the default meter name for the application.
	MeterName = "github.com/chebizarro/nostr-git-sub004"
)

// Metrics holds every counter/histogram recorded at a §5 suspension point.
type Metrics struct {
	// Sync & cloning engine (component G)
	SyncTotal        metric.Int64Counter
	SyncDuration     metric.Float64Histogram
	CloneTotal       metric.Int64Counter
	CloneDuration    metric.Float64Histogram
	ActiveSyncs      metric.Int64UpDownCounter

	// Multi-URL push coordinator (component I)
	PushTotal          metric.Int64Counter
	PushDuration       metric.Float64Histogram
	URLFallbackAttempts metric.Int64Counter

	// Vendor API (component J)
	VendorRequestsTotal   metric.Int64Counter
	VendorRequestDuration metric.Float64Histogram

	// Cache store (component F)
	CacheHitsTotal    metric.Int64Counter
	CacheMissesTotal  metric.Int64Counter
	CacheEvictedTotal metric.Int64Counter

	// Webhook receiver
	WebhookEventsTotal metric.Int64Counter
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global metrics instance, initializing it if necessary.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		var err error
		globalMetrics, err = initMetrics()
		if err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			globalMetrics = &Metrics{}
		}
	})
	return globalMetrics
}

func initMetrics() (*Metrics, error) {
	meter := otel.Meter(MeterName)
	m := &Metrics{}
	var err error

	if m.SyncTotal, err = meter.Int64Counter(
		"nostrgit_sync_total",
		metric.WithDescription("Total number of sync/clone operations"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, err
	}

	if m.SyncDuration, err = meter.Float64Histogram(
		"nostrgit_sync_duration_seconds",
		metric.WithDescription("Duration of sync operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 5, 10, 30, 60, 120, 300),
	); err != nil {
		return nil, err
	}

	if m.CloneTotal, err = meter.Int64Counter(
		"nostrgit_clone_total",
		metric.WithDescription("Total number of clone tier transitions"),
		metric.WithUnit("{clone}"),
	); err != nil {
		return nil, err
	}

	if m.CloneDuration, err = meter.Float64Histogram(
		"nostrgit_clone_duration_seconds",
		metric.WithDescription("Duration of clone operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300),
	); err != nil {
		return nil, err
	}

	if m.ActiveSyncs, err = meter.Int64UpDownCounter(
		"nostrgit_active_syncs",
		metric.WithDescription("Number of currently in-flight sync operations"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, err
	}

	if m.PushTotal, err = meter.Int64Counter(
		"nostrgit_push_total",
		metric.WithDescription("Total number of push operations"),
		metric.WithUnit("{push}"),
	); err != nil {
		return nil, err
	}

	if m.PushDuration, err = meter.Float64Histogram(
		"nostrgit_push_duration_seconds",
		metric.WithDescription("Duration of push operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 30, 60),
	); err != nil {
		return nil, err
	}

	if m.URLFallbackAttempts, err = meter.Int64Counter(
		"nostrgit_url_fallback_attempts_total",
		metric.WithDescription("Total number of candidate URL attempts during fallback"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, err
	}

	if m.VendorRequestsTotal, err = meter.Int64Counter(
		"nostrgit_vendor_requests_total",
		metric.WithDescription("Total number of vendor REST API requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if m.VendorRequestDuration, err = meter.Float64Histogram(
		"nostrgit_vendor_request_duration_seconds",
		metric.WithDescription("Duration of vendor REST API requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10),
	); err != nil {
		return nil, err
	}

	if m.CacheHitsTotal, err = meter.Int64Counter(
		"nostrgit_cache_hits_total",
		metric.WithDescription("Total number of cache store hits"),
		metric.WithUnit("{hit}"),
	); err != nil {
		return nil, err
	}

	if m.CacheMissesTotal, err = meter.Int64Counter(
		"nostrgit_cache_misses_total",
		metric.WithDescription("Total number of cache store misses"),
		metric.WithUnit("{miss}"),
	); err != nil {
		return nil, err
	}

	if m.CacheEvictedTotal, err = meter.Int64Counter(
		"nostrgit_cache_evicted_total",
		metric.WithDescription("Total number of cache entries evicted by clearOldCache"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	if m.WebhookEventsTotal, err = meter.Int64Counter(
		"nostrgit_webhook_events_total",
		metric.WithDescription("Total number of inbound vendor webhook events processed"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, err
	}

	logger.Info("Metrics initialized successfully")
	return m, nil
}

// RecordSyncStarted records the start of a sync/clone operation.
func (m *Metrics) RecordSyncStarted(ctx context.Context, repoID string) {
	if m.SyncTotal == nil {
		return
	}
	m.SyncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("repo_id", repoID)))
	if m.ActiveSyncs != nil {
		m.ActiveSyncs.Add(ctx, 1)
	}
}

// RecordSyncCompleted records the completion of a sync operation.
func (m *Metrics) RecordSyncCompleted(ctx context.Context, repoID, tier string, durationSeconds float64) {
	if m.ActiveSyncs != nil {
		m.ActiveSyncs.Add(ctx, -1)
	}
	if m.SyncDuration != nil {
		m.SyncDuration.Record(ctx, durationSeconds,
			metric.WithAttributes(attribute.String("repo_id", repoID), attribute.String("tier", tier)),
		)
	}
}

// RecordClone records a tiered clone transition (refs/shallow/full).
func (m *Metrics) RecordClone(ctx context.Context, tier string, success bool, durationSeconds float64) {
	if m.CloneTotal != nil {
		m.CloneTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tier", tier), attribute.Bool("success", success),
		))
	}
	if m.CloneDuration != nil {
		m.CloneDuration.Record(ctx, durationSeconds, metric.WithAttributes(attribute.String("tier", tier)))
	}
}

// RecordPush records a push attempt through the multi-URL push coordinator.
func (m *Metrics) RecordPush(ctx context.Context, usedURL string, success bool, durationSeconds float64) {
	if m.PushTotal != nil {
		m.PushTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
	}
	if m.PushDuration != nil {
		m.PushDuration.Record(ctx, durationSeconds, metric.WithAttributes(attribute.Bool("success", success)))
	}
	_ = usedURL
}

// RecordURLFallbackAttempt records one candidate URL attempt in withUrlFallback.
func (m *Metrics) RecordURLFallbackAttempt(ctx context.Context, host string, success bool) {
	if m.URLFallbackAttempts == nil {
		return
	}
	m.URLFallbackAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("host", host), attribute.Bool("success", success),
	))
}

// RecordVendorRequest records a vendor REST API call (GitHub/GitLab/Gitea/GRASP).
func (m *Metrics) RecordVendorRequest(ctx context.Context, vendor, op string, statusCode int, durationSeconds float64) {
	if m.VendorRequestsTotal != nil {
		m.VendorRequestsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("vendor", vendor),
			attribute.String("op", op),
			attribute.Int("status_code", statusCode),
		))
	}
	if m.VendorRequestDuration != nil {
		m.VendorRequestDuration.Record(ctx, durationSeconds, metric.WithAttributes(
			attribute.String("vendor", vendor), attribute.String("op", op),
		))
	}
}

// RecordCacheLookup records a cache store get/put against one of the three tables.
func (m *Metrics) RecordCacheLookup(ctx context.Context, table string, hit bool) {
	if hit {
		if m.CacheHitsTotal != nil {
			m.CacheHitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("table", table)))
		}
		return
	}
	if m.CacheMissesTotal != nil {
		m.CacheMissesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("table", table)))
	}
}

// RecordCacheEviction records entries removed by clearOldCache.
func (m *Metrics) RecordCacheEviction(ctx context.Context, table string, count int64) {
	if m.CacheEvictedTotal == nil {
		return
	}
	m.CacheEvictedTotal.Add(ctx, count, metric.WithAttributes(attribute.String("table", table)))
}

// RecordWebhookEvent records an inbound vendor webhook delivery.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, vendor, eventType string) {
	if m.WebhookEventsTotal == nil {
		return
	}
	m.WebhookEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("vendor", vendor), attribute.String("event_type", eventType),
	))
}
