// Package metrics holds the Prometheus instruments for the feed pipeline.
//
// All metrics are global (no per-viewer or per-author labels) to keep label
// cardinality bounded.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline groups the counters every stage reports into.
type Pipeline struct {
	EventsIngested   prometheus.Counter
	BatchesForwarded prometheus.Counter
	CursorCommits    prometheus.Counter
	BatchSize        prometheus.Histogram

	PostsMatched prometheus.Counter
	PostsDeleted prometheus.Counter
	StoreWrites  *prometheus.CounterVec

	FeedsGenerated   prometheus.Counter
	FeedsFailed      prometheus.Counter
	FeedItems        prometheus.Histogram
	DispatchBatches  prometheus.Counter
	DispatchFailures prometheus.Counter

	SkeletonRequests *prometheus.CounterVec
	AccessLogged     prometheus.Counter

	QueueSendFailures *prometheus.CounterVec
}

// NewPipeline creates the pipeline metrics and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	m := &Pipeline{
		EventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperfeed_events_ingested_total",
			Help: "Commit events accepted from the firehose",
		}),
		BatchesForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperfeed_batches_forwarded_total",
			Help: "Raw event batches handed to the raw-events queue",
		}),
		CursorCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperfeed_cursor_commits_total",
			Help: "Ingestion cursor checkpoints written",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "paperfeed_batch_events",
			Help:    "Events per forwarded raw event batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 200, 400},
		}),
		PostsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperfeed_posts_matched_total",
			Help: "Post events that matched the paper classifier",
		}),
		PostsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperfeed_posts_deleted_total",
			Help: "Post delete intents applied",
		}),
		StoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paperfeed_store_writes_total",
			Help: "Physical post store write calls by kind",
		}, []string{"kind"}),
		FeedsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperfeed_feeds_generated_total",
			Help: "Viewer feeds written to the cache",
		}),
		FeedsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperfeed_feeds_failed_total",
			Help: "Viewer feed generations that failed",
		}),
		FeedItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "paperfeed_feed_items",
			Help:    "Items per generated feed",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 150, 300},
		}),
		DispatchBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperfeed_dispatch_batches_total",
			Help: "Generation requests enqueued by the dispatcher",
		}),
		DispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperfeed_dispatch_failures_total",
			Help: "Generation requests the dispatcher failed to enqueue",
		}),
		SkeletonRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paperfeed_skeleton_requests_total",
			Help: "getFeedSkeleton requests by viewer kind and cache outcome",
		}, []string{"viewer", "cache"}),
		AccessLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperfeed_access_logged_total",
			Help: "Access log rows written",
		}),
		QueueSendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paperfeed_queue_send_failures_total",
			Help: "Best-effort queue sends that failed, by queue",
		}, []string{"queue"}),
	}

	reg.MustRegister(
		m.EventsIngested, m.BatchesForwarded, m.CursorCommits, m.BatchSize,
		m.PostsMatched, m.PostsDeleted, m.StoreWrites,
		m.FeedsGenerated, m.FeedsFailed, m.FeedItems, m.DispatchBatches, m.DispatchFailures,
		m.SkeletonRequests, m.AccessLogged, m.QueueSendFailures,
	)
	return m
}
