package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// FormSubmissions counts bound form submissions by form and outcome
	// ("valid", "invalid").
	FormSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_form_submissions_total",
		Help: "Total number of form submissions by form and outcome",
	}, []string{"form", "outcome"})

	// CommentsCreated counts stored comments split by placement
	// ("top_level", "reply", "orphaned_reply").
	CommentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_comments_created_total",
		Help: "Total number of comments created by placement",
	}, []string{"placement"})

	// ImageUploadBytes records the size of accepted image uploads.
	ImageUploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quill_image_upload_bytes",
		Help:    "Size of accepted image uploads in bytes",
		Buckets: prometheus.ExponentialBuckets(16*1024, 4, 6),
	})
)

// RecordForm records one form submission outcome.
func RecordForm(form string, valid bool) {
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	FormSubmissions.WithLabelValues(form, outcome).Inc()
}
