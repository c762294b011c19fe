package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

type Metrics struct {
	Submissions    *prometheus.CounterVec
	Reviews        *prometheus.CounterVec
	UploadDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_verification_submissions_total",
			Help: "Verification submissions by outcome",
		}, []string{"outcome"}),
		Reviews: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_verification_reviews_total",
			Help: "Completed reviews by resulting status",
		}, []string{"status"}),
		UploadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kycgate_upload_duration_seconds",
			Help:    "Time to validate, normalize and store one image",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind"}),
	}
}

func (m *Metrics) IncSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncReview(status string) {
	if m == nil {
		return
	}
	m.Reviews.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveUpload(kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UploadDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}
