package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedbackEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentorhub_feedback_events_total",
			Help: "Feedback mutations committed to the store",
		},
		[]string{"kind"},
	)

	aiReviewRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentorhub_ai_review_runs_total",
			Help: "Automated review runs by final status",
		},
		[]string{"status", "provider"},
	)

	aiReviewDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mentorhub_ai_review_duration_seconds",
			Help:    "Duration of automated review runs",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	reviewSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mentorhub_review_sessions_active",
			Help: "Open review sessions held by this instance",
		},
	)

	digestsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentorhub_digests_sent_total",
			Help: "Daily digest emails by result",
		},
		[]string{"result"},
	)
)
