package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the counters below
const (
	OutcomeHandled = "handled"
	OutcomeIgnored = "ignored"
	OutcomeFailed  = "failed"
	OutcomeDup     = "duplicate"
)

var (
	// EventsTotal counts inbound lifecycle and interactive events
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_events_total",
			Help: "Inbound events by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// MirrorOperationsTotal counts outbound mirror mutations
	MirrorOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_mirror_operations_total",
			Help: "Mirror message operations by op (post, update, delete) and result.",
		},
		[]string{"op", "result"},
	)

	// MeetingRecordsTotal counts meeting record creation attempts
	MeetingRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_meeting_records_total",
			Help: "Meeting record creations by result.",
		},
		[]string{"result"},
	)

	// RateLimitWaits counts outbound calls that were delayed by a limiter
	RateLimitWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_rate_limit_waits_total",
			Help: "Outbound calls delayed by the provider rate limiter.",
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(EventsTotal, MirrorOperationsTotal, MeetingRecordsTotal, RateLimitWaits)
}

// ResultLabel maps an error to the "ok"/"error" result label
func ResultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
