package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// authEvents counts credential flow outcomes, served on /debug/metrics.
var authEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "auth_events_total",
	Help: "Total number of authentication events by outcome",
}, []string{"event"})

const (
	statRegistered     = "registered"
	statLoginOK        = "login_success"
	statLoginFailed    = "login_failure"
	statResetRequested = "reset_requested"
	statResetMailFail  = "reset_email_failure"
	statResetDone      = "reset_completed"
)

func countEvent(event string) {
	authEvents.WithLabelValues(event).Inc()
}
