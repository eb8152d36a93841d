package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Listening metrics
	wakeDetections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_assistant_wake_detections_total",
		Help: "Total number of wake phrase detections",
	})

	captureFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_capture_failures_total",
		Help: "Total number of audio capture failures",
	}, []string{"component"})

	utteranceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_assistant_utterance_duration_seconds",
		Help:    "Duration of captured utterances in seconds",
		Buckets: []float64{0.5, 1, 2, 4, 8, 15, 30},
	})

	utterances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_utterances_total",
		Help: "Total number of utterance captures",
	}, []string{"result"}) // result: "text" or "empty"

	// Agent metrics
	turnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_assistant_turn_latency_seconds",
		Help:    "Reasoning engine turn latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
	})

	turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_turns_total",
		Help: "Total number of reasoning engine turns",
	}, []string{"status"})

	operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_operations_total",
		Help: "Total number of operation invocations by the reasoning engine",
	}, []string{"operation", "status"})

	sessionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_assistant_session_state",
		Help: "Agent session state (0=disconnected, 1=connecting, 2=ready, 3=busy)",
	})

	// Speech metrics
	playbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_playbacks_total",
		Help: "Total number of speech playbacks by outcome",
	}, []string{"outcome"}) // outcome: "completed", "interrupted", "fallback"

	// Loop metrics
	loopFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_loop_failures_total",
		Help: "Total number of failed conversation cycles",
	}, []string{"phase"})

	cooldowns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_assistant_cooldowns_total",
		Help: "Total number of cool-down pauses after consecutive failures",
	})
)

// RecordWakeDetection records a wake phrase match
func RecordWakeDetection() {
	wakeDetections.Inc()
}

// RecordCaptureFailure records a failed capture attempt
func RecordCaptureFailure(component string) {
	captureFailures.WithLabelValues(component).Inc()
}

// RecordUtterance records the outcome of an utterance capture
func RecordUtterance(duration time.Duration, empty bool) {
	if empty {
		utterances.WithLabelValues("empty").Inc()
		return
	}
	utterances.WithLabelValues("text").Inc()
	utteranceDuration.Observe(duration.Seconds())
}

// RecordTurn records a completed reasoning engine turn
func RecordTurn(started time.Time, success bool) {
	turnLatency.Observe(time.Since(started).Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	turns.WithLabelValues(status).Inc()
}

// RecordOperation records an operation invocation
func RecordOperation(name string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	operations.WithLabelValues(name, status).Inc()
}

// SetSessionState updates the session state gauge
func SetSessionState(state int) {
	sessionState.Set(float64(state))
}

// RecordPlayback records how a playback ended
func RecordPlayback(outcome string) {
	playbacks.WithLabelValues(outcome).Inc()
}

// RecordLoopFailure records a failed conversation cycle
func RecordLoopFailure(phase string) {
	loopFailures.WithLabelValues(phase).Inc()
}

// RecordCooldown records a cool-down pause
func RecordCooldown() {
	cooldowns.Inc()
}
