package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for speech_function_requests_total
const (
	OutcomeSuccess        = "success"
	OutcomeNotInitialized = "not_initialized"
	OutcomeInvalidJSON    = "invalid_json"
	OutcomeTextNotFound   = "text_not_found"
	OutcomeBodyTooLarge   = "body_too_large"
	OutcomeAPIError       = "api_error"
	OutcomeSynthesisError = "synthesis_error"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_function_requests_total",
		Help: "Total number of synthesis requests by outcome",
	}, []string{"outcome"})

	apiCallLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_function_api_call_duration_seconds",
		Help:    "Time spent inside the Azure Speech synthesis call",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	functionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_function_code_duration_seconds",
		Help:    "Time spent in the handler from body parsing to response",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	synthesisReasons = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_function_synthesis_results_total",
		Help: "Synthesis results by reason and cancellation error code",
	}, []string{"reason", "error_code"})

	audioBytesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_function_audio_bytes_discarded_total",
		Help: "Synthesized audio bytes received and dropped",
	})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "speech_function_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_function_circuit_breaker_trips_total",
		Help: "Number of times the circuit breaker opened",
	}, []string{"service"})
)

// RecordRequest records the terminal outcome of one handler invocation
func RecordRequest(outcome string) {
	requestsTotal.WithLabelValues(outcome).Inc()
}

// RecordTimings records the two durations reported back to the caller
func RecordTimings(apiCall, functionCode time.Duration) {
	apiCallLatency.Observe(apiCall.Seconds())
	functionLatency.Observe(functionCode.Seconds())
}

// RecordSynthesisResult records the reason returned by the speech service
func RecordSynthesisResult(reason, errorCode string) {
	synthesisReasons.WithLabelValues(reason, errorCode).Inc()
}

// RecordAudioDiscarded records audio bytes that were produced and dropped
func RecordAudioDiscarded(bytes int64) {
	audioBytesDiscarded.Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerTrips counts a transition into the open state
func IncrementCircuitBreakerTrips(service string) {
	circuitBreakerTrips.WithLabelValues(service).Inc()
}
