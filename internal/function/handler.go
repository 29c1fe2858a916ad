package function

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-bench/internal/observability"
	"github.com/lexiqai/speech-bench/internal/tts"
)

// Fixed response messages
const (
	MsgNotInitialized = "critical error: speech synthesizer not initialized"
	MsgInvalidJSON    = "invalid JSON request body"
	MsgTextNotFound   = "'text' not found in JSON body"
	MsgBodyTooLarge   = "request body too large"
	MsgSuccess        = "audio generated successfully"
)

// MaxRequestBodyBytes bounds the request body read by the handler
const MaxRequestBodyBytes = 1 << 20

// Metrics are the timings reported back to the caller, in milliseconds
type Metrics struct {
	APICallDurationMs      float64 `json:"api_call_duration_ms"`
	FunctionCodeDurationMs float64 `json:"function_code_duration_ms"`
}

// SynthesisResponse is the success body
type SynthesisResponse struct {
	Message         string  `json:"message"`
	MetricsInternal Metrics `json:"metrics_internal"`
}

// stepError ends an invocation with a plain-text response
type stepError struct {
	status  int
	outcome string
	message string
	err     error
}

// Handler serves synthesis requests with a synthesizer built once at startup
type Handler struct {
	synthesizer tts.Synthesizer
}

// NewHandler creates a handler. A nil synthesizer records a failed startup:
// every request is then answered with MsgNotInitialized.
func NewHandler(synthesizer tts.Synthesizer) *Handler {
	return &Handler{synthesizer: synthesizer}
}

// Ready reports whether the synthesizer was constructed
func (h *Handler) Ready() bool {
	return h.synthesizer != nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := observability.WithCorrelationID(observability.CorrelationIDFromRequest(r))

	if h.synthesizer == nil {
		h.fail(w, logger, &stepError{
			status:  http.StatusInternalServerError,
			outcome: observability.OutcomeNotInitialized,
			message: MsgNotInitialized,
		})
		return
	}

	functionStart := time.Now()

	text, stepErr := readText(w, r)
	if stepErr != nil {
		h.fail(w, logger, stepErr)
		return
	}

	// The caller going away does not abort a synthesis already in flight.
	result, apiDuration, stepErr := h.synthesize(context.WithoutCancel(r.Context()), text)
	if stepErr != nil {
		h.fail(w, logger, stepErr)
		return
	}

	observability.RecordAudioDiscarded(result.AudioBytes)
	observability.RecordSynthesisResult(result.Reason.String(), cancellationCode(result))

	if stepErr := checkResult(result); stepErr != nil {
		h.fail(w, logger.With().Str("result_id", result.ResultID).Logger(), stepErr)
		return
	}

	functionDuration := time.Since(functionStart)
	observability.RecordTimings(apiDuration, functionDuration)
	observability.RecordRequest(observability.OutcomeSuccess)

	resp := SynthesisResponse{
		Message: MsgSuccess,
		MetricsInternal: Metrics{
			APICallDurationMs:      roundMillis(apiDuration),
			FunctionCodeDurationMs: roundMillis(functionDuration),
		},
	}

	logger.Info().
		Str("result_id", result.ResultID).
		Int("text_length", len(text)).
		Int64("audio_bytes", result.AudioBytes).
		Float64("api_call_duration_ms", resp.MetricsInternal.APICallDurationMs).
		Float64("function_code_duration_ms", resp.MetricsInternal.FunctionCodeDurationMs).
		Msg("Speech synthesized")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func readText(w http.ResponseWriter, r *http.Request) (string, *stepError) {
	invalid := func(err error) *stepError {
		return &stepError{
			status:  http.StatusBadRequest,
			outcome: observability.OutcomeInvalidJSON,
			message: MsgInvalidJSON,
			err:     err,
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return "", &stepError{
			status:  http.StatusRequestEntityTooLarge,
			outcome: observability.OutcomeBodyTooLarge,
			message: MsgBodyTooLarge,
			err:     err,
		}
	}
	if err != nil {
		return "", invalid(fmt.Errorf("failed to read request body: %w", err))
	}

	req, err := ParseSynthesisRequest(body)
	if err != nil {
		return "", invalid(err)
	}

	text, ok := req.Text.Get()
	if !ok {
		return "", &stepError{
			status:  http.StatusBadRequest,
			outcome: observability.OutcomeTextNotFound,
			message: MsgTextNotFound,
		}
	}

	return text, nil
}

func (h *Handler) synthesize(ctx context.Context, text string) (*tts.Result, time.Duration, *stepError) {
	start := time.Now()
	result, err := h.synthesizer.SpeakText(ctx, text)
	elapsed := time.Since(start)

	if err == nil && result == nil {
		err = fmt.Errorf("speech synthesizer returned no result")
	}
	if err != nil {
		return nil, elapsed, &stepError{
			status:  http.StatusInternalServerError,
			outcome: observability.OutcomeAPIError,
			message: fmt.Sprintf("Azure Speech API error: %v", err),
			err:     err,
		}
	}

	return result, elapsed, nil
}

func checkResult(result *tts.Result) *stepError {
	if result.Reason == tts.ReasonSynthesizingAudioCompleted {
		return nil
	}

	stepErr := &stepError{
		status:  http.StatusInternalServerError,
		outcome: observability.OutcomeSynthesisError,
		message: fmt.Sprintf("synthesis error: %s", result.Reason),
	}
	if result.Cancellation != nil {
		stepErr.err = fmt.Errorf("%s (HTTP %d): %s",
			result.Cancellation.ErrorCode, result.Cancellation.StatusCode, result.Cancellation.Details)
	}

	return stepErr
}

func (h *Handler) fail(w http.ResponseWriter, logger zerolog.Logger, e *stepError) {
	observability.RecordRequest(e.outcome)

	event := logger.Warn()
	if e.status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(e.err).
		Int("status", e.status).
		Str("outcome", e.outcome).
		Msg(e.message)

	http.Error(w, e.message, e.status)
}

func cancellationCode(result *tts.Result) string {
	if result.Cancellation == nil {
		return string(tts.ErrorCodeNoError)
	}
	return string(result.Cancellation.ErrorCode)
}

// roundMillis converts d to milliseconds rounded to two decimal places
func roundMillis(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}
