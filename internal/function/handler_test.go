package function

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/speech-bench/internal/tts"
)

type fakeSynthesizer struct {
	delay  time.Duration
	result *tts.Result
	err    error

	mu    sync.Mutex
	texts []string
	ctxs  []context.Context
}

func (f *fakeSynthesizer) SpeakText(ctx context.Context, text string) (*tts.Result, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.ctxs = append(f.ctxs, ctx)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	return f.result, f.err
}

func completed() *tts.Result {
	return &tts.Result{ResultID: "r-1", Reason: tts.ReasonSynthesizingAudioCompleted, AudioBytes: 4096}
}

func serve(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/synthesize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func decodeSuccess(t *testing.T, rec *httptest.ResponseRecorder) SynthesisResponse {
	t.Helper()

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp SynthesisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	return resp
}

func TestHandler_NotInitialized(t *testing.T) {
	h := NewHandler(nil)
	assert.False(t, h.Ready())

	for _, body := range []string{`{"text": "Olá mundo"}`, `{}`, `not json`, ``} {
		rec := serve(t, h, body)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, MsgNotInitialized, strings.TrimSpace(rec.Body.String()))
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	}
}

func TestHandler_InvalidJSON(t *testing.T) {
	synth := &fakeSynthesizer{result: completed()}
	h := NewHandler(synth)

	for _, body := range []string{`not json`, `{"text": "unterminated`, `{"text": 42}`, `{"text": ["a"]}`} {
		rec := serve(t, h, body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, MsgInvalidJSON, strings.TrimSpace(rec.Body.String()), body)
	}

	assert.Empty(t, synth.texts)
}

func TestHandler_TextNotFound(t *testing.T) {
	synth := &fakeSynthesizer{result: completed()}
	h := NewHandler(synth)

	for _, body := range []string{`{}`, ``, `null`, `{"texto": "Olá"}`, `{"text": null}`, `[]`, `"text"`} {
		rec := serve(t, h, body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "'text' not found", body)
	}

	assert.Empty(t, synth.texts)
}

func TestHandler_BodyTooLarge(t *testing.T) {
	synth := &fakeSynthesizer{result: completed()}
	h := NewHandler(synth)

	text := strings.Repeat("a", MaxRequestBodyBytes)
	rec := serve(t, h, `{"text": "`+text+`"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, MsgBodyTooLarge, strings.TrimSpace(rec.Body.String()))
	assert.Empty(t, synth.texts)

	// A body just under the limit is still accepted
	decodeSuccess(t, serve(t, h, `{"text": "`+text[:MaxRequestBodyBytes-20]+`"}`))
	assert.Len(t, synth.texts, 1)
}

func TestHandler_Success(t *testing.T) {
	synth := &fakeSynthesizer{result: completed(), delay: 120 * time.Millisecond}
	h := NewHandler(synth)
	require.True(t, h.Ready())

	resp := decodeSuccess(t, serve(t, h, `{"text": "Olá mundo"}`))

	assert.Equal(t, MsgSuccess, resp.Message)
	assert.GreaterOrEqual(t, resp.MetricsInternal.APICallDurationMs, 120.0)
	assert.Less(t, resp.MetricsInternal.APICallDurationMs, 1000.0)
	assert.GreaterOrEqual(t, resp.MetricsInternal.FunctionCodeDurationMs, resp.MetricsInternal.APICallDurationMs)
	assert.Equal(t, []string{"Olá mundo"}, synth.texts)
}

func TestHandler_SuccessBodyShape(t *testing.T) {
	h := NewHandler(&fakeSynthesizer{result: completed()})
	rec := serve(t, h, `{"text": "Olá mundo", "ignored": true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, MsgSuccess, body["message"])

	metrics, ok := body["metrics_internal"].(map[string]any)
	require.True(t, ok)
	require.Len(t, metrics, 2)

	apiCall, ok := metrics["api_call_duration_ms"].(float64)
	require.True(t, ok)
	functionCode, ok := metrics["function_code_duration_ms"].(float64)
	require.True(t, ok)

	assert.GreaterOrEqual(t, apiCall, 0.0)
	assert.GreaterOrEqual(t, functionCode, apiCall)
}

func TestHandler_EmptyTextPassesThrough(t *testing.T) {
	synth := &fakeSynthesizer{result: completed()}
	h := NewHandler(synth)

	decodeSuccess(t, serve(t, h, `{"text": ""}`))
	assert.Equal(t, []string{""}, synth.texts)
}

func TestHandler_SynthesizerError(t *testing.T) {
	synth := &fakeSynthesizer{err: errors.New("failed to send request: dial tcp: connection refused")}
	h := NewHandler(synth)

	rec := serve(t, h, `{"text": "Olá mundo"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Azure Speech API error")
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestHandler_SynthesizerNilResult(t *testing.T) {
	h := NewHandler(&fakeSynthesizer{})

	rec := serve(t, h, `{"text": "Olá mundo"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Azure Speech API error")
}

func TestHandler_SynthesisCanceled(t *testing.T) {
	synth := &fakeSynthesizer{result: &tts.Result{
		ResultID: "r-2",
		Reason:   tts.ReasonCanceled,
		Cancellation: &tts.CancellationDetails{
			ErrorCode:  tts.ErrorCodeAuthenticationFailure,
			StatusCode: http.StatusUnauthorized,
			Details:    "401 Unauthorized",
		},
	}}
	h := NewHandler(synth)

	rec := serve(t, h, `{"text": "Olá mundo"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "synthesis error")
	assert.Contains(t, rec.Body.String(), tts.ReasonCanceled.String())
	assert.NotContains(t, rec.Body.String(), "Azure Speech API error")
}

func TestHandler_CallerCancellationDoesNotAbortSynthesis(t *testing.T) {
	synth := &fakeSynthesizer{result: completed()}
	h := NewHandler(synth)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodPost, "/api/synthesize", strings.NewReader(`{"text": "Olá"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, synth.ctxs, 1)
	assert.NoError(t, synth.ctxs[0].Err())
}

func TestHandler_Concurrent(t *testing.T) {
	synth := &fakeSynthesizer{result: completed(), delay: 10 * time.Millisecond}
	h := NewHandler(synth)

	var wg sync.WaitGroup
	codes := make([]int, 20)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/synthesize", strings.NewReader(`{"text": "Olá"}`))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Len(t, synth.texts, 20)
}

func TestRoundMillis(t *testing.T) {
	assert.Equal(t, 120.0, roundMillis(120*time.Millisecond))
	assert.Equal(t, 1.23, roundMillis(1234*time.Microsecond))
	assert.Equal(t, 1.24, roundMillis(1236*time.Microsecond))
	assert.Equal(t, 0.0, roundMillis(0))
}
