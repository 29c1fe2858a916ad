package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/speech-bench/internal/function"
	"github.com/lexiqai/speech-bench/internal/tts"
)

func setSpeechEnv(t *testing.T, overrides map[string]string) {
	t.Helper()

	env := map[string]string{
		"SPEECH_KEY":                    "test-key",
		"SPEECH_REGION":                 "brazilsouth",
		"SPEECH_VOICE":                  "pt-BR-FranciscaNeural",
		"SPEECH_OUTPUT_FORMAT":          "riff-16khz-16bit-mono-pcm",
		"SPEECH_ENDPOINT":               "",
		"SPEECH_TIMEOUT":                "0s",
		"CIRCUIT_BREAKER_MAX_FAILURES":  "0",
		"CIRCUIT_BREAKER_RESET_TIMEOUT": "30",
	}
	for k, v := range overrides {
		env[k] = v
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestNewSynthesizer(t *testing.T) {
	setSpeechEnv(t, nil)

	azure, synthesizer := newSynthesizer(zerolog.Nop())

	require.NotNil(t, azure)
	assert.Equal(t, tts.Synthesizer(azure), synthesizer)
	assert.Equal(t, "pt-BR-FranciscaNeural", azure.VoiceName())
}

func TestNewSynthesizer_WithCircuitBreaker(t *testing.T) {
	setSpeechEnv(t, map[string]string{"CIRCUIT_BREAKER_MAX_FAILURES": "3"})

	azure, synthesizer := newSynthesizer(zerolog.Nop())

	require.NotNil(t, azure)
	breaker, ok := synthesizer.(*tts.BreakerSynthesizer)
	require.True(t, ok)
	assert.Equal(t, "azure_speech", breaker.Breaker().Name())
}

func TestNewSynthesizer_InvalidSettingsKeepServing(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
	}{
		{name: "MalformedTimeout", overrides: map[string]string{"SPEECH_TIMEOUT": "abc"}},
		{name: "NegativeTimeout", overrides: map[string]string{"SPEECH_TIMEOUT": "-1s"}},
		{name: "MalformedBreakerFailures", overrides: map[string]string{"CIRCUIT_BREAKER_MAX_FAILURES": "many"}},
		{name: "NegativeBreakerFailures", overrides: map[string]string{"CIRCUIT_BREAKER_MAX_FAILURES": "-2"}},
		{name: "MalformedBreakerReset", overrides: map[string]string{"CIRCUIT_BREAKER_RESET_TIMEOUT": "soon"}},
		{name: "EndpointWithoutScheme", overrides: map[string]string{"SPEECH_ENDPOINT": "speech.local"}},
		{name: "MissingKey", overrides: map[string]string{"SPEECH_KEY": ""}},
		{name: "MissingRegion", overrides: map[string]string{"SPEECH_REGION": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setSpeechEnv(t, tt.overrides)

			azure, synthesizer := newSynthesizer(zerolog.Nop())
			assert.Nil(t, azure)
			assert.Nil(t, synthesizer)

			handler := function.NewHandler(synthesizer)
			assert.False(t, handler.Ready())

			req := httptest.NewRequest(http.MethodPost, "/api/synthesize", strings.NewReader(`{"text": "Olá mundo"}`))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, function.MsgNotInitialized, strings.TrimSpace(rec.Body.String()))
		})
	}
}
