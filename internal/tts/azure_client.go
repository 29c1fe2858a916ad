package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/samber/mo"

	"github.com/lexiqai/speech-bench/internal/audio"
)

const (
	// DefaultVoice is a Brazilian Portuguese neural voice
	DefaultVoice        = "pt-BR-FranciscaNeural"
	DefaultOutputFormat = "riff-16khz-16bit-mono-pcm"

	synthesisPath  = "/cognitiveservices/v1"
	voicesListPath = "/cognitiveservices/voices/list"
	userAgent      = "speech-bench/1.0"

	maxErrorDetailBytes = 4 << 10
)

var (
	ErrMissingSubscriptionKey = errors.New("speech subscription key is required")
	ErrMissingRegion          = errors.New("speech region is required")
)

// AzureConfig holds everything needed to build an AzureSynthesizer
type AzureConfig struct {
	SubscriptionKey string
	Region          string
	VoiceName       string
	OutputFormat    string

	// Endpoint replaces https://<region>.tts.speech.microsoft.com when present
	Endpoint mo.Option[string]

	// Timeout bounds a single SpeakText call; zero leaves it to the caller's context
	Timeout time.Duration

	HTTPClient *http.Client
}

// AzureSynthesizer implements Synthesizer using the Azure AI Speech REST API.
// It is immutable after construction and safe for concurrent use.
type AzureSynthesizer struct {
	subscriptionKey string
	voiceName       string
	outputFormat    string
	synthesisURL    string
	voicesURL       string
	timeout         time.Duration
	httpClient      *http.Client
	sink            *audio.DiscardSink
}

// NewAzureSynthesizer creates a synthesizer whose audio output is discarded
func NewAzureSynthesizer(cfg AzureConfig) (*AzureSynthesizer, error) {
	if cfg.SubscriptionKey == "" {
		return nil, ErrMissingSubscriptionKey
	}
	if cfg.Region == "" {
		return nil, ErrMissingRegion
	}

	base := cfg.Endpoint.OrElse(fmt.Sprintf("https://%s.tts.speech.microsoft.com", cfg.Region))
	baseURL, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid speech endpoint for region %q: %w", cfg.Region, err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid speech endpoint %q: scheme and host are required", base)
	}

	return &AzureSynthesizer{
		subscriptionKey: cfg.SubscriptionKey,
		voiceName:       lo.CoalesceOrEmpty(cfg.VoiceName, DefaultVoice),
		outputFormat:    lo.CoalesceOrEmpty(cfg.OutputFormat, DefaultOutputFormat),
		synthesisURL:    baseURL.JoinPath(synthesisPath).String(),
		voicesURL:       baseURL.JoinPath(voicesListPath).String(),
		timeout:         cfg.Timeout,
		httpClient:      lo.Ternary(cfg.HTTPClient != nil, cfg.HTTPClient, &http.Client{}),
		sink:            audio.NewDiscardSink(),
	}, nil
}

// VoiceName returns the voice every request is synthesized with
func (s *AzureSynthesizer) VoiceName() string {
	return s.voiceName
}

// DiscardedBytes returns the total audio bytes dropped by this synthesizer
func (s *AzureSynthesizer) DiscardedBytes() int64 {
	return s.sink.Written()
}

// SpeakText synthesizes text and blocks until the service has streamed the
// whole result. The audio is drained into the discard sink.
func (s *AzureSynthesizer) SpeakText(ctx context.Context, text string) (*Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	body, err := BuildSSML(text, s.voiceName)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.synthesisURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Ocp-Apim-Subscription-Key", s.subscriptionKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", s.outputFormat)
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	result := &Result{
		ResultID: lo.CoalesceOrEmpty(resp.Header.Get("X-RequestId"), uuid.NewString()),
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorDetailBytes))

		result.Reason = ReasonCanceled
		result.Cancellation = &CancellationDetails{
			ErrorCode:  errorCodeForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Details:    lo.CoalesceOrEmpty(strings.TrimSpace(string(detail)), resp.Status),
		}

		return result, nil
	}

	n, err := io.Copy(s.sink, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio after %d bytes: %w", n, err)
	}

	result.Reason = ReasonSynthesizingAudioCompleted
	result.AudioBytes = n

	return result, nil
}

// Ping checks the key and region against the free voices list endpoint
func (s *AzureSynthesizer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.voicesURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Ocp-Apim-Subscription-Key", s.subscriptionKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach speech service: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("speech service returned status %d (%s)", resp.StatusCode, errorCodeForStatus(resp.StatusCode))
	}

	return nil
}

func errorCodeForStatus(status int) CancellationErrorCode {
	switch status {
	case http.StatusBadRequest:
		return ErrorCodeBadRequest
	case http.StatusUnauthorized:
		return ErrorCodeAuthenticationFailure
	case http.StatusForbidden:
		return ErrorCodeForbidden
	case http.StatusTooManyRequests:
		return ErrorCodeTooManyRequests
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrorCodeServiceTimeout
	case http.StatusServiceUnavailable:
		return ErrorCodeServiceUnavailable
	default:
		return ErrorCodeServiceError
	}
}
