package tts

import (
	"context"
)

// ResultReason tells whether a synthesis request produced audio
type ResultReason int

const (
	ReasonUnknown ResultReason = iota
	ReasonSynthesizingAudioCompleted
	ReasonCanceled
)

func (r ResultReason) String() string {
	switch r {
	case ReasonSynthesizingAudioCompleted:
		return "SynthesizingAudioCompleted"
	case ReasonCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// CancellationErrorCode classifies why the service canceled a synthesis
type CancellationErrorCode string

const (
	ErrorCodeNoError               CancellationErrorCode = "NoError"
	ErrorCodeAuthenticationFailure CancellationErrorCode = "AuthenticationFailure"
	ErrorCodeBadRequest            CancellationErrorCode = "BadRequest"
	ErrorCodeForbidden             CancellationErrorCode = "Forbidden"
	ErrorCodeTooManyRequests       CancellationErrorCode = "TooManyRequests"
	ErrorCodeServiceTimeout        CancellationErrorCode = "ServiceTimeout"
	ErrorCodeServiceUnavailable    CancellationErrorCode = "ServiceUnavailable"
	ErrorCodeServiceError          CancellationErrorCode = "ServiceError"
)

// Transient reports whether the service, rather than the request, is at fault
func (c CancellationErrorCode) Transient() bool {
	switch c {
	case ErrorCodeTooManyRequests, ErrorCodeServiceTimeout, ErrorCodeServiceUnavailable, ErrorCodeServiceError:
		return true
	default:
		return false
	}
}

// CancellationDetails describes a canceled synthesis
type CancellationDetails struct {
	ErrorCode  CancellationErrorCode
	StatusCode int
	Details    string
}

// Result is the outcome of one synthesis call. The audio itself is not kept.
type Result struct {
	ResultID     string
	Reason       ResultReason
	AudioBytes   int64
	Cancellation *CancellationDetails
}

// Synthesizer converts text to speech.
// A non-nil error means the call itself failed; a service-side refusal is
// reported through Result.Reason instead.
type Synthesizer interface {
	SpeakText(ctx context.Context, text string) (*Result, error)
}
