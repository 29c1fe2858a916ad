package function

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/mo"
)

// ErrInvalidJSON is returned when the request body cannot be decoded
var ErrInvalidJSON = errors.New("invalid JSON body")

// SynthesisRequest is the decoded body of one invocation
type SynthesisRequest struct {
	// Text is absent when the body is empty, not an object, has no "text"
	// key or has "text": null. An empty string is present.
	Text mo.Option[string]
}

// ParseSynthesisRequest decodes a request body. Only malformed JSON, or a
// "text" member that is not a string, is an error.
func ParseSynthesisRequest(body []byte) (SynthesisRequest, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return SynthesisRequest{Text: mo.None[string]()}, nil
	}

	if !json.Valid(body) {
		return SynthesisRequest{}, ErrInvalidJSON
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil {
		// Valid JSON that is not an object has no "text" member
		return SynthesisRequest{Text: mo.None[string]()}, nil
	}

	raw, ok := members["text"]
	if !ok || string(raw) == "null" {
		return SynthesisRequest{Text: mo.None[string]()}, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return SynthesisRequest{}, fmt.Errorf("%w: \"text\" must be a string", ErrInvalidJSON)
	}

	return SynthesisRequest{Text: mo.Some(text)}, nil
}
