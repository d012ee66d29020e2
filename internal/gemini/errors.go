package gemini

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// ErrQuotaExhausted is returned when a call keeps failing with rate-limit
// responses through every retry attempt. Callers should treat it as
// terminal for the whole analysis run.
var ErrQuotaExhausted = errors.New("gemini quota exhausted")

// ErrNoUsableModel is returned when every candidate model fails preflight.
var ErrNoUsableModel = errors.New("no usable gemini model")

// IsRateLimited classifies an error as a rate-limit response.
//
// The check is an OR across three signals: the API status code, the literal
// "429" anywhere in the error text, and the provider's RESOURCE_EXHAUSTED
// marker. This is deliberately broad (an unrelated error whose message
// happens to contain "429" will be retried) and matches the provider's
// inconsistent surfacing of quota errors across transports.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
