package llmgate

import (
	"errors"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"auth error", &AuthenticationError{}, false},
		{"invalid request", &InvalidRequestError{}, false},
		{"not found", &NotFoundError{}, false},
		{"context length", &ContextLengthError{}, false},
		{"content filter", &ContentFilterError{}, false},
		{"config error", &ConfigurationError{}, false},
		{"abort", &AbortError{}, false},
		{"rate limit", &RateLimitError{}, true},
		{"server error", &ServerError{}, true},
		{"network error", &NetworkError{}, true},
		{"timeout", &RequestTimeoutError{}, true},
		{"provider retryable", &ProviderError{Retryable: true}, true},
		{"provider not retryable", &ProviderError{Retryable: false}, false},
		{"unknown error", errors.New("unknown"), true},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.retryable {
			t.Errorf("%s: IsRetryable = %v, want %v", tt.name, got, tt.retryable)
		}
	}
}

func TestGatewayErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &NetworkError{GatewayError{Message: "request failed", Cause: cause}}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Error() != "request failed: connection refused" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{
		GatewayError: GatewayError{Message: "overloaded"},
		Provider:     "anthropic",
		StatusCode:   529,
		Retryable:    true,
	}
	want := "[anthropic] overloaded (status=529, retryable=true)"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
