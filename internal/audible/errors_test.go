package audible

import (
	"errors"
	"fmt"
	"testing"
)

// TestNetworkError_Error verifies error message formatting
func TestNetworkError_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        *NetworkError
		wantFormat string
	}{
		{
			name: "with HTTP status code",
			err: &NetworkError{
				Operation:  "license_request",
				StatusCode: 503,
				APIMessage: "service unavailable",
			},
			wantFormat: "network error during license_request (HTTP 503): service unavailable",
		},
		{
			name: "without HTTP status code",
			err: &NetworkError{
				Operation:  "license_request",
				APIMessage: "connection timeout",
			},
			wantFormat: "network error during license_request: connection timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantFormat {
				t.Errorf("Error() = %q, want %q", got, tt.wantFormat)
			}
		})
	}
}

// TestAuthenticationError_Error verifies error message formatting
func TestAuthenticationError_Error(t *testing.T) {
	err := &AuthenticationError{Operation: "license_request", StatusCode: 401}

	expected := "authentication failed during license_request (HTTP 401)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

// TestErrorUnwrap verifies errors.As works through wrapping
func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	wrapped := fmt.Errorf("request license: %w", &NetworkError{Operation: "license_request", Err: cause})

	var netErr *NetworkError
	if !errors.As(wrapped, &netErr) {
		t.Fatal("errors.As failed to find NetworkError")
	}

	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is failed to reach the underlying cause")
	}

	authCause := errors.New("token expired")

	var authErr *AuthenticationError
	if !errors.As(fmt.Errorf("wrap: %w", &AuthenticationError{Err: authCause}), &authErr) {
		t.Fatal("errors.As failed to find AuthenticationError")
	}

	if !errors.Is(authErr, authCause) {
		t.Error("AuthenticationError does not unwrap to its cause")
	}
}
