package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentstation/eventflow/pkg/errors"
)

// TestFail tests the Fail helper function.
func TestFail(t *testing.T) {
	resp := Fail("TEST_ERROR", "Test error message", "Additional details")

	if resp.Data != nil {
		t.Error("expected Data to be nil")
	}
	if resp.Error == nil {
		t.Fatal("expected Error to be set")
	}
	if resp.Error.Code != "TEST_ERROR" {
		t.Errorf("expected Code=TEST_ERROR, got %s", resp.Error.Code)
	}
	if resp.Error.Details != "Additional details" {
		t.Errorf("expected Details=Additional details, got %s", resp.Error.Details)
	}
}

// TestOK tests the OK helper function.
func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	OK(w, map[string]int{"count": 42})

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type=application/json, got %s", ct)
	}

	var decoded Response
	if err := json.NewDecoder(w.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if decoded.Error != nil {
		t.Error("expected decoded Error to be nil")
	}
}

// TestStateError checks the terminal error rendering.
func TestStateError(t *testing.T) {
	w := httptest.NewRecorder()
	StateError(w, &errors.MultipleCurrentEventsError{IDs: []string{"a", "b"}})

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Code != "DATA_INTEGRITY" {
		t.Errorf("expected Code=DATA_INTEGRITY, got %s", resp.Error.Code)
	}
	if resp.Error.Message != "there are multiple events currently ongoing" {
		t.Errorf("unexpected message %q", resp.Error.Message)
	}
	if !strings.Contains(resp.Error.Details, "MultipleCurrentEventsError") {
		t.Errorf("expected debug chain in details, got %q", resp.Error.Details)
	}
}

// TestErrorFromType tests typed error mapping.
func TestErrorFromType(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "NotFoundError",
			err:            errors.NewNotFoundError("event", "sil"),
			expectedStatus: http.StatusNotFound,
			expectedCode:   "NOT_FOUND",
		},
		{
			name:           "ValidationError",
			err:            errors.NewValidationError("at", "tomorrow", "must be RFC 3339"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
		{
			name:           "AuthenticationError",
			err:            errors.NewAuthenticationError("api_key", "", nil),
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "UNAUTHORIZED",
		},
		{
			name:           "InvalidTimestampError",
			err:            &errors.InvalidTimestampError{Local: "2024-03-31T02:30:00", Zone: "Europe/Berlin"},
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "TIMESTAMP_RESOLUTION",
		},
		{
			name:           "Generic error",
			err:            errors.New("generic error"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFromType(w, tt.err)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			var resp Response
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error == nil {
				t.Fatal("expected Error to be set")
			}
			if resp.Error.Code != tt.expectedCode {
				t.Errorf("expected Code=%s, got %s", tt.expectedCode, resp.Error.Code)
			}
		})
	}
}
