package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New("test error")
	if err == nil {
		t.Fatal("New() returned nil")
	}

	if err.Error() != "test error" {
		t.Errorf("Expected 'test error', got: %s", err.Error())
	}

	if !strings.HasPrefix(err.Location(), "errors_test.go:") {
		t.Errorf("Location should point at the caller, got: %s", err.Location())
	}
}

func TestWrap(t *testing.T) {
	baseErr := errors.New("base error")
	err := Wrap(baseErr, "wrapped")

	if err.Error() != "wrapped: base error" {
		t.Errorf("Unexpected message: %s", err.Error())
	}

	if errors.Unwrap(err) != baseErr {
		t.Errorf("Unwrap() returned wrong error: %v", errors.Unwrap(err))
	}

	if Wrap(nil, "nothing") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWithFieldsDoesNotMutate(t *testing.T) {
	base := New("test error").WithField("key", "value")
	extended := base.WithFields(map[string]interface{}{"key2": 123})

	if len(base.GetFields()) != 1 {
		t.Fatalf("Expected base to keep 1 field, got %d", len(base.GetFields()))
	}

	fields := extended.GetFields()
	if fields["key"] != "value" || fields["key2"] != 123 {
		t.Errorf("Unexpected fields: %v", fields)
	}
}

func TestWithCode(t *testing.T) {
	err := New("test error").WithCode("TEST_CODE")
	if err.GetCode() != "TEST_CODE" {
		t.Errorf("Expected code 'TEST_CODE', got: %s", err.GetCode())
	}
}

func TestDomainConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		sentinel error
		code     string
		message  string
	}{
		{
			name:     "permission denied",
			err:      NewPermissionDenied("default", errors.New("EACCES")),
			sentinel: ErrPermissionDenied,
			code:     "PERMISSION_DENIED",
			message:  "microphone access denied on default",
		},
		{
			name:     "already recording",
			err:      NewAlreadyRecording("2", "1"),
			sentinel: ErrAlreadyRecording,
			code:     "ALREADY_RECORDING",
			message:  "cannot start 2 while 1 is capturing",
		},
		{
			name:     "transcription",
			err:      NewTranscriptionError("whisper", errors.New("exit status 1")),
			sentinel: ErrTranscriptionFailed,
			code:     "TRANSCRIPTION_FAILED",
			message:  "transcription failed: exit status 1",
		},
		{
			name:     "classification",
			err:      NewClassificationError("lexicon", nil),
			sentinel: ErrClassificationFailed,
			code:     "CLASSIFICATION_FAILED",
			message:  "sentiment classification failed",
		},
		{
			name:     "backend",
			err:      NewBackendError(500, "boom"),
			sentinel: ErrBackend,
			code:     "BACKEND_ERROR",
			message:  "Backend error: status 500",
		},
		{
			name:     "store write",
			err:      NewStoreWriteError("voicerecordings", nil),
			sentinel: ErrStoreWrite,
			code:     "STORE_WRITE_FAILED",
			message:  "failed to write to collection voicerecordings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("Expected errors.Is to match %v", tt.sentinel)
			}
			if tt.err.GetCode() != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, tt.err.GetCode())
			}
			if !strings.HasPrefix(tt.err.Error(), tt.message) {
				t.Errorf("Expected message prefix %q, got %q", tt.message, tt.err.Error())
			}
		})
	}
}

func TestNoSpeechMatchesBothSentinels(t *testing.T) {
	err := NewNoSpeech("mock")
	if !errors.Is(err, ErrNoSpeech) || !errors.Is(err, ErrTranscriptionFailed) {
		t.Errorf("Expected NewNoSpeech to match ErrNoSpeech and ErrTranscriptionFailed: %v", err)
	}
	if err.Error() != "transcription failed: no speech detected in recording" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestConstructorsKeepCause(t *testing.T) {
	cause := errors.New("empty text")
	err := NewClassificationError("lexicon", cause)
	if !errors.Is(err, cause) || !errors.Is(err, ErrClassificationFailed) {
		t.Errorf("Expected classification error to match cause and sentinel: %v", err)
	}
	if err.Error() != "sentiment classification failed: empty text" {
		t.Errorf("Unexpected message: %s", err.Error())
	}

	terr := NewTranscriptionError("whisper", fmt.Errorf("run: %w", ErrTimeout))
	if !errors.Is(terr, ErrTimeout) {
		t.Errorf("Expected transcription error to expose the timeout: %v", terr)
	}
	if HTTPStatusFromError(terr) != http.StatusInternalServerError {
		t.Errorf("Unexpected status %d", HTTPStatusFromError(terr))
	}
}

func TestAnalysisErrorMasksCause(t *testing.T) {
	err := NewAnalysisError(NewNoSpeech("whisper"))
	if err.Error() != "Failed to analyze speech" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if !errors.Is(err, ErrAnalysisFailed) || !errors.Is(err, ErrNoSpeech) {
		t.Errorf("Expected cause to stay reachable: %v", err)
	}
	if HTTPStatusFromError(err) != http.StatusInternalServerError {
		t.Errorf("Unexpected status %d", HTTPStatusFromError(err))
	}

	w := httptest.NewRecorder()
	WriteError(w, err.WithField("session_id", "1"))
	var body map[string]interface{}
	if jerr := json.Unmarshal(w.Body.Bytes(), &body); jerr != nil {
		t.Fatalf("Body is not JSON: %v", jerr)
	}
	if body["error"] != "Failed to analyze speech" {
		t.Errorf("Unexpected body error: %v", body["error"])
	}
}

func TestHelperFunctions(t *testing.T) {
	err := NewStoreWriteError("healthmetrics", errors.New("disk full")).WithField("attempt", 2)
	wrapped := fmt.Errorf("seeding: %w", err)

	if !IsErrorType(wrapped, ErrStoreWrite) {
		t.Error("IsErrorType should see through fmt.Errorf wrapping")
	}
	if GetErrorCode(wrapped) != "STORE_WRITE_FAILED" {
		t.Errorf("Unexpected code: %s", GetErrorCode(wrapped))
	}
	if GetErrorFields(wrapped)["collection"] != "healthmetrics" {
		t.Errorf("Unexpected fields: %v", GetErrorFields(wrapped))
	}
	if GetErrorLocation(wrapped) == "" {
		t.Error("Location should not be empty")
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Error("Plain errors carry no code")
	}
}

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", ErrNotFound, http.StatusNotFound},
		{"invalid input", NewInvalidInput("bad"), http.StatusBadRequest},
		{"permission denied", NewPermissionDenied("hw:0", nil), http.StatusForbidden},
		{"already recording", NewAlreadyRecording("2", "1"), http.StatusConflict},
		{"no speech", fmt.Errorf("analyze: %w", ErrNoSpeech), http.StatusUnprocessableEntity},
		{"no speech constructor", NewNoSpeech("whisper"), http.StatusUnprocessableEntity},
		{"backend", NewBackendError(503, ""), http.StatusBadGateway},
		{"code only", New("custom").WithCode("TIMEOUT"), http.StatusGatewayTimeout},
		{"unknown", errors.New("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusFromError(tt.err); got != tt.expected {
				t.Errorf("HTTPStatusFromError() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{"nil error", nil, http.StatusInternalServerError, "Unknown error"},
		{"plain error", errors.New("simple error"), http.StatusInternalServerError, "simple error"},
		{"analysis failure", Wrap(ErrAnalysisFailed, "Failed to analyze speech"), http.StatusInternalServerError, "Failed to analyze speech"},
		{"not captured", fmt.Errorf("session 3: %w", ErrNotCaptured), http.StatusPreconditionFailed, "session 3: recording session has no captured audio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected application/json, got %s", ct)
			}

			var body map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Body is not JSON: %v", err)
			}
			if body["status"] != "error" {
				t.Errorf("Expected status field 'error', got %v", body["status"])
			}
			if body["error"] != tt.expectedError {
				t.Errorf("Expected error %q, got %v", tt.expectedError, body["error"])
			}
		})
	}
}
