package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Standard error types that can be used throughout the application
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternalError      = errors.New("internal error")
	ErrNotImplemented     = errors.New("not implemented")
	ErrTimeout            = errors.New("operation timed out")
	ErrUnavailable        = errors.New("service unavailable")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrCanceled           = errors.New("operation canceled")

	// Capture
	ErrAlreadyRecording = errors.New("another recording session is already capturing")
	ErrNotCaptured      = errors.New("recording session has no captured audio")
	ErrUnknownSession   = errors.New("unknown recording session")

	// Analysis
	ErrTranscriptionFailed  = errors.New("transcription failed")
	ErrNoSpeech             = errors.New("no speech detected in recording")
	ErrClassificationFailed = errors.New("sentiment classification failed")
	ErrAnalysisFailed       = errors.New("Failed to analyze speech")

	// Collaborators
	ErrBackend    = errors.New("Backend error")
	ErrStoreWrite = errors.New("store write failed")
)

// Error represents a structured error with its creation site and additional context
type Error struct {
	// original is the underlying error
	original error

	// message is the error message
	message string

	// fields contains contextual information
	fields map[string]interface{}

	// file and line record where the error was created
	file string
	line int

	// Code is an optional error code for categorization
	Code string

	// masked errors print only their message; the cause stays matchable
	masked bool
}

func newError(original error, message, code string, skip int, fields []map[string]interface{}) *Error {
	_, file, line, _ := runtime.Caller(skip + 1)

	fieldMap := make(map[string]interface{})
	if len(fields) > 0 && fields[0] != nil {
		for k, v := range fields[0] {
			fieldMap[k] = v
		}
	}

	return &Error{
		original: original,
		message:  message,
		fields:   fieldMap,
		file:     file,
		line:     line,
		Code:     code,
	}
}

// New creates a new structured error with the given message
func New(message string, fields ...map[string]interface{}) *Error {
	return newError(errors.New(message), message, "", 1, fields)
}

// Wrap wraps an existing error with additional context
func Wrap(err error, message string, fields ...map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	return newError(err, message, "", 1, fields)
}

func (e *Error) clone(extra int) *Error {
	result := &Error{
		original: e.original,
		message:  e.message,
		fields:   make(map[string]interface{}, len(e.fields)+extra),
		file:     e.file,
		line:     e.line,
		Code:     e.Code,
		masked:   e.masked,
	}
	for k, v := range e.fields {
		result.fields[k] = v
	}
	return result
}

// WithField adds a single field to the error context
func (e *Error) WithField(key string, value interface{}) *Error {
	if e == nil {
		return nil
	}
	result := e.clone(1)
	result.fields[key] = value
	return result
}

// WithFields adds multiple fields to the error context
func (e *Error) WithFields(fields map[string]interface{}) *Error {
	if e == nil {
		return nil
	}
	result := e.clone(len(fields))
	for k, v := range fields {
		result.fields[k] = v
	}
	return result
}

// WithCode adds an error code to the error
func (e *Error) WithCode(code string) *Error {
	if e == nil {
		return nil
	}
	result := e.clone(0)
	result.Code = code
	return result
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil || e.original == nil {
		return ""
	}

	if e.message == "" {
		return e.original.Error()
	}

	if e.masked {
		return e.message
	}

	// constructors that already lead with the sentinel text
	if strings.HasPrefix(e.message, e.original.Error()) {
		return e.message
	}

	return fmt.Sprintf("%s: %v", e.message, e.original)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.original
}

// Location returns the file:line where the error was created
func (e *Error) Location() string {
	if e == nil {
		return ""
	}

	parts := strings.Split(e.file, "/")
	return fmt.Sprintf("%s:%d", parts[len(parts)-1], e.line)
}

// GetFields returns the error's context fields
func (e *Error) GetFields() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.fields
}

// GetCode returns the error's code
func (e *Error) GetCode() string {
	if e == nil {
		return ""
	}
	return e.Code
}

// AsJSON returns the error in JSON-friendly map format
func (e *Error) AsJSON() map[string]interface{} {
	if e == nil {
		return nil
	}

	result := map[string]interface{}{
		"message":  e.Error(),
		"location": e.Location(),
	}

	if e.Code != "" {
		result["code"] = e.Code
	}

	if len(e.fields) > 0 {
		result["context"] = e.fields
	}

	return result
}

// NewNotFound creates a new ErrNotFound error with additional context
func NewNotFound(message string, fields ...map[string]interface{}) *Error {
	return newError(ErrNotFound, message, "NOT_FOUND", 1, fields)
}

// NewInvalidInput creates a new ErrInvalidInput error with additional context
func NewInvalidInput(message string, fields ...map[string]interface{}) *Error {
	return newError(ErrInvalidInput, message, "INVALID_INPUT", 1, fields)
}

// NewInternalError creates a new ErrInternalError with additional context
func NewInternalError(message string, fields ...map[string]interface{}) *Error {
	return newError(ErrInternalError, message, "INTERNAL_ERROR", 1, fields)
}

// NewPermissionDenied reports that the capture device refused access
func NewPermissionDenied(device string, cause error) *Error {
	fields := map[string]interface{}{"device": device}
	if cause != nil {
		fields["cause"] = cause.Error()
	}
	return newError(ErrPermissionDenied, fmt.Sprintf("microphone access denied on %s", device), "PERMISSION_DENIED", 1, []map[string]interface{}{fields})
}

// NewAlreadyRecording reports a capture attempt while another session is active
func NewAlreadyRecording(requested, active string) *Error {
	return newError(ErrAlreadyRecording, fmt.Sprintf("cannot start %s while %s is capturing", requested, active), "ALREADY_RECORDING", 1,
		[]map[string]interface{}{{"session_id": requested, "active_session_id": active}})
}

// NewTranscriptionError wraps a speech-to-text failure. The cause stays
// reachable through errors.Is.
func NewTranscriptionError(provider string, cause error) *Error {
	original := ErrTranscriptionFailed
	if cause != nil {
		original = fmt.Errorf("%w: %w", ErrTranscriptionFailed, cause)
	}
	return newError(original, original.Error(), "TRANSCRIPTION_FAILED", 1,
		[]map[string]interface{}{{"provider": provider}})
}

// NewNoSpeech reports a transcript without words. It matches both ErrNoSpeech and ErrTranscriptionFailed.
func NewNoSpeech(provider string) *Error {
	original := fmt.Errorf("%w: %w", ErrTranscriptionFailed, ErrNoSpeech)
	return newError(original, original.Error(), "NO_SPEECH", 1,
		[]map[string]interface{}{{"provider": provider}})
}

// NewAnalysisError hides a pipeline failure behind the generic
// "Failed to analyze speech" message. errors.Is still reaches the cause.
func NewAnalysisError(cause error) *Error {
	original := ErrAnalysisFailed
	if cause != nil {
		original = fmt.Errorf("%w: %w", ErrAnalysisFailed, cause)
	}
	e := newError(original, ErrAnalysisFailed.Error(), "ANALYSIS_FAILED", 1, nil)
	e.masked = true
	return e
}

// NewClassificationError wraps a sentiment classifier failure. The cause
// stays reachable through errors.Is.
func NewClassificationError(classifier string, cause error) *Error {
	original := ErrClassificationFailed
	if cause != nil {
		original = fmt.Errorf("%w: %w", ErrClassificationFailed, cause)
	}
	return newError(original, original.Error(), "CLASSIFICATION_FAILED", 1,
		[]map[string]interface{}{{"classifier": classifier}})
}

// NewBackendError reports a non-2xx answer from the remote analysis backend.
// statusCode is omitted from the message when zero.
func NewBackendError(statusCode int, body string) *Error {
	msg := ErrBackend.Error()
	fields := map[string]interface{}{}
	if statusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, statusCode)
		fields["status_code"] = statusCode
	}
	if body != "" {
		fields["body"] = body
	}
	return newError(ErrBackend, msg, "BACKEND_ERROR", 1, []map[string]interface{}{fields})
}

// NewStoreWriteError wraps a failed collection write
func NewStoreWriteError(collection string, cause error) *Error {
	msg := fmt.Sprintf("failed to write to collection %s", collection)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return newError(ErrStoreWrite, msg, "STORE_WRITE_FAILED", 1,
		[]map[string]interface{}{{"collection": collection}})
}

// IsErrorType checks if an error is of a specific error type
func IsErrorType(err, target error) bool {
	return errors.Is(err, target)
}

// GetErrorCode extracts the error code from an error if it's a structured error
func GetErrorCode(err error) string {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.GetCode()
	}
	return ""
}

// GetErrorFields extracts fields from an error if it's a structured error
func GetErrorFields(err error) map[string]interface{} {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.GetFields()
	}
	return nil
}

// GetErrorLocation extracts location from an error if it's a structured error
func GetErrorLocation(err error) string {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Location()
	}
	return ""
}
