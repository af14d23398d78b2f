package models

import (
	"fmt"

	"go.temporal.io/sdk/temporal"
)

// ErrorType categorizes errors for appropriate handling
//
// Maps to: codex-rs/core/src/function_tool.rs error categorization
type ErrorType int

const (
	ErrorTypeTransient        ErrorType = iota // Network, timeout → Temporal retries
	ErrorTypeContextOverflow                   // Context window exceeded → ContinueAsNew
	ErrorTypeAPILimit                          // Rate limit → surface to user
	ErrorTypeToolFailure                       // Individual tool failed → continue workflow
	ErrorTypeFatal                             // Unrecoverable → stop workflow

	// ErrorTypeInvalidInput flags a caller-supplied argument that fails
	// validation before any I/O is attempted (spec §7 InvalidInput).
	ErrorTypeInvalidInput
	// ErrorTypeInvalidData flags a value read back from storage (config,
	// rollout) that does not parse or fails an ordering/shape invariant
	// (spec §7 InvalidData).
	ErrorTypeInvalidData
	// ErrorTypeConfigVersionConflict signals that a config write's
	// expected_version did not match the on-disk fingerprint (spec §7).
	ErrorTypeConfigVersionConflict
	// ErrorTypeSandboxDenied signals a tool execution rejected by the OS
	// sandbox (permission denied, read-only filesystem, seccomp/landlock).
	ErrorTypeSandboxDenied
	// ErrorTypeSandboxTimeout signals a sandboxed execution exceeded its
	// time budget without the process itself reporting a timeout.
	ErrorTypeSandboxTimeout
	// ErrorTypeToolRejected signals a second sandbox failure after the
	// one permitted no-sandbox retry (spec §4.C retry-after-escalation) —
	// surfaced to the user as a tool error, not a fatal workflow failure.
	ErrorTypeToolRejected
	// ErrorTypeStream signals a model-stream transport failure (parse
	// error, idle timeout, malformed frame) — spec §4.D/§7.
	ErrorTypeStream
	// ErrorTypeTransport wraps HTTP-layer failure metadata (status code,
	// body) from the model-stream transport (spec §7 Transport(status, body)).
	ErrorTypeTransport
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeTransient:
		return "Transient"
	case ErrorTypeContextOverflow:
		return "ContextOverflow"
	case ErrorTypeAPILimit:
		return "APILimit"
	case ErrorTypeToolFailure:
		return "ToolFailure"
	case ErrorTypeFatal:
		return "Fatal"
	case ErrorTypeInvalidInput:
		return "InvalidInput"
	case ErrorTypeInvalidData:
		return "InvalidData"
	case ErrorTypeConfigVersionConflict:
		return "ConfigVersionConflict"
	case ErrorTypeSandboxDenied:
		return "SandboxDenied"
	case ErrorTypeSandboxTimeout:
		return "SandboxTimeout"
	case ErrorTypeToolRejected:
		return "ToolRejected"
	case ErrorTypeStream:
		return "Stream"
	case ErrorTypeTransport:
		return "Transport"
	default:
		return "Unknown"
	}
}

// ActivityError represents an error from a Temporal activity with categorization
//
// Maps to: codex-rs/core/src/function_tool.rs error handling
type ActivityError struct {
	Type      ErrorType              `json:"type"`
	Retryable bool                   `json:"retryable"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *ActivityError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// NewTransientError creates a retryable transient error
func NewTransientError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeTransient,
		Retryable: true,
		Message:   message,
	}
}

// NewContextOverflowError creates a context overflow error
func NewContextOverflowError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeContextOverflow,
		Retryable: false,
		Message:   message,
	}
}

// NewAPILimitError creates an API rate limit error
func NewAPILimitError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeAPILimit,
		Retryable: true,
		Message:   message,
	}
}

// NewToolFailureError creates a tool failure error
func NewToolFailureError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeToolFailure,
		Retryable: false,
		Message:   message,
	}
}

// NewFatalError creates a fatal error
func NewFatalError(message string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeFatal,
		Retryable: false,
		Message:   message,
	}
}

// NewInvalidInputError creates a non-retryable invalid-input error.
func NewInvalidInputError(message string) *ActivityError {
	return &ActivityError{Type: ErrorTypeInvalidInput, Retryable: false, Message: message}
}

// NewInvalidDataError creates a non-retryable invalid-data error, for
// values read back from storage that fail to parse or violate an ordering
// invariant.
func NewInvalidDataError(message string) *ActivityError {
	return &ActivityError{Type: ErrorTypeInvalidData, Retryable: false, Message: message}
}

// NewConfigVersionConflictError creates the error a config write returns
// when expected_version does not match the on-disk fingerprint.
func NewConfigVersionConflictError(message string) *ActivityError {
	return &ActivityError{Type: ErrorTypeConfigVersionConflict, Retryable: false, Message: message}
}

// NewSandboxDeniedError creates a Sandbox(Denied) error for a command the
// OS sandbox refused to run.
func NewSandboxDeniedError(message string) *ActivityError {
	return &ActivityError{Type: ErrorTypeSandboxDenied, Retryable: false, Message: message}
}

// NewSandboxTimeoutError creates a Sandbox(Timeout) error for a sandboxed
// execution that exceeded its time budget.
func NewSandboxTimeoutError(message string) *ActivityError {
	return &ActivityError{Type: ErrorTypeSandboxTimeout, Retryable: false, Message: message}
}

// NewToolRejectedError creates the error surfaced to the user after the one
// permitted no-sandbox retry also fails (spec §4.C retry-after-escalation).
func NewToolRejectedError(message string) *ActivityError {
	return &ActivityError{Type: ErrorTypeToolRejected, Retryable: false, Message: message}
}

// NewStreamError creates a model-stream transport/parse failure error.
func NewStreamError(message string) *ActivityError {
	return &ActivityError{Type: ErrorTypeStream, Retryable: true, Message: message}
}

// NewTransportError creates a Transport(status, body) error, carrying the
// failing HTTP status and response body in Details.
func NewTransportError(status int, body string) *ActivityError {
	return &ActivityError{
		Type:      ErrorTypeTransport,
		Retryable: status >= 500 || status == 408 || status == 429,
		Message:   fmt.Sprintf("transport error: status %d", status),
		Details:   map[string]interface{}{"status": status, "body": body},
	}
}

// WrapActivityError converts an ActivityError into the temporal.ApplicationError
// the workflow layer expects at the activity boundary: Type() reports the
// ErrorType name, NonRetryable() reports !Retryable, and Details carry a
// ToolErrorDetails{Reason} the workflow can read back without parsing the
// message string.
//
// Maps to: codex-rs/core/src/function_tool.rs error boundary conversion
func WrapActivityError(err *ActivityError) error {
	details := ToolErrorDetails{Reason: err.Message}
	if err.Retryable {
		return temporal.NewApplicationError(err.Message, err.Type.String(), details)
	}
	return temporal.NewNonRetryableApplicationError(err.Message, err.Type.String(), nil, details)
}

// NewToolNotFoundError builds the non-retryable ApplicationError ExecuteTool
// returns when the requested tool name has no registered handler.
func NewToolNotFoundError(toolName string) error {
	reason := fmt.Sprintf("tool %q not found", toolName)
	return temporal.NewNonRetryableApplicationError(reason, "ToolNotFound", nil, ToolErrorDetails{Reason: reason})
}

// NewToolTimeoutError builds the non-retryable ApplicationError ExecuteTool
// returns when a handler exceeds its context deadline.
func NewToolTimeoutError(toolName string, cause error) error {
	reason := fmt.Sprintf("tool %q timed out: %v", toolName, cause)
	return temporal.NewNonRetryableApplicationError(reason, "ToolTimeout", cause, ToolErrorDetails{Reason: reason})
}

// NewToolValidationError builds the non-retryable ApplicationError
// ExecuteTool returns when a handler rejects its arguments or fails during
// execution in a way a retry would not fix.
func NewToolValidationError(toolName string, cause error) error {
	reason := fmt.Sprintf("tool %q failed: %v", toolName, cause)
	return temporal.NewNonRetryableApplicationError(reason, "ToolValidation", cause, ToolErrorDetails{Reason: reason})
}
