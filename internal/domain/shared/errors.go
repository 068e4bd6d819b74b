package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound     = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState = NewDomainError("INVALID_STATE", "Operation not allowed in current state")

	// ErrAdapterUnavailable marks a transient downstream failure (timeout, 5xx,
	// rate limit). The next event for the same subject re-attempts the work.
	ErrAdapterUnavailable = NewDomainError("ADAPTER_UNAVAILABLE", "Downstream system temporarily unavailable")

	// ErrAdapterRejected marks a permanent downstream failure (bad credentials,
	// malformed request). Operator-actionable, retrying will not help.
	ErrAdapterRejected = NewDomainError("ADAPTER_REJECTED", "Downstream system rejected the request")
)
