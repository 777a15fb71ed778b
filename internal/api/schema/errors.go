package schema

var emptyMap = map[string]interface{}{}

var (
	ErrInternal = &Error{
		Type:    "generic.internal",
		Message: "An internal error occurred.",
		Details: emptyMap,
	}
	ErrNotFound = &Error{
		Type:    "generic.notFound",
		Message: "Resource not found.",
		Details: emptyMap,
	}
	ErrMethodNotAllowed = &Error{
		Type:    "generic.methodNotAllowed",
		Message: "Method not allowed.",
		Details: emptyMap,
	}
	ErrUpstreamTimeout = &Error{
		Type:    "aggregation.timeout",
		Message: "The data aggregation did not finish in time.",
		Details: emptyMap,
	}
)

// ErrUpstream builds the error sent when the resource API rejected an aggregation call
func ErrUpstream(operation string, status int) *Error {
	return &Error{
		Type:    "aggregation.upstream",
		Message: "The resource API rejected a request of the data aggregation.",
		Details: map[string]interface{}{
			"operation": operation,
			"status":    status,
		},
	}
}

// ErrorResponse represents the response structure sent whenever errors occurred
type ErrorResponse struct {
	Status int      `json:"status"`
	Errors []*Error `json:"errors"`
}

// Error represents a single error present in the ErrorResponse
type Error struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details"`
}
