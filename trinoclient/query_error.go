package trinoclient

import (
	"fmt"
)

// QueryError represents an error that occurred during query execution on the Trino server.
// It contains detailed information about the error, including its type, location, and cause.
type QueryError struct {
	// Message is the human-readable error message
	Message string `json:"message"`

	// ErrorCode is a numeric code identifying the error type
	ErrorCode int `json:"errorCode"`

	// ErrorName is a string identifier for the error type
	ErrorName string `json:"errorName"`

	// ErrorType categorizes the error (e.g., "USER_ERROR", "INTERNAL_ERROR")
	ErrorType string `json:"errorType"`

	// Retriable indicates whether the query can be retried
	Retriable bool `json:"retriable"`

	// ErrorLocation contains line and column information for syntax errors
	ErrorLocation *ErrorLocation `json:"errorLocation,omitempty"`

	// FailureInfo contains detailed information about the failure
	FailureInfo *FailureInfo `json:"failureInfo,omitempty"`
}

// String returns "ErrorName: Message", with the location appended for syntax errors.
func (q *QueryError) String() string {
	if q == nil {
		return "nil QueryError"
	}
	if q.ErrorLocation != nil {
		return fmt.Sprintf("%s: %s (%s)", q.ErrorName, q.Message, q.ErrorLocation)
	}
	return fmt.Sprintf("%s: %s", q.ErrorName, q.Message)
}

func (q *QueryError) Error() string {
	return q.String()
}

// ErrorLocation represents the position in a SQL query where an error occurred.
type ErrorLocation struct {
	LineNumber   int `json:"lineNumber"`
	ColumnNumber int `json:"columnNumber"`
}

func (e *ErrorLocation) String() string {
	return fmt.Sprintf("line %d:%d", e.LineNumber, e.ColumnNumber)
}

// FailureInfo contains the server-side exception chain of a failed query.
type FailureInfo struct {
	// Type is the Java class name of the exception
	Type string `json:"type"`

	Message string       `json:"message,omitempty"`
	Cause   *FailureInfo `json:"cause,omitempty"`

	Suppressed []FailureInfo `json:"suppressed"`
	Stack      []string      `json:"stack"`

	ErrorLocation *ErrorLocation `json:"errorLocation,omitempty"`
}
