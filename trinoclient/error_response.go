package trinoclient

import (
	"fmt"
	"io"
	"net/http"
)

// ErrorResponse represents a non-200 HTTP response from the coordinator.
type ErrorResponse struct {
	// Response is the original HTTP response
	Response *http.Response

	// Message is the error message from the response body
	Message string
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("trino server error: %s (status code: %d)", e.Message, e.Response.StatusCode)
}

// NewErrorResponse reads and closes the body of resp and wraps it in an ErrorResponse.
func NewErrorResponse(resp *http.Response) error {
	defer resp.Body.Close()
	bytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return &ErrorResponse{
		Response: resp,
		Message:  string(bytes),
	}
}
