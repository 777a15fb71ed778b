package aggregation

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when a fetch task did not end within the configured attempts or time
var ErrTimeout = errors.New("the fetch task did not end in time")

// UpstreamError is returned when the resource API answered with a non-success status code
type UpstreamError struct {
	Operation string
	Status    int
	Body      string
}

func (err *UpstreamError) Error() string {
	return fmt.Sprintf("resource API operation '%s' failed with status %d: %s", err.Operation, err.Status, err.Body)
}
