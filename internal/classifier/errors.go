package classifier

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse signals a 2xx upstream response whose body did not
// match the expected shape: unparseable JSON, or an MRI-positive response
// missing its classification block.
var ErrMalformedResponse = errors.New("classifier returned a malformed response")

// UpstreamError is a non-success response or transport failure from the
// external classification service. Status is 0 for transport failures.
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classifier request failed: %v", e.Err)
	}
	return fmt.Sprintf("classifier returned status %d", e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
