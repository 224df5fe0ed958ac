package submit

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// GenericUploadMessage is shown when the backend error carries no message.
const GenericUploadMessage = "File upload error. Please try again."

var ErrSubmissionInProgress = errors.New("a submission is already in progress")

// ValidationError carries the validator's messages. No network call was made.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "\n")
}

// PreconditionError means the submission could not start, e.g. nobody is
// logged in.
type PreconditionError struct {
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// NetworkError is a transport failure before any response was read.
type NetworkError struct {
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TimeoutError is an attempt that exceeded its deadline.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// ServerError is a non-2xx response.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// UserMessage renders err for display next to the form.
func UserMessage(err error) string {
	var (
		validationErr   *ValidationError
		preconditionErr *PreconditionError
		timeoutErr      *TimeoutError
		networkErr      *NetworkError
		serverErr       *ServerError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return validationErr.Error()
	case errors.Is(err, ErrSubmissionInProgress):
		return "A submission is already in progress."
	case errors.As(err, &preconditionErr):
		return preconditionErr.Reason
	case errors.As(err, &timeoutErr):
		return "The request timed out. Check your connection and try again."
	case errors.As(err, &networkErr):
		return "Could not reach the server. Check your connection and try again."
	case errors.As(err, &serverErr):
		return serverErr.Message
	}

	return "Something went wrong. Please try again."
}
