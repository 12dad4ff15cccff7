package scanning

import (
	"context"
	"errors"
	"fmt"
)

// ConfigurationError is reported before any model call when the backend cannot be used
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration missing: " + e.Message
}

// ContentPolicyBlock means the backend refused the request on safety grounds.
// Retrying cannot change the outcome.
type ContentPolicyBlock struct {
	Reason string
	Err    error
}

func (e *ContentPolicyBlock) Error() string {
	if e.Reason == "" {
		return "blocked by content policy"
	}
	return fmt.Sprintf("blocked by content policy: %s", e.Reason)
}

func (e *ContentPolicyBlock) Unwrap() error {
	return e.Err
}

// InferenceError is the terminal failure after the retry budget is spent
type InferenceError struct {
	Attempts int
	Err      error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// DecodeFailure means no decoding tier recovered a receipt from the model output
type DecodeFailure struct {
	Message string
	RawText string
}

func (e *DecodeFailure) Error() string {
	return e.Message
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether retrying err is pointless
func IsPermanent(err error) bool {
	var (
		perm   *permanentError
		policy *ContentPolicyBlock
		cfg    *ConfigurationError
	)
	switch {
	case errors.As(err, &perm), errors.As(err, &policy), errors.As(err, &cfg):
		return true
	case errors.Is(err, context.Canceled):
		return true
	}
	return false
}
