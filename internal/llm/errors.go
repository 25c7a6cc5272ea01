package llm

import (
	"errors"
	"fmt"
)

// ConfigurationError means the analyzer cannot run because its credential is
// missing or malformed. No request is sent when it is returned.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Setting, e.Reason)
}

// RemoteError wraps a failure of the outbound call itself: network errors,
// rejected requests, quota or auth failures reported by the provider.
type RemoteError struct {
	Provider string
	Err      error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ResponseFormatError means a response arrived but did not match the report
// shape. Raw holds the response text for diagnosis.
type ResponseFormatError struct {
	Raw string
	Err error
}

func (e *ResponseFormatError) Error() string {
	return fmt.Sprintf("malformed analysis response: %v", e.Err)
}

func (e *ResponseFormatError) Unwrap() error { return e.Err }

// Failure kinds returned by ErrorKind.
const (
	KindConfiguration  = "configuration"
	KindRemote         = "remote"
	KindResponseFormat = "response_format"
	KindInternal       = "internal"
)

// ErrorKind classifies an analysis error for logging, metrics and display.
func ErrorKind(err error) string {
	var configErr *ConfigurationError
	var remoteErr *RemoteError
	var formatErr *ResponseFormatError
	switch {
	case errors.As(err, &configErr):
		return KindConfiguration
	case errors.As(err, &remoteErr):
		return KindRemote
	case errors.As(err, &formatErr):
		return KindResponseFormat
	default:
		return KindInternal
	}
}
