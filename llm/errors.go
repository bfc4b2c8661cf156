package llm

import (
	"errors"
	"fmt"
)

// ErrRemoteNotConfigured is wrapped by the ConfigurationError returned when
// a remote endpoint is requested but no remote host is set.
var ErrRemoteNotConfigured = errors.New("no remote configured")

// ConfigurationError reports missing or invalid settings.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Key != "" {
		msg += " (" + e.Key + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ConnectionError reports that the transport to an endpoint could not be established.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ServerError reports a non-success status after the connection was made.
type ServerError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("server %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// StreamError reports a stream that ended abnormally. Partial holds the
// text received before the failure.
type StreamError struct {
	Endpoint string
	Partial  string
	Err      error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream from %s incomplete after %d bytes: %v", e.Endpoint, len(e.Partial), e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// InvalidImageError reports unusable image input. It is never retried.
type InvalidImageError struct {
	Name   string
	Reason string
}

func (e *InvalidImageError) Error() string {
	if e.Name == "" {
		return "invalid image: " + e.Reason
	}
	return fmt.Sprintf("invalid image %s: %s", e.Name, e.Reason)
}

// IsConnectivity reports whether err should trigger a fallback to another endpoint.
func IsConnectivity(err error) bool {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return true
	}
	var srvErr *ServerError
	return errors.As(err, &srvErr)
}

// IsConfiguration reports whether err is a ConfigurationError
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// PartialText returns the text carried by a StreamError, if any.
func PartialText(err error) (string, bool) {
	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return streamErr.Partial, true
	}
	return "", false
}
