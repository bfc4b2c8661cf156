package llm

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestIsConnectivity(t *testing.T) {
	connErr := &ConnectionError{Endpoint: "http://10.0.0.5:11434", Err: io.EOF}
	srvErr := &ServerError{Endpoint: "http://10.0.0.5:11434", StatusCode: 500}
	streamErr := &StreamError{Endpoint: "http://10.0.0.5:11434", Partial: "Hel", Err: io.ErrUnexpectedEOF}

	if !IsConnectivity(connErr) {
		t.Fatalf("expected ConnectionError to be connectivity-class")
	}
	if !IsConnectivity(fmt.Errorf("wrapped: %w", srvErr)) {
		t.Fatalf("expected wrapped ServerError to be connectivity-class")
	}
	if IsConnectivity(streamErr) {
		t.Fatalf("StreamError must not trigger fallback")
	}
	if IsConnectivity(&ConfigurationError{Key: "server_ip", Err: ErrRemoteNotConfigured}) {
		t.Fatalf("ConfigurationError must not be connectivity-class")
	}
}

func TestConfigurationError_UnwrapsSentinel(t *testing.T) {
	err := error(&ConfigurationError{Key: "server_ip", Err: ErrRemoteNotConfigured})
	if !errors.Is(err, ErrRemoteNotConfigured) {
		t.Fatalf("expected errors.Is to find ErrRemoteNotConfigured")
	}
	if !IsConfiguration(err) {
		t.Fatalf("expected IsConfiguration to be true")
	}
	if got := err.Error(); got != "configuration error (server_ip): no remote configured" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestPartialText(t *testing.T) {
	err := fmt.Errorf("generation: %w", &StreamError{Partial: "Hello wo", Err: io.ErrUnexpectedEOF})
	partial, ok := PartialText(err)
	if !ok || partial != "Hello wo" {
		t.Fatalf("expected partial %q, got %q (ok=%v)", "Hello wo", partial, ok)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected cause to be preserved")
	}

	if _, ok := PartialText(io.EOF); ok {
		t.Fatalf("expected no partial text for plain errors")
	}
}
