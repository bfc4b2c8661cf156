package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew_DefaultHidesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(false, &buf)

	logger.Debug().Msg("hidden detail")
	logger.Warn().Str("from", "remote").Msg("falling back")

	out := buf.String()
	if strings.Contains(out, "hidden detail") {
		t.Fatalf("debug output must be hidden by default: %q", out)
	}
	if !strings.Contains(out, "falling back") || !strings.Contains(out, "from=remote") {
		t.Fatalf("expected warning with fields, got %q", out)
	}
}

func TestNew_VerboseShowsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(true, &buf)
	logger.Debug().Msg("starting generation")

	if !strings.Contains(buf.String(), "starting generation") {
		t.Fatalf("expected debug output, got %q", buf.String())
	}
}
