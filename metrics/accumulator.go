package metrics

import (
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/nachoal/ollama-client-go/llm"
)

// TokenSource tells where a token count came from
type TokenSource string

const (
	// SourceServer means the server reported eval_count on the final chunk
	SourceServer TokenSource = "server"
	// SourceEstimated means the count is a whitespace word count of the output
	SourceEstimated TokenSource = "estimated"
)

// Below this, throughput is reported as unavailable instead of divided.
const minElapsed = time.Millisecond

// Snapshot is the read-only result of one accumulated stream
type Snapshot struct {
	Start       time.Time
	End         time.Time
	TotalTokens int
	TotalChars  int
	TokenSource TokenSource

	// Server-side timings from the final chunk, zero when not reported
	PromptEvalCount    int
	PromptEvalDuration time.Duration
	EvalDuration       time.Duration
	LoadDuration       time.Duration
	TotalDuration      time.Duration
}

// Elapsed is the client-side wall clock time of the stream
func (s Snapshot) Elapsed() time.Duration {
	return s.End.Sub(s.Start)
}

// TokensPerSecond returns client-side throughput. ok is false when the
// elapsed time is too small to divide by.
func (s Snapshot) TokensPerSecond() (rate float64, ok bool) {
	elapsed := s.Elapsed()
	if elapsed < minElapsed {
		return 0, false
	}
	return float64(s.TotalTokens) / elapsed.Seconds(), true
}

// ServerTokensPerSecond returns the server's own generation rate, available
// only when the server reported both a token count and an eval duration.
func (s Snapshot) ServerTokensPerSecond() (rate float64, ok bool) {
	if s.TokenSource != SourceServer || s.EvalDuration < minElapsed {
		return 0, false
	}
	return float64(s.TotalTokens) / s.EvalDuration.Seconds(), true
}

// FormatRate renders a rate returned by TokensPerSecond
func FormatRate(rate float64, ok bool) string {
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", rate)
}

// Accumulator tracks one generation stream. It is owned by a single call
// and is not safe for concurrent use.
type Accumulator struct {
	now func() time.Time

	start  time.Time
	chars  int
	words  int
	inWord bool

	serverTokens *int
	final        llm.StreamChunk
}

// Option configures an Accumulator
type Option func(*Accumulator)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(a *Accumulator) {
		a.now = now
	}
}

// New creates an accumulator. Call Start before recording.
func New(opts ...Option) *Accumulator {
	a := &Accumulator{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start records the start time and zeroes all counters
func (a *Accumulator) Start() {
	a.start = a.now()
	a.chars = 0
	a.words = 0
	a.inWord = false
	a.serverTokens = nil
	a.final = llm.StreamChunk{}
}

// Record feeds one chunk into the counters
func (a *Accumulator) Record(chunk llm.StreamChunk) {
	a.chars += utf8.RuneCountInString(chunk.Text)

	// Word boundaries can fall between chunks, so the in-word state carries over.
	for _, r := range chunk.Text {
		if unicode.IsSpace(r) {
			a.inWord = false
			continue
		}
		if !a.inWord {
			a.words++
			a.inWord = true
		}
	}

	if chunk.Done {
		a.final = chunk
		if chunk.EvalCount != nil {
			count := *chunk.EvalCount
			a.serverTokens = &count
		}
	}
}

// Finish returns the snapshot for everything recorded since Start
func (a *Accumulator) Finish() Snapshot {
	end := a.now()
	start := a.start
	if start.IsZero() {
		start = end
	}

	snap := Snapshot{
		Start:              start,
		End:                end,
		TotalChars:         a.chars,
		TotalTokens:        a.words,
		TokenSource:        SourceEstimated,
		PromptEvalCount:    a.final.PromptEvalCount,
		PromptEvalDuration: a.final.PromptEvalDuration,
		EvalDuration:       a.final.EvalDuration,
		LoadDuration:       a.final.LoadDuration,
		TotalDuration:      a.final.TotalDuration,
	}
	if a.serverTokens != nil {
		snap.TotalTokens = *a.serverTokens
		snap.TokenSource = SourceServer
	}
	return snap
}
