package history

import (
	"time"
)

// Status of a recorded run
const (
	StatusOK         = "ok"
	StatusIncomplete = "incomplete"
	StatusFailed     = "failed"
)

// Record is one line of the run log
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Kind      string    `json:"kind"`
	Target    string    `json:"target"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Model     string    `json:"model,omitempty"`
	Prompt    string    `json:"prompt"`
	Image     string    `json:"image,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Fallback  bool      `json:"fallback,omitempty"`

	Tokens          int     `json:"tokens,omitempty"`
	TokenSource     string  `json:"token_source,omitempty"`
	Chars           int     `json:"chars,omitempty"`
	ElapsedMS       int64   `json:"elapsed_ms,omitempty"`
	TokensPerSecond float64 `json:"tokens_per_second,omitempty"`
}

// Title returns a one-line summary of the prompt
func (r Record) Title() string {
	return summarize(r.Prompt, 50)
}
