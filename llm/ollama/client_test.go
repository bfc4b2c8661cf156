package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nachoal/ollama-client-go/llm"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(llm.WithBaseURL(baseURL), llm.WithConnectTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func collect(t *testing.T, events <-chan llm.StreamEvent) ([]llm.StreamChunk, error) {
	t.Helper()
	var chunks []llm.StreamChunk
	var streamErr error
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return chunks, streamErr
			}
			if ev.Err != nil {
				streamErr = ev.Err
				continue
			}
			chunks = append(chunks, *ev.Chunk)
		case <-timeout:
			t.Fatalf("timed out waiting for stream to close")
		}
	}
}

func writeLines(w http.ResponseWriter, lines ...string) {
	flusher, _ := w.(http.Flusher)
	for _, line := range lines {
		fmt.Fprintln(w, line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func TestNewClient_RejectsInvalidBaseURL(t *testing.T) {
	if _, err := NewClient(llm.WithBaseURL("localhost")); err == nil {
		t.Fatalf("expected error for base URL without scheme")
	}
}

func TestGenerateStream_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("expected path /api/generate, got: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got: %s", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != defaultUserAgent {
			t.Errorf("expected User-Agent %q, got %q", defaultUserAgent, ua)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if body["model"] != "llama3.2" || body["prompt"] != "hi" {
			t.Errorf("unexpected request body: %v", body)
		}
		if _, ok := body["images"]; ok {
			t.Errorf("text request must not carry images")
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		writeLines(w,
			`{"model":"llama3.2","response":"Hello","done":false}`,
			`{"model":"llama3.2","response":" world","done":false}`,
			`{"model":"llama3.2","response":"","done":true,"done_reason":"stop","eval_count":2,"eval_duration":500000000,"total_duration":900000000,"prompt_eval_count":4}`,
		)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	events, err := c.GenerateStream(context.Background(), llm.GenerationRequest{Model: "llama3.2", Prompt: "hi"})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	chunks, streamErr := collect(t, events)
	if streamErr != nil {
		t.Fatalf("unexpected stream error: %v", streamErr)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "Hello" || chunks[1].Text != " world" {
		t.Fatalf("unexpected fragments: %q %q", chunks[0].Text, chunks[1].Text)
	}

	final := chunks[2]
	if !final.Done {
		t.Fatalf("expected final chunk to be done")
	}
	if final.EvalCount == nil || *final.EvalCount != 2 {
		t.Fatalf("expected eval_count 2, got %v", final.EvalCount)
	}
	if final.EvalDuration != 500*time.Millisecond {
		t.Fatalf("expected eval duration 500ms, got %v", final.EvalDuration)
	}
	if final.PromptEvalCount != 4 || final.DoneReason != "stop" {
		t.Fatalf("unexpected final metadata: %+v", final)
	}
}

func TestGenerateStream_SendsImageAsBase64(t *testing.T) {
	img := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model  string   `json:"model"`
			Images []string `json:"images"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(body.Images) != 1 {
			t.Errorf("expected one image, got %d", len(body.Images))
		} else if body.Images[0] != base64.StdEncoding.EncodeToString(img) {
			t.Errorf("image not base64 encoded as expected: %q", body.Images[0])
		}
		writeLines(w, `{"response":"a cat","done":true,"eval_count":2}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	events, err := c.GenerateStream(context.Background(), llm.GenerationRequest{Model: "llava", Prompt: "what?", Image: img})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if _, streamErr := collect(t, events); streamErr != nil {
		t.Fatalf("unexpected stream error: %v", streamErr)
	}
}

func TestGenerateStream_ServerErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'nope' not found"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	events, err := c.GenerateStream(context.Background(), llm.GenerationRequest{Model: "nope", Prompt: "hi"})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	chunks, streamErr := collect(t, events)
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
	var srvErr *llm.ServerError
	if !errors.As(streamErr, &srvErr) {
		t.Fatalf("expected *llm.ServerError, got %T (%v)", streamErr, streamErr)
	}
	if srvErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", srvErr.StatusCode)
	}
	if !strings.Contains(srvErr.Message, "not found") {
		t.Fatalf("expected server message to be preserved, got %q", srvErr.Message)
	}
}

func TestGenerateStream_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	c := newTestClient(t, addr)
	events, err := c.GenerateStream(context.Background(), llm.GenerationRequest{Model: "llama3.2", Prompt: "hi"})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	_, streamErr := collect(t, events)
	var connErr *llm.ConnectionError
	if !errors.As(streamErr, &connErr) {
		t.Fatalf("expected *llm.ConnectionError, got %T (%v)", streamErr, streamErr)
	}
	if connErr.Endpoint != addr {
		t.Fatalf("expected endpoint %s, got %s", addr, connErr.Endpoint)
	}
}

func TestGenerateStream_TransportDropYieldsNoFinalChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeLines(w,
			`{"response":"Hello","done":false}`,
			`{"response":" wo","done":false}`,
		)
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	events, err := c.GenerateStream(context.Background(), llm.GenerationRequest{Model: "llama3.2", Prompt: "hi"})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	chunks, streamErr := collect(t, events)
	var text strings.Builder
	for _, ch := range chunks {
		if ch.Done {
			t.Fatalf("did not expect a final chunk after a transport drop")
		}
		text.WriteString(ch.Text)
	}
	if text.String() != "Hello wo" {
		t.Fatalf("expected partial %q, got %q", "Hello wo", text.String())
	}
	if llm.IsConnectivity(streamErr) {
		t.Fatalf("a drop after connecting must not be reported as connectivity: %v", streamErr)
	}
}

func TestGenerateStream_CancelClosesStream(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeLines(w, `{"response":"tick","done":false}`)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	c := newTestClient(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	events, err := c.GenerateStream(ctx, llm.GenerationRequest{Model: "llama3.2", Prompt: "hi"})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	if ev := <-events; ev.Chunk == nil || ev.Chunk.Text != "tick" {
		t.Fatalf("expected first chunk, got %+v", ev)
	}
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			// drain any in-flight event, channel must still close
			for range events {
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("stream did not close after cancellation")
	}
}

func TestGenerateStream_RequiresModel(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	_, err := c.GenerateStream(context.Background(), llm.GenerationRequest{Prompt: "hi"})
	if !llm.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPing(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead || r.URL.Path != "/" {
			t.Errorf("expected HEAD /, got %s %s", r.Method, r.URL.Path)
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("expected healthy ping, got %v", err)
	}

	healthy.Store(false)
	err := c.Ping(context.Background())
	var srvErr *llm.ServerError
	if !errors.As(err, &srvErr) || srvErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 ServerError, got %T (%v)", err, err)
	}
}

func TestVersionAndListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/version":
			fmt.Fprint(w, `{"version":"0.5.7"}`)
		case "/api/tags":
			fmt.Fprint(w, `{"models":[
				{"name":"llama3.2:latest","size":2019393189,"details":{"family":"llama","parameter_size":"3.2B","quantization_level":"Q4_K_M"}},
				{"name":"llava:7b","size":4733363377,"details":{"family":"llama","parameter_size":"7B"}}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	version, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != "0.5.7" {
		t.Fatalf("expected version 0.5.7, got %q", version)
	}

	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].ID != "llama3.2:latest" || models[0].SupportsVision {
		t.Fatalf("unexpected first model: %+v", models[0])
	}
	if models[0].Description != "llama 3.2B · 1.9 GB" {
		t.Fatalf("unexpected description: %q", models[0].Description)
	}
	if !models[1].SupportsVision || !strings.HasSuffix(models[1].Description, "· Vision") {
		t.Fatalf("expected llava to be flagged as vision: %+v", models[1])
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
		3 << 30:         "3.0 GB",
	}
	for in, want := range cases {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
