package history

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "nested", "history.jsonl"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestRecent_EmptyWhenNoFile(t *testing.T) {
	m := newTestManager(t)

	records, err := m.Recent(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestAppend_FillsIDAndTime(t *testing.T) {
	m := newTestManager(t)
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	rec, err := m.Append(Record{Kind: "text", Prompt: "hello", Status: StatusOK})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.CreatedAt.Equal(fixed) {
		t.Fatalf("expected created_at %v, got %v", fixed, rec.CreatedAt)
	}
	if !strings.HasPrefix(rec.ID, "20250304_050607_") || len(rec.ID) != len("20250304_050607_")+6 {
		t.Fatalf("unexpected id %q", rec.ID)
	}
}

func TestGenerateRandomID(t *testing.T) {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := generateRandomID(8)
		if len(id) != 8 {
			t.Fatalf("expected 8 characters, got %q", id)
		}
		for _, c := range id {
			if !strings.ContainsRune(charset, c) {
				t.Fatalf("unexpected character %q in %q", c, id)
			}
		}
		seen[id] = true
	}
	if len(seen) < 2 {
		t.Fatalf("ids must be random, got %v", seen)
	}
}

func TestRecent_NewestFirstWithLimit(t *testing.T) {
	m := newTestManager(t)
	for _, prompt := range []string{"first", "second", "third"} {
		if _, err := m.Append(Record{Prompt: prompt, Status: StatusOK}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	records, err := m.Recent(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || records[0].Prompt != "third" || records[1].Prompt != "second" {
		t.Fatalf("unexpected records %+v", records)
	}

	all, err := m.Recent(0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all 3 records, got %d (%v)", len(all), err)
	}
}

func TestRecent_SkipsCorruptLines(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Append(Record{Prompt: "good", Status: StatusOK}); err != nil {
		t.Fatalf("append: %v", err)
	}
	f, err := os.OpenFile(m.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.WriteString("{not json\n\n")
	f.Close()

	records, err := m.Recent(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Prompt != "good" {
		t.Fatalf("expected only the valid record, got %+v", records)
	}
}

func TestAppend_Concurrent(t *testing.T) {
	m := newTestManager(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Append(Record{Prompt: "p", Status: StatusOK}); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	records, err := m.Recent(0)
	if err != nil || len(records) != 20 {
		t.Fatalf("expected 20 records, got %d (%v)", len(records), err)
	}
}

func TestRecordTitle(t *testing.T) {
	rec := Record{Prompt: "  Explain the difference between goroutines and OS threads in detail please\nsecond line"}
	title := rec.Title()
	if len([]rune(title)) != 50 || !strings.HasSuffix(title, "...") {
		t.Fatalf("unexpected title %q", title)
	}
	if (Record{Prompt: "short"}).Title() != "short" {
		t.Fatalf("short prompts must be kept")
	}
}

func TestNewManager_EmptyPath(t *testing.T) {
	if _, err := NewManager(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
