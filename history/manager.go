package history

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Lines longer than this are skipped when reading the log
const maxLineSize = 1 << 20

// Manager appends runs to a JSONL file and reads them back
type Manager struct {
	path string
	mu   sync.RWMutex
	now  func() time.Time
}

// NewManager creates a manager writing to path. The parent directory is created.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &Manager{path: path, now: time.Now}, nil
}

// Path returns the log file location
func (m *Manager) Path() string {
	return m.path
}

// Append writes rec as one line. ID and CreatedAt are filled in when empty.
func (m *Manager) Append(rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("%s_%s", rec.CreatedAt.Format("20060102_150405"), generateRandomID(6))
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return rec, fmt.Errorf("failed to marshal record: %w", err)
	}

	f, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return rec, fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return rec, fmt.Errorf("failed to write history file: %w", err)
	}
	return rec, nil
}

// Recent returns up to n records, newest first. n <= 0 returns all of them.
// Corrupt lines are skipped.
func (m *Manager) Recent(n int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, err := os.Open(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	// Reverse so the newest is first
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records, nil
}

func summarize(text string, limit int) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx != -1 {
		text = text[:idx]
	}
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit-3]) + "..."
	}
	return text
}

func generateRandomID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, length)
	// crypto/rand.Read never returns an error since Go 1.24; it crashes instead
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = charset[b[i]%byte(len(charset))]
	}
	return string(b)
}
