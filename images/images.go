package images

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nachoal/ollama-client-go/llm"
)

// Extensions lists the file types offered for analysis
var Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// IsImage reports whether name has a supported extension, ignoring case
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// List returns the sorted image file names in dir. The directory is created
// when missing, in which case the list is empty.
func List(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read images directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the bytes of the image name inside dir
func Read(dir, name string) ([]byte, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return nil, &llm.InvalidImageError{Name: name, Reason: "must be a file name inside " + dir}
	}
	if !IsImage(name) {
		return nil, &llm.InvalidImageError{Name: name, Reason: "unsupported file type"}
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &llm.InvalidImageError{Name: name, Reason: "file not found"}
		}
		return nil, fmt.Errorf("failed to read image %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, &llm.InvalidImageError{Name: name, Reason: "file is empty"}
	}
	return data, nil
}

// EncodedLen returns the size of n image bytes in the base64 form the server receives
func EncodedLen(n int) int {
	return base64.StdEncoding.EncodedLen(n)
}
