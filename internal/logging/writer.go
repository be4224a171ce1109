package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TranscriptEntry identifies the run a transcript belongs to.
type TranscriptEntry struct {
	ExecutionID string
	Owner       string
	Repo        string
	PRNumber    int
	Timestamp   time.Time
}

// timestampLayout prefixes every transcript file name with the run start.
const timestampLayout = "2006-01-02T15-04-05"

// Writer manages transcript files organized by repository and pull request.
type Writer struct {
	baseDir string
}

// NewWriter creates a new Writer with the specified base directory.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// Create creates a new transcript file for the given entry and returns the path.
// Directory structure: baseDir/owner/repo/prNumber/timestamp-executionID.log
func (w *Writer) Create(entry TranscriptEntry) (string, error) {
	dir := filepath.Join(
		w.baseDir,
		safeSegment(entry.Owner),
		safeSegment(entry.Repo),
		fmt.Sprint(entry.PRNumber),
	)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating log directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%s.log",
		entry.Timestamp.UTC().Format(timestampLayout),
		entry.ExecutionID,
	)

	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating log file: %w", err)
	}
	f.Close()

	return path, nil
}

// Append writes data to the specified log file.
func (w *Writer) Append(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// Open creates a transcript for entry.
func (w *Writer) Open(entry TranscriptEntry) (*Transcript, error) {
	path, err := w.Create(entry)
	if err != nil {
		return nil, err
	}
	return &Transcript{writer: w, path: path}, nil
}

// Transcript appends timestamped lines to one run's log file.
type Transcript struct {
	mu     sync.Mutex
	writer *Writer
	path   string
}

// Path returns the transcript file location.
func (t *Transcript) Path() string {
	return t.path
}

// Printf appends one line.
func (t *Transcript) Printf(format string, args ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	line := time.Now().UTC().Format(time.RFC3339) + " " + fmt.Sprintf(format, args...)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	return t.writer.Append(t.path, []byte(line))
}

// safeSegment keeps path components inside the base directory. GitLab
// namespaces may contain slashes and become nested directories.
func safeSegment(s string) string {
	parts := strings.Split(s, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return "_"
	}
	return filepath.Join(kept...)
}
