package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriter_Create_DirectoryStructure(t *testing.T) {
	baseDir := t.TempDir()
	writer := NewWriter(baseDir)

	entry := TranscriptEntry{
		ExecutionID: "exec-123",
		Owner:       "myorg",
		Repo:        "myrepo",
		PRNumber:    123,
		Timestamp:   time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
	}

	logPath, err := writer.Create(entry)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	want := filepath.Join(baseDir, "myorg", "myrepo", "123", "2026-01-15T10-30-00-exec-123.log")
	if logPath != want {
		t.Errorf("Create() = %q, want %q", logPath, want)
	}
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file should exist")
	}
}

func TestWriter_Create_NestedNamespace(t *testing.T) {
	baseDir := t.TempDir()
	writer := NewWriter(baseDir)

	logPath, err := writer.Create(TranscriptEntry{
		ExecutionID: "e",
		Owner:       "group/../sub",
		Repo:        "repo",
		PRNumber:    1,
		Timestamp:   time.Now(),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	expectedDir := filepath.Join(baseDir, "group", "sub", "repo", "1")
	if !strings.HasPrefix(logPath, expectedDir) {
		t.Errorf("Log path %q should be under %q", logPath, expectedDir)
	}
}

func TestWriter_Append_MultipleWrites(t *testing.T) {
	baseDir := t.TempDir()
	writer := NewWriter(baseDir)

	logPath, err := writer.Create(TranscriptEntry{ExecutionID: "e", Owner: "o", Repo: "r", PRNumber: 1, Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	writer.Append(logPath, []byte("line 1\n"))
	writer.Append(logPath, []byte("line 2\n"))
	writer.Append(logPath, []byte("line 3\n"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	expected := "line 1\nline 2\nline 3\n"
	if string(content) != expected {
		t.Errorf("Content = %q, want %q", string(content), expected)
	}
}

func TestWriter_Append_NonexistentFile(t *testing.T) {
	writer := NewWriter(t.TempDir())

	err := writer.Append("/nonexistent/path/file.log", []byte("data"))
	if err == nil {
		t.Error("Append() should error for nonexistent file")
	}
}

func TestTranscript_Printf(t *testing.T) {
	writer := NewWriter(t.TempDir())

	tr, err := writer.Open(TranscriptEntry{ExecutionID: "e", Owner: "o", Repo: "r", PRNumber: 9, Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := tr.Printf("stage %s", "fetch_pr"); err != nil {
		t.Fatalf("Printf() error = %v", err)
	}
	if err := tr.Printf("done\n"); err != nil {
		t.Fatalf("Printf() error = %v", err)
	}

	content, err := os.ReadFile(tr.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("transcript has %d lines, want 2: %q", len(lines), content)
	}
	if !strings.HasSuffix(lines[0], " stage fetch_pr") {
		t.Errorf("line 0 = %q, want timestamped stage line", lines[0])
	}
}
