package logging

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Cleaner expires validation transcripts laid out by Writer as
// <owner>/<repo>/<pr>/<timestamp>-<execution>.log.
type Cleaner struct {
	baseDir   string
	retention time.Duration
	now       func() time.Time
}

// NewCleaner keeps transcripts for retentionDays after their run started.
func NewCleaner(baseDir string, retentionDays int) *Cleaner {
	return &Cleaner{
		baseDir:   baseDir,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Cleanup deletes expired transcripts and then the pull request, repository
// and owner directories they leave empty. It returns the number of
// transcripts deleted.
func (c *Cleaner) Cleanup() (int, error) {
	cutoff := c.now().Add(-c.retention)
	deleted := 0
	emptied := map[string]bool{}

	err := filepath.WalkDir(c.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == c.baseDir && os.IsNotExist(err) {
				return fs.SkipAll
			}
			return nil
		}
		if d.IsDir() || !c.isTranscript(path) {
			return nil
		}
		started, ok := startedAt(d)
		if !ok || !started.Before(cutoff) {
			return nil
		}
		if os.Remove(path) == nil {
			deleted++
			emptied[filepath.Dir(path)] = true
		}
		return nil
	})

	for dir := range emptied {
		c.prune(dir)
	}
	return deleted, err
}

// isTranscript reports whether path sits in a pull request directory at
// least three levels below the base directory.
func (c *Cleaner) isTranscript(path string) bool {
	if !strings.HasSuffix(path, ".log") {
		return false
	}
	rel, err := filepath.Rel(c.baseDir, path)
	if err != nil || len(strings.Split(rel, string(filepath.Separator))) < 4 {
		return false
	}
	_, err = strconv.Atoi(filepath.Base(filepath.Dir(path)))
	return err == nil
}

// startedAt reads the run start from the file name, falling back to the
// modification time for files not named by Writer.
func startedAt(d fs.DirEntry) (time.Time, bool) {
	name := d.Name()
	if len(name) > len(timestampLayout) {
		if t, err := time.Parse(timestampLayout, name[:len(timestampLayout)]); err == nil {
			return t, true
		}
	}
	info, err := d.Info()
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// prune removes dir and its parents while they are empty, stopping at the
// base directory.
func (c *Cleaner) prune(dir string) {
	base := filepath.Clean(c.baseDir)
	for dir = filepath.Clean(dir); dir != base && strings.HasPrefix(dir, base); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			return
		}
	}
}
