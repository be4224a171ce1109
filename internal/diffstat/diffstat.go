// Package diffstat summarizes unified diffs.
package diffstat

import (
	"strings"

	"github.com/waigani/diffparser"
)

// Stats counts the files and lines touched by a diff.
type Stats struct {
	Files     int `json:"files"`
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	// Scope is the deepest directory containing every changed file.
	Scope string `json:"scope,omitempty"`
}

// Compute parses diff and counts its changes. Input that cannot be parsed
// yields zero Stats.
func Compute(diff string) (stats Stats) {
	if strings.TrimSpace(diff) == "" {
		return Stats{}
	}

	// diffparser indexes into the current file without checking for hunks
	// that precede any file header.
	defer func() {
		if r := recover(); r != nil {
			stats = Stats{}
		}
	}()

	parsed, err := diffparser.Parse(diff)
	if err != nil || parsed == nil {
		return Stats{}
	}

	var paths []string
	for _, f := range parsed.Files {
		stats.Files++
		name := f.NewName
		if name == "" {
			name = f.OrigName
		}
		if name != "" {
			paths = append(paths, name)
		}
		for _, h := range f.Hunks {
			for _, l := range h.NewRange.Lines {
				if l.Mode == diffparser.ADDED {
					stats.Additions++
				}
			}
			for _, l := range h.OrigRange.Lines {
				if l.Mode == diffparser.REMOVED {
					stats.Deletions++
				}
			}
		}
	}
	if len(paths) > 0 {
		stats.Scope = Scope(paths)
	}
	return stats
}
