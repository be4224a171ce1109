// Package ticket extracts issue-tracker references from pull request descriptions.
package ticket

import "regexp"

// pattern matches a leading "PROJ-123:" reference.
var pattern = regexp.MustCompile(`^([A-Z]+-[0-9]+):`)

// ExtractID returns the ticket id a description starts with, e.g.
// "PROJ-123: Fix bug" yields "PROJ-123". The reference must be the very first
// thing in the text and be followed immediately by a colon.
func ExtractID(description string) (string, bool) {
	m := pattern.FindStringSubmatch(description)
	if m == nil {
		return "", false
	}
	return m[1], true
}
