package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/drewdunne/prwatch/internal/fault"
)

type rawVerdict struct {
	ConfidenceScore *float64 `json:"confidence_score"`
	Summary         *string  `json:"summary"`
	Findings        []string `json:"findings"`
	Concerns        []string `json:"concerns"`
}

// ParseVerdict decodes the model's reply content. confidence_score (in [0,1])
// and summary are required; findings and concerns default to empty.
func ParseVerdict(content string) (*Verdict, error) {
	body := extractJSON(content)
	if body == "" {
		return nil, malformed("empty response content", nil)
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, malformed("response content is not a verdict object", err)
	}
	if raw.ConfidenceScore == nil {
		return nil, malformed("missing confidence_score", nil)
	}
	if s := *raw.ConfidenceScore; s < 0 || s > 1 {
		return nil, malformed(fmt.Sprintf("confidence_score %v outside [0,1]", s), nil)
	}
	if raw.Summary == nil {
		return nil, malformed("missing summary", nil)
	}

	v := &Verdict{
		ConfidenceScore: *raw.ConfidenceScore,
		Summary:         *raw.Summary,
		Findings:        raw.Findings,
		Concerns:        raw.Concerns,
	}
	if v.Findings == nil {
		v.Findings = []string{}
	}
	if v.Concerns == nil {
		v.Concerns = []string{}
	}
	return v, nil
}

func malformed(message string, err error) error {
	return &fault.Error{Kind: fault.ErrModelResponseMalformed, Service: "llm", Message: message, Err: err}
}

// extractJSON strips an optional markdown code fence around the reply.
func extractJSON(text string) string {
	lines := strings.Split(text, "\n")
	var buf bytes.Buffer
	inBlock, found := false, false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !inBlock && (trimmed == "```json" || trimmed == "```") {
			inBlock, found = true, true
			continue
		}
		if inBlock && trimmed == "```" {
			break
		}
		if inBlock {
			if buf.Len() > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString(line)
		}
	}

	if found {
		return strings.TrimSpace(buf.String())
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
