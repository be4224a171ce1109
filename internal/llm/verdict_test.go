package llm

import (
	"errors"
	"testing"

	"github.com/drewdunne/prwatch/internal/fault"
	"github.com/google/go-cmp/cmp"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    *Verdict
	}{
		{
			name:    "full object",
			content: `{"confidence_score": 0.85, "summary": "Matches", "findings": ["adds retry"], "concerns": ["no tests"]}`,
			want:    &Verdict{ConfidenceScore: 0.85, Summary: "Matches", Findings: []string{"adds retry"}, Concerns: []string{"no tests"}},
		},
		{
			name:    "lists default to empty",
			content: `{"confidence_score": 1, "summary": "ok"}`,
			want:    &Verdict{ConfidenceScore: 1, Summary: "ok", Findings: []string{}, Concerns: []string{}},
		},
		{
			name:    "fenced",
			content: "Here you go:\n```json\n{\"confidence_score\": 0, \"summary\": \"unrelated\"}\n```\n",
			want:    &Verdict{ConfidenceScore: 0, Summary: "unrelated", Findings: []string{}, Concerns: []string{}},
		},
		{
			name:    "inline fence",
			content: "```json{\"confidence_score\": 0.5, \"summary\": \"partial\"}```",
			want:    &Verdict{ConfidenceScore: 0.5, Summary: "partial", Findings: []string{}, Concerns: []string{}},
		},
		{
			name:    "unknown fields ignored",
			content: `{"confidence_score": 0.2, "summary": "s", "model": "gpt-4"}`,
			want:    &Verdict{ConfidenceScore: 0.2, Summary: "s", Findings: []string{}, Concerns: []string{}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseVerdict(tc.content)
			if err != nil {
				t.Fatalf("ParseVerdict() error = %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseVerdict() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseVerdict_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"prose", "The PR looks good."},
		{"array", `[0.5]`},
		{"null", `null`},
		{"missing score", `{"summary": "s"}`},
		{"missing summary", `{"confidence_score": 0.5}`},
		{"score above one", `{"confidence_score": 1.5, "summary": "s"}`},
		{"negative score", `{"confidence_score": -0.1, "summary": "s"}`},
		{"score as string", `{"confidence_score": "0.5", "summary": "s"}`},
		{"findings not a list", `{"confidence_score": 0.5, "summary": "s", "findings": "one"}`},
		{"concerns with numbers", `{"confidence_score": 0.5, "summary": "s", "concerns": [1, 2]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseVerdict(tc.content)
			if !errors.Is(err, fault.ErrModelResponseMalformed) {
				t.Errorf("ParseVerdict(%q) error = %v, want ErrModelResponseMalformed", tc.content, err)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	diff := "diff --git a/x b/x\n+line\n"
	got := UserMessage(Ticket{ID: "PROJ-1", Summary: "Add retry", Description: "Retry on 503"}, diff)
	want := "JIRA Ticket (PROJ-1):\nTitle: Add retry\nDescription: Retry on 503\n\nPull Request Changes:\n" + diff
	if got != want {
		t.Errorf("UserMessage() = %q, want %q", got, want)
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{401, fault.ErrUpstreamAuth},
		{403, fault.ErrUpstreamAuth},
		{404, fault.ErrUpstreamUnavailable},
		{429, fault.ErrUpstreamUnavailable},
		{500, fault.ErrUpstreamUnavailable},
	}
	for _, tc := range tests {
		err := StatusError("openai", tc.status, errors.New("boom"))
		if !errors.Is(err, tc.want) {
			t.Errorf("StatusError(%d) = %v, want %v", tc.status, err, tc.want)
		}
		if fault.StatusOf(err) != tc.status {
			t.Errorf("StatusOf(StatusError(%d)) = %d", tc.status, fault.StatusOf(err))
		}
	}
}
