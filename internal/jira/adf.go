package jira

import (
	"encoding/json"
	"strings"
)

// adfNode is a node of an Atlassian Document Format tree.
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
	Attrs   struct {
		Text string `json:"text"`
	} `json:"attrs"`
}

// flattenDescription accepts a plain string, an ADF document or null.
func flattenDescription(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return render(doc)
}

// render joins block children with newlines and concatenates inline ones.
func render(n adfNode) string {
	switch n.Type {
	case "text":
		return n.Text
	case "hardBreak":
		return "\n"
	case "mention", "emoji":
		return n.Attrs.Text
	case "doc", "bulletList", "orderedList", "listItem", "blockquote",
		"table", "tableRow", "tableHeader", "tableCell", "panel", "expand":
		parts := make([]string, 0, len(n.Content))
		for _, child := range n.Content {
			if s := render(child); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		var b strings.Builder
		for _, child := range n.Content {
			b.WriteString(render(child))
		}
		return b.String()
	}
}
