// Package adf renders Atlassian Document Format bodies for Jira issues and
// comments. Rendering is pure: the same Incident always produces the same
// document.
package adf

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/linnemanlabs/beacon/internal/incident"
)

// Doc is the top-level ADF document node.
type Doc struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
	Content []Node `json:"content"`
}

// Node is any nested ADF node. Only the node types beacon emits are
// modelled: heading, paragraph, bulletList, listItem, codeBlock, text.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
}

func text(s string) Node {
	return Node{Type: "text", Text: s}
}

func paragraph(nodes ...Node) Node {
	return Node{Type: "paragraph", Content: nodes}
}

func heading(level int, title string) Node {
	return Node{
		Type:    "heading",
		Attrs:   map[string]any{"level": level},
		Content: []Node{text(title)},
	}
}

func bulletList(items ...string) Node {
	nodes := make([]Node, 0, len(items))
	for _, it := range items {
		nodes = append(nodes, Node{
			Type:    "listItem",
			Content: []Node{paragraph(text(it))},
		})
	}
	return Node{Type: "bulletList", Content: nodes}
}

func codeBlock(language, body string) Node {
	return Node{
		Type:    "codeBlock",
		Attrs:   map[string]any{"language": language},
		Content: []Node{text(body)},
	}
}

// orNA substitutes the literal placeholder for an absent value.
func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Description builds the issue body for a new incident ticket: alarm info,
// metric context, and the raw message as a pretty-printed code block.
func Description(in *incident.Incident) Doc {
	return Doc{
		Type:    "doc",
		Version: 1,
		Content: []Node{
			heading(2, "Alarm Info"),
			bulletList(
				fmt.Sprintf("Name: %s", in.Title),
				fmt.Sprintf("State: %s", in.State),
				fmt.Sprintf("Reason: %s", in.Reason),
			),
			heading(2, "Metric Info"),
			bulletList(
				fmt.Sprintf("Namespace: %s", in.Namespace),
				fmt.Sprintf("Metric: %s", in.Metric),
				fmt.Sprintf("Region: %s", in.Region),
				fmt.Sprintf("Lambda: %s", orNA(in.ResourceName)),
			),
			heading(2, "Raw SNS Message"),
			codeBlock("json", prettyRaw(in.Raw)),
		},
	}
}

// Comment builds the "fired again" body appended to an existing ticket.
func Comment(in *incident.Incident) Doc {
	lines := []string{
		"*Alarm Fired Again*",
		fmt.Sprintf("- State: %s", in.State),
		fmt.Sprintf("- Time: %s", in.Timestamp),
		fmt.Sprintf("- Lambda: %s", orNA(in.ResourceName)),
		fmt.Sprintf("- Metric: %s / %s", in.Namespace, in.Metric),
		fmt.Sprintf("- Region: %s", in.Region),
		fmt.Sprintf("- Reason: %s", in.Reason),
		"",
		"This alarm was triggered again and appended automatically.",
	}

	nodes := make([]Node, 0, len(lines))
	for _, l := range lines {
		nodes = append(nodes, text(l+"\n"))
	}

	return Doc{
		Type:    "doc",
		Version: 1,
		Content: []Node{paragraph(nodes...)},
	}
}

// prettyRaw re-indents the retained payload without reordering keys, so two
// renders of the same incident are byte-identical.
func prettyRaw(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
