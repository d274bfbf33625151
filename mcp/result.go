package mcp

import (
	"encoding/json"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ResultKind tags the shape of a tool result.
type ResultKind int

const (
	// KindText is a single plain-text payload.
	KindText ResultKind = iota
	// KindParts is a sequence of typed content parts.
	KindParts
	// KindOpaque is a structured value with no renderable content parts.
	KindOpaque
)

// PartKind tags one content part inside a KindParts result.
type PartKind int

const (
	PartText PartKind = iota
	PartImageURL
	PartImageData
	PartOther
)

type Part struct {
	Kind     PartKind
	Text     string
	URL      string
	Data     string // base64-encoded inline payload
	MIMEType string
	Raw      any
}

// Result is what a tool invocation produced. Exactly one of Text, Parts or
// Value is meaningful, selected by Kind.
type Result struct {
	Kind  ResultKind
	Text  string
	Parts []Part
	Value any
}

// ConvertResult maps an MCP call result onto the tagged union. A response
// with a single text part collapses to KindText; a response with no content
// parts at all carries its structured payload as KindOpaque.
func ConvertResult(res *mcptypes.CallToolResult) *Result {
	if len(res.Content) == 0 {
		return &Result{Kind: KindOpaque, Value: res.StructuredContent}
	}

	parts := make([]Part, 0, len(res.Content))
	for _, content := range res.Content {
		parts = append(parts, convertPart(content))
	}

	if len(parts) == 1 && parts[0].Kind == PartText {
		return &Result{Kind: KindText, Text: parts[0].Text}
	}

	return &Result{Kind: KindParts, Parts: parts}
}

func convertPart(content mcptypes.Content) Part {
	switch c := content.(type) {
	case mcptypes.TextContent:
		return Part{Kind: PartText, Text: c.Text}
	case mcptypes.ImageContent:
		return Part{Kind: PartImageData, Data: c.Data, MIMEType: c.MIMEType}
	case mcptypes.ResourceLink:
		return Part{Kind: PartImageURL, URL: c.URI, MIMEType: c.MIMEType}
	default:
		return Part{Kind: PartOther, Raw: content}
	}
}

// ErrorText extracts the failure detail from an IsError tool result.
func ErrorText(res *mcptypes.CallToolResult) string {
	var texts []string
	for _, content := range res.Content {
		if tc, ok := content.(mcptypes.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	if len(texts) > 0 {
		return strings.Join(texts, "; ")
	}
	if res.StructuredContent != nil {
		if data, err := json.Marshal(res.StructuredContent); err == nil {
			return string(data)
		}
	}
	return "unknown tool error"
}
