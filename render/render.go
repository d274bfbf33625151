// Package render turns heterogeneous tool results into transport-safe text:
// markdown is flattened to plain text for transports that reject rich
// formatting, images become labeled placeholders, and the output is split
// into chunks the chat platform will accept.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"

	"maimaibot/mcp"
)

// MaxChunkSize is the largest message body the chat transport accepts.
const MaxChunkSize = 4096

// RenderResult renders a tool result into one or more sendable chunks.
func RenderResult(res *mcp.Result) []string {
	var text string

	switch res.Kind {
	case mcp.KindText:
		text = PlainText(res.Text)
	case mcp.KindParts:
		var blocks []string
		for _, part := range res.Parts {
			blocks = append(blocks, renderPart(part))
		}
		text = strings.Join(blocks, "\n")
	case mcp.KindOpaque:
		text = renderOpaque(res.Value)
	}

	return SplitChunks(text, MaxChunkSize)
}

func renderPart(part mcp.Part) string {
	switch part.Kind {
	case mcp.PartText:
		return PlainText(part.Text)
	case mcp.PartImageURL:
		return fmt.Sprintf("[image] %s", part.URL)
	case mcp.PartImageData:
		return fmt.Sprintf("[inline image, %s, %d bytes]", part.MIMEType, len(part.Data))
	default:
		return renderOpaque(part.Raw)
	}
}

func renderOpaque(value any) string {
	if value == nil {
		return "(no output)"
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}

// PlainText flattens markdown to plain text by walking the parsed AST and
// keeping only leaf literals. Block boundaries become newlines.
func PlainText(md string) string {
	p := parser.New()
	doc := p.Parse([]byte(md))

	var sb strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			if isBlock(node) && sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			return ast.GoToNext
		}
		if leaf := node.AsLeaf(); leaf != nil && len(leaf.Literal) > 0 {
			sb.Write(leaf.Literal)
		}
		return ast.GoToNext
	})

	return strings.TrimRight(sb.String(), "\n")
}

func isBlock(node ast.Node) bool {
	switch node.(type) {
	case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.CodeBlock, *ast.BlockQuote:
		return true
	}
	return false
}

// SplitChunks splits text into pieces no longer than max bytes, preferring
// line boundaries and hard-splitting single lines that exceed max.
func SplitChunks(text string, max int) []string {
	if text == "" {
		return []string{""}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		for len(line) > max {
			flush()
			chunks = append(chunks, line[:max])
			line = line[max:]
		}

		// +1 for the joining newline
		if current.Len() > 0 && current.Len()+len(line)+1 > max {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	flush()

	if len(chunks) == 0 {
		return []string{""}
	}
	return chunks
}

// Preview truncates s to the given display width, appending an ellipsis.
// Width is measured in terminal cells so CJK text truncates correctly.
func Preview(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return runewidth.Truncate(s, width, "…")
}
