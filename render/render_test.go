package render

import (
	"strings"
	"testing"

	"maimaibot/mcp"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain stays plain", input: "hello world", want: "hello world"},
		{name: "emphasis stripped", input: "today is **important**", want: "today is important"},
		{name: "heading stripped", input: "# Schedule\ntrack day", want: "Schedule\ntrack day"},
		{name: "inline code stripped", input: "run `claim` now", want: "run claim now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.input); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		validate func(t *testing.T, chunks []string)
	}{
		{
			name:  "short text single chunk",
			input: "hello",
			max:   10,
			validate: func(t *testing.T, chunks []string) {
				if len(chunks) != 1 || chunks[0] != "hello" {
					t.Errorf("expected [hello], got %v", chunks)
				}
			},
		},
		{
			name:  "splits on line boundary",
			input: "aaaa\nbbbb\ncccc",
			max:   9,
			validate: func(t *testing.T, chunks []string) {
				if len(chunks) != 2 {
					t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
				}
				if chunks[0] != "aaaa\nbbbb" || chunks[1] != "cccc" {
					t.Errorf("unexpected split: %v", chunks)
				}
			},
		},
		{
			name:  "hard-splits an overlong line",
			input: strings.Repeat("x", 25),
			max:   10,
			validate: func(t *testing.T, chunks []string) {
				if len(chunks) != 3 {
					t.Fatalf("expected 3 chunks, got %d", len(chunks))
				}
				for i, chunk := range chunks {
					if len(chunk) > 10 {
						t.Errorf("chunk %d exceeds max: %d bytes", i, len(chunk))
					}
				}
			},
		},
		{
			name:  "empty input yields one empty chunk",
			input: "",
			max:   10,
			validate: func(t *testing.T, chunks []string) {
				if len(chunks) != 1 || chunks[0] != "" {
					t.Errorf("expected single empty chunk, got %v", chunks)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, SplitChunks(tt.input, tt.max))
		})
	}
}

func TestRenderResult(t *testing.T) {
	parts := &mcp.Result{
		Kind: mcp.KindParts,
		Parts: []mcp.Part{
			{Kind: mcp.PartText, Text: "your card:"},
			{Kind: mcp.PartImageURL, URL: "https://cdn.example.com/card.png"},
			{Kind: mcp.PartImageData, Data: "aGVsbG8=", MIMEType: "image/png"},
		},
	}

	chunks := RenderResult(parts)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	out := chunks[0]
	for _, want := range []string{"your card:", "[image] https://cdn.example.com/card.png", "inline image"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	opaque := &mcp.Result{Kind: mcp.KindOpaque, Value: map[string]any{"remaining": 3}}
	out = RenderResult(opaque)[0]
	if !strings.Contains(out, `"remaining": 3`) {
		t.Errorf("expected pretty-printed JSON, got %q", out)
	}

	nothing := &mcp.Result{Kind: mcp.KindOpaque}
	if out := RenderResult(nothing)[0]; out != "(no output)" {
		t.Errorf("expected placeholder for empty result, got %q", out)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("short", 20); got != "short" {
		t.Errorf("short text must pass through, got %q", got)
	}

	long := Preview(strings.Repeat("claim ", 20), 12)
	if !strings.HasSuffix(long, "…") {
		t.Errorf("truncated preview must end with ellipsis, got %q", long)
	}

	multiline := Preview("line one\nline two", 40)
	if strings.Contains(multiline, "\n") {
		t.Errorf("preview must be single-line, got %q", multiline)
	}
}
