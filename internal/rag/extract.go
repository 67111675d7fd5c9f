package rag

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractText converts an uploaded file into plain text for chunking.
// Markdown goes through the parser so formatting syntax does not pollute
// embeddings; HTML is tag-stripped; everything else is treated as plain text.
func ExtractText(filename string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file %s is not valid utf-8 text", filename)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return extractMarkdown(data), nil
	case ".html", ".htm":
		return extractHTML(string(data)), nil
	default:
		return normalizeText(string(data)), nil
	}
}

func extractMarkdown(source []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if _, isBlock := n.(*ast.Paragraph); isBlock {
				sb.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.Heading:
			sb.WriteString("\n\n")
		case *ast.CodeBlock:
			writeLines(&sb, node, source)
		case *ast.FencedCodeBlock:
			writeLines(&sb, node, source)
		case *ast.ListItem:
			sb.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})
	return normalizeText(sb.String())
}

func writeLines(sb *strings.Builder, n ast.Node, source []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	sb.WriteByte('\n')
}

// extractHTML strips tags with a small state machine, dropping script and
// style bodies entirely.
func extractHTML(source string) string {
	var sb strings.Builder
	inTag := false
	skipUntil := ""
	lower := strings.ToLower(source)
	for i := 0; i < len(source); i++ {
		if skipUntil != "" {
			if strings.HasPrefix(lower[i:], skipUntil) {
				i += len(skipUntil) - 1
				skipUntil = ""
				inTag = false
			}
			continue
		}
		c := source[i]
		switch {
		case c == '<':
			inTag = true
			if strings.HasPrefix(lower[i:], "<script") {
				skipUntil = "</script>"
			} else if strings.HasPrefix(lower[i:], "<style") {
				skipUntil = "</style>"
			}
		case c == '>':
			inTag = false
			sb.WriteByte(' ')
		case !inTag:
			sb.WriteByte(c)
		}
	}
	return normalizeText(htmlUnescape(sb.String()))
}

func htmlUnescape(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&", "&lt;", "<", "&gt;", ">",
		"&quot;", `"`, "&#39;", "'", "&nbsp;", " ",
	)
	return replacer.Replace(s)
}

// normalizeText collapses runs of blank lines and trims trailing spaces so
// chunk boundaries land on real content.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	var out []string
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blank = 0
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
