package rag

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 200

	// below this a window cannot hold a rune plus a boundary, and the scan
	// may fail to advance
	minChunkSize = 64
)

// Chunk splits text into pieces of roughly size bytes with the given overlap
// carried between consecutive pieces. Cuts prefer paragraph breaks, then line
// breaks, then sentence ends, then spaces, so a chunk rarely ends mid-thought.
// The function is deterministic: the same input always yields the same pieces.
func Chunk(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if size < minChunkSize {
		size = minChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 6
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			piece := strings.TrimSpace(text[start:])
			if piece != "" {
				chunks = append(chunks, piece)
			}
			break
		}
		cut := findCut(text, start, end)
		piece := strings.TrimSpace(text[start:cut])
		if piece != "" {
			chunks = append(chunks, piece)
		}
		next := alignStart(text, cut-overlap)
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// findCut scans backwards from end for the best boundary in the window's
// second half, falling back to a hard cut at a rune boundary.
func findCut(text string, start, end int) int {
	floor := start + (end-start)/2
	window := text[floor:end]
	for _, sep := range []string{"\n\n", "\n", ". ", "? ", "! ", " "} {
		if idx := strings.LastIndex(window, sep); idx >= 0 {
			return floor + idx + len(sep)
		}
	}
	for end > floor && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

// alignStart moves an overlap start onto a rune boundary and then past any
// partial word so chunks never begin mid-token.
func alignStart(text string, pos int) int {
	if pos <= 0 {
		return 0
	}
	if pos >= len(text) {
		return len(text)
	}
	for pos > 0 && !utf8.RuneStart(text[pos]) {
		pos--
	}
	if text[pos] != ' ' && text[pos] != '\n' && pos > 0 && text[pos-1] != ' ' && text[pos-1] != '\n' {
		if idx := strings.IndexAny(text[pos:], " \n"); idx >= 0 {
			pos += idx + 1
		}
	}
	return pos
}
