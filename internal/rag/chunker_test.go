package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkShortTextSinglePiece(t *testing.T) {
	pieces := Chunk("just a short note", 1200, 200)
	require.Equal(t, []string{"just a short note"}, pieces)
}

func TestChunkEmpty(t *testing.T) {
	require.Nil(t, Chunk("   ", 1200, 200))
}

func TestChunkRespectsSize(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 200)
	pieces := Chunk(text, 400, 80)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		require.LessOrEqual(t, len(p), 400)
		require.NotEmpty(t, strings.TrimSpace(p))
	}
}

func TestChunkPrefersSentenceBoundaries(t *testing.T) {
	text := strings.Repeat("Sentence one is here. Sentence two follows it. ", 50)
	pieces := Chunk(text, 300, 60)
	for _, p := range pieces[:len(pieces)-1] {
		require.True(t, strings.HasSuffix(p, "."), "chunk should end at a sentence: %q", p)
	}
}

func TestChunkOverlapCarriesContext(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta epsilon zeta. ", 60)
	pieces := Chunk(text, 300, 60)
	require.Greater(t, len(pieces), 1)
	// the tail of each chunk reappears at the head of the next
	for i := 1; i < len(pieces); i++ {
		head := pieces[i][:20]
		require.Contains(t, pieces[i-1], strings.TrimSpace(head))
	}
}

func TestChunkDeterministic(t *testing.T) {
	text := strings.Repeat("some repeatable content with words. ", 100)
	first := Chunk(text, 500, 100)
	second := Chunk(text, 500, 100)
	require.Equal(t, first, second)
}

func TestChunkDoesNotSplitRunes(t *testing.T) {
	text := strings.Repeat("héllo wörld with ünïcode cöntent. ", 100)
	pieces := Chunk(text, 250, 50)
	for _, p := range pieces {
		require.True(t, strings.ToValidUTF8(p, "") == p, "chunk holds invalid utf-8: %q", p)
	}
}

func TestChunkFloorsPathologicalSize(t *testing.T) {
	// multibyte leading runes with a tiny configured size must still
	// terminate and cover the text
	text := strings.Repeat("日本語のテキストです。", 30)
	pieces := Chunk(text, 1, 0)
	require.NotEmpty(t, pieces)
	for _, p := range pieces {
		require.LessOrEqual(t, len(p), minChunkSize)
		require.True(t, strings.ToValidUTF8(p, "") == p)
	}
}

func TestExtractMarkdownStripsSyntax(t *testing.T) {
	md := []byte("# Title\n\nSome *emphasized* text with [a link](https://example.com).\n\n- item one\n- item two\n")
	text, err := ExtractText("notes.md", md)
	require.NoError(t, err)
	require.Contains(t, text, "Title")
	require.Contains(t, text, "emphasized")
	require.Contains(t, text, "a link")
	require.Contains(t, text, "item one")
	require.NotContains(t, text, "](")
	require.NotContains(t, text, "# ")
}

func TestExtractHTMLStripsTagsAndScripts(t *testing.T) {
	html := []byte(`<html><head><script>var x = 1;</script><style>.a{color:red}</style></head><body><p>Hello &amp; welcome</p></body></html>`)
	text, err := ExtractText("page.html", html)
	require.NoError(t, err)
	require.Contains(t, text, "Hello & welcome")
	require.NotContains(t, text, "var x")
	require.NotContains(t, text, "color:red")
	require.NotContains(t, text, "<p>")
}

func TestExtractRejectsBinary(t *testing.T) {
	_, err := ExtractText("blob.bin", []byte{0xff, 0xfe, 0x00, 0x01})
	require.Error(t, err)
}
