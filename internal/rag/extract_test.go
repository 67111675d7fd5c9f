package rag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractTextMarkdown(t *testing.T) {
	src := []byte("# Title\n\nFirst paragraph with *emphasis*.\n\n- item one\n- item two\n")
	out, err := ExtractText("notes.md", src)
	require.NoError(t, err)
	require.Contains(t, out, "Title")
	require.Contains(t, out, "First paragraph with emphasis.")
	require.Contains(t, out, "item one")
	require.NotContains(t, out, "# ")
	require.NotContains(t, out, "*")
}

func TestExtractTextHTML(t *testing.T) {
	src := []byte(`<html><head><style>body { color: red; }</style></head>` +
		`<body><script>alert("x");</script><p>Hello &amp; welcome</p></body></html>`)
	out, err := ExtractText("page.html", src)
	require.NoError(t, err)
	require.Contains(t, out, "Hello & welcome")
	require.NotContains(t, out, "alert")
	require.NotContains(t, out, "color: red")
	require.NotContains(t, out, "<p>")
}

func TestExtractTextPlain(t *testing.T) {
	src := []byte("line one\r\n\r\n\r\n\r\nline two  \n")
	out, err := ExtractText("notes.txt", src)
	require.NoError(t, err)
	require.Equal(t, "line one\n\nline two", out)
}

func TestExtractTextRejectsBinary(t *testing.T) {
	_, err := ExtractText("blob.bin", []byte{0xff, 0xfe, 0x00, 0x81})
	require.Error(t, err)
}
