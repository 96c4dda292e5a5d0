package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkdown(t *testing.T) {
	out, err := Markdown([]byte("# Privacy Policy\n\nWe keep **audit logs**.\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"))
	require.NoError(t, err)
	html := string(out)
	require.Contains(t, html, `<h1 id="privacy-policy">Privacy Policy</h1>`)
	require.Contains(t, html, "<strong>audit logs</strong>")
	require.Contains(t, html, "<table>")
}

func TestRawHTMLDropped(t *testing.T) {
	html := string(String("hello <script>alert(1)</script>"))
	require.False(t, strings.Contains(html, "<script>"), html)
	require.Contains(t, html, "hello")
}
