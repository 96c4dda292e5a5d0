// Package render turns Markdown into sanitised HTML fragments.
package render

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Raw HTML in the source is dropped, so AI replies and FAQ answers can be
// rendered without escaping concerns.
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// Markdown renders src to HTML.
func Markdown(src []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// String renders src and falls back to escaped text on error.
func String(src string) template.HTML {
	out, err := Markdown([]byte(src))
	if err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return out
}
