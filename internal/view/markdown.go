package view

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	reportMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

	// UGC policy drops script elements and inline event handlers while
	// keeping ordinary formatting markup.
	reportSanitizer = bluemonday.UGCPolicy()
)

// RenderReport converts the markdown research report into sanitized HTML.
// An empty source renders as empty; a conversion error degrades to empty
// output rather than failing the page.
func RenderReport(markdownSource string) template.HTML {
	trimmed := strings.TrimSpace(markdownSource)
	if trimmed == "" {
		return ""
	}

	var converted bytes.Buffer
	if convertErr := reportMarkdown.Convert([]byte(trimmed), &converted); convertErr != nil {
		return ""
	}

	sanitized := reportSanitizer.SanitizeBytes(converted.Bytes())
	return template.HTML(sanitized)
}
