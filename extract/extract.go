// CLAUDE:SUMMARY Turns a fetched body into stable comparison text: HTML scoped to its content region, converted to Markdown.
// CLAUDE:DEPENDS html-to-markdown/v2, bluemonday, golang.org/x/net/html
// CLAUDE:EXPORTS Extractor, New, Options, Mode, ComparableText
// Package extract produces the text that near-duplicate detection compares.
// Two captures of the same page usually differ in markup (nonces, class
// hashes, inline scripts) long before they differ in content; converting to
// Markdown first keeps those differences out of the line sets.
package extract

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"
)

// Mode selects which part of an HTML page is compared.
type Mode string

const (
	ModeFull Mode = "full"
	ModeMain Mode = "main"
	ModeCSS  Mode = "css"
)

// ParseMode validates a configured mode. "" means ModeFull.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeMain, ModeCSS:
		return Mode(s), nil
	}
	return "", fmt.Errorf("extract: unknown mode %q", s)
}

// Options configures an Extractor.
type Options struct {
	Mode      Mode
	Selectors []string // ModeCSS only
	MinLen    int      // minimum text length of a candidate region. Default: 100.
}

func (o *Options) defaults() {
	if o.Mode == "" {
		o.Mode = ModeFull
	}
	if o.MinLen <= 0 {
		o.MinLen = 100
	}
}

// Extractor converts bodies to comparison text. Safe for concurrent use.
type Extractor struct {
	opts   Options
	md     *converter.Converter
	strict *bluemonday.Policy
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	opts.defaults()
	return &Extractor{
		opts: opts,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		strict: bluemonday.StrictPolicy(),
	}
}

var defaultExtractor = New(Options{})

// ComparableText converts body with the default (whole-page) extractor.
func ComparableText(contentType, body, pageURL string) string {
	return defaultExtractor.Text(contentType, body, pageURL)
}

// Text returns the comparison text for a body. Non-HTML bodies are
// returned unchanged.
func (e *Extractor) Text(contentType, body, pageURL string) string {
	if !isHTML(contentType) || strings.TrimSpace(body) == "" {
		return body
	}

	fragment := body
	if e.opts.Mode != ModeFull {
		if doc, err := xhtml.Parse(strings.NewReader(body)); err == nil {
			if scoped := e.scope(doc); scoped != "" {
				fragment = scoped
			}
		}
	}

	out, err := e.md.ConvertString(fragment, converter.WithDomain(pageURL))
	if err != nil || strings.TrimSpace(out) == "" {
		return e.plainText(fragment)
	}
	return strings.TrimSpace(out)
}

// scope renders the configured region of doc, or "" when nothing matched.
func (e *Extractor) scope(doc *xhtml.Node) string {
	var nodes []*xhtml.Node
	switch e.opts.Mode {
	case ModeCSS:
		for _, sel := range e.opts.Selectors {
			nodes = append(nodes, querySelectorAll(doc, sel)...)
		}
	case ModeMain:
		nodes = mainContent(doc, e.opts.MinLen)
	}
	if len(nodes) == 0 {
		return ""
	}
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := xhtml.Render(&buf, n); err != nil {
			return ""
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// plainText strips every tag and keeps one trimmed line per text line.
func (e *Extractor) plainText(fragment string) string {
	text := html.UnescapeString(e.strict.Sanitize(fragment))
	var lines []string
	for line := range strings.SplitSeq(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "xhtml")
}
