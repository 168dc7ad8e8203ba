package extract

import (
	"bytes"
	"slices"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// selector is one compound part of a simple CSS selector:
// tag, .class, #id, [attr] or [attr=val], in any combination.
type selector struct {
	tag, id, class   string
	attrKey, attrVal string
}

func parseSelector(s string) selector {
	var sel selector
	if i := strings.IndexByte(s, '['); i >= 0 {
		attr := strings.TrimSuffix(s[i+1:], "]")
		s = s[:i]
		if k, v, ok := strings.Cut(attr, "="); ok {
			sel.attrKey, sel.attrVal = k, strings.Trim(v, `"'`)
		} else {
			sel.attrKey = attr
		}
	}
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s, sel.id = s[:i], s[i+1:]
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s, sel.class = s[:i], s[i+1:]
	}
	sel.tag = strings.ToLower(s)
	return sel
}

func (sel selector) matches(n *xhtml.Node) bool {
	if n.Type != xhtml.ElementNode {
		return false
	}
	if sel.tag != "" && n.Data != sel.tag {
		return false
	}
	if sel.id != "" && attr(n, "id") != sel.id {
		return false
	}
	if sel.class != "" && !slices.Contains(strings.Fields(attr(n, "class")), sel.class) {
		return false
	}
	if sel.attrKey != "" {
		v, ok := lookupAttr(n, sel.attrKey)
		if !ok || (sel.attrVal != "" && v != sel.attrVal) {
			return false
		}
	}
	return true
}

// querySelectorAll supports space-separated descendant combinators.
func querySelectorAll(root *xhtml.Node, query string) []*xhtml.Node {
	parts := strings.Fields(query)
	if len(parts) == 0 {
		return nil
	}
	matches := descendants(root, parseSelector(parts[0]))
	for _, p := range parts[1:] {
		sel := parseSelector(p)
		var next []*xhtml.Node
		for _, m := range matches {
			for _, d := range descendants(m, sel) {
				if !slices.Contains(next, d) {
					next = append(next, d)
				}
			}
		}
		matches = next
	}
	return matches
}

func descendants(root *xhtml.Node, sel selector) []*xhtml.Node {
	var out []*xhtml.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		walk(c, func(n *xhtml.Node) bool {
			if sel.matches(n) {
				out = append(out, n)
			}
			return true
		})
	}
	return out
}

// walk visits n and its subtree in document order; fn returning false
// skips the node's children.
func walk(n *xhtml.Node, fn func(*xhtml.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func lookupAttr(n *xhtml.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attr(n *xhtml.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

// mainContent returns the <main> elements, else the <article> elements,
// else the densest content subtree of <body>.
func mainContent(doc *xhtml.Node, minLen int) []*xhtml.Node {
	for _, tag := range []atom.Atom{atom.Main, atom.Article} {
		var found []*xhtml.Node
		walk(doc, func(n *xhtml.Node) bool {
			if n.Type == xhtml.ElementNode && n.DataAtom == tag && !isBoilerplate(n) {
				found = append(found, n)
				return false
			}
			return true
		})
		if len(found) > 0 {
			return found
		}
	}
	if best := densest(doc, minLen); best != nil {
		return []*xhtml.Node{best}
	}
	return nil
}

// densest scores content containers by text-to-markup ratio, scaled up for
// longer text and down for link-heavy regions (navigation).
func densest(doc *xhtml.Node, minLen int) *xhtml.Node {
	var (
		best      *xhtml.Node
		bestScore float64
	)
	walk(doc, func(n *xhtml.Node) bool {
		if n.Type != xhtml.ElementNode && n.Type != xhtml.DocumentNode {
			return false
		}
		if n.Type == xhtml.ElementNode && isBoilerplate(n) {
			return false
		}
		if !isContainer(n.DataAtom) {
			return true
		}
		text := visibleText(n, false)
		if len(text) < minLen {
			return true
		}
		var markup bytes.Buffer
		if err := xhtml.Render(&markup, n); err != nil || markup.Len() == 0 {
			return true
		}
		links := float64(len(visibleText(n, true))) / float64(len(text))
		if links > 0.5 {
			return true
		}
		score := float64(len(text)) / float64(markup.Len()) * lengthScale(len(text)) * (1 - links)
		if score > bestScore {
			best, bestScore = n, score
		}
		return true
	})
	return best
}

// lengthScale grows by one per doubling of n beyond 100.
func lengthScale(n int) float64 {
	scale := 1.0
	for ; n > 100; n /= 2 {
		scale++
	}
	return scale
}

// visibleText concatenates trimmed text nodes outside script and style;
// linksOnly restricts it to text inside <a>.
func visibleText(n *xhtml.Node, linksOnly bool) string {
	var sb strings.Builder
	var visit func(*xhtml.Node, bool)
	visit = func(n *xhtml.Node, inLink bool) {
		if n.Type == xhtml.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			case atom.A:
				inLink = true
			}
		}
		if n.Type == xhtml.TextNode && (inLink || !linksOnly) {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c, inLink)
		}
	}
	visit(n, false)
	return sb.String()
}

func isContainer(a atom.Atom) bool {
	switch a {
	case atom.Div, atom.Section, atom.Article, atom.Main, atom.Td, atom.Body:
		return true
	}
	return false
}

var boilerplateHints = []string{"nav", "menu", "footer", "sidebar", "cookie", "banner", "breadcrumb"}

func isBoilerplate(n *xhtml.Node) bool {
	switch n.DataAtom {
	case atom.Nav, atom.Footer, atom.Header, atom.Aside:
		return true
	}
	marker := strings.ToLower(attr(n, "class") + " " + attr(n, "id") + " " + attr(n, "role"))
	for _, h := range boilerplateHints {
		if strings.Contains(marker, h) {
			return true
		}
	}
	return false
}
