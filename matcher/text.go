package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/Ezekail/novelcrawler/rule"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// TextMatcher is the default content matcher: it picks the element holding
// the most paragraph text, either as direct text nodes (the <br> separated
// layout common on novel sites) or as direct <p> children.
type TextMatcher struct{}

func (m *TextMatcher) Validate(expr string) error {
	return nil
}

func (m *TextMatcher) Match(expr string, src *Source) ([]string, error) {
	if e := strings.TrimSpace(expr); e != "" && e != rule.DefaultContentExpression {
		return nil, configError(rule.KindAuto, expr, errNotInferable)
	}
	doc, err := src.Document()
	if err != nil {
		return nil, err
	}

	var best *html.Node
	bestScore := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped(n.Data) {
			return
		}
		if n.Type == html.ElementNode {
			if s := score(n); s > bestScore {
				best, bestScore = n, s
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if best == nil {
		return nil, nil
	}
	return []string{nodeText(best)}, nil
}

var errNotInferable = errors.New("expression can't be inferred")

func score(n *html.Node) int {
	total := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			total += utf8.RuneCountInString(strings.TrimSpace(c.Data))
		case c.Type == html.ElementNode && c.Data == "p":
			total += utf8.RuneCountInString(strings.TrimSpace(innerText(c)))
		}
	}
	return total
}

func skipped(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "head", "nav", "footer", "header", "iframe":
		return true
	}
	return false
}

func innerText(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(nn *html.Node) {
		if nn.Type == html.TextNode {
			b.WriteString(nn.Data)
			return
		}
		for c := nn.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return b.String()
}

// nodeText renders an element as text, turning <br> and block elements into
// line breaks and dropping scripts.
func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(nn *html.Node) {
		switch nn.Type {
		case html.TextNode:
			b.WriteString(nn.Data)
			return
		case html.ElementNode:
			switch nn.Data {
			case "script", "style", "noscript":
				return
			case "br":
				b.WriteByte('\n')
				return
			}
		}
		block := nn.Type == html.ElementNode && isBlock(nn.Data)
		if block {
			b.WriteByte('\n')
		}
		for c := nn.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	rec(n)
	return strings.Trim(b.String(), "\n")
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "blockquote", "section", "article", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "hr":
		return true
	}
	return false
}
