package matcher

import (
	"strings"

	"github.com/Ezekail/novelcrawler/pattern"
	"github.com/Ezekail/novelcrawler/rule"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// CSSMatcher evaluates "selector[@what]" rules. what is text (default),
// html, ownText or an attribute name.
type CSSMatcher struct {
	pool *pattern.Pool[cascadia.Selector]
}

func NewCSSMatcher(pool *pattern.Pool[cascadia.Selector]) *CSSMatcher {
	return &CSSMatcher{pool: pool}
}

func splitCSS(expr string) (string, string) {
	if i := strings.LastIndex(expr, "@"); i >= 0 {
		return strings.TrimSpace(expr[:i]), strings.TrimSpace(expr[i+1:])
	}
	return strings.TrimSpace(expr), "text"
}

func (m *CSSMatcher) Validate(expr string) error {
	sel, _ := splitCSS(expr)
	if _, err := m.pool.Get(sel, 0); err != nil {
		return configError(rule.KindCSS, expr, err)
	}
	return nil
}

func (m *CSSMatcher) Markup(expr string) bool {
	_, what := splitCSS(expr)
	return what == "html"
}

func (m *CSSMatcher) Match(expr string, src *Source) ([]string, error) {
	selector, what := splitCSS(expr)
	sel, err := m.pool.Get(selector, 0)
	if err != nil {
		return nil, configError(rule.KindCSS, expr, err)
	}
	doc, err := src.Query()
	if err != nil {
		return nil, err
	}

	var out []string
	doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		switch what {
		case "", "text":
			out = append(out, nodeText(s.Get(0)))
		case "html":
			if h, err := goquery.OuterHtml(s); err == nil {
				out = append(out, h)
			}
		case "ownText":
			out = append(out, ownText(s.Get(0)))
		default:
			if v, ok := s.Attr(what); ok {
				out = append(out, v)
			}
		}
	})
	return out, nil
}

func ownText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
