package matcher

import (
	"strconv"

	"github.com/Ezekail/novelcrawler/pattern"
	"github.com/Ezekail/novelcrawler/rule"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
)

// XPathMatcher evaluates structural-path rules. Element results render as
// text, attribute and text nodes as their value.
type XPathMatcher struct {
	pool *pattern.Pool[*xpath.Expr]
}

func NewXPathMatcher(pool *pattern.Pool[*xpath.Expr]) *XPathMatcher {
	return &XPathMatcher{pool: pool}
}

func (m *XPathMatcher) Validate(expr string) error {
	if _, err := m.pool.Get(expr, 0); err != nil {
		return configError(rule.KindXPath, expr, err)
	}
	return nil
}

func (m *XPathMatcher) Match(expr string, src *Source) ([]string, error) {
	compiled, err := m.pool.Get(expr, 0)
	if err != nil {
		return nil, configError(rule.KindXPath, expr, err)
	}
	doc, err := src.Document()
	if err != nil {
		return nil, err
	}

	var out []string
	switch v := compiled.Evaluate(htmlquery.CreateXPathNavigator(doc)).(type) {
	case *xpath.NodeIterator:
		for v.MoveNext() {
			nav := v.Current()
			switch nav.NodeType() {
			case xpath.AttributeNode, xpath.TextNode:
				out = append(out, nav.Value())
			default:
				if hn, ok := nav.(*htmlquery.NodeNavigator); ok {
					out = append(out, nodeText(hn.Current()))
				} else {
					out = append(out, nav.Value())
				}
			}
		}
	case string:
		if v != "" {
			out = append(out, v)
		}
	case float64:
		out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		out = append(out, strconv.FormatBool(v))
	}
	return out, nil
}
