package matcher

import (
	"strconv"

	"github.com/Ezekail/novelcrawler/pattern"
	"github.com/Ezekail/novelcrawler/rule"
	"github.com/goccy/go-json"
	"github.com/ohler55/ojg/jp"
)

// JSONMatcher evaluates JSONPath rules. A page that isn't JSON yields no match.
type JSONMatcher struct {
	pool *pattern.Pool[jp.Expr]
}

func NewJSONMatcher(poolSize int) *JSONMatcher {
	return &JSONMatcher{pool: pattern.NewPool(poolSize, func(expr string, _ int) (jp.Expr, error) {
		return jp.ParseString(expr)
	})}
}

func (m *JSONMatcher) Validate(expr string) error {
	if _, err := m.pool.Get(expr, 0); err != nil {
		return configError(rule.KindJSON, expr, err)
	}
	return nil
}

func (m *JSONMatcher) Match(expr string, src *Source) ([]string, error) {
	x, err := m.pool.Get(expr, 0)
	if err != nil {
		return nil, configError(rule.KindJSON, expr, err)
	}
	data, err := src.JSON()
	if err != nil {
		return nil, nil
	}
	var out []string
	for _, v := range x.Get(data) {
		if s, ok := jsonString(v); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func jsonString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
