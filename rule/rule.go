// Package rule describes how to pull content and the next-page reference out
// of a page. Rules are immutable once loaded and may be shared between runs.
package rule

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind 选择器类型
type Kind string

const (
	KindAuto  Kind = "auto"
	KindXPath Kind = "xpath"
	KindCSS   Kind = "css"
	KindRegex Kind = "regex"
	KindJSON  Kind = "json"
	KindJS    Kind = "js"
)

var kindNames = map[string]Kind{
	"auto":            KindAuto,
	"xpath":           KindXPath,
	"structural-path": KindXPath,
	"css":             KindCSS,
	"css-like":        KindCSS,
	"regex":           KindRegex,
	"json":            KindJSON,
	"json-path":       KindJSON,
	"jsonpath":        KindJSON,
	"js":              KindJS,
	"js-expression":   KindJS,
}

// shorthand prefixes, e.g. "xpath://div"
var prefixes = map[string]Kind{
	"auto":  KindAuto,
	"xpath": KindXPath,
	"css":   KindCSS,
	"regex": KindRegex,
	"json":  KindJSON,
	"js":    KindJS,
}

// ParseKind resolves a kind name or one of its long aliases. An empty name is auto.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return KindAuto, nil
	}
	k, ok := kindNames[name]
	if !ok {
		return "", &ConfigError{Field: "selectorKind", Value: name, Err: errors.New("unknown selector kind")}
	}
	return k, nil
}

// Text cleanup order, see Rule.PostOrder.
const (
	OrderRaw     = -1 // 原样输出
	DefaultOrder = 0  // 先规整文本，再去标题、繁转简
	OrderLate    = 1  // 去标题、繁转简之后再规整文本
)

// DefaultContentExpression selects the built-in text density matcher.
const DefaultContentExpression = "default"

// NextPageExpression matches conventional "next page" links.
const NextPageExpression = `//a[normalize-space(.)='下一页' or normalize-space(.)='下页' or normalize-space(.)='下一节'` +
	` or normalize-space(.)='Next Page' or normalize-space(.)='next page' or @rel='next']/@href` +
	` | //link[@rel='next']/@href`

// Rule 通用规则
type Rule struct {
	Kind       Kind   `json:"selectorKind" yaml:"selectorKind"`
	Expression string `json:"expression" yaml:"expression"`
	// PostOrder places text normalization relative to title removal and
	// script conversion. nil means DefaultOrder.
	PostOrder *int `json:"postOrder,omitempty" yaml:"postOrder,omitempty"`
}

// Create builds a rule of an explicit kind.
func Create(kind Kind, expression string) Rule {
	return Rule{Kind: kind, Expression: expression}
}

// Parse reads the shorthand form "kind:expression". Without a known prefix
// the kind is inferred from the expression itself.
func Parse(s string) Rule {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ":"); i > 0 {
		if k, ok := prefixes[strings.ToLower(s[:i])]; ok {
			return Rule{Kind: k, Expression: s[i+1:]}
		}
	}
	return Rule{Kind: InferKind(s), Expression: s}
}

// InferKind guesses the selector language of expr. The matcher registry uses
// the same function for rules of kind auto.
func InferKind(expr string) Kind {
	e := strings.TrimSpace(expr)
	switch {
	case e == "" || e == DefaultContentExpression:
		return KindAuto
	case strings.HasPrefix(e, "$.") || strings.HasPrefix(e, "$["):
		return KindJSON
	case strings.HasPrefix(e, "/") || strings.HasPrefix(e, "(") ||
		strings.Contains(e, "//") || strings.Contains(e, "::"):
		return KindXPath
	default:
		return KindCSS
	}
}

// IsEffective reports whether the rule has an expression to evaluate.
func (r Rule) IsEffective() bool {
	return strings.TrimSpace(r.Expression) != ""
}

// Order returns PostOrder with its default applied.
func (r Rule) Order() int {
	if r.PostOrder == nil {
		return DefaultOrder
	}
	return *r.PostOrder
}

// String renders the shorthand form.
func (r Rule) String() string {
	kind := r.Kind
	if kind == "" {
		kind = KindAuto
	}
	return string(kind) + ":" + r.Expression
}

// ConfigError reports an invalid rule document.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid rule %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
