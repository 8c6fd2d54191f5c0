package pattern

import (
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
	"github.com/dlclark/regexp2"
)

// MatchTimeout bounds a single regex evaluation so a pathological rule can't hang a run.
var MatchTimeout = 5 * time.Second

// GroupVar matches $N and ${N} group references in a replacement template.
var GroupVar = regexp2.MustCompile(`\$(?:(\d+)|\{(\d+)\})`, regexp2.None)

// NewRegexPool caches regexp2 patterns. Flags are regexp2.RegexOptions.
func NewRegexPool(maxEntries int) *Pool[*regexp2.Regexp] {
	return NewPool(maxEntries, func(expr string, flags int) (*regexp2.Regexp, error) {
		re, err := regexp2.Compile(expr, regexp2.RegexOptions(flags))
		if err != nil {
			return nil, err
		}
		re.MatchTimeout = MatchTimeout
		return re, nil
	})
}

// NewXPathPool caches compiled xpath expressions. Flags are ignored.
func NewXPathPool(maxEntries int) *Pool[*xpath.Expr] {
	return NewPool(maxEntries, func(expr string, _ int) (*xpath.Expr, error) {
		return xpath.Compile(expr)
	})
}

// NewCSSPool caches compiled css selectors. Flags are ignored.
func NewCSSPool(maxEntries int) *Pool[cascadia.Selector] {
	return NewPool(maxEntries, func(expr string, _ int) (cascadia.Selector, error) {
		return cascadia.Compile(expr)
	})
}
