package matcher

import (
	"strconv"
	"strings"

	"github.com/Ezekail/novelcrawler/pattern"
	"github.com/Ezekail/novelcrawler/rule"
	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
)

// urlTarget makes a regex rule match the page URL instead of the page text.
const urlTarget = "@url:"

// RegexMatcher evaluates "[@url:]pattern[##template]" rules. Without a
// template each match yields group 1, or the whole match when the pattern
// has no groups. A template is filled from the match's $N / ${N} groups.
type RegexMatcher struct {
	pool  *pattern.Pool[*regexp2.Regexp]
	flags int
}

func NewRegexMatcher(pool *pattern.Pool[*regexp2.Regexp], flags int) *RegexMatcher {
	return &RegexMatcher{pool: pool, flags: flags}
}

type regexExpr struct {
	onURL    bool
	pattern  string
	template string
	hasTmpl  bool
}

func splitRegex(expr string) regexExpr {
	var e regexExpr
	if strings.HasPrefix(expr, urlTarget) {
		e.onURL = true
		expr = expr[len(urlTarget):]
	}
	e.pattern, e.template, e.hasTmpl = strings.Cut(expr, "##")
	return e
}

func (m *RegexMatcher) Validate(expr string) error {
	if _, err := m.pool.Get(splitRegex(expr).pattern, m.flags); err != nil {
		return configError(rule.KindRegex, expr, err)
	}
	return nil
}

// Markup is true unless the rule runs on the page URL: matches are cut from the raw page.
func (m *RegexMatcher) Markup(expr string) bool {
	return !splitRegex(expr).onURL
}

func (m *RegexMatcher) Match(expr string, src *Source) ([]string, error) {
	e := splitRegex(expr)
	re, err := m.pool.Get(e.pattern, m.flags)
	if err != nil {
		return nil, configError(rule.KindRegex, expr, err)
	}
	input := src.Text()
	if e.onURL {
		input = src.URL
	}

	var out []string
	match, err := re.FindStringMatch(input)
	for ; match != nil && err == nil; match, err = re.FindNextMatch(match) {
		if e.hasTmpl {
			value, err := Substitute(e.template, match)
			if err != nil {
				return nil, err
			}
			out = append(out, value)
			continue
		}
		if groups := match.Groups(); len(groups) > 1 {
			out = append(out, groups[1].String())
		} else {
			out = append(out, match.String())
		}
	}
	if err != nil {
		return out, errors.Wrapf(err, "regex %q on %s", e.pattern, src.URL)
	}
	return out, nil
}

// Substitute replaces $N and ${N} in template with the groups of match.
// Missing groups become empty strings.
func Substitute(template string, match *regexp2.Match) (string, error) {
	return pattern.GroupVar.ReplaceFunc(template, func(ref regexp2.Match) string {
		num := ref.GroupByNumber(1).String()
		if num == "" {
			num = ref.GroupByNumber(2).String()
		}
		i, err := strconv.Atoi(num)
		if err != nil {
			return ""
		}
		if g := match.GroupByNumber(i); g != nil {
			return g.String()
		}
		return ""
	}, -1, -1)
}
