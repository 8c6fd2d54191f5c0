// Package textproc cleans matched content before it is accumulated.
package textproc

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Ezekail/novelcrawler/rule"
	"golang.org/x/net/html"
)

// Converter maps traditional-script text to simplified script.
type Converter interface {
	Convert(s string) string
}

// Options selects the cleanup steps for one page.
type Options struct {
	RemoveTitle       bool
	TraditionToSimple bool
	Order             int  // rule.OrderRaw, rule.DefaultOrder or rule.OrderLate
	Markup            bool // 匹配结果是未解析的 html，规整时需要去标签、解码实体
}

// OptionsFor derives the options from a content rule set.
func OptionsFor(cr *rule.ContentRule) Options {
	return Options{
		RemoveTitle:       cr.ShouldRemoveTitle(),
		TraditionToSimple: cr.ShouldConvert(),
		Order:             cr.Content.Order(),
	}
}

// Processor applies title removal and script conversion.
// A nil Converter turns conversion into a no-op.
type Processor struct {
	Converter Converter
}

// Process cleans text. Title removal always runs before conversion so the
// first line is compared against the title in its original script.
func (p *Processor) Process(text, title string, opts Options) string {
	normalize := Normalize
	if opts.Markup {
		normalize = NormalizeMarkup
	}
	if opts.Order == rule.DefaultOrder {
		text = normalize(text)
	}
	if opts.RemoveTitle {
		text = RemoveTitle(text, title)
	}
	if opts.TraditionToSimple && p.Converter != nil {
		text = p.Converter.Convert(text)
	}
	if opts.Order > rule.DefaultOrder {
		text = normalize(text)
	}
	return text
}

// RemoveTitle drops the first non-empty line. When title is known the line is
// only dropped if it looks like that title.
func RemoveTitle(text, title string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if title != "" && !sameTitle(line, title) {
			return text
		}
		return strings.Join(append(lines[:i:i], lines[i+1:]...), "\n")
	}
	return text
}

func sameTitle(line, title string) bool {
	l, t := squash(line), squash(title)
	if l == "" || t == "" {
		return false
	}
	if l == t || strings.Contains(l, t) {
		return true
	}
	// 标题的片段至少要占标题一半，否则正文的短句会被误删
	return strings.Contains(t, l) && utf8.RuneCountInString(l)*2 >= utf8.RuneCountInString(t)
}

// squash removes every space so "第一章  开始" and "第一章 开始" compare equal.
func squash(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Normalize trims every line and drops blank lines. text is plain text:
// a literal "<" or "&" is kept as is.
func Normalize(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimFunc(line, unicode.IsSpace)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// NormalizeMarkup strips tags and decodes entities of raw html, then normalizes.
func NormalizeMarkup(text string) string {
	return Normalize(stripTags(text))
}

// stripTags 去掉 html 标签，块级元素和换行标签转成换行
func stripTags(s string) string {
	tok := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(tok.Text())
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := tok.TagName()
			if isBreak(string(name)) {
				b.WriteByte('\n')
			}
		}
	}
}

func isBreak(tag string) bool {
	switch strings.ToLower(tag) {
	case "br", "p", "div", "li", "blockquote", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "hr":
		return true
	}
	return false
}
