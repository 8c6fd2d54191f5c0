// Package parse holds built-in content rules for specific sites.
package parse

import (
	"sort"

	"github.com/Ezekail/novelcrawler/parse/doubangroup"
	"github.com/Ezekail/novelcrawler/rule"
)

var presets = map[string]func() *rule.ContentRule{
	"default":     rule.NewContentRule,
	"doubangroup": doubangroup.Rule,
}

// Lookup returns a fresh copy of the named preset.
func Lookup(name string) (*rule.ContentRule, bool) {
	f, ok := presets[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
