package engine

import (
	"net/url"
	"strings"
)

// resolveURL resolves href relative to base. It returns "" for unusable references.
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if h.Scheme != "" && h.Host != "" {
		return h.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}
