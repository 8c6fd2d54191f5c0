package matcher

import (
	"bytes"
	"strings"
	"sync"

	"github.com/Ezekail/novelcrawler/collect"
	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// Source is one page in every representation a selector kind may need.
// Each representation is parsed at most once.
type Source struct {
	URL  string
	body []byte

	docOnce sync.Once
	doc     *html.Node
	docErr  error

	jsonOnce sync.Once
	json     any
	jsonErr  error
}

// NewSource wraps a page body fetched from url.
func NewSource(url string, body []byte) *Source {
	return &Source{URL: url, body: body}
}

// FromPage wraps a fetched page.
func FromPage(p *collect.Page) *Source {
	return NewSource(p.URL, p.Body)
}

// Text returns the raw page text.
func (s *Source) Text() string {
	return string(s.body)
}

// Document returns the parsed HTML tree.
func (s *Source) Document() (*html.Node, error) {
	s.docOnce.Do(func() {
		s.doc, s.docErr = htmlquery.Parse(bytes.NewReader(s.body))
		if s.docErr != nil {
			s.docErr = errors.Wrapf(s.docErr, "parse html %s", s.URL)
		}
	})
	return s.doc, s.docErr
}

// Query returns the parsed tree as a goquery document.
func (s *Source) Query() (*goquery.Document, error) {
	doc, err := s.Document()
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(doc), nil
}

// JSON returns the page decoded as JSON.
func (s *Source) JSON() (any, error) {
	s.jsonOnce.Do(func() {
		if err := json.Unmarshal(s.body, &s.json); err != nil {
			s.jsonErr = errors.Wrapf(err, "decode json %s", s.URL)
		}
	})
	return s.json, s.jsonErr
}

// Title returns the page heading, falling back to <title>.
func (s *Source) Title() string {
	doc, err := s.Document()
	if err != nil {
		return ""
	}
	for _, expr := range []string{"//h1", "//title"} {
		if n := htmlquery.FindOne(doc, expr); n != nil {
			if t := strings.TrimSpace(htmlquery.InnerText(n)); t != "" {
				return t
			}
		}
	}
	return ""
}
