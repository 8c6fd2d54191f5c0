package rule

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ezekail/novelcrawler/collect"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ruleDoc is the object form of a Rule. "type" and "rule" are accepted as
// older spellings of "selectorKind" and "expression".
type ruleDoc struct {
	SelectorKind string  `json:"selectorKind" yaml:"selectorKind"`
	Type         string  `json:"type" yaml:"type"`
	Expression   *string `json:"expression" yaml:"expression"`
	Rule         *string `json:"rule" yaml:"rule"`
	PostOrder    *int    `json:"postOrder" yaml:"postOrder"`
}

func (d *ruleDoc) toRule() (Rule, error) {
	expr := ""
	if d.Expression != nil {
		expr = *d.Expression
	} else if d.Rule != nil {
		expr = *d.Rule
	}
	name := d.SelectorKind
	if name == "" {
		name = d.Type
	}

	var r Rule
	if name == "" {
		r = Parse(expr)
	} else {
		kind, err := ParseKind(name)
		if err != nil {
			return Rule{}, err
		}
		r = Create(kind, expr)
	}
	r.PostOrder = d.PostOrder
	return r, nil
}

// UnmarshalJSON accepts either a shorthand string or the object form.
func (r *Rule) UnmarshalJSON(data []byte) error {
	if s, ok, err := jsonString(data); ok || err != nil {
		if err != nil {
			return err
		}
		*r = Parse(s)
		return nil
	}
	var doc ruleDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "decode rule")
	}
	parsed, err := doc.toRule()
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// UnmarshalYAML accepts either a shorthand scalar or the mapping form.
func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Tag == "!!null" {
			return nil
		}
		*r = Parse(value.Value)
		return nil
	}
	var doc ruleDoc
	if err := value.Decode(&doc); err != nil {
		return errors.Wrap(err, "decode rule")
	}
	parsed, err := doc.toRule()
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type contentDoc struct {
	EnableNext        *bool                  `json:"enableNext" yaml:"enableNext"`
	RemoveTitle       *bool                  `json:"removeTitle" yaml:"removeTitle"`
	DelayTime         *int64                 `json:"delayTime" yaml:"delayTime"`
	TraditionToSimple *bool                  `json:"traditionToSimple" yaml:"traditionToSimple"`
	RequestParams     *collect.RequestParams `json:"requestParams" yaml:"requestParams"`
	Params            *collect.RequestParams `json:"params" yaml:"params"`
	Content           *Rule                  `json:"content" yaml:"content"`
	Next              *Rule                  `json:"next" yaml:"next"`
}

// apply copies the fields present in the document; absent ones keep their defaults.
func (d *contentDoc) apply(cr *ContentRule) {
	cr.EnableNext = d.EnableNext
	cr.RemoveTitle = d.RemoveTitle
	cr.DelayTime = d.DelayTime
	cr.TraditionToSimple = d.TraditionToSimple
	cr.Params = d.RequestParams
	if cr.Params == nil {
		cr.Params = d.Params
	}
	if d.Content != nil {
		cr.Content = *d.Content
	}
	if d.Next != nil {
		cr.Next = *d.Next
	}
}

// UnmarshalJSON 自定义反序列化正文规则，支持直接填写 string 规则
func (cr *ContentRule) UnmarshalJSON(data []byte) error {
	*cr = *NewContentRule()
	if s, ok, err := jsonString(data); ok || err != nil {
		if err != nil {
			return err
		}
		cr.Content = Parse(s)
		return nil
	}
	var doc contentDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "decode content rule")
	}
	doc.apply(cr)
	return nil
}

// UnmarshalYAML is the YAML counterpart of UnmarshalJSON.
func (cr *ContentRule) UnmarshalYAML(value *yaml.Node) error {
	*cr = *NewContentRule()
	if value.Kind == yaml.ScalarNode {
		if value.Tag != "!!null" {
			cr.Content = Parse(value.Value)
		}
		return nil
	}
	var doc contentDoc
	if err := value.Decode(&doc); err != nil {
		return errors.Wrap(err, "decode content rule")
	}
	doc.apply(cr)
	return nil
}

func jsonString(data []byte) (string, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", true, errors.Wrap(err, "decode rule string")
	}
	return s, true, nil
}

// Format of a rule document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatOf picks the format from a file extension, JSON unless it is .yaml or .yml.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load decodes one content rule document.
func Load(r io.Reader, format Format) (*ContentRule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read rule document")
	}
	cr := NewContentRule()
	if len(bytes.TrimSpace(data)) == 0 {
		return cr, nil
	}
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, cr)
	default:
		err = json.Unmarshal(data, cr)
	}
	if err != nil {
		return nil, err
	}
	return cr, nil
}

// LoadFile reads a JSON or YAML rule document from disk.
func LoadFile(path string) (*ContentRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open rule document")
	}
	defer f.Close()
	return Load(f, FormatOf(path))
}
