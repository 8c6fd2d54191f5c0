// Package matcher evaluates rules against pages. Every selector kind is
// served by one Matcher behind a common contract; kind auto is resolved by
// rule.InferKind before dispatch.
package matcher

import (
	"fmt"

	"github.com/Ezekail/novelcrawler/pattern"
	"github.com/Ezekail/novelcrawler/rule"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Matcher evaluates one expression. An empty result means no match and is not an error.
type Matcher interface {
	Match(expr string, src *Source) ([]string, error)
}

// Validator is implemented by matchers that can check an expression without a page.
type Validator interface {
	Validate(expr string) error
}

// MarkupReporter is implemented by matchers whose values may be raw html
// rather than text decoded from the parsed tree.
type MarkupReporter interface {
	Markup(expr string) bool
}

// ConfigError reports an expression that can't be evaluated at all.
type ConfigError struct {
	Kind       rule.Kind
	Expression string
	Err        error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s rule %q: %v", e.Kind, e.Expression, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err carries a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

func configError(kind rule.Kind, expr string, err error) error {
	return &ConfigError{Kind: kind, Expression: expr, Err: err}
}

type options struct {
	poolSize   int
	regexFlags int
	logger     *zap.Logger
}

var defaultOptions = options{
	poolSize: pattern.DefaultMaxEntries,
	logger:   zap.NewNop(),
}

type Option func(opts *options)

// WithPoolSize bounds each compiled-pattern pool.
func WithPoolSize(n int) Option {
	return func(opts *options) {
		opts.poolSize = n
	}
}

// WithRegexFlags sets the regexp2.RegexOptions used for regex rules.
func WithRegexFlags(flags int) Option {
	return func(opts *options) {
		opts.regexFlags = flags
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// Registry dispatches rules to matchers. It is safe for concurrent use once
// every Register call has returned.
type Registry struct {
	matchers map[rule.Kind]Matcher
	options
}

// NewRegistry returns a registry with every built-in selector kind.
func NewRegistry(opts ...Option) *Registry {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	r := &Registry{
		matchers: make(map[rule.Kind]Matcher),
		options:  options,
	}
	r.Register(rule.KindXPath, NewXPathMatcher(pattern.NewXPathPool(options.poolSize)))
	r.Register(rule.KindCSS, NewCSSMatcher(pattern.NewCSSPool(options.poolSize)))
	r.Register(rule.KindRegex, NewRegexMatcher(pattern.NewRegexPool(options.poolSize), options.regexFlags))
	r.Register(rule.KindJSON, NewJSONMatcher(options.poolSize))
	r.Register(rule.KindJS, NewJSMatcher(options.poolSize, options.logger))
	r.Register(rule.KindAuto, &TextMatcher{})
	return r
}

// Register installs or replaces the matcher for kind.
func (r *Registry) Register(kind rule.Kind, m Matcher) {
	r.matchers[kind] = m
}

func (r *Registry) resolve(ru rule.Rule) (rule.Kind, Matcher, error) {
	kind := ru.Kind
	if kind == "" || kind == rule.KindAuto {
		kind = rule.InferKind(ru.Expression)
	}
	m, ok := r.matchers[kind]
	if !ok {
		return kind, nil, configError(kind, ru.Expression, errors.New("no matcher for selector kind"))
	}
	return kind, m, nil
}

// MatchAll returns every value the rule selects, in document order.
func (r *Registry) MatchAll(ru rule.Rule, src *Source) ([]string, error) {
	kind, m, err := r.resolve(ru)
	if err != nil {
		return nil, err
	}
	values, err := m.Match(ru.Expression, src)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("matched",
		zap.String("kind", string(kind)),
		zap.String("url", src.URL),
		zap.Int("count", len(values)),
	)
	return values, nil
}

// MatchOne returns the first value the rule selects.
func (r *Registry) MatchOne(ru rule.Rule, src *Source) (string, bool, error) {
	values, err := r.MatchAll(ru, src)
	if err != nil || len(values) == 0 {
		return "", false, err
	}
	return values[0], true, nil
}

// Validate compiles the rule's expression without evaluating it.
func (r *Registry) Validate(ru rule.Rule) error {
	_, m, err := r.resolve(ru)
	if err != nil {
		return err
	}
	if v, ok := m.(Validator); ok {
		return v.Validate(ru.Expression)
	}
	return nil
}

// Markup reports whether the values ru selects are raw html that still need
// tag stripping and entity decoding.
func (r *Registry) Markup(ru rule.Rule) bool {
	_, m, err := r.resolve(ru)
	if err != nil {
		return false
	}
	mr, ok := m.(MarkupReporter)
	return ok && mr.Markup(ru.Expression)
}
