package matcher

import (
	"strconv"
	"time"

	"github.com/Ezekail/novelcrawler/pattern"
	"github.com/Ezekail/novelcrawler/rule"
	"github.com/pkg/errors"
	"github.com/robertkrimen/otto"
	"go.uber.org/zap"
)

// ErrScriptTimeout is returned when a js rule runs longer than JSMatcher.Timeout.
var ErrScriptTimeout = errors.New("js rule timed out")

// JSMatcher runs a script with the page bound to `source` and its address to
// `url`. The completion value is the result; an array yields one value per element.
// A script that throws at run time found nothing on this page.
type JSMatcher struct {
	Timeout time.Duration // 单次执行的时间上限，0 表示使用 pattern.MatchTimeout
	pool    *pattern.Pool[*otto.Script]
	logger  *zap.Logger
}

func NewJSMatcher(poolSize int, logger *zap.Logger) *JSMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSMatcher{
		pool: pattern.NewPool(poolSize, func(expr string, _ int) (*otto.Script, error) {
			return otto.New().Compile("", expr)
		}),
		logger: logger,
	}
}

// Markup is true: scripts usually cut their values out of the raw page.
func (m *JSMatcher) Markup(string) bool {
	return true
}

func (m *JSMatcher) Validate(expr string) error {
	if _, err := m.pool.Get(expr, 0); err != nil {
		return configError(rule.KindJS, expr, err)
	}
	return nil
}

func (m *JSMatcher) Match(expr string, src *Source) ([]string, error) {
	script, err := m.pool.Get(expr, 0)
	if err != nil {
		return nil, configError(rule.KindJS, expr, err)
	}
	vm := otto.New()
	if err := vm.Set("source", src.Text()); err != nil {
		return nil, err
	}
	if err := vm.Set("url", src.URL); err != nil {
		return nil, err
	}
	v, err := m.run(vm, script)
	if errors.Is(err, ErrScriptTimeout) {
		return nil, errors.Wrapf(err, "js rule on %s", src.URL)
	}
	if err != nil {
		m.logger.Debug("js rule threw",
			zap.String("url", src.URL),
			zap.Error(err),
		)
		return nil, nil
	}
	return jsValues(v)
}

type halt struct{}

// run executes script, interrupting it once the timeout expires.
func (m *JSMatcher) run(vm *otto.Otto, script *otto.Script) (v otto.Value, err error) {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = pattern.MatchTimeout
	}
	defer func() {
		if caught := recover(); caught != nil {
			if _, ok := caught.(halt); ok {
				err = ErrScriptTimeout
				return
			}
			panic(caught)
		}
	}()
	vm.Interrupt = make(chan func(), 1)
	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt <- func() {
			panic(halt{})
		}
	})
	defer timer.Stop()
	return vm.Run(script)
}

func jsValues(v otto.Value) ([]string, error) {
	if v.IsUndefined() || v.IsNull() {
		return nil, nil
	}
	if v.Class() != "Array" {
		s, err := v.ToString()
		if err != nil || s == "" {
			return nil, err
		}
		return []string{s}, nil
	}
	obj := v.Object()
	length, err := obj.Get("length")
	if err != nil {
		return nil, err
	}
	n, err := length.ToInteger()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := int64(0); i < n; i++ {
		item, err := obj.Get(strconv.FormatInt(i, 10))
		if err != nil {
			return nil, err
		}
		if item.IsUndefined() || item.IsNull() {
			continue
		}
		s, err := item.ToString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
