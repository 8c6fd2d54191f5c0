// Package engine drives a content rule set across the pages of one document
// and schedules many such runs concurrently.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ezekail/novelcrawler/bytebuf"
	"github.com/Ezekail/novelcrawler/collect"
	"github.com/Ezekail/novelcrawler/matcher"
	"github.com/Ezekail/novelcrawler/rule"
	"github.com/Ezekail/novelcrawler/textproc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type State int

const (
	StateStart State = iota
	StateFetching
	StateMatching
	StateDelaying
	StateDone
	StateFailed
)

var stateNames = [...]string{"start", "fetching", "matching", "delaying", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// FetchError 翻页过程中抓取失败，已经累加的内容仍保存在 Result 中
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one run. It is returned together with any error,
// so the content of the pages read before a failure is never lost.
type Result struct {
	ID      string
	Content []byte
	Pages   int
	URLs    []string
	State   State
}

func (r *Result) String() string {
	return string(r.Content)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var errNoFetcher = errors.New("engine: no fetcher configured")

type Paginator struct {
	options
}

func NewPaginator(opts ...Option) *Paginator {
	return &Paginator{options: newOptions(opts)}
}

// RunURL fetches the first page itself and then behaves like Run.
func (p *Paginator) RunURL(ctx context.Context, cr *rule.ContentRule, url string) (*Result, error) {
	if cr == nil {
		cr = rule.NewContentRule()
	}
	res := &Result{ID: uuid.NewString(), State: StateStart}
	if err := p.validate(cr); err != nil {
		res.State = StateFailed
		return res, err
	}
	if p.Fetcher == nil {
		res.State = StateFailed
		return res, errNoFetcher
	}
	res.State = StateFetching
	page, err := p.Fetcher.Fetch(ctx, &collect.Request{URL: url, Params: cr.Params})
	if err != nil {
		res.State = StateFailed
		return res, &FetchError{URL: url, Err: err}
	}
	return p.run(ctx, res, cr, page, time.Now())
}

// Run extracts the content of first and keeps following next-page links
// until the next rule misses, a page repeats, or MaxPages is reached.
func (p *Paginator) Run(ctx context.Context, cr *rule.ContentRule, first *collect.Page) (*Result, error) {
	if cr == nil {
		cr = rule.NewContentRule()
	}
	res := &Result{ID: uuid.NewString(), State: StateStart}
	if first == nil {
		res.State = StateFailed
		return res, errors.New("engine: first page is nil")
	}
	if err := p.validate(cr); err != nil {
		res.State = StateFailed
		return res, err
	}
	// 首页由调用方抓取，从现在开始计算翻页间隔
	return p.run(ctx, res, cr, first, time.Now())
}

// validate 在翻页之前检查规则，避免抓取了若干页之后才发现表达式写错
func (p *Paginator) validate(cr *rule.ContentRule) error {
	if !rule.IsEffective(cr) {
		return &rule.ConfigError{Field: "content", Value: cr.Content.Expression, Err: errors.New("content rule is empty")}
	}
	if err := p.Registry.Validate(cr.Content); err != nil {
		return err
	}
	if cr.AllowNextPage() {
		if err := p.Registry.Validate(cr.Next); err != nil {
			return err
		}
		if p.Fetcher == nil {
			return errNoFetcher
		}
	}
	return nil
}

func (p *Paginator) run(ctx context.Context, res *Result, cr *rule.ContentRule, page *collect.Page, lastFetch time.Time) (*Result, error) {
	logger := p.Logger.With(zap.String("run", res.ID))
	buf := bytebuf.New(p.SizeHint)
	defer buf.Close()

	finish := func(state State, err error) (*Result, error) {
		res.State = state
		res.Content = buf.Bytes()
		if err != nil {
			logger.Warn("pagination failed",
				zap.Int("pages", res.Pages),
				zap.Error(err),
			)
		} else {
			logger.Debug("pagination done",
				zap.Int("pages", res.Pages),
				zap.Int("bytes", buf.Len()),
			)
		}
		return res, err
	}

	visited := map[string]struct{}{}
	visited[(&collect.Request{URL: page.URL, Params: cr.Params}).Unique()] = struct{}{}
	textOpts := textproc.OptionsFor(cr)
	textOpts.Markup = p.Registry.Markup(cr.Content)

	for {
		res.State = StateMatching
		res.Pages++
		res.URLs = append(res.URLs, page.URL)
		src := matcher.FromPage(page)

		text, err := p.content(cr, src, textOpts)
		if err != nil {
			return finish(StateFailed, err)
		}
		if text != "" {
			if buf.Len() > 0 {
				buf.WriteString(p.Separator)
			}
			buf.WriteString(text)
		} else {
			logger.Debug("content rule missed", zap.String("url", page.URL))
		}

		if !cr.AllowNextPage() {
			return finish(StateDone, nil)
		}
		if p.MaxPages > 0 && res.Pages >= p.MaxPages {
			logger.Info("max pages reached", zap.Int("max", p.MaxPages))
			return finish(StateDone, nil)
		}
		href, ok, err := p.Registry.MatchOne(cr.Next, src)
		if err != nil {
			return finish(StateFailed, err)
		}
		if !ok {
			return finish(StateDone, nil)
		}
		next := resolveURL(page.URL, href)
		if next == "" {
			logger.Debug("unusable next reference", zap.String("href", href))
			return finish(StateDone, nil)
		}
		req := &collect.Request{URL: next, Params: cr.Params}
		if _, seen := visited[req.Unique()]; seen {
			// 下一页指向已经读过的页面，视为没有下一页
			logger.Debug("next page already visited", zap.String("url", next))
			return finish(StateDone, nil)
		}
		visited[req.Unique()] = struct{}{}

		if err := ctx.Err(); err != nil {
			return finish(StateFailed, errors.Wrap(err, "pagination cancelled"))
		}
		if delay := cr.Delay(); delay > 0 {
			res.State = StateDelaying
			if err := p.Sleeper(ctx, time.Until(lastFetch.Add(delay))); err != nil {
				return finish(StateFailed, errors.Wrap(err, "pagination cancelled"))
			}
		}

		res.State = StateFetching
		logger.Debug("fetch next page", zap.String("url", next))
		page, err = p.Fetcher.Fetch(ctx, req)
		lastFetch = time.Now()
		if err != nil {
			if ctx.Err() != nil {
				return finish(StateFailed, errors.Wrap(ctx.Err(), "pagination cancelled"))
			}
			return finish(StateFailed, &FetchError{URL: next, Err: err})
		}
		if page.URL != next {
			// 重定向到已经读过的页面同样视为没有下一页
			landed := (&collect.Request{URL: page.URL, Params: cr.Params}).Unique()
			if _, seen := visited[landed]; seen {
				logger.Debug("redirected to visited page", zap.String("url", next), zap.String("landed", page.URL))
				return finish(StateDone, nil)
			}
			visited[landed] = struct{}{}
		}
	}
}

func (p *Paginator) content(cr *rule.ContentRule, src *matcher.Source, opts textproc.Options) (string, error) {
	values, err := p.Registry.MatchAll(cr.Content, src)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", nil
	}
	var title string
	if opts.RemoveTitle {
		title = src.Title()
	}
	return p.Processor.Process(strings.Join(values, "\n"), title, opts), nil
}
