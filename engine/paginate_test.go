package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Ezekail/novelcrawler/collect"
	"github.com/Ezekail/novelcrawler/matcher"
	"github.com/Ezekail/novelcrawler/rule"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = "http://example.com/book/"

func chapter(text, next string) string {
	link := ""
	if next != "" {
		link = fmt.Sprintf(`<a href="%s">下一页</a>`, next)
	}
	return fmt.Sprintf(`<html><head><title>第一章</title></head><body>
<h1>第一章</h1>
<div id="content">%s</div>
<div class="nav"><a href="/">目录</a>%s</div>
</body></html>`, text, link)
}

type siteFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	fail     map[string]error
	redirect map[string]string
	calls    []string
	times    []time.Time
}

func (f *siteFetcher) Fetch(ctx context.Context, req *collect.Request) (*collect.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.URL)
	f.times = append(f.times, time.Now())
	if err, ok := f.fail[req.URL]; ok {
		return nil, err
	}
	url := req.URL
	if to, ok := f.redirect[url]; ok {
		url = to
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, &collect.StatusError{URL: req.URL, Code: 404}
	}
	return &collect.Page{URL: url, Body: []byte(body)}, nil
}

func (f *siteFetcher) page(url string) *collect.Page {
	return &collect.Page{URL: url, Body: []byte(f.pages[url])}
}

func threePages() *siteFetcher {
	return &siteFetcher{pages: map[string]string{
		base + "1.html": chapter("第1页内容", "1_2.html"),
		base + "1_2.html": chapter("第2页内容", "/book/1_3.html"),
		base + "1_3.html": chapter("第3页内容", ""),
	}}
}

func contentRule(enableNext bool) *rule.ContentRule {
	cr := rule.NewContentRule()
	cr.EnableNext = &enableNext
	cr.Content = rule.Parse("xpath://div[@id='content']")
	return cr
}

func TestPaginator_ThreePages(t *testing.T) {
	site := threePages()
	p := NewPaginator(WithFetcher(site))

	res, err := p.Run(context.Background(), contentRule(true), site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, "第1页内容\n第2页内容\n第3页内容", res.String())
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, []string{base + "1.html", base + "1_2.html", base + "1_3.html"}, res.URLs)
	assert.Equal(t, []string{base + "1_2.html", base + "1_3.html"}, site.calls)
	assert.NotEmpty(t, res.ID)
}

func TestPaginator_RunURL(t *testing.T) {
	site := threePages()
	p := NewPaginator(WithFetcher(site), WithSeparator("\n\n"))

	res, err := p.RunURL(context.Background(), contentRule(true), base+"1.html")
	require.NoError(t, err)
	assert.Equal(t, "第1页内容\n\n第2页内容\n\n第3页内容", res.String())
	assert.Len(t, site.calls, 3)
}

func TestPaginator_NextDisabled(t *testing.T) {
	site := threePages()
	p := NewPaginator(WithFetcher(site))

	res, err := p.Run(context.Background(), contentRule(false), site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, "第1页内容", res.String())
	assert.Equal(t, 1, res.Pages)
	assert.Empty(t, site.calls)
}

func TestPaginator_Cycle(t *testing.T) {
	site := &siteFetcher{pages: map[string]string{
		base + "1.html": chapter("甲", "2.html"),
		base + "2.html": chapter("乙", base+"1.html"),
	}}
	p := NewPaginator(WithFetcher(site))

	res, err := p.Run(context.Background(), contentRule(true), site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, "甲\n乙", res.String())
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, StateDone, res.State)
	assert.Len(t, site.calls, 1)
}

// TestPaginator_RedirectToVisited verifies a next page that redirects back is not read twice
func TestPaginator_RedirectToVisited(t *testing.T) {
	site := &siteFetcher{
		pages: map[string]string{
			base + "1.html": chapter("甲", "2.html"),
		},
		redirect: map[string]string{base + "2.html": base + "1.html"},
	}
	p := NewPaginator(WithFetcher(site))

	res, err := p.Run(context.Background(), contentRule(true), site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, "甲", res.String())
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, []string{base + "2.html"}, site.calls)
}

func TestPaginator_RedirectMarksLandedPage(t *testing.T) {
	site := &siteFetcher{
		pages: map[string]string{
			base + "1.html": chapter("甲", "2.html"),
			base + "3.html": chapter("丙", "3.html"),
		},
		redirect: map[string]string{base + "2.html": base + "3.html"},
	}
	p := NewPaginator(WithFetcher(site))

	res, err := p.Run(context.Background(), contentRule(true), site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, "甲\n丙", res.String())
	assert.Equal(t, []string{base + "1.html", base + "3.html"}, res.URLs)
	assert.Equal(t, []string{base + "2.html"}, site.calls)
}

// TestPaginator_TemplatedNext builds the next URL from the current one
func TestPaginator_TemplatedNext(t *testing.T) {
	site := threePages()
	p := NewPaginator(WithFetcher(site))
	cr := contentRule(true)
	cr.Next = rule.Parse(`regex:@url:^(.*)/(\d+)\.html$##$1/$2_2.html`)

	res, err := p.Run(context.Background(), cr, site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, "第1页内容\n第2页内容", res.String())
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, []string{base + "1_2.html"}, site.calls)
}

// TestPaginator_ScriptNext stops at the last page when the script throws there
func TestPaginator_ScriptNext(t *testing.T) {
	site := threePages()
	p := NewPaginator(WithFetcher(site))
	cr := contentRule(true)
	cr.Next = rule.Parse(`js:source.match(/href="([^"]+)">下一页/)[1]`)

	res, err := p.Run(context.Background(), cr, site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, "第1页内容\n第2页内容\n第3页内容", res.String())
}

func TestPaginator_KeepsEscapedText(t *testing.T) {
	site := &siteFetcher{pages: map[string]string{
		base + "1.html": chapter("if x&lt;y then z&gt;w and a &amp;lt; b", ""),
	}}
	p := NewPaginator(WithFetcher(site))

	res, err := p.Run(context.Background(), contentRule(false), site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, "if x<y then z>w and a &lt; b", res.String())
}

func TestPaginator_RegexContentStripsTags(t *testing.T) {
	site := &siteFetcher{pages: map[string]string{
		base + "1.html": chapter("<p>x &amp;lt; y</p><br><p>下一段</p>", ""),
	}}
	p := NewPaginator(WithFetcher(site))
	cr := contentRule(false)
	cr.Content = rule.Parse(`regex:<div id="content">([\s\S]*?)</div>`)

	res, err := p.Run(context.Background(), cr, site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, "x &lt; y\n下一段", res.String())
}

// TestPaginator_DefaultConverter converts with the bundled dictionary when no processor is given
func TestPaginator_DefaultConverter(t *testing.T) {
	site := &siteFetcher{pages: map[string]string{
		base + "1.html": chapter("開發萬事", ""),
	}}
	p := NewPaginator(WithFetcher(site))
	cr := contentRule(false)
	convert := true
	cr.TraditionToSimple = &convert

	res, err := p.Run(context.Background(), cr, site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, "开发万事", res.String())
}

func TestPaginator_SelfLink(t *testing.T) {
	site := &siteFetcher{pages: map[string]string{
		base + "1.html": chapter("甲", "1.html"),
	}}
	p := NewPaginator(WithFetcher(site))

	res, err := p.Run(context.Background(), contentRule(true), site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, "甲", res.String())
	assert.Empty(t, site.calls)
}

func TestPaginator_Delay(t *testing.T) {
	site := threePages()
	p := NewPaginator(WithFetcher(site))
	cr := contentRule(true)
	delay := int64(200)
	cr.DelayTime = &delay

	start := time.Now()
	res, err := p.Run(context.Background(), cr, site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pages)
	require.Len(t, site.times, 2)
	assert.GreaterOrEqual(t, site.times[0].Sub(start), 200*time.Millisecond)
	assert.GreaterOrEqual(t, site.times[1].Sub(site.times[0]), 200*time.Millisecond)
}

func TestPaginator_SleeperSeesRemainingDelay(t *testing.T) {
	site := threePages()
	var waits []time.Duration
	p := NewPaginator(WithFetcher(site), WithSleeper(func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}))
	cr := contentRule(true)
	delay := int64(1000)
	cr.DelayTime = &delay

	_, err := p.Run(context.Background(), cr, site.page(base+"1.html"))
	require.NoError(t, err)
	require.Len(t, waits, 2)
	for _, d := range waits {
		assert.LessOrEqual(t, d, time.Second)
		assert.Greater(t, d, 900*time.Millisecond)
	}
}

func TestPaginator_FetchFailureKeepsContent(t *testing.T) {
	site := threePages()
	boom := errors.New("connection reset")
	site.fail = map[string]error{base + "1_2.html": boom}
	p := NewPaginator(WithFetcher(site))

	res, err := p.Run(context.Background(), contentRule(true), site.page(base+"1.html"))
	require.Error(t, err)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, base+"1_2.html", fe.URL)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "第1页内容", res.String())
	assert.Equal(t, 1, res.Pages)
}

func TestPaginator_Cancelled(t *testing.T) {
	site := threePages()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := NewPaginator(WithFetcher(site), WithSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return Sleep(ctx, d)
	}))
	cr := contentRule(true)
	delay := int64(5000)
	cr.DelayTime = &delay

	res, err := p.Run(ctx, cr, site.page(base+"1.html"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "第1页内容", res.String())
	assert.Empty(t, site.calls)
}

func TestPaginator_ConfigErrorBeforeFetch(t *testing.T) {
	site := threePages()
	p := NewPaginator(WithFetcher(site))
	cr := contentRule(true)
	cr.Next = rule.Parse("xpath://a[")

	res, err := p.RunURL(context.Background(), cr, base+"1.html")
	require.Error(t, err)
	assert.True(t, matcher.IsConfigError(err))
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, site.calls)
}

func TestPaginator_BadNextIgnoredWhenDisabled(t *testing.T) {
	site := threePages()
	p := NewPaginator(WithFetcher(site))
	cr := contentRule(false)
	cr.Next = rule.Parse("xpath://a[")

	res, err := p.Run(context.Background(), cr, site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, "第1页内容", res.String())
}

func TestPaginator_ContentMiss(t *testing.T) {
	site := &siteFetcher{pages: map[string]string{
		base + "1.html": chapter("甲", "2.html"),
		base + "2.html": `<html><body><a href="3.html">下一页</a></body></html>`,
		base + "3.html": chapter("丙", ""),
	}}
	p := NewPaginator(WithFetcher(site))

	res, err := p.Run(context.Background(), contentRule(true), site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, "甲\n丙", res.String())
	assert.Equal(t, 3, res.Pages)
}

func TestPaginator_MaxPages(t *testing.T) {
	site := threePages()
	p := NewPaginator(WithFetcher(site), WithMaxPages(2))

	res, err := p.Run(context.Background(), contentRule(true), site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, "第1页内容\n第2页内容", res.String())
	assert.Len(t, site.calls, 1)
}

func TestPaginator_DefaultRules(t *testing.T) {
	site := threePages()
	p := NewPaginator(WithFetcher(site))
	enable := true
	cr := rule.NewContentRule()
	cr.EnableNext = &enable

	res, err := p.Run(context.Background(), cr, site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pages)
	assert.Contains(t, res.String(), "第3页内容")
}

func TestPaginator_RemoveTitle(t *testing.T) {
	site := &siteFetcher{pages: map[string]string{
		base + "1.html": chapter("第一章<br>正文", ""),
	}}
	p := NewPaginator(WithFetcher(site))
	cr := contentRule(false)
	remove := true
	cr.RemoveTitle = &remove

	res, err := p.Run(context.Background(), cr, site.page(base+"1.html"))
	require.NoError(t, err)
	assert.Equal(t, "正文", res.String())
}

func TestPaginator_NilFirstPage(t *testing.T) {
	p := NewPaginator()
	res, err := p.Run(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
}

func TestPaginator_NoFetcher(t *testing.T) {
	p := NewPaginator()
	_, err := p.Run(context.Background(), contentRule(true), &collect.Page{URL: base + "1.html"})
	assert.ErrorIs(t, err, errNoFetcher)

	res, err := p.Run(context.Background(), contentRule(false), &collect.Page{URL: base + "1.html", Body: []byte(chapter("甲", ""))})
	require.NoError(t, err)
	assert.Equal(t, "甲", res.String())
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"1_2.html", base + "1_2.html"},
		{"/book/1_3.html", "http://example.com/book/1_3.html"},
		{"../index.html", "http://example.com/index.html"},
		{"https://other.com/x", "https://other.com/x"},
		{"  2.html ", base + "2.html"},
		{"javascript:void(0)", ""},
		{"#", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveURL(base+"1.html", tt.href), tt.href)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "state(42)", State(42).String())
}
