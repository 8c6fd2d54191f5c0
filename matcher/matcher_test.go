package matcher

import (
	"testing"
	"time"

	"github.com/Ezekail/novelcrawler/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chapterPage = `<html><head><title>第一章 开始_书网</title><script>var x = "not content";</script></head>
<body>
<div class="nav"><a href="/">首页</a></div>
<h1>第一章 开始</h1>
<div id="content">第一段正文内容。<br/>第二段正文内容。<br/></div>
<div class="page"><a href="/book/1_0.html">上一页</a><a id="next" href="/book/1_2.html">下一页</a></div>
</body></html>`

func chapterSource() *Source {
	return NewSource("http://example.com/book/1_1.html", []byte(chapterPage))
}

func matchAll(t *testing.T, r *Registry, shorthand string, src *Source) []string {
	t.Helper()
	values, err := r.MatchAll(rule.Parse(shorthand), src)
	require.NoError(t, err, shorthand)
	return values
}

// TestRegistry_XPath verifies element, attribute and scalar results
func TestRegistry_XPath(t *testing.T) {
	r := NewRegistry()
	src := chapterSource()

	assert.Equal(t, []string{"第一段正文内容。\n第二段正文内容。"}, matchAll(t, r, "xpath://div[@id='content']", src))
	assert.Equal(t, []string{"/book/1_2.html"}, matchAll(t, r, "xpath://a[@id='next']/@href", src))
	assert.Equal(t, []string{"3"}, matchAll(t, r, "xpath:count(//a)", src))
}

// TestRegistry_DefaultNextExpression verifies the built-in next-page rule
func TestRegistry_DefaultNextExpression(t *testing.T) {
	next, ok, err := NewRegistry().MatchOne(rule.DefaultNext(), chapterSource())

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/book/1_2.html", next)
}

// TestRegistry_CSS verifies text, html and attribute extraction
func TestRegistry_CSS(t *testing.T) {
	r := NewRegistry()
	src := chapterSource()

	assert.Equal(t, []string{"第一段正文内容。\n第二段正文内容。"}, matchAll(t, r, "css:#content", src))
	assert.Equal(t, []string{"/book/1_2.html"}, matchAll(t, r, "css:a#next@href", src))
	assert.Equal(t, []string{"<h1>第一章 开始</h1>"}, matchAll(t, r, "css:h1@html", src))
	assert.Equal(t, []string{"/book/1_0.html", "/book/1_2.html"}, matchAll(t, r, "css:div.page a@href", src))
}

// TestRegistry_Regex verifies group selection and templates
func TestRegistry_Regex(t *testing.T) {
	r := NewRegistry()
	src := chapterSource()

	assert.Equal(t, []string{"/book/1_2.html"}, matchAll(t, r, `regex:href="(/book/\d+_\d+\.html)">下一页`, src))
	assert.Equal(t, []string{"下一页"}, matchAll(t, r, `regex:下一页`, src))
	assert.Equal(t, []string{"/book/1_2.html"}, matchAll(t, r, `regex:/book/(\d+)_(\d+)\.html">下一页##/book/$1_${2}.html`, src))
	assert.Equal(t,
		[]string{"http://example.com/book/1_2.html"},
		matchAll(t, r, `regex:@url:^(.*)/(\d+)_\d+\.html$##$1/$2_2.html`, src),
	)
}

// TestRegistry_JSON verifies JSONPath evaluation and non-JSON pages
func TestRegistry_JSON(t *testing.T) {
	r := NewRegistry()
	src := NewSource("http://example.com/api/1", []byte(`{"data":{"content":"正文","next":"/api/2","list":[1,2],"done":false}}`))

	assert.Equal(t, []string{"正文"}, matchAll(t, r, "json:$.data.content", src))
	assert.Equal(t, []string{"1", "2"}, matchAll(t, r, "json:$.data.list[*]", src))
	assert.Equal(t, []string{"false"}, matchAll(t, r, "$.data.done", src), "bare $. expressions infer json")
	assert.Empty(t, matchAll(t, r, "json:$.data.content", chapterSource()))
}

// TestRegistry_JS verifies scripts see the page and url
func TestRegistry_JS(t *testing.T) {
	r := NewRegistry()
	src := chapterSource()

	assert.Equal(t, []string{"yes"}, matchAll(t, r, `js:source.indexOf("下一页") > 0 ? "yes" : "no"`, src))
	assert.Equal(t, []string{"http://example.com/book/1_1.html", "b"}, matchAll(t, r, `js:[url, "b"]`, src))
	assert.Empty(t, matchAll(t, r, `js:null`, src))
}

// TestRegistry_JSThrowIsMiss verifies a script that throws on a page found nothing there
func TestRegistry_JSThrowIsMiss(t *testing.T) {
	r := NewRegistry()
	src := NewSource("http://example.com/book/1_3.html", []byte(`<html><body>最后一页</body></html>`))
	next := rule.Parse(`js:source.match(/href="([^"]+)">下一页/)[1]`)

	require.NoError(t, r.Validate(next))
	value, ok, err := r.MatchOne(next, src)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)

	value, ok, err = r.MatchOne(next, chapterSource())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/book/1_2.html", value)
}

// TestJSMatcher_Timeout verifies a runaway script is interrupted
func TestJSMatcher_Timeout(t *testing.T) {
	m := NewJSMatcher(0, nil)
	m.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := m.Match("while (true) {}", chapterSource())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScriptTimeout)
	assert.False(t, IsConfigError(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

// TestRegistry_Markup verifies which rules return raw html
func TestRegistry_Markup(t *testing.T) {
	r := NewRegistry()
	for shorthand, want := range map[string]bool{
		"xpath://div[@id='content']": false,
		"css:#content":               false,
		"css:h1@html":                true,
		"regex:<p>(.*?)</p>":         true,
		"regex:@url:(\\d+)\\.html":   false,
		"json:$.data.content":        false,
		"js:source":                  true,
		"default":                    false,
	} {
		assert.Equal(t, want, r.Markup(rule.Parse(shorthand)), shorthand)
	}
}

// TestRegistry_AutoDefaultText verifies the default content rule picks the text block
func TestRegistry_AutoDefaultText(t *testing.T) {
	values, err := NewRegistry().MatchAll(rule.DefaultContent(), chapterSource())

	require.NoError(t, err)
	assert.Equal(t, []string{"第一段正文内容。\n第二段正文内容。"}, values)
}

// TestRegistry_AutoInference verifies auto rules dispatch by expression syntax
func TestRegistry_AutoInference(t *testing.T) {
	r := NewRegistry()
	src := chapterSource()

	values, err := r.MatchAll(rule.Create(rule.KindAuto, "//h1"), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"第一章 开始"}, values)

	values, err = r.MatchAll(rule.Create(rule.KindAuto, "div.nav a"), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"首页"}, values)
}

// TestRegistry_MatchOne verifies the first-match policy and misses
func TestRegistry_MatchOne(t *testing.T) {
	r := NewRegistry()
	src := chapterSource()

	first, ok, err := r.MatchOne(rule.Parse("xpath://a/@href"), src)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/", first)

	_, ok, err = r.MatchOne(rule.Parse("xpath://div[@id='missing']"), src)
	assert.NoError(t, err, "a miss is not an error")
	assert.False(t, ok)
}

// TestRegistry_ConfigErrors verifies malformed expressions are configuration errors
func TestRegistry_ConfigErrors(t *testing.T) {
	r := NewRegistry()
	src := chapterSource()

	for _, shorthand := range []string{"xpath://div[", "css:div[", "regex:(unclosed", "js:function ("} {
		_, err := r.MatchAll(rule.Parse(shorthand), src)
		assert.True(t, IsConfigError(err), shorthand)
		assert.True(t, IsConfigError(r.Validate(rule.Parse(shorthand))), shorthand)
	}

	err := r.Validate(rule.Rule{Kind: "sql", Expression: "select 1"})
	assert.True(t, IsConfigError(err))
	assert.NoError(t, r.Validate(rule.DefaultContent()))
	assert.NoError(t, r.Validate(rule.DefaultNext()))
}

// TestSource_Title verifies heading lookup
func TestSource_Title(t *testing.T) {
	assert.Equal(t, "第一章 开始", chapterSource().Title())

	noHeading := NewSource("http://example.com", []byte("<html><head><title> 书名 </title></head><body></body></html>"))
	assert.Equal(t, "书名", noHeading.Title())
}
