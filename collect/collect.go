// Package collect fetches pages for the pagination engine.
package collect

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Ezekail/novelcrawler/proxy"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"
)

// DefaultUserAgent 需设置携带 User-Agent 访问才有数据
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_4) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.149 Safari/537.36"

const maxContentLength = 20 * 1024 * 1024

// Fetcher loads one page. Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Page, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req *Request) (*Page, error)

func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*Page, error) {
	return f(ctx, req)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status code %d", e.URL, e.Code)
}

// HTTPFetcher 模拟浏览器访问，检测网页的字符编码并将文本统一转换为 UTF-8
type HTTPFetcher struct {
	Timeout   time.Duration
	UserAgent string
	Proxy     proxy.Func
	Limiter   *rate.Limiter // 全局限速，nil 表示不限速
	Logger    *zap.Logger

	once   sync.Once
	client *http.Client
}

func (f *HTTPFetcher) init() {
	f.once.Do(func() {
		f.client = &http.Client{Timeout: f.Timeout}
		if f.Proxy != nil {
			transport := http.DefaultTransport.(*http.Transport).Clone()
			transport.Proxy = f.Proxy
			f.client.Transport = transport
		}
		if f.Logger == nil {
			f.Logger = zap.NewNop()
		}
	})
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*Page, error) {
	f.init()
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	var body io.Reader
	if req.Params != nil && req.Params.Body != "" {
		body = strings.NewReader(req.Params.Body)
	}
	request, err := http.NewRequestWithContext(ctx, req.Method(), req.URL, body)
	if err != nil {
		return nil, errors.Wrapf(err, "new request %s", req.URL)
	}
	ua := f.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	request.Header.Set("User-Agent", ua)
	if req.Params != nil {
		for k, v := range req.Params.Headers {
			request.Header.Set(k, v)
		}
		if req.Params.Cookie != "" {
			request.Header.Set("Cookie", req.Params.Cookie)
		}
	}

	start := time.Now()
	resp, err := f.client.Do(request)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", req.URL)
	}
	defer resp.Body.Close()
	f.Logger.Debug("fetched",
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: req.URL, Code: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	bodyReader := bufio.NewReader(io.LimitReader(resp.Body, maxContentLength))
	e, err := pickEncoding(bodyReader, contentType, req.Params)
	if err != nil {
		return nil, err
	}
	content, err := io.ReadAll(transform.NewReader(bodyReader, e.NewDecoder()))
	if err != nil {
		return nil, errors.Wrapf(err, "read body %s", req.URL)
	}
	return &Page{URL: resp.Request.URL.String(), ContentType: contentType, Body: content}, nil
}

func pickEncoding(r *bufio.Reader, contentType string, params *RequestParams) (encoding.Encoding, error) {
	if params != nil && params.Charset != "" {
		e, err := htmlindex.Get(params.Charset)
		if err != nil {
			return nil, errors.Wrapf(err, "unknown charset %q", params.Charset)
		}
		return e, nil
	}
	return DetermineEncoding(r, contentType), nil
}

// DetermineEncoding 检测并返回当前 HTML 文本的编码格式
func DetermineEncoding(r *bufio.Reader, contentType string) encoding.Encoding {
	peek, err := r.Peek(1024)
	if err != nil && len(peek) == 0 {
		return unicode.UTF8
	}
	e, _, _ := charset.DetermineEncoding(peek, contentType)
	return e
}
