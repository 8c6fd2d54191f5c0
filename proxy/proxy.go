// Package proxy picks the outbound proxy for each fetch.
package proxy

import (
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Func has the signature of http.Transport.Proxy.
type Func func(r *http.Request) (*url.URL, error)

type roundRobinSwitcher struct {
	proxyURLs []*url.URL
	index     uint32
}

// RoundRobinProxySwitcher 创建一个代理切换函数，每次请求轮换一个代理地址。
// 支持 http、https、socks5，未写 scheme 时按 http 处理。
func RoundRobinProxySwitcher(proxyURLs ...string) (Func, error) {
	if len(proxyURLs) < 1 {
		return nil, errors.New("proxy URL list is empty")
	}
	urls := make([]*url.URL, 0, len(proxyURLs))
	for _, raw := range proxyURLs {
		u, err := parseProxyURL(raw)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return (&roundRobinSwitcher{proxyURLs: urls}).GetProxy, nil
}

func parseProxyURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse proxy %q", raw)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, errors.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.Errorf("proxy %q has no host", raw)
	}
	return u, nil
}

// GetProxy 取余实现轮询
func (r *roundRobinSwitcher) GetProxy(_ *http.Request) (*url.URL, error) {
	index := atomic.AddUint32(&r.index, 1) - 1
	return r.proxyURLs[index%uint32(len(r.proxyURLs))], nil
}
