package collect

import (
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"strings"
)

// RequestParams 请求参数，由规则文件提供，引擎只负责原样传给 Fetcher
type RequestParams struct {
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Cookie  string            `json:"cookie,omitempty" yaml:"cookie,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
	Charset string            `json:"charset,omitempty" yaml:"charset,omitempty"` // 强制指定网页编码
}

// Request is one page fetch.
type Request struct {
	URL    string
	Params *RequestParams
}

// Method returns the HTTP method, GET when unset.
func (r *Request) Method() string {
	if r.Params == nil || r.Params.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Params.Method)
}

// Unique 请求的唯一识别码
func (r *Request) Unique() string {
	block := md5.Sum([]byte(r.URL + r.Method()))
	return hex.EncodeToString(block[:])
}

// Page is a fetched page, already decoded to UTF-8.
type Page struct {
	URL         string
	ContentType string
	Body        []byte
}
