package rule

import (
	"time"

	"github.com/Ezekail/novelcrawler/collect"
)

// ContentRule 正文规则
//
//	# 最小规则
//	"content": "xpath://xxxx"
//	# 完整配置
//	"content": {
//	    "content": "规则",
//	    "next": "下一页规则",
//	    "enableNext": true
//	}
type ContentRule struct {
	EnableNext        *bool                  `json:"enableNext,omitempty" yaml:"enableNext,omitempty"`               // 正文翻页
	RemoveTitle       *bool                  `json:"removeTitle,omitempty" yaml:"removeTitle,omitempty"`             // 移除正文中的标题
	DelayTime         *int64                 `json:"delayTime,omitempty" yaml:"delayTime,omitempty"`                 // 翻页延迟，毫秒
	TraditionToSimple *bool                  `json:"traditionToSimple,omitempty" yaml:"traditionToSimple,omitempty"` // 繁体转简体
	Params            *collect.RequestParams `json:"requestParams,omitempty" yaml:"requestParams,omitempty"`         // 请求参数
	Content           Rule                   `json:"content" yaml:"content"`
	Next              Rule                   `json:"next" yaml:"next"` // 存在则会匹配下一页
}

// DefaultContent is the content rule used when a document omits one.
func DefaultContent() Rule {
	order := DefaultOrder
	return Rule{Kind: KindAuto, Expression: DefaultContentExpression, PostOrder: &order}
}

// DefaultNext is the next-page rule used when a document omits one.
func DefaultNext() Rule {
	return Create(KindXPath, NextPageExpression)
}

// NewContentRule returns a rule set with every default applied.
func NewContentRule() *ContentRule {
	return &ContentRule{
		Content: DefaultContent(),
		Next:    DefaultNext(),
	}
}

// IsEffective reports whether cr can extract anything.
func IsEffective(cr *ContentRule) bool {
	return cr != nil && cr.Content.IsEffective()
}

// IsEffective is always true: the content rule has a built-in default.
func (cr *ContentRule) IsEffective() bool {
	return true
}

// AllowNextPage 是否允许正文翻页，必须显式开启且规则存在
func (cr *ContentRule) AllowNextPage() bool {
	return cr.EnableNext != nil && *cr.EnableNext && cr.Next.IsEffective()
}

// ShouldRemoveTitle reports whether removeTitle is set.
func (cr *ContentRule) ShouldRemoveTitle() bool {
	return cr.RemoveTitle != nil && *cr.RemoveTitle
}

// ShouldConvert reports whether traditionToSimple is set.
func (cr *ContentRule) ShouldConvert() bool {
	return cr.TraditionToSimple != nil && *cr.TraditionToSimple
}

// Delay returns delayTime as a duration, zero when unset or negative.
func (cr *ContentRule) Delay() time.Duration {
	if cr.DelayTime == nil || *cr.DelayTime <= 0 {
		return 0
	}
	return time.Duration(*cr.DelayTime) * time.Millisecond
}
