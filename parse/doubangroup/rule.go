package doubangroup

import (
	"github.com/Ezekail/novelcrawler/collect"
	"github.com/Ezekail/novelcrawler/rule"
)

// ContentRe 帖子正文，分组 1 是正文的 html，由后处理去掉标签
const ContentRe = `<div class="topic-content">([\s\S]*?)</div>`

// NextRe 评论翻页链接
const NextRe = `<span class="next">[\s\S]*?<a href="([^"]+)"`

// Rule 豆瓣小组帖子的正文规则
func Rule() *rule.ContentRule {
	enableNext := false
	removeTitle := true
	return &rule.ContentRule{
		EnableNext:  &enableNext,
		RemoveTitle: &removeTitle,
		// 需设置 Referer 访问才有数据
		Params: &collect.RequestParams{
			Headers: map[string]string{"Referer": "https://www.douban.com/group/"},
		},
		Content: rule.Create(rule.KindRegex, ContentRe),
		Next:    rule.Create(rule.KindRegex, NextRe),
	}
}
