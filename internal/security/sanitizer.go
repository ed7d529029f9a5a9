// Package security はHTMLのサニタイズとSSRF対策を提供する。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer は信頼できないテキストを無害化する。実装は並行に使用できる。
type Sanitizer interface {
	Sanitize(raw string) string
}

// textSanitizer はすべてのタグを取り除きプレーンテキストを返す。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer は通知本文などクライアントがそのまま表示するテキスト向けの Sanitizer を返す。
// マークアップはすべて取り除き、エンティティはデコードするため、
// 結果にはユーザーが入力した文字が保存される。
func NewTextSanitizer() Sanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

func (s *textSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// richSanitizer は少数の書式タグを残す。
type richSanitizer struct {
	policy *bluemonday.Policy
}

// NewRichTextSanitizer は動画の説明文など外部サービスのHTML向けの Sanitizer を返す。
// p, br, ul, ol, li, blockquote, pre, code, strong, em と絶対URLの https/http リンクを残し、
// リンクはリファラーなしで新しいタブで開く。
func NewRichTextSanitizer() Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AllowURLSchemeWithCustomPolicy("https", func(*url.URL) bool { return true })
	p.AllowURLSchemeWithCustomPolicy("http", func(*url.URL) bool { return true })

	return &richSanitizer{policy: p}
}

func (s *richSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
