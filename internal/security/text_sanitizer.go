// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は食品リストの入力テキストからHTMLを除去し、
// 保存された値がフロントエンドで描画されたときのXSSを防ぐ。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力のサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// SanitizeText はすべてのHTMLタグを除去したプレーンテキストを返す。
	// 前後の空白は取り除く。
	SanitizeText(s string) string
	// SanitizeURL はhttp/httpsの絶対URLのみを通過させ、それ以外は空文字列を返す。
	SanitizeURL(s string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はStrictPolicyを使ったTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はHTMLタグを除去する。
// StrictPolicyはエンティティをエスケープするため、プレーンテキストに戻してから返す。
func (s *textSanitizer) SanitizeText(in string) string {
	if in == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}

// SanitizeURL は画像URLを検証する。
func (s *textSanitizer) SanitizeURL(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	u, err := url.Parse(in)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
