// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はレシピのテキストフィールドからHTMLマークアップを除去する。
// bluemondayのStrictPolicyで全タグを取り除いた上で、エスケープされた文字実体を
// 元の文字に戻し、プレーンテキストとして保存できる形にする。
// 文字実体で書かれたタグも復元後に除去されるため、結果にマークアップは残らない。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はテキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize はHTMLタグを除去したプレーンテキストを返す。
	// script, styleタグは内容ごと除去される。
	Sanitize(s string) string
	// SanitizeAll はスライスの各要素をサニタイズした新しいスライスを返す。
	SanitizeAll(values []string) []string
}

// TextSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフであり、複数のgoroutineから共有できる。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
//
// 文字実体を戻した結果が新たなタグになる入力（&lt;script&gt;など）があるため、
// タグ除去と文字実体の復元を出力が変化しなくなるまで繰り返す。
// 変化する周回では文字列が必ず短くなるので、周回数は入力長で抑えられる。
// 結果は不動点なので、Sanitizeの出力を再度Sanitizeしても変わらない。
func (s *TextSanitizer) Sanitize(v string) string {
	cur := v
	for range len(v) + 1 {
		next := html.UnescapeString(s.policy.Sanitize(cur))
		if next == cur {
			break
		}
		cur = next
	}
	return cur
}

// SanitizeAll はスライスの各要素をサニタイズした新しいスライスを返す。nilはnilのまま返す。
func (s *TextSanitizer) SanitizeAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = s.Sanitize(v)
	}
	return out
}

var _ TextSanitizerService = (*TextSanitizer)(nil)
