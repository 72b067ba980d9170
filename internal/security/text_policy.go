// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextPolicy は蔵書のテキスト項目にHTMLマークアップが含まれていないかを判定する。
// bluemondayのStrictPolicyで全タグを除去した結果と元の文字列を比較する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextPolicy はプレーンテキスト検証のインターフェースを定義する。
type TextPolicy interface {
	// ContainsMarkup はsにHTMLタグやコメントが含まれる場合にtrueを返す。
	// "a < b" や "&amp;" のような、タグを構成しない記号や文字参照は許容する。
	ContainsMarkup(s string) bool
}

// textPolicy はTextPolicyの実装。
// bluemonday.Policyはスレッドセーフなので共有して使用する。
type textPolicy struct {
	policy *bluemonday.Policy
}

// NewTextPolicy はTextPolicyの新しいインスタンスを生成する。
func NewTextPolicy() *textPolicy {
	return &textPolicy{
		policy: bluemonday.StrictPolicy(),
	}
}

// ContainsMarkup はsにHTMLマークアップが含まれるかを判定する。
// サニタイズ結果はエスケープされ、改行はLFに揃えられるため、両辺を同じ形に正規化してから比較する。
func (p *textPolicy) ContainsMarkup(s string) bool {
	s = NormalizeNewlines(s)
	return NormalizeNewlines(html.UnescapeString(p.policy.Sanitize(s))) != html.UnescapeString(s)
}

// NormalizeNewlines はCRLFと単独のCRをLFに置き換える。
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
