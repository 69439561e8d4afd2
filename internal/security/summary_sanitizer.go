// Package security はアプリケーションのセキュリティ機能を提供する。
//
// SummarySanitizer は外部パイプラインが書き込んだ要約テキストから
// マークアップを取り除き、プレビュー表示用のプレーンテキストにする。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// SummarySanitizer は要約テキストのサニタイズ機能のインターフェースを定義する。
type SummarySanitizer interface {
	// PlainText は全てのタグを除去したテキストを返す。元の文字列に書かれていた
	// "&lt;" などのエンティティは文字列のまま残す。script, styleの中身は残らない。
	// maxRunesが正の場合はその文字数で切り詰め、末尾に "…" を付ける。
	PlainText(raw string, maxRunes int) string
}

// summarySanitizer はSummarySanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type summarySanitizer struct {
	policy *bluemonday.Policy
}

// blockBreaks はブロック要素の境界を改行として残すための置換。
var blockBreaks = strings.NewReplacer(
	"<br>", "\n", "<br/>", "\n", "<br />", "\n",
	"</p>", "\n", "</li>", "\n", "</div>", "\n",
)

// literalAmpersands は入力中の "&" をエンティティ化し、bluemondayの出力を
// 戻したときに元の文字列どおりになるようにする。
var literalAmpersands = strings.NewReplacer("&", "&amp;")

// NewSummarySanitizer はSummarySanitizerの新しいインスタンスを生成する。
func NewSummarySanitizer() *summarySanitizer {
	return &summarySanitizer{policy: bluemonday.StrictPolicy()}
}

// PlainText は要約をプレーンテキストに変換する。
func (s *summarySanitizer) PlainText(raw string, maxRunes int) string {
	if raw == "" {
		return ""
	}

	text := s.policy.Sanitize(literalAmpersands.Replace(blockBreaks.Replace(raw)))
	text = html.UnescapeString(text)
	text = collapseBlankLines(text)

	if maxRunes > 0 && utf8.RuneCountInString(text) > maxRunes {
		runes := []rune(text)
		text = strings.TrimRightFunc(string(runes[:maxRunes]), isSpace) + "…"
	}
	return text
}

// collapseBlankLines は各行の前後の空白を除き、空行を取り除く。
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}
