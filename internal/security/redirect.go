package security

import (
	"net/url"
	"strings"
)

// SafeRedirectPath はクエリ等で渡された遷移先がこのサービス内の絶対パスである場合のみ
// それを返し、そうでなければfallbackを返す。
// スキーム付きURL、プロトコル相対URL（//host）、バックスラッシュを含むパスは拒否する。
func SafeRedirectPath(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return fallback
	}
	if strings.HasPrefix(next, "//") || strings.ContainsAny(next, "\\\r\n\t") {
		return fallback
	}

	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}
	return u.RequestURI()
}
