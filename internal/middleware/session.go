// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/neurabot/neurabot/internal/model"
)

// AccessTokenCookieName はアクセストークンを保持するHttpOnly Cookieの名前。
const AccessTokenCookieName = "access_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// tokenContextKey は検証済みアクセストークンを格納するためのキー。
	tokenContextKey = contextKey("access_token")
)

// SessionVerifier はアクセストークンからセッションを解決するインターフェース。
// auth.Serviceが満たす。
type SessionVerifier interface {
	GetSession(ctx context.Context, token string) (*model.Session, error)
}

// TokenFromRequest はリクエストからアクセストークンを取り出す。
// Authorization: Bearer ヘッダーを優先し、なければaccess_token Cookieを参照する。
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(AccessTokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// NewSessionMiddleware はBearerトークンまたはCookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みユーザーIDとトークンをリクエストコンテキストに注入する。
// 未認証リクエストには401と統一エラーボディを返す。
func NewSessionMiddleware(verifier SessionVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				WriteAPIError(w, model.NewUnauthorizedError("Missing authorization header"))
				return
			}

			session, err := verifier.GetSession(r.Context(), token)
			if err != nil {
				slog.Error("failed to verify session",
					slog.String("error", err.Error()),
				)
				WriteAPIError(w, model.NewUnauthorizedError("Invalid token"))
				return
			}
			if session == nil {
				WriteAPIError(w, model.NewUnauthorizedError("Invalid token"))
				return
			}

			setLogUserID(r.Context(), session.UserID)
			ctx := ContextWithUserID(r.Context(), session.UserID)
			ctx = context.WithValue(ctx, tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// TokenFromContext はセッションミドルウェアが検証したアクセストークンを返す。
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithToken はコンテキストにアクセストークンを注入する。テスト用。
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}
