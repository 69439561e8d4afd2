package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/neurabot/neurabot/internal/middleware"
	"github.com/neurabot/neurabot/internal/model"
)

// Config はハンドラー共通の設定。
type Config struct {
	BaseURL       string // フロントエンドのURL。リダイレクト先の基点
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int    // アクセストークンCookieの有効期間（秒）
	DefaultLocale string // Accept-Languageで決まらない場合のロケール（"id" | "en"）
}

// frontendURL はフロントエンド上のパスを絶対URLにする。
func (c Config) frontendURL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを統一エラーレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("internal server error", slog.String("error", err.Error()))
	}
	middleware.WriteError(w, err)
}

// decodeJSON はリクエストボディをJSONとしてデコードする。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}
