// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/neurabot/neurabot/internal/middleware"
	"github.com/neurabot/neurabot/internal/model"
	"github.com/neurabot/neurabot/internal/onboarding"
)

const (
	oauthStateCookie = "oauth_state"
	// summaryModeCookie はクライアントが読み取るロールのキャッシュ。
	summaryModeCookie = "summaryMode"
	// OnboardingPath はログイン直後の遷移先。
	OnboardingPath = "/onboarding/role"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	GetSession(ctx context.Context, token string) (*model.Session, error)
	GetUser(ctx context.Context, token string) (*model.User, error)
	SignOut(ctx context.Context, token string) error
	SignOutEverywhere(ctx context.Context, userID string) error
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  Config
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config Config) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata model.Metadata `json:"user_metadata"`
}

// sessionResponse はセッション情報のAPIレスポンス。
type sessionResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

func toUserResponse(user *model.User) userResponse {
	metadata := user.Metadata
	if metadata == nil {
		metadata = model.Metadata{}
	}
	return userResponse{ID: user.ID, Email: user.Email, Metadata: metadata}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	h.clearCookie(w, oauthStateCookie, true)

	code := r.URL.Query().Get("code")
	if code == "" {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadGateway, &model.APIError{
			Code:     model.ErrCodeUnauthorized,
			Message:  "Authentication failed",
			Category: "auth",
			Action:   "もう一度ログインしてください。",
		})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookieName,
		Value:    session.AccessToken,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.config.frontendURL(OnboardingPath), http.StatusTemporaryRedirect)
}

// CallbackRedirect は外部IdPからの戻り先を常にオンボーディング画面へ転送する。
// GET /auth/callback
func (h *AuthHandler) CallbackRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.config.frontendURL(OnboardingPath), http.StatusFound)
}

// Session は現在のセッションを返す。セッションがなければsessionはnull。
// GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)

	session, err := h.service.GetSession(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if session == nil {
		writeJSON(w, http.StatusOK, map[string]any{"session": nil})
		return
	}

	user, err := h.service.GetUser(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusOK, map[string]any{"session": nil})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session": sessionResponse{
			AccessToken: session.AccessToken,
			ExpiresAt:   session.ExpiresAt,
			User:        toUserResponse(user),
		},
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), middleware.TokenFromRequest(r))
	if err != nil {
		slog.Error("failed to get current user", slog.String("error", err.Error()))
		middleware.WriteAPIError(w, model.NewUnauthorizedError("Invalid token"))
		return
	}
	if user == nil {
		middleware.WriteAPIError(w, model.NewUnauthorizedError("Invalid token"))
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Logout はセッションを破棄し、ログイン画面へリダイレクトする。
// POST /auth/logout （?scope=global で全端末からサインアウト）
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.TokenFromRequest(r); token != "" {
		// 失敗してもCookieはクリアする
		if err := h.signOut(r, token); err != nil {
			slog.Error("failed to sign out", slog.String("error", err.Error()))
		}
	}

	h.clearCookie(w, middleware.AccessTokenCookieName, true)
	h.clearCookie(w, summaryModeCookie, false)

	http.Redirect(w, r, h.config.frontendURL(onboarding.LoginPath), http.StatusSeeOther)
}

// signOut は?scope=globalの場合にユーザーの全セッションを、それ以外は現在のセッションだけを破棄する。
func (h *AuthHandler) signOut(r *http.Request, token string) error {
	if r.URL.Query().Get("scope") != "global" {
		return h.service.SignOut(r.Context(), token)
	}

	session, err := h.service.GetSession(r.Context(), token)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	return h.service.SignOutEverywhere(r.Context(), session.UserID)
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
