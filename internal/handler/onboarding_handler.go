package handler

import (
	"context"
	"mime"
	"net/http"
	"time"

	"github.com/neurabot/neurabot/internal/middleware"
	"github.com/neurabot/neurabot/internal/model"
	"github.com/neurabot/neurabot/internal/onboarding"
	"github.com/neurabot/neurabot/internal/profile"
	"github.com/neurabot/neurabot/internal/security"
)

// summaryModeMaxAge はsummaryMode Cookieの有効期間（1年）。
const summaryModeMaxAge = int(365 * 24 * time.Hour / time.Second)

// OnboardingGate はオンボーディング画面の表示可否を判定するインターフェース。
type OnboardingGate interface {
	Check(ctx context.Context, token string) onboarding.Decision
}

// ProfileServiceInterface はプロフィール書き込みのサービスインターフェース。
type ProfileServiceInterface interface {
	Submit(ctx context.Context, token string, in profile.Input) (*profile.Result, error)
	SaveProfile(ctx context.Context, userID, fullName string, role model.Role) (*model.Profile, error)
	Rename(ctx context.Context, token, name string) (*model.User, error)
}

// OnboardingHandler はロール選択画面と初回プロフィール保存のHTTPハンドラー。
type OnboardingHandler struct {
	gate     OnboardingGate
	profiles ProfileServiceInterface
	config   Config
}

// NewOnboardingHandler はOnboardingHandlerを生成する。
func NewOnboardingHandler(gate OnboardingGate, profiles ProfileServiceInterface, config Config) *OnboardingHandler {
	return &OnboardingHandler{gate: gate, profiles: profiles, config: config}
}

// saveProfileRequest はプロフィール保存APIのリクエストボディ。
type saveProfileRequest struct {
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// profileResponse はprofiles行のAPIレスポンス。
type profileResponse struct {
	ID        string     `json:"id"`
	FullName  string     `json:"full_name"`
	Role      model.Role `json:"role,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toProfileResponse(p *model.Profile) profileResponse {
	return profileResponse{ID: p.ID, FullName: p.FullName, Role: p.Role, UpdatedAt: p.UpdatedAt}
}

// Show はオンボーディングフォームの初期値を返す。
// 完了済みならダッシュボードへ、未ログインならログイン画面へリダイレクトする。
// GET /onboarding/role
func (h *OnboardingHandler) Show(w http.ResponseWriter, r *http.Request) {
	decision := h.gate.Check(r.Context(), middleware.TokenFromRequest(r))
	if decision.RedirectTo != "" {
		http.Redirect(w, r, h.config.frontendURL(decision.RedirectTo), http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// Submit はオンボーディングフォームの送信を処理する。
// JSONとフォームエンコードの両方を受け付ける。成功時はsummaryMode Cookieを設定し、
// ?next= が同一オリジンの安全なパスならそこへ、そうでなければダッシュボードへ303で遷移する。
// POST /onboarding/role
func (h *OnboardingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	in, err := decodeOnboardingInput(w, r)
	if err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	if _, err := h.profiles.Submit(r.Context(), middleware.TokenFromRequest(r), in); err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     summaryModeCookie,
		Value:    string(in.Normalize().Role),
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   summaryModeMaxAge,
		HttpOnly: false, // フロントエンドから読み取り可能
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	next := security.SafeRedirectPath(r.URL.Query().Get("next"), onboarding.DashboardPath)
	http.Redirect(w, r, h.config.frontendURL(next), http.StatusSeeOther)
}

// SaveProfile は認証済みユーザーのprofiles行を保存する。
// POST /api/onboarding/profile
func (h *OnboardingHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthorizedError("Missing authorization header"))
		return
	}

	var req saveProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	p, err := h.profiles.SaveProfile(r.Context(), userID, req.FullName, model.Role(req.Role))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    toProfileResponse(p),
		"message": "Profile saved successfully",
	})
}

// decodeOnboardingInput はContent-Typeに応じてフォーム入力を読み取る。
func decodeOnboardingInput(w http.ResponseWriter, r *http.Request) (profile.Input, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := r.ParseForm(); err != nil {
			return profile.Input{}, err
		}
		return profile.Input{
			Name: r.PostForm.Get("name"),
			Role: model.Role(r.PostForm.Get("role")),
		}, nil
	}

	var in profile.Input
	if err := decodeJSON(w, r, &in); err != nil {
		return profile.Input{}, err
	}
	return in, nil
}
