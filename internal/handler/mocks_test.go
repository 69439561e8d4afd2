package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/neurabot/neurabot/internal/auth"
	"github.com/neurabot/neurabot/internal/dashboard"
	"github.com/neurabot/neurabot/internal/middleware"
	"github.com/neurabot/neurabot/internal/model"
	"github.com/neurabot/neurabot/internal/onboarding"
	"github.com/neurabot/neurabot/internal/profile"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, error)
	getSessionFn     func(ctx context.Context, token string) (*model.Session, error)
	getUserFn        func(ctx context.Context, token string) (*model.User, error)
	signOutFn        func(ctx context.Context, token string) error
	signOutAllFn     func(ctx context.Context, userID string) error
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) GetSession(ctx context.Context, token string) (*model.Session, error) {
	if m.getSessionFn != nil {
		return m.getSessionFn(ctx, token)
	}
	return nil, nil
}

func (m *mockAuthService) GetUser(ctx context.Context, token string) (*model.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, token)
	}
	return nil, nil
}

func (m *mockAuthService) SignOutEverywhere(ctx context.Context, userID string) error {
	if m.signOutAllFn != nil {
		return m.signOutAllFn(ctx, userID)
	}
	return nil
}

func (m *mockAuthService) SignOut(ctx context.Context, token string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, token)
	}
	return nil
}

type mockGate struct {
	checkFn func(ctx context.Context, token string) onboarding.Decision
}

func (m *mockGate) Check(ctx context.Context, token string) onboarding.Decision {
	return m.checkFn(ctx, token)
}

type mockProfileService struct {
	submitFn      func(ctx context.Context, token string, in profile.Input) (*profile.Result, error)
	saveProfileFn func(ctx context.Context, userID, fullName string, role model.Role) (*model.Profile, error)
	renameFn      func(ctx context.Context, token, name string) (*model.User, error)
}

func (m *mockProfileService) Submit(ctx context.Context, token string, in profile.Input) (*profile.Result, error) {
	return m.submitFn(ctx, token, in)
}

func (m *mockProfileService) SaveProfile(ctx context.Context, userID, fullName string, role model.Role) (*model.Profile, error) {
	return m.saveProfileFn(ctx, userID, fullName, role)
}

func (m *mockProfileService) Rename(ctx context.Context, token, name string) (*model.User, error) {
	return m.renameFn(ctx, token, name)
}

type mockDashboardService struct {
	loadFn func(ctx context.Context, token string, locale language.Tag) (*dashboard.View, error)
}

func (m *mockDashboardService) Load(ctx context.Context, token string, locale language.Tag) (*dashboard.View, error) {
	return m.loadFn(ctx, token, locale)
}

type mockCounter struct {
	incrementFn func(ctx context.Context, userID, key string) (*model.User, error)
}

func (m *mockCounter) IncrementMetadataCounter(ctx context.Context, userID, key string) (*model.User, error) {
	return m.incrementFn(ctx, userID, key)
}

// eventSource は実際のNotifierで購読を扱うAuthEventSource。
type eventSource struct {
	*auth.Notifier
	session *model.Session
}

func newEventSource(session *model.Session) *eventSource {
	return &eventSource{Notifier: auth.NewNotifier(), session: session}
}

func (e *eventSource) GetSession(ctx context.Context, token string) (*model.Session, error) {
	if token != "tok" {
		return nil, nil
	}
	return e.session, nil
}

// --- ヘルパー ---

var testConfig = Config{
	BaseURL:       "http://localhost:3000",
	SessionMaxAge: 3600,
}

func liveSession(userID string) *model.Session {
	return &model.Session{
		ID:          "session-1",
		UserID:      userID,
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		CreatedAt:   time.Now(),
	}
}

// withAuth はセッションミドルウェアを通過した状態のコンテキストを作る。
func withAuth(ctx context.Context, userID string) context.Context {
	return middleware.ContextWithToken(middleware.ContextWithUserID(ctx, userID), "tok")
}

func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body %q: %v", w.Body.String(), err)
	}
	return body
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
