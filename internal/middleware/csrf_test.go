package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/neurabot/neurabot/internal/model"
)

func TestCSRFMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		session    bool // access_token Cookieを付ける
		cookie     string
		header     string
		authHeader string
		wantStatus int
	}{
		{"GET without token", http.MethodGet, true, "", "", "", http.StatusOK},
		{"HEAD without token", http.MethodHead, true, "", "", "", http.StatusOK},
		{"OPTIONS without token", http.MethodOptions, true, "", "", "", http.StatusOK},
		{"POST without cookie", http.MethodPost, true, "", "tok", "", http.StatusForbidden},
		{"POST without header", http.MethodPost, true, "tok", "", "", http.StatusForbidden},
		{"POST with mismatch", http.MethodPost, true, "tok-a", "tok-b", "", http.StatusForbidden},
		{"POST with matching token", http.MethodPost, true, "tok", "tok", "", http.StatusOK},
		{"PATCH without token", http.MethodPatch, true, "", "", "", http.StatusForbidden},
		{"DELETE without token", http.MethodDelete, true, "", "", "", http.StatusForbidden},
		{"POST with bearer skips check", http.MethodPost, false, "", "", "Bearer abc", http.StatusOK},
		{"POST with bearer and session cookie skips check", http.MethodPost, true, "", "", "Bearer abc", http.StatusOK},
		{"POST without any credential is left to session check", http.MethodPost, false, "", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

			req := httptest.NewRequest(tt.method, "/api/profile/name", nil)
			if tt.session {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: "session-token"})
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden {
				if body := decodeErrorBody(t, w); body.Code != model.ErrCodeCSRFInvalid {
					t.Errorf("code = %q, want %q", body.Code, model.ErrCodeCSRFInvalid)
				}
			}
		})
	}
}

func TestCSRFMiddleware_GETRequest_SetsCookieOnce(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{CookieSecure: true})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	var csrfCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			csrfCookie = c
		}
	}
	if csrfCookie == nil {
		t.Fatal("csrf cookie should be set")
	}
	if len(csrfCookie.Value) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(csrfCookie.Value))
	}
	if csrfCookie.HttpOnly || !csrfCookie.Secure {
		t.Errorf("cookie flags: HttpOnly=%v Secure=%v", csrfCookie.HttpOnly, csrfCookie.Secure)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if len(w.Result().Cookies()) != 0 {
		t.Error("existing cookie should not be replaced")
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	t.Run("issues token and cookie", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		cookies := w.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Value != body.Token || body.Token == "" {
			t.Errorf("cookies = %v, token = %q", cookies, body.Token)
		}
	})

	t.Run("returns existing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-csrf-token"})
		w := httptest.NewRecorder()
		NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, req)

		var body struct {
			Token string `json:"token"`
		}
		json.NewDecoder(w.Body).Decode(&body)
		if body.Token != "existing-csrf-token" {
			t.Errorf("token = %q", body.Token)
		}
	})
}
