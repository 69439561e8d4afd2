package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/text/language"

	"github.com/neurabot/neurabot/internal/auth"
	"github.com/neurabot/neurabot/internal/dashboard"
	"github.com/neurabot/neurabot/internal/middleware"
	"github.com/neurabot/neurabot/internal/model"
	"github.com/neurabot/neurabot/internal/onboarding"
)

// sseKeepAlive はSSEのコメント行を送る間隔。
const sseKeepAlive = 25 * time.Second

// DashboardServiceInterface はダッシュボード集計のサービスインターフェース。
type DashboardServiceInterface interface {
	Load(ctx context.Context, token string, locale language.Tag) (*dashboard.View, error)
}

// MetadataCounter はメタデータのカウンターを加算するインターフェース。
type MetadataCounter interface {
	IncrementMetadataCounter(ctx context.Context, userID, key string) (*model.User, error)
}

// AuthEventSource は認証状態の遷移を購読するインターフェース。
type AuthEventSource interface {
	GetSession(ctx context.Context, token string) (*model.Session, error)
	Subscribe(fn auth.Listener) func()
}

// DashboardHandler はダッシュボード関連のHTTPハンドラー。
type DashboardHandler struct {
	service  DashboardServiceInterface
	counter  MetadataCounter
	profiles ProfileServiceInterface
	events   AuthEventSource
	config   Config
	fallback language.Tag
	shutdown <-chan struct{}
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(
	service DashboardServiceInterface,
	counter MetadataCounter,
	profiles ProfileServiceInterface,
	events AuthEventSource,
	config Config,
) *DashboardHandler {
	return &DashboardHandler{
		service:  service,
		counter:  counter,
		profiles: profiles,
		events:   events,
		config:   config,
		fallback: fallbackLocale(config.DefaultLocale),
	}
}

// CloseStreamsOn はdoneが閉じられたときにEventsのストリームを終了させる。
// http.Server.Shutdownはリクエストのコンテキストをキャンセルしないため、
// RegisterOnShutdownから閉じるチャネルを渡す。
func (h *DashboardHandler) CloseStreamsOn(done <-chan struct{}) {
	h.shutdown = done
}

// fallbackLocale は設定されたロケール名を解釈する。空や不正な値はインドネシア語にする。
func fallbackLocale(name string) language.Tag {
	if name == "" {
		return language.Indonesian
	}
	tag, err := language.Parse(name)
	if err != nil {
		return language.Indonesian
	}
	return dashboard.ResolveLocale(tag.String(), language.Indonesian)
}

// renameRequest は表示名変更のリクエストボディ。
type renameRequest struct {
	Name string `json:"name"`
}

// streamEvent はSSEで送る認証状態の遷移。
type streamEvent struct {
	Event       string `json:"event"`
	Redirect    string `json:"redirect,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	MicSessions *int   `json:"mic_sessions,omitempty"`
}

func (h *DashboardHandler) locale(r *http.Request) language.Tag {
	return dashboard.ResolveLocale(r.Header.Get("Accept-Language"), h.fallback)
}

// Page はダッシュボード画面の表示内容を返す。セッションがなければログイン画面へリダイレクトする。
// GET /dashboard
func (h *DashboardHandler) Page(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Load(r.Context(), middleware.TokenFromRequest(r), h.locale(r))
	if errors.Is(err, dashboard.ErrNoSession) {
		http.Redirect(w, r, h.config.frontendURL(onboarding.LoginPath), http.StatusFound)
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Get はダッシュボードの表示内容をAPIとして返す。セッションがなければ401。
// GET /api/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Load(r.Context(), middleware.TokenFromContext(r.Context()), h.locale(r))
	if errors.Is(err, dashboard.ErrNoSession) {
		middleware.WriteAPIError(w, model.NewSessionExpiredError())
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// IncrementMicSessions は録音セッション数を1加算する。
// POST /api/dashboard/mic-sessions
func (h *DashboardHandler) IncrementMicSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthorizedError("Missing authorization header"))
		return
	}

	user, err := h.counter.IncrementMetadataCounter(r.Context(), userID, model.MetadataMicSessions)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"mic_sessions": user.Metadata.Int(model.MetadataMicSessions),
	})
}

// Rename は表示名を変更する。
// PATCH /api/profile/name
func (h *DashboardHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return
	}

	user, err := h.profiles.Rename(r.Context(), middleware.TokenFromContext(r.Context()), req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"display_name": dashboard.DisplayName(user),
	})
}

// Events は認証状態の遷移をServer-Sent Eventsで配信する。
// セッションがサインアウトされるか期限切れになるとSIGNED_OUTを送って閉じる。
// クライアントが切断すると購読を解除する。
// GET /api/dashboard/events
func (h *DashboardHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := middleware.TokenFromContext(ctx)

	session, err := h.events.GetSession(ctx, token)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if session == nil {
		middleware.WriteAPIError(w, model.NewSessionExpiredError())
		return
	}

	rc := http.NewResponseController(w)
	// 長時間接続のためサーバーの書き込みタイムアウトを解除する
	_ = rc.SetWriteDeadline(time.Time{})

	events := make(chan auth.Event, 8)
	unsubscribe := h.events.Subscribe(func(ev auth.Event) {
		if ev.UserID != session.UserID {
			return
		}
		select {
		case events <- ev:
		default:
			slog.Warn("dropping auth event for slow stream",
				slog.String("user_id", ev.UserID),
				slog.String("event", string(ev.Type)),
			)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Error("streaming unsupported", slog.String("error", err.Error()))
		return
	}

	expiry := time.NewTimer(time.Until(session.ExpiresAt))
	defer expiry.Stop()
	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	signedOut := streamEvent{
		Event:    string(auth.EventSignedOut),
		Redirect: onboarding.LoginPath,
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.shutdown:
			return
		case <-expiry.C:
			writeSSE(w, rc, signedOut)
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case ev := <-events:
			switch ev.Type {
			case auth.EventSignedOut:
				if ev.SessionID == "" || ev.SessionID == session.ID {
					writeSSE(w, rc, signedOut)
					return
				}
			case auth.EventUserUpdated:
				if ev.User == nil {
					continue
				}
				mic := ev.User.Metadata.Int(model.MetadataMicSessions)
				if err := writeSSE(w, rc, streamEvent{
					Event:       string(ev.Type),
					DisplayName: dashboard.DisplayName(ev.User),
					MicSessions: &mic,
				}); err != nil {
					return
				}
			}
		}
	}
}

// writeSSE はイベント1件をdata行として書き込んで送出する。
func writeSSE(w http.ResponseWriter, rc *http.ResponseController, ev streamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return rc.Flush()
}
