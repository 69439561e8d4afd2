// Package dashboard はダッシュボードに表示する利用統計と最近の要約を集計する。
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"

	"github.com/neurabot/neurabot/internal/metrics"
	"github.com/neurabot/neurabot/internal/model"
	"github.com/neurabot/neurabot/internal/repository"
	"github.com/neurabot/neurabot/internal/security"
)

// ErrNoSession は有効なセッションがない場合に返される。
var ErrNoSession = errors.New("no active session")

// RecentSummaryLimit はプレビューに表示する要約の最大件数。
const RecentSummaryLimit = 5

// PreviewMaxRunes はプレビュー本文の最大文字数。超えた分は "…" で省略する。
const PreviewMaxRunes = 200

// UserFetcher は現在のユーザーを取得するインターフェース。
type UserFetcher interface {
	GetUser(ctx context.Context, token string) (*model.User, error)
}

// Stats は利用統計。
type Stats struct {
	TotalWords     int `json:"total_words"`
	TotalSummaries int `json:"total_summaries"`
}

// SummaryPreview は最近の要約1件。
type SummaryPreview struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Time        string    `json:"time"`
	CreatedAt   time.Time `json:"created_at"`
}

// View はダッシュボード画面の表示内容。
type View struct {
	Email           string           `json:"email"`
	DisplayName     string           `json:"display_name"`
	Initial         string           `json:"initial"`
	AvatarURL       string           `json:"avatar_url,omitempty"`
	Role            model.Role       `json:"role,omitempty"`
	RoleLabel       string           `json:"role_label"`
	MicSessions     int              `json:"mic_sessions"`
	Stats           Stats            `json:"stats"`
	RecentSummaries []SummaryPreview `json:"recent_summaries"`
	Locale          string           `json:"locale"`
}

// Service はダッシュボードの集計を提供する。
type Service struct {
	users     UserFetcher
	histories repository.HistoryRepository
	sanitizer security.SummarySanitizer
	times     *TimeFormatter
	metrics   metrics.MetricsCollector
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(
	users UserFetcher,
	histories repository.HistoryRepository,
	sanitizer security.SummarySanitizer,
	times *TimeFormatter,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{users: users, histories: histories, sanitizer: sanitizer, times: times, metrics: mc}
}

// Load はダッシュボードの表示内容を組み立てる。
// セッションがない場合はErrNoSessionを返す。統計とプレビューの取得はそれぞれ独立しており、
// 失敗した側はゼロ値のまま表示を続ける。
func (s *Service) Load(ctx context.Context, token string, locale language.Tag) (*View, error) {
	user, err := s.users.GetUser(ctx, token)
	if err != nil {
		slog.Warn("dashboard could not fetch user", slog.String("error", err.Error()))
		return nil, ErrNoSession
	}
	if user == nil {
		return nil, ErrNoSession
	}

	view := profileView(user)
	view.Locale = locale.String()
	view.RecentSummaries = []SummaryPreview{}
	log := slog.With(slog.String("user_id", user.ID))

	if all, err := s.histories.ListByUser(ctx, user.ID); err != nil {
		log.Warn("failed to load history stats", slog.String("error", err.Error()))
		s.metrics.RecordDashboardFetchFailure("stats")
	} else {
		view.Stats = ComputeStats(all)
	}

	if recent, err := s.histories.ListRecentWithSummary(ctx, user.ID, RecentSummaryLimit); err != nil {
		log.Warn("failed to load recent summaries", slog.String("error", err.Error()))
		s.metrics.RecordDashboardFetchFailure("previews")
	} else {
		view.RecentSummaries = s.previews(recent, locale)
	}

	return view, nil
}

// ComputeStats は空白区切りの単語数と要約付きの件数を数える。
func ComputeStats(entries []model.HistoryEntry) Stats {
	var st Stats
	for _, e := range entries {
		st.TotalWords += len(strings.Fields(e.OriginalText))
		if e.HasSummary() {
			st.TotalSummaries++
		}
	}
	return st
}

func (s *Service) previews(entries []model.HistoryEntry, locale language.Tag) []SummaryPreview {
	out := make([]SummaryPreview, 0, len(entries))
	for _, e := range entries {
		if !e.HasSummary() {
			continue
		}
		out = append(out, SummaryPreview{
			ID:          e.ID,
			Title:       s.times.SessionTitle(locale, e.CreatedAt),
			Description: s.sanitizer.PlainText(e.SummaryResult, PreviewMaxRunes),
			Time:        s.times.Relative(locale, e.CreatedAt),
			CreatedAt:   e.CreatedAt,
		})
		if len(out) == RecentSummaryLimit {
			break
		}
	}
	return out
}

// profileView はメタデータから画面上部のプロフィール表示を作る。
func profileView(user *model.User) *View {
	role := model.Role(user.Metadata.String(model.MetadataSummaryMode))
	name := DisplayName(user)
	return &View{
		Email:       user.Email,
		DisplayName: name,
		Initial:     initial(name),
		AvatarURL:   user.Metadata.String(model.MetadataAvatarURL),
		Role:        role,
		RoleLabel:   role.Label(),
		MicSessions: user.Metadata.Int(model.MetadataMicSessions),
	}
}

// DisplayName はusername、IdPの氏名、メールアドレスのローカル部の順に表示名を決める。
func DisplayName(user *model.User) string {
	if name := user.Metadata.String(model.MetadataUsername); name != "" {
		return name
	}
	if name := user.Metadata.String(model.MetadataFullName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(user.Email, "@"); ok {
		return local
	}
	return user.Email
}

func initial(name string) string {
	r, _ := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToUpper(r))
}
