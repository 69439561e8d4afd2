// Package onboarding はオンボーディング画面の表示可否を判定する。
package onboarding

import (
	"context"
	"log/slog"

	"github.com/neurabot/neurabot/internal/model"
)

// リダイレクト先。
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// UserFetcher は現在のユーザーを取得するインターフェース。
type UserFetcher interface {
	GetUser(ctx context.Context, token string) (*model.User, error)
}

// Form はオンボーディングフォームの初期値。
type Form struct {
	Name string     `json:"name"`
	Role model.Role `json:"role"`
}

// Decision はゲートの判定結果。RedirectToが空の場合はフォームを表示する。
type Decision struct {
	RedirectTo string `json:"redirect_to,omitempty"`
	Form       *Form  `json:"form,omitempty"`
}

// Gate はオンボーディングの完了状態を判定する。
type Gate struct {
	users UserFetcher
}

// NewGate はGateを生成する。
func NewGate(users UserFetcher) *Gate {
	return &Gate{users: users}
}

// Check はユーザーの状態からオンボーディング画面の扱いを決める。
//
// ユーザーが取得できなければログインへ、メタデータにロールと表示名の
// 両方があればダッシュボードへリダイレクトする。それ以外はメタデータの
// 値で初期化したフォームを返す。ロールの初期値はpatologi。
func (g *Gate) Check(ctx context.Context, token string) Decision {
	user, err := g.users.GetUser(ctx, token)
	if err != nil {
		slog.Warn("onboarding gate could not fetch user", slog.String("error", err.Error()))
		return Decision{RedirectTo: LoginPath}
	}
	if user == nil {
		return Decision{RedirectTo: LoginPath}
	}

	role := model.Role(user.Metadata.String(model.MetadataSummaryMode))
	name := user.Metadata.String(model.MetadataUsername)
	if role != "" && name != "" {
		return Decision{RedirectTo: DashboardPath}
	}

	if !role.Valid() {
		role = model.RolePathologist
	}
	return Decision{Form: &Form{Name: name, Role: role}}
}
