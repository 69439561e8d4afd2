// Package model はドメインモデルを定義する。
package model

import "time"

// メタデータキー。IdPのユーザーレコードに付随する任意のキーのうち、
// アプリケーションが解釈するもの。
const (
	MetadataSummaryMode = "summary_mode"
	MetadataUsername    = "username"
	MetadataMicSessions = "mic_sessions"
	MetadataFullName    = "full_name"
	MetadataAvatarURL   = "avatar_url"
)

// Metadata はユーザーに付随する任意のキー・バリュー属性を表す。
// profilesテーブルの行とは別に管理される。
type Metadata map[string]any

// String は指定キーの文字列値を返す。キーが存在しないか文字列でない場合は空文字を返す。
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Int は指定キーの数値を返す。JSONデコード由来のfloat64も受け付ける。
func (m Metadata) Int(key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	Email     string
	Metadata  Metadata
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
// AccessTokenは発行時にのみ設定され、永続化されない。
type Session struct {
	ID          string
	UserID      string
	AccessToken string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}
