// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/neurabot/neurabot/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// MergeMetadata はメタデータにpatchのキーを浅くマージし、更新後のユーザーを返す。
	// patchに含まれないキーは変更しない。ユーザーが存在しない場合はnilを返す。
	MergeMetadata(ctx context.Context, id string, patch model.Metadata) (*model.User, error)

	// IncrementMetadataCounter はメタデータ内の数値キーを1加算し、更新後のユーザーを返す。
	// キーが存在しない場合は1から始まる。
	IncrementMetadataCounter(ctx context.Context, id, key string) (*model.User, error)
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ProfileRepository はprofilesテーブルの永続化インターフェース。
type ProfileRepository interface {
	// Upsert はユーザーIDをキーにプロフィールを単一文で挿入または更新する。
	// 同一ユーザーに対して2行目が作られることはない。
	Upsert(ctx context.Context, profile *model.Profile) (*model.Profile, error)

	// FindByID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// UpdateFullName は既存プロフィールのfull_nameを更新する。
	// 行が存在しない場合はエラーを返さず、falseを返す。
	UpdateFullName(ctx context.Context, id, fullName string) (bool, error)
}

// HistoryRepository は文字起こし履歴の読み取りインターフェース。
type HistoryRepository interface {
	// ListByUser はユーザーの全履歴を作成日時の降順で返す。
	ListByUser(ctx context.Context, userID string) ([]model.HistoryEntry, error)

	// ListRecentWithSummary は空でない要約を持つ履歴を新しい順に最大limit件返す。
	ListRecentWithSummary(ctx context.Context, userID string, limit int) ([]model.HistoryEntry, error)
}
