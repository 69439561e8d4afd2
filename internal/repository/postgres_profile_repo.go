package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/neurabot/neurabot/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// Upsert はINSERT ... ON CONFLICT (id) DO UPDATE でプロフィールを書き込む。
// 空のロールはNULLとして保存する。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, profile *model.Profile) (*model.Profile, error) {
	saved, err := scanProfile(r.db.QueryRowContext(ctx,
		`INSERT INTO profiles (id, full_name, role, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), now())
		 ON CONFLICT (id) DO UPDATE
		 SET full_name = EXCLUDED.full_name,
		     role = EXCLUDED.role,
		     updated_at = EXCLUDED.updated_at
		 RETURNING id, full_name, role, updated_at`,
		profile.ID, profile.FullName, string(profile.Role),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return saved, nil
}

// FindByID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	profile, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT id, full_name, role, updated_at FROM profiles WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return profile, nil
}

// UpdateFullName は既存プロフィールのfull_nameを更新する。
func (r *PostgresProfileRepo) UpdateFullName(ctx context.Context, id, fullName string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET full_name = $2, updated_at = now() WHERE id = $1`,
		id, fullName,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update profile name: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func scanProfile(row *sql.Row) (*model.Profile, error) {
	profile := &model.Profile{}
	var fullName, role sql.NullString
	err := row.Scan(&profile.ID, &fullName, &role, &profile.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	profile.FullName = fullName.String
	profile.Role = model.Role(role.String)
	return profile, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
