package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/neurabot/neurabot/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, metadata, created_at, updated_at`

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	metadata, err := encodeMetadata(user.Metadata)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Email, metadata, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// MergeMetadata はjsonbの || 演算子でメタデータを浅くマージする。
func (r *PostgresUserRepo) MergeMetadata(ctx context.Context, id string, patch model.Metadata) (*model.User, error) {
	encoded, err := encodeMetadata(patch)
	if err != nil {
		return nil, err
	}

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users
		 SET metadata = metadata || $2::jsonb, updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, encoded,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to merge user metadata: %w", err)
	}
	return user, nil
}

// IncrementMetadataCounter は単一のUPDATE文でカウンタを加算する。
// 同時に呼ばれても加算が失われることはない。
// 3.0のような小数は切り捨てて加算し、数値以外の値は0とみなす（model.Metadata.Intと同じ解釈）。
func (r *PostgresUserRepo) IncrementMetadataCounter(ctx context.Context, id, key string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users
		 SET metadata = jsonb_set(
		       metadata,
		       ARRAY[$2::text],
		       to_jsonb(
		         CASE WHEN jsonb_typeof(metadata->$2::text) = 'number'
		              THEN trunc((metadata->>$2::text)::numeric)::bigint
		              ELSE 0
		         END + 1
		       )
		     ),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, key,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to increment metadata counter: %w", err)
	}
	return user, nil
}

// scanUser は1行をmodel.Userに変換する。行が存在しない場合はnilを返す。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var raw []byte
	err := row.Scan(&user.ID, &user.Email, &raw, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.Metadata, err = decodeMetadata(raw)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// encodeMetadata はメタデータをjsonbに渡すJSONへ変換する。nilは空オブジェクトになる。
func encodeMetadata(m model.Metadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return b, nil
}

func decodeMetadata(raw []byte) (model.Metadata, error) {
	m := model.Metadata{}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return m, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
