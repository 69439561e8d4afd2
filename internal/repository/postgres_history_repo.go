package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/neurabot/neurabot/internal/model"
)

// PostgresHistoryRepo はPostgreSQLを使用した履歴リポジトリ。読み取り専用。
type PostgresHistoryRepo struct {
	db *sql.DB
}

// NewPostgresHistoryRepo はPostgresHistoryRepoを生成する。
func NewPostgresHistoryRepo(db *sql.DB) *PostgresHistoryRepo {
	return &PostgresHistoryRepo{db: db}
}

// ListByUser はユーザーの全履歴を作成日時の降順で返す。
func (r *PostgresHistoryRepo) ListByUser(ctx context.Context, userID string) ([]model.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, original_text, summary_result, created_at
		 FROM histories
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list histories: %w", err)
	}
	defer rows.Close()

	return scanHistories(rows)
}

// ListRecentWithSummary は要約が空でない履歴のみを対象に、新しい順にlimit件返す。
// 絞り込みはLIMITより前に行うため、要約なしの行が混在しても件数が減らない。
func (r *PostgresHistoryRepo) ListRecentWithSummary(ctx context.Context, userID string, limit int) ([]model.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, original_text, summary_result, created_at
		 FROM histories
		 WHERE user_id = $1
		   AND summary_result IS NOT NULL
		   AND summary_result <> ''
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent summaries: %w", err)
	}
	defer rows.Close()

	return scanHistories(rows)
}

func scanHistories(rows *sql.Rows) ([]model.HistoryEntry, error) {
	var entries []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var original, summary sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &original, &summary, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.OriginalText = original.String
		e.SummaryResult = summary.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate histories: %w", err)
	}
	return entries, nil
}

// compile-time interface check
var _ HistoryRepository = (*PostgresHistoryRepo)(nil)
