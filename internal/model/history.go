package model

import "time"

// HistoryEntry は文字起こし・要約の結果1件を表す。
// 外部パイプラインが書き込み、このサービスからは読み取り専用。
type HistoryEntry struct {
	ID            string
	UserID        string
	OriginalText  string
	SummaryResult string // 要約がない場合は空文字
	CreatedAt     time.Time
}

// HasSummary は空でない要約を持つかどうかを返す。空白だけの要約も要約ありとする。
func (h HistoryEntry) HasSummary() bool {
	return h.SummaryResult != ""
}
