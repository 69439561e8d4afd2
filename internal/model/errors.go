// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, session, validation, persistence, system
	Action   string // ユーザー向け対処方法
	Details  string // 下位エラーの詳細（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeSessionExpired       = "SESSION_EXPIRED"
	ErrCodeMissingFields        = "MISSING_FIELDS"
	ErrCodeInvalidName          = "INVALID_NAME"
	ErrCodeInvalidRole          = "INVALID_ROLE"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeMetadataUpdateFailed = "METADATA_UPDATE_FAILED"
	ErrCodeProfileSaveFailed    = "PROFILE_SAVE_FAILED"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeCSRFInvalid          = "CSRF_INVALID"
	ErrCodeRateLimited          = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError(details string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "ログインしてください。",
		Details:  details,
	}
}

// NewSessionExpiredError はセッション切れエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "Session expired. Please login again.",
		Category: "session",
		Action:   "ログインし直してください。",
	}
}

// NewMissingFieldsError は必須項目の欠落エラーを生成する。
func NewMissingFieldsError(fields string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingFields,
		Message:  fmt.Sprintf("Missing required fields: %s", fields),
		Category: "validation",
		Action:   "必須項目を入力してください。",
	}
}

// NewInvalidNameError は表示名の検証エラーを生成する。
func NewInvalidNameError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidName,
		Message:  message,
		Category: "validation",
		Action:   "2文字以上の名前を入力してください。",
	}
}

// NewInvalidRoleError はロールの検証エラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("Invalid role: %q", role),
		Category: "validation",
		Action:   "ロールには patologi、dokter_hewan のいずれかを指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewMetadataUpdateFailedError はユーザーメタデータ更新失敗エラーを生成する。
func NewMetadataUpdateFailedError(details string) *APIError {
	return &APIError{
		Code:     ErrCodeMetadataUpdateFailed,
		Message:  "Failed to update user metadata",
		Category: "persistence",
		Action:   "しばらく待ってから再度お試しください。",
		Details:  details,
	}
}

// NewProfileSaveFailedError はプロフィール保存失敗エラーを生成する。
func NewProfileSaveFailedError(details string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileSaveFailed,
		Message:  "Failed to save profile",
		Category: "persistence",
		Action:   "しばらく待ってから再度お試しください。",
		Details:  details,
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
