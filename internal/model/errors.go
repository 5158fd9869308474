// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, not_found, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryNotFound   = "not_found"
	CategoryAuth       = "auth"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeInvalidID       = "INVALID_ID"
	ErrCodeMissingField    = "MISSING_FIELD"
	ErrCodeInvalidDate     = "INVALID_DATE"
	ErrCodeInvalidQuantity = "INVALID_QUANTITY"
	ErrCodeInvalidStatus   = "INVALID_STATUS"
	ErrCodeEmptyPatch      = "EMPTY_PATCH"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeFoodNotFound    = "FOOD_NOT_FOUND"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeCSRFFailed      = "CSRF_VALIDATION_FAILED"
	ErrCodeStoreNotReady   = "STORE_NOT_READY"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// IsValidation はエラーが入力検証エラーかどうかを判定する。
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Category == CategoryValidation
}

// IsNotFound はエラーが未検出エラーかどうかを判定する。
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Category == CategoryNotFound
}

// NewInvalidIDError は識別子の形式が不正な場合のエラーを生成する。
func NewInvalidIDError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("無効なIDです: %s", id),
		Category: CategoryValidation,
		Action:   "正しい形式のIDを指定してください。",
	}
}

// NewMissingFieldError は必須項目が欠けている場合のエラーを生成する。
func NewMissingFieldError(fields ...string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("必須項目が入力されていません: %v", fields),
		Category: CategoryValidation,
		Action:   "すべての必須項目を入力してください。",
	}
}

// NewInvalidDateError は日時の解析に失敗した場合のエラーを生成する。
func NewInvalidDateError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("日時を解析できません: %s", value),
		Category: CategoryValidation,
		Action:   "ISO 8601形式（例: 2025-01-31T18:00:00Z）で指定してください。",
	}
}

// NewInvalidQuantityError は数量が数値でない場合のエラーを生成する。
func NewInvalidQuantityError(value any) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuantity,
		Message:  fmt.Sprintf("数量が数値ではありません: %v", value),
		Category: CategoryValidation,
		Action:   "数量には数値を指定してください。",
	}
}

// NewInvalidStatusError は未定義のステータスが指定された場合のエラーを生成する。
func NewInvalidStatusError(value any) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %v", value),
		Category: CategoryValidation,
		Action:   "ステータスには Available または requested を指定してください。",
	}
}

// NewEmptyPatchError は更新対象のフィールドが無い場合のエラーを生成する。
func NewEmptyPatchError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyPatch,
		Message:  "更新するフィールドが指定されていません。",
		Category: CategoryValidation,
		Action:   "更新するフィールドを1つ以上指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディやパラメータが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: CategoryValidation,
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewFoodNotFoundError は食品リストが見つからない場合のエラーを生成する。
func NewFoodNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeFoodNotFound,
		Message:  fmt.Sprintf("指定された食品が見つかりません: %s", id),
		Category: CategoryNotFound,
		Action:   "食品IDを確認してください。",
	}
}

// NewUnauthorizedError は認証が必要な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は他ユーザーのデータにアクセスしようとした場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "このデータにアクセスする権限がありません。",
		Category: CategoryAuth,
		Action:   "ログイン中のアカウントのメールアドレスを指定してください。",
	}
}

// NewCSRFError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: CategoryAuth,
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewStoreNotReadyError はストア未接続時のエラーを生成する。
func NewStoreNotReadyError(state string) *APIError {
	return &APIError{
		Code:     ErrCodeStoreNotReady,
		Message:  fmt.Sprintf("データストアが利用できません（状態: %s）", state),
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}
