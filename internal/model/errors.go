package model

import (
	"errors"
	"fmt"
)

// APIError はエンジンが返す分類済みエラーを表す。
// ルーティング層はCodeからHTTPステータスを決定する。
type APIError struct {
	Code    string // エラーコード
	Message string // クライアントに返すメッセージ
	Err     error  // 原因（ログ用、クライアントには返さない）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeRecipeNotFound = "RECIPE_NOT_FOUND"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeStorageIO      = "STORAGE_IO_ERROR"
)

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("%s %s", field, reason),
	}
}

// NewRecipeNotFoundError はレシピ未検出エラーを生成する。
func NewRecipeNotFoundError(recipeID string) *APIError {
	return &APIError{
		Code:    ErrCodeRecipeNotFound,
		Message: "Recipe not found",
		Err:     fmt.Errorf("recipe %q does not exist", recipeID),
	}
}

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:    ErrCodeUnauthorized,
		Message: "Unauthorized",
	}
}

// NewStorageIOError は永続化ファイルの読み書き・解析エラーを生成する。
// opには失敗した操作名（load、save、create等）を指定する。
func NewStorageIOError(op string, err error) *APIError {
	return &APIError{
		Code:    ErrCodeStorageIO,
		Message: "Recipe storage is unavailable",
		Err:     fmt.Errorf("%s: %w", op, err),
	}
}

// HasCode はerrがAPIErrorであり、指定されたコードを持つ場合にtrueを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsValidation は検証エラーかどうかを返す。
func IsValidation(err error) bool { return HasCode(err, ErrCodeValidation) }

// IsNotFound はレシピ未検出エラーかどうかを返す。
func IsNotFound(err error) bool { return HasCode(err, ErrCodeRecipeNotFound) }

// IsUnauthorized は認証エラーかどうかを返す。
func IsUnauthorized(err error) bool { return HasCode(err, ErrCodeUnauthorized) }

// IsStorageIO は永続化エラーかどうかを返す。
func IsStorageIO(err error) bool { return HasCode(err, ErrCodeStorageIO) }
