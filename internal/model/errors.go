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
	Category string // カテゴリ: auth, validation, provider, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeProvider         = "PROVIDER_ERROR"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeInvalidState     = "INVALID_OAUTH_STATE"
	ErrCodeMissingCode      = "MISSING_AUTHORIZATION_CODE"
	ErrCodeAccessDenied     = "OAUTH_ACCESS_DENIED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

var (
	// ErrUnauthorized は認証情報が無い・無効・失効している、または対応するユーザーが存在しないことを示す。
	// どの条件で失敗したかは外部に区別させない。
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStoreUnavailable は永続化層の障害を示す。
	// リポジトリはドライバのエラーをこの値でラップして返す。
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError はリクエストボディのフィールド検証エラーを表す。
type ValidationError struct {
	Field  string
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// ProviderError はOAuthプロバイダーとの認可コード交換の失敗を表す。
type ProviderError struct {
	Op  string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *ProviderError) Error() string {
	return fmt.Sprintf("oauth provider %s: %v", e.Op, e.Err)
}

// Unwrap は原因のエラーを返す。
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewValidationAPIError はフィールド検証エラーをAPIエラーに変換する。
func NewValidationAPIError(v *ValidationError) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s (%s)", v.Field, v.Reason),
		Category: "validation",
		Action:   "title、author、blurb をすべて空でない文字列で指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewProviderAPIError はOAuthプロバイダー連携の失敗エラーを生成する。
func NewProviderAPIError() *APIError {
	return &APIError{
		Code:     ErrCodeProvider,
		Message:  "認証プロバイダーとの連携に失敗しました。",
		Category: "provider",
		Action:   "しばらく待ってから再度ログインしてください。",
	}
}

// NewStoreUnavailableError はデータストア障害エラーを生成する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "データストアに接続できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidStateError はOAuth stateの検証失敗エラーを生成する。
func NewInvalidStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  "ログインセッションが無効または期限切れです。",
		Category: "auth",
		Action:   "もう一度ログインをやり直してください。",
	}
}

// NewMissingCodeError は認可コード欠落エラーを生成する。
func NewMissingCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingCode,
		Message:  "認可コードがありません。",
		Category: "auth",
		Action:   "もう一度ログインをやり直してください。",
	}
}

// NewAccessDeniedError はプロバイダー側で認可が拒否・中断されたエラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "認証プロバイダーで認可されませんでした。",
		Category: "auth",
		Action:   "もう一度ログインをやり直してください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
