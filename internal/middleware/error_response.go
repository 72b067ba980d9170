package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/booklib/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// request_idはロギングミドルウェアが採番した値で、ログとの突き合わせに使う。
type ErrorResponseBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットのJSONを書き込む。
// リクエストIDはレスポンスヘッダーのX-Request-IDから取得する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	body := ErrorResponseBody{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Category:  apiErr.Category,
		Action:    apiErr.Action,
		RequestID: w.Header().Get(RequestIDHeader),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// WriteInternalServerError は内部エラーの統一レスポンスを書き込む。詳細はログにのみ残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// 認証ゲートウェイの応答は本文が固定のtext/plain。
const (
	unauthorizedBody       = "Unauthorized"
	serviceUnavailableBody = "Service Unavailable"
)

// WriteUnauthorized は401と本文"Unauthorized"（改行なし）を書き込む。
func WriteUnauthorized(w http.ResponseWriter) {
	writePlainText(w, http.StatusUnauthorized, unauthorizedBody)
}

// WriteServiceUnavailable は503と本文"Service Unavailable"（改行なし）を書き込む。
func WriteServiceUnavailable(w http.ResponseWriter) {
	writePlainText(w, http.StatusServiceUnavailable, serviceUnavailableBody)
}

// writePlainText はtext/plainの本文をそのまま書き込む。
// http.Errorは末尾に改行を付けるため使わない。
func writePlainText(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	w.Write([]byte(body))
}
