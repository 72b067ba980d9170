package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/booklib/internal/middleware"
	"github.com/hitoshi/booklib/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationAPIError(validationErr))
		return
	}

	var providerErr *model.ProviderError
	if errors.As(err, &providerErr) {
		slog.Warn("oauth provider error",
			slog.String("op", providerErr.Op),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewProviderAPIError())
		return
	}

	if errors.Is(err, model.ErrStoreUnavailable) {
		slog.Error("store unavailable",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewStoreUnavailableError())
		return
	}

	// 上記以外は内部サーバーエラーとして扱い、詳細はログのみに残す
	slog.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	middleware.WriteInternalServerError(w)
}
