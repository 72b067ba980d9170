package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// PanicRecorder はpanicの発生を記録する。
type PanicRecorder interface {
	RecordPanic()
}

// NewRecoveryMiddleware はハンドラーのpanicを捕捉し、500の統一エラーレスポンスを返すミドルウェアを生成する。
// http.ErrAbortHandlerは接続を切断するためにそのまま再送出する。recorderはnilでもよい。
func NewRecoveryMiddleware(logger *slog.Logger, recorder PanicRecorder) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logger.LogAttrs(r.Context(), slog.LevelError, "panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("stack", string(debug.Stack())),
				)
				if recorder != nil {
					recorder.RecordPanic()
				}
				WriteInternalServerError(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
