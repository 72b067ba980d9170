// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/booklib/internal/auth"
	"github.com/hitoshi/booklib/internal/middleware"
	"github.com/hitoshi/booklib/internal/model"
)

// homePath はログイン・ログアウト後のリダイレクト先。
const homePath = "/"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	LoginURL(ctx context.Context) (string, error)
	HandleCallback(ctx context.Context, code, state string) (*auth.LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
}

// LoginRecorder はログイン結果のメトリクスを記録する。
type LoginRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // accessToken Cookieの有効期間（秒）。0はセッションCookie
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	config   AuthHandlerConfig
	recorder LoginRecorder
}

// NewAuthHandler はAuthHandlerを生成する。recorderはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, recorder LoginRecorder) *AuthHandler {
	return &AuthHandler{
		service:  service,
		config:   config,
		recorder: recorder,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /api/auth/google
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.LoginURL(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// Callback はOAuthコールバックを処理し、accessToken Cookieを設定する。
// GET /api/auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// プロバイダー側で拒否・中断された場合
	if providerErr := q.Get("error"); providerErr != "" {
		slog.Warn("oauth authorization denied", slog.String("error", providerErr))
		h.recordFailure("access_denied")
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewAccessDeniedError())
		return
	}

	result, err := h.service.HandleCallback(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingCode):
			h.recordFailure("missing_code")
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingCodeError())
		case errors.Is(err, auth.ErrInvalidState):
			h.recordFailure("invalid_state")
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidStateError())
		default:
			h.recordFailure(failureReason(err))
			handleServiceError(w, r, err)
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookieName,
		Value:    result.Token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if h.recorder != nil {
		h.recorder.RecordLoginSuccess()
	}
	slog.InfoContext(r.Context(), "user logged in",
		slog.Int64("user_id", result.User.ID),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)

	http.Redirect(w, r, homePath, http.StatusFound)
}

// Logout はaccessToken Cookieを消去する。
// 検証可能なトークンが提示された場合はサーバー側のトークンも失効させるが、
// 失効の成否にかかわらずレスポンスは変わらない。
// GET /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cred, ok := middleware.ExtractCredential(r); ok {
		if err := h.service.Logout(r.Context(), cred.Token); err != nil {
			slog.Error("failed to revoke access token",
				slog.String("error", err.Error()),
				slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, homePath, http.StatusFound)
}

func (h *AuthHandler) recordFailure(reason string) {
	if h.recorder != nil {
		h.recorder.RecordLoginFailure(reason)
	}
}

// failureReason はコールバック失敗のメトリクスラベルを返す。
func failureReason(err error) string {
	var providerErr *model.ProviderError
	switch {
	case errors.As(err, &providerErr):
		return "provider"
	case errors.Is(err, model.ErrStoreUnavailable):
		return "store"
	default:
		return "internal"
	}
}
