package handler

import (
	"net/http"

	"github.com/hitoshi/booklib/internal/middleware"
)

// meResponse は認証済みユーザーのJSONレスポンス。
// user_idは数値の桁数がJSONの安全な整数範囲を超えるため文字列で返す。
type meResponse struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UserHandler は認証済みユーザー情報のHTTPハンドラー。
type UserHandler struct{}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// Me は現在のログインユーザー情報を返す。アクセストークンは含めない。
// GET /api/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteUnauthorized(w)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:        user.ID,
		UserID:    user.ExternalID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}
