package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/booklib/internal/library"
	"github.com/hitoshi/booklib/internal/model"
)

// maxBookRequestBytes は蔵書登録リクエストボディの上限。
const maxBookRequestBytes = 64 << 10

// LibraryServiceInterface は蔵書ハンドラーが必要とするサービスインターフェース。
type LibraryServiceInterface interface {
	ListBooks(ctx context.Context) ([]*model.Book, error)
	CreateBook(ctx context.Context, input library.CreateBookInput) (*model.Book, error)
}

// BookRecorder は蔵書登録のメトリクスを記録する。
type BookRecorder interface {
	RecordBookCreated()
}

// LibraryHandler は蔵書APIのHTTPハンドラー。
type LibraryHandler struct {
	service  LibraryServiceInterface
	recorder BookRecorder
}

// NewLibraryHandler はLibraryHandlerを生成する。recorderはnilでもよい。
func NewLibraryHandler(service LibraryServiceInterface, recorder BookRecorder) *LibraryHandler {
	return &LibraryHandler{
		service:  service,
		recorder: recorder,
	}
}

// bookResponse は蔵書のJSONレスポンス。
type bookResponse struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Blurb  string `json:"blurb"`
}

// createBookRequest は蔵書登録のリクエストボディ。
// 省略とnullはどちらもnilとして扱う。
type createBookRequest struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
	Blurb  *string `json:"blurb"`
}

func toBookResponse(b *model.Book) bookResponse {
	return bookResponse{
		ID:     b.ID,
		Title:  b.Title,
		Author: b.Author,
		Blurb:  b.Blurb,
	}
}

// ListBooks は蔵書一覧を返す。
// GET /api/library
func (h *LibraryHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]bookResponse, 0, len(books))
	for _, b := range books {
		resp = append(resp, toBookResponse(b))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateBook は蔵書を登録する。
// POST /api/library
func (h *LibraryHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBookRequestBytes)

	var req createBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	book, err := h.service.CreateBook(r.Context(), library.CreateBookInput{
		Title:  req.Title,
		Author: req.Author,
		Blurb:  req.Blurb,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordBookCreated()
	}
	slog.Info("book created", slog.Int64("book_id", book.ID))

	writeJSON(w, http.StatusCreated, toBookResponse(book))
}

// writeDecodeError はリクエストボディの解析エラーを400で返す。
// 文字列以外の型が指定された項目は検証エラーとして扱う。
func writeDecodeError(w http.ResponseWriter, err error) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationAPIError(&model.ValidationError{
			Field:  typeErr.Field,
			Reason: "must be a string",
		}))
		return
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		slog.Warn("request body too large", slog.Int64("limit", maxBytesErr.Limit))
	}

	writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
}
