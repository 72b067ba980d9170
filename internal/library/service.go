// Package library は蔵書の一覧取得と登録のドメインロジックを提供する。
package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/booklib/internal/model"
	"github.com/hitoshi/booklib/internal/repository"
	"github.com/hitoshi/booklib/internal/security"
)

// CreateBookInput は蔵書登録リクエストの入力。
// JSONで省略された項目はnilになる。
type CreateBookInput struct {
	Title  *string
	Author *string
	Blurb  *string
}

// MarkupDetector はテキストにHTMLマークアップが含まれるかを判定する。
type MarkupDetector interface {
	ContainsMarkup(s string) bool
}

// Service は蔵書管理のサービス層。
type Service struct {
	books  repository.BookRepository
	markup MarkupDetector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(books repository.BookRepository, markup MarkupDetector) *Service {
	return &Service{
		books:  books,
		markup: markup,
	}
}

// ListBooks は全蔵書を登録順で返す。
func (s *Service) ListBooks(ctx context.Context) ([]*model.Book, error) {
	books, err := s.books.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("蔵書一覧の取得に失敗しました: %w", err)
	}
	if books == nil {
		books = []*model.Book{}
	}
	return books, nil
}

// CreateBook は入力を検証して蔵書を登録する。
// 検証エラーの場合は*model.ValidationErrorを返し、ストアには触れない。
func (s *Service) CreateBook(ctx context.Context, input CreateBookInput) (*model.Book, error) {
	book, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	created, err := s.books.Create(ctx, book)
	if err != nil {
		return nil, fmt.Errorf("蔵書の登録に失敗しました: %w", err)
	}
	return created, nil
}

// validate は各項目が空でない文字列でマークアップを含まないことを確認する。
// 改行はLFに揃え、前後の空白を除去した値を保存する。
func (s *Service) validate(input CreateBookInput) (model.NewBook, error) {
	fields := []struct {
		name  string
		value *string
	}{
		{"title", input.Title},
		{"author", input.Author},
		{"blurb", input.Blurb},
	}

	values := make([]string, len(fields))
	for i, f := range fields {
		if f.value == nil {
			return model.NewBook{}, &model.ValidationError{Field: f.name, Reason: "is required"}
		}
		v := strings.TrimSpace(security.NormalizeNewlines(*f.value))
		if v == "" {
			return model.NewBook{}, &model.ValidationError{Field: f.name, Reason: "must not be empty"}
		}
		if s.markup != nil && s.markup.ContainsMarkup(v) {
			return model.NewBook{}, &model.ValidationError{Field: f.name, Reason: "must not contain markup"}
		}
		values[i] = v
	}

	return model.NewBook{Title: values[0], Author: values[1], Blurb: values[2]}, nil
}
