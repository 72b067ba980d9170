// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/booklib/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// 見つからない場合は(nil, nil)を返し、ストア障害はmodel.ErrStoreUnavailableでラップして返す。
type UserRepository interface {
	// FindByID は内部IDでユーザーを取得する。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByExternalID はプロバイダーのユーザーID（sub）でユーザーを取得する。
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)

	// Upsert はexternal IDをキーにユーザーを作成する。既存の場合は氏名のみ更新する。
	Upsert(ctx context.Context, profile model.Profile) (*model.User, error)

	// SetAccessToken は現在有効なトークンを上書きする（last-write-wins）。
	SetAccessToken(ctx context.Context, id int64, token string) error

	// ClearAccessToken は保存済みトークンがtokenと一致する場合のみクリアする。
	// 一致しない場合（既に別のトークンで再ログイン済み等）は何もしない。
	ClearAccessToken(ctx context.Context, id int64, token string) error
}

// BookRepository は蔵書データの永続化インターフェース。
type BookRepository interface {
	// List は全蔵書をID昇順（登録順）で返す。
	List(ctx context.Context) ([]*model.Book, error)

	// Create は蔵書を登録し、採番済みの蔵書を返す。
	Create(ctx context.Context, book model.NewBook) (*model.Book, error)
}

// storeError はドライバのエラーをmodel.ErrStoreUnavailableでラップする。
func storeError(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, model.ErrStoreUnavailable, err)
}
