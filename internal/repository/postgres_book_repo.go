package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/booklib/internal/model"
)

// PostgresBookRepo はPostgreSQLを使用した蔵書リポジトリ。
type PostgresBookRepo struct {
	db *sql.DB
}

// NewPostgresBookRepo はPostgresBookRepoを生成する。
func NewPostgresBookRepo(db *sql.DB) *PostgresBookRepo {
	return &PostgresBookRepo{db: db}
}

// List は全蔵書をID昇順で返す。0件の場合は空スライスを返す。
func (r *PostgresBookRepo) List(ctx context.Context) ([]*model.Book, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, author, blurb FROM books ORDER BY id`,
	)
	if err != nil {
		return nil, storeError("list books", err)
	}
	defer rows.Close()

	books := []*model.Book{}
	for rows.Next() {
		b := &model.Book{}
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Blurb); err != nil {
			return nil, storeError("scan book", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate books", err)
	}

	return books, nil
}

// Create は蔵書を登録する。IDはBIGSERIALで採番される。
func (r *PostgresBookRepo) Create(ctx context.Context, book model.NewBook) (*model.Book, error) {
	created := &model.Book{
		Title:  book.Title,
		Author: book.Author,
		Blurb:  book.Blurb,
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO books (title, author, blurb) VALUES ($1, $2, $3) RETURNING id`,
		book.Title, book.Author, book.Blurb,
	).Scan(&created.ID)
	if err != nil {
		return nil, storeError("create book", err)
	}
	return created, nil
}

// compile-time interface check
var _ BookRepository = (*PostgresBookRepo)(nil)
