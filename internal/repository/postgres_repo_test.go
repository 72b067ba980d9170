package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/hitoshi/booklib/internal/database"
	"github.com/hitoshi/booklib/internal/model"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresBookRepoはBookRepositoryインターフェースを満たすことを検証
func TestPostgresBookRepo_ImplementsInterface(t *testing.T) {
	var _ BookRepository = (*PostgresBookRepo)(nil)
}

func TestNewPostgresRepos_Initialize(t *testing.T) {
	if NewPostgresUserRepo(nil) == nil {
		t.Fatal("expected non-nil user repo")
	}
	if NewPostgresBookRepo(nil) == nil {
		t.Fatal("expected non-nil book repo")
	}
}

// ドライバのエラーがErrStoreUnavailableでラップされ、原因も保持されることを検証
func TestStoreError_WrapsSentinelAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := storeError("list books", cause)

	if !errors.Is(err, model.ErrStoreUnavailable) {
		t.Error("expected error to wrap ErrStoreUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to wrap the driver error")
	}
}

// 閉じたDBに対する操作はErrStoreUnavailableを返すこと
func TestPostgresRepos_ClosedDB_ReturnsStoreUnavailable(t *testing.T) {
	db, err := sql.Open("postgres", "postgres://invalid@127.0.0.1:1/none?sslmode=disable")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	db.Close()

	ctx := context.Background()
	users := NewPostgresUserRepo(db)
	books := NewPostgresBookRepo(db)

	if _, err := users.FindByID(ctx, 1); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("FindByID: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := users.Upsert(ctx, model.Profile{ExternalID: "1"}); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("Upsert: expected ErrStoreUnavailable, got %v", err)
	}
	if err := users.SetAccessToken(ctx, 1, "tok"); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("SetAccessToken: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := books.List(ctx); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("List: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := books.Create(ctx, model.NewBook{Title: "t", Author: "a", Blurb: "b"}); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("Create: expected ErrStoreUnavailable, got %v", err)
	}
}

// setupIntegrationDB はTEST_DATABASE_URLのDBにマイグレーションを適用し、テーブルを空にする。
// 未設定または接続できない場合はスキップする。
func setupIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE books, users RESTART IDENTITY`); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresUserRepo_Integration(t *testing.T) {
	db := setupIntegrationDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	const externalID = "112233445566778899001"

	// 未登録
	got, err := repo.FindByExternalID(ctx, externalID)
	if err != nil {
		t.Fatalf("FindByExternalID failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown user, got %+v", got)
	}

	created, err := repo.Upsert(ctx, model.Profile{ExternalID: externalID, FirstName: "Ada", LastName: "Lovelace"})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if created.ID <= 0 || created.ExternalID != externalID || created.AccessToken != nil {
		t.Fatalf("unexpected created user: %+v", created)
	}

	// 2回目のUpsertは同じ行の氏名のみ更新する
	updated, err := repo.Upsert(ctx, model.Profile{ExternalID: externalID, FirstName: "Augusta", LastName: "King"})
	if err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("expected same ID %d, got %d", created.ID, updated.ID)
	}
	if updated.FirstName != "Augusta" || updated.LastName != "King" {
		t.Errorf("expected names to be updated, got %+v", updated)
	}

	if err := repo.SetAccessToken(ctx, created.ID, "token-1"); err != nil {
		t.Fatalf("SetAccessToken failed: %v", err)
	}
	if err := repo.SetAccessToken(ctx, created.ID, "token-2"); err != nil {
		t.Fatalf("SetAccessToken failed: %v", err)
	}
	got, err = repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !got.HasAccessToken("token-2") || got.HasAccessToken("token-1") {
		t.Errorf("expected only token-2 to be current, got %v", got.AccessToken)
	}

	// 一致しないトークンではクリアされない
	if err := repo.ClearAccessToken(ctx, created.ID, "token-1"); err != nil {
		t.Fatalf("ClearAccessToken failed: %v", err)
	}
	got, _ = repo.FindByID(ctx, created.ID)
	if !got.HasAccessToken("token-2") {
		t.Error("stale token must not clear the current token")
	}

	if err := repo.ClearAccessToken(ctx, created.ID, "token-2"); err != nil {
		t.Fatalf("ClearAccessToken failed: %v", err)
	}
	got, _ = repo.FindByID(ctx, created.ID)
	if got.AccessToken != nil {
		t.Errorf("expected token to be cleared, got %v", *got.AccessToken)
	}

	if err := repo.SetAccessToken(ctx, 999999, "x"); err == nil {
		t.Error("expected error for unknown user")
	}
	missing, err := repo.FindByID(ctx, 999999)
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for unknown ID, got (%v, %v)", missing, err)
	}
}

func TestPostgresBookRepo_Integration(t *testing.T) {
	db := setupIntegrationDB(t)
	repo := NewPostgresBookRepo(db)
	ctx := context.Background()

	books, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if books == nil || len(books) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", books)
	}

	first, err := repo.Create(ctx, model.NewBook{Title: "Dune", Author: "Frank Herbert", Blurb: "Spice."})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := repo.Create(ctx, model.NewBook{Title: "Dune", Author: "Frank Herbert", Blurb: "Spice."})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if second.ID <= first.ID {
		t.Errorf("expected increasing IDs, got %d then %d", first.ID, second.ID)
	}

	books, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(books) != 2 || books[0].ID != first.ID || books[1].ID != second.ID {
		t.Errorf("expected books in insertion order, got %+v", books)
	}
}
