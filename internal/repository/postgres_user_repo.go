package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/booklib/internal/model"
)

const userColumns = `id, user_id::text, first_name, last_name, access_token`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// users.user_id はNUMERIC型で保持し、読み出し時にtextへキャストする。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は内部IDでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("find user by ID", err)
	}
	return user, nil
}

// FindByExternalID はプロバイダーのユーザーIDでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`,
		externalID,
	)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("find user by external ID", err)
	}
	return user, nil
}

// Upsert はexternal IDをキーにユーザーを作成または氏名を更新する。
// 行レベルの原子性はON CONFLICTに委ねる。
func (r *PostgresUserRepo) Upsert(ctx context.Context, profile model.Profile) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO users (user_id, first_name, last_name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE
		 SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name
		 RETURNING `+userColumns,
		profile.ExternalID, profile.FirstName, profile.LastName,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, storeError("upsert user", err)
	}
	return user, nil
}

// SetAccessToken はユーザーの現在有効なトークンを上書きする。
func (r *PostgresUserRepo) SetAccessToken(ctx context.Context, id int64, token string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET access_token = $2 WHERE id = $1`,
		id, token,
	)
	if err != nil {
		return storeError("set access token", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeError("get rows affected", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %d", id)
	}
	return nil
}

// ClearAccessToken は保存済みトークンがtokenと一致する場合のみNULLにする。
func (r *PostgresUserRepo) ClearAccessToken(ctx context.Context, id int64, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET access_token = NULL WHERE id = $1 AND access_token = $2`,
		id, token,
	)
	if err != nil {
		return storeError("clear access token", err)
	}
	return nil
}

// scanUser は1行をmodel.Userに読み込む。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var accessToken sql.NullString
	if err := row.Scan(&user.ID, &user.ExternalID, &user.FirstName, &user.LastName, &accessToken); err != nil {
		return nil, err
	}
	if accessToken.Valid {
		user.AccessToken = &accessToken.String
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
