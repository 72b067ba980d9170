// Package auth はOAuthログインフロー、トークン発行、ログアウト時の失効を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/booklib/internal/model"
)

var (
	// ErrInvalidState はstateが欠落・未知・使用済み・期限切れであることを示す。
	ErrInvalidState = errors.New("invalid oauth state")

	// ErrMissingCode は認可コードがコールバックに含まれていないことを示す。
	ErrMissingCode = errors.New("missing authorization code")
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// AuthCodeURL は認可エンドポイントへのリダイレクトURLを生成する。
	AuthCodeURL(state string) string
	// ExchangeCode は認可コードを交換し、プロバイダー上のプロフィールを取得する。
	ExchangeCode(ctx context.Context, code string) (*model.Profile, error)
}

// StateStore はOAuthのstateを一度だけ検証可能な形で保持する。
type StateStore interface {
	Save(ctx context.Context, state string) error
	Redeem(ctx context.Context, state string) (bool, error)
}

// TokenCodec はセッショントークンの発行と検証を行う。
type TokenCodec interface {
	Issue(userID int64, issuedAt time.Time) (string, error)
	Verify(raw string) (int64, error)
}

// UserStore は認証フローが使用するユーザー永続化操作。
type UserStore interface {
	Upsert(ctx context.Context, profile model.Profile) (*model.User, error)
	SetAccessToken(ctx context.Context, id int64, token string) error
	ClearAccessToken(ctx context.Context, id int64, token string) error
}

// LoginResult はログイン成功時に発行されたトークンとユーザーを表す。
type LoginResult struct {
	Token string
	User  *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth  OAuthProvider
	states StateStore
	codec  TokenCodec
	users  UserStore
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, states StateStore, codec TokenCodec, users UserStore) *Service {
	return &Service{
		oauth:  oauth,
		states: states,
		codec:  codec,
		users:  users,
		now:    time.Now,
	}
}

// LoginURL はstateを発行・保存し、プロバイダーの認可URLを返す。
func (s *Service) LoginURL(ctx context.Context) (string, error) {
	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	if err := s.states.Save(ctx, state); err != nil {
		return "", fmt.Errorf("failed to save state: %w", err)
	}

	return s.oauth.AuthCodeURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、トークンを発行する。
// 未登録ユーザーは自動作成し、登録済みユーザーは氏名を更新する。
// 発行したトークンはユーザーの現在のトークンとして保存され、以前のトークンは無効になる。
func (s *Service) HandleCallback(ctx context.Context, code, state string) (*LoginResult, error) {
	if code == "" {
		return nil, ErrMissingCode
	}

	// 1. stateを検証（一度きり）
	ok, err := s.states.Redeem(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem state: %w", err)
	}
	if !ok {
		return nil, ErrInvalidState
	}

	// 2. 認可コードを交換し、プロフィールを取得
	profile, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}
	if !isValidExternalID(profile.ExternalID) {
		return nil, &model.ProviderError{
			Op:  "userinfo",
			Err: fmt.Errorf("unexpected subject %q", profile.ExternalID),
		}
	}

	// 3. ユーザーを作成または更新
	user, err := s.users.Upsert(ctx, *profile)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	// 4. トークンを発行し、現在のトークンとして保存
	token, err := s.codec.Issue(user.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	if err := s.users.SetAccessToken(ctx, user.ID, token); err != nil {
		return nil, fmt.Errorf("failed to save access token: %w", err)
	}
	user.AccessToken = &token

	return &LoginResult{Token: token, User: user}, nil
}

// Logout は提示されたトークンがユーザーの現在のトークンであれば失効させる。
// 検証できないトークンは失効対象が無いため何もしない。
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}

	userID, err := s.codec.Verify(rawToken)
	if err != nil {
		return nil
	}

	if err := s.users.ClearAccessToken(ctx, userID, rawToken); err != nil {
		return fmt.Errorf("failed to clear access token: %w", err)
	}

	slog.Info("user logged out", slog.Int64("user_id", userID))
	return nil
}

// generateState は暗号的に安全なstateを生成する。
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// maxExternalIDDigits はusers.user_id（NUMERIC(30,0)）に格納できる最大桁数。
const maxExternalIDDigits = 30

// isValidExternalID はsがusers.user_idに格納可能な10進数字列かを判定する。
func isValidExternalID(s string) bool {
	if s == "" || len(s) > maxExternalIDDigits {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
