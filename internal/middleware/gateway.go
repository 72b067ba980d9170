// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/booklib/internal/model"
)

// AccessTokenCookieName はセッショントークンを保持するCookieの名前。
const AccessTokenCookieName = "accessToken"

// CredentialSource は認証情報の取得元を表す。
type CredentialSource string

const (
	CredentialSourceHeader CredentialSource = "header"
	CredentialSourceCookie CredentialSource = "cookie"
)

// Credential はリクエストから取り出した未検証のトークン。
type Credential struct {
	Token  string
	Source CredentialSource
}

// 認証ゲートウェイの判定結果（メトリクスのラベル）
const (
	AuthOutcomeAuthenticated     = "authenticated"
	AuthOutcomeMissingCredential = "missing_credential"
	AuthOutcomeInvalidToken      = "invalid_token"
	AuthOutcomeUnknownUser       = "unknown_user"
	AuthOutcomeStoreError        = "store_error"
)

var (
	errMissingCredential = fmt.Errorf("%w: missing credential", model.ErrUnauthorized)
	errInvalidToken      = fmt.Errorf("%w: invalid token", model.ErrUnauthorized)
	errUnknownUser       = fmt.Errorf("%w: unknown user or revoked token", model.ErrUnauthorized)
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userContextKey             = contextKey("user")
	credentialSourceContextKey = contextKey("credential_source")
)

// TokenVerifier はトークンを検証してユーザーの内部IDを返す。
type TokenVerifier interface {
	Verify(raw string) (int64, error)
}

// UserFinder はユーザーの検索に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// AuthRecorder は判定結果を記録する。metrics.Collectorが実装する。
type AuthRecorder interface {
	RecordAuthOutcome(outcome string)
}

// AuthGateway は保護対象ルートへのリクエストを認証する。
// 認証情報の抽出、トークン検証、ユーザー解決の順に実行し、
// いずれかが失敗した時点で後続のハンドラーを実行せずに応答する。
type AuthGateway struct {
	verifier TokenVerifier
	users    UserFinder
	recorder AuthRecorder
}

// NewAuthGateway はAuthGatewayを生成する。recorderはnilでもよい。
func NewAuthGateway(verifier TokenVerifier, users UserFinder, recorder AuthRecorder) *AuthGateway {
	return &AuthGateway{
		verifier: verifier,
		users:    users,
		recorder: recorder,
	}
}

// Middleware は認証済みユーザーをコンテキストに注入するミドルウェアを返す。
// 認証失敗は理由に関わらず401と本文"Unauthorized"で応答する。
// ユーザー解決中のストア障害のみ503で応答する。
func (g *AuthGateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, cred, err := g.Authenticate(r)
		g.record(authOutcome(err))

		if err != nil {
			if errors.Is(err, model.ErrUnauthorized) {
				WriteUnauthorized(w)
				return
			}
			slog.Error("failed to resolve user",
				slog.String("error", err.Error()),
				slog.String("path", r.URL.Path),
			)
			WriteServiceUnavailable(w)
			return
		}

		ctx := ContextWithUser(r.Context(), user)
		ctx = context.WithValue(ctx, credentialSourceContextKey, cred.Source)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate はリクエストを認証し、解決したユーザーと使用した認証情報を返す。
// 認証失敗はmodel.ErrUnauthorizedをラップしたエラー、ストア障害はそれ以外のエラーを返す。
func (g *AuthGateway) Authenticate(r *http.Request) (*model.User, Credential, error) {
	// 1. 認証情報を抽出
	cred, ok := ExtractCredential(r)
	if !ok {
		return nil, Credential{}, errMissingCredential
	}

	// 2. トークンを検証
	userID, err := g.verifyToken(cred)
	if err != nil {
		return nil, cred, err
	}

	// 3. ユーザーを解決
	user, err := g.resolveUser(r.Context(), userID, cred)
	if err != nil {
		return nil, cred, err
	}

	return user, cred, nil
}

// verifyToken はトークンの署名・形式・有効期限を検証する。
func (g *AuthGateway) verifyToken(cred Credential) (int64, error) {
	userID, err := g.verifier.Verify(cred.Token)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	return userID, nil
}

// resolveUser はユーザーを取得し、提示されたトークンが現在有効なトークンであることを確認する。
// 再ログインで上書きされたトークンやログアウト済みのトークンは拒否する。
func (g *AuthGateway) resolveUser(ctx context.Context, userID int64, cred Credential) (*model.User, error) {
	user, err := g.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.HasAccessToken(cred.Token) {
		return nil, errUnknownUser
	}
	return user, nil
}

func (g *AuthGateway) record(outcome string) {
	if g.recorder != nil {
		g.recorder.RecordAuthOutcome(outcome)
	}
}

// authOutcome はAuthenticateの結果をメトリクスのラベルに変換する。
func authOutcome(err error) string {
	switch {
	case err == nil:
		return AuthOutcomeAuthenticated
	case errors.Is(err, errMissingCredential):
		return AuthOutcomeMissingCredential
	case errors.Is(err, errInvalidToken):
		return AuthOutcomeInvalidToken
	case errors.Is(err, errUnknownUser):
		return AuthOutcomeUnknownUser
	default:
		return AuthOutcomeStoreError
	}
}

// ExtractCredential はリクエストから認証情報を取り出す。
// Authorization: Bearer ヘッダーを優先し、無い場合はaccessToken Cookieを使用する。
// Bearer以外のスキームや空のトークンは無いものとして扱う。
func ExtractCredential(r *http.Request) (Credential, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return Credential{Token: token, Source: CredentialSourceHeader}, true
	}

	cookie, err := r.Cookie(AccessTokenCookieName)
	if err == nil && cookie.Value != "" {
		return Credential{Token: cookie.Value, Source: CredentialSourceCookie}, true
	}

	return Credential{}, false
}

// bearerToken はAuthorizationヘッダーの値からBearerトークンを取り出す。
// スキーム名は大文字小文字を区別しない。
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ゲートウェイを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

// UserIDFromContext はリクエストコンテキストからユーザーの内部IDを取得する。
func UserIDFromContext(ctx context.Context) (int64, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return 0, fmt.Errorf("user not found in context")
	}
	return user.ID, nil
}

// CredentialSourceFromContext は認証に使われた認証情報の取得元を返す。
// 未認証の場合は空文字列を返す。
func CredentialSourceFromContext(ctx context.Context) CredentialSource {
	source, _ := ctx.Value(credentialSourceContextKey).(CredentialSource)
	return source
}
