// Package token はセッショントークン（署名付きJWT）の発行と検証を提供する。
// 秘密鍵のみに依存する純粋な処理で、I/Oを行わない。
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingSecret は署名鍵が設定されていないことを示す。
	ErrMissingSecret = errors.New("token secret is not configured")

	// ErrInvalidToken はトークンの形式不正・署名不一致・期限切れ等を示す。
	// 検証失敗の原因はこのエラーにラップされる。
	ErrInvalidToken = errors.New("invalid token")
)

// Config はCodecの設定。
type Config struct {
	Secret string
	Issuer string
	// TTL が0以下の場合は有効期限を設定しない。
	TTL time.Duration
}

// Codec はユーザーの内部IDを埋め込んだHS256署名トークンを発行・検証する。
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewCodec はCodecを生成する。
func NewCodec(cfg Config) *Codec {
	return &Codec{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
	}
}

// Issue はuserIDとissuedAtを埋め込んだトークンを発行する。
// 同じ鍵・同じ入力に対して常に同じトークンを返す。
func (c *Codec) Issue(userID int64, issuedAt time.Time) (string, error) {
	if len(c.secret) == 0 {
		return "", ErrMissingSecret
	}

	iat := issuedAt.Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		Subject:  strconv.FormatInt(userID, 10),
		Issuer:   c.issuer,
		IssuedAt: jwt.NewNumericDate(iat),
	}
	if c.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(iat.Add(c.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、埋め込まれたユーザーの内部IDを返す。
// 失敗時は常にErrInvalidTokenをラップしたエラーを返し、panicしない。
func (c *Codec) Verify(raw string) (int64, error) {
	if len(c.secret) == 0 {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, ErrMissingSecret)
	}
	if raw == "" {
		return 0, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return 0, fmt.Errorf("%w: token is not valid", ErrInvalidToken)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: malformed subject %q", ErrInvalidToken, claims.Subject)
	}
	return userID, nil
}
