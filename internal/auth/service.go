// Package auth はJWTによるトークン発行・検証を提供する。
// 利用者の本人確認はフロントエンド側のIDプロバイダーで済んでいる前提で、
// ここではメールアドレスを署名付きトークンに載せるだけを担う。
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer はトークンのiss クレームに設定する値。
const Issuer = "foodshare"

// DefaultTokenTTL はトークン有効期間のデフォルト値。
const DefaultTokenTTL = time.Hour

var (
	// ErrEmptyEmail はメールアドレスが空の場合のエラー。
	ErrEmptyEmail = errors.New("email is required")
	// ErrInvalidToken はトークンの署名・形式・有効期限のいずれかが不正な場合のエラー。
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret は署名鍵が設定されていない場合のエラー。
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	Secret   string
	TokenTTL time.Duration
}

// Claims はトークンに含めるクレーム。
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service はトークンの発行と検証を行う。
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(config ServiceConfig) (*Service, error) {
	if config.Secret == "" {
		return nil, ErrMissingSecret
	}
	ttl := config.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		secret: []byte(config.Secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TokenTTL はトークンの有効期間を返す。Cookieの有効期限に使う。
func (s *Service) TokenTTL() time.Duration {
	return s.ttl
}

// IssueToken はメールアドレスを含むHS256トークンを発行する。
func (s *Service) IssueToken(email string) (string, time.Time, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", time.Time{}, ErrEmptyEmail
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// VerifyToken はトークンを検証し、含まれるメールアドレスを返す。
func (s *Service) VerifyToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Email == "" {
		return "", fmt.Errorf("%w: email claim is empty", ErrInvalidToken)
	}
	return claims.Email, nil
}
