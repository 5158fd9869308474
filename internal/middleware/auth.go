// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/foodshare/internal/model"
)

// TokenCookieName はログイン時に発行するトークンCookieの名前。
const TokenCookieName = "token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// emailContextKey はリクエストコンテキストに認証済みメールアドレスを格納するためのキー。
	emailContextKey = contextKey("user_email")
	// bearerContextKey はAuthorizationヘッダーで認証されたかどうかを格納するためのキー。
	bearerContextKey = contextKey("bearer_auth")
)

// TokenVerifier はトークン検証に必要なインターフェース。
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// NewAuthMiddleware はAuthorization: Bearerヘッダー、またはtoken Cookieから
// トークンを読み取り、検証するミドルウェアを返す。ヘッダーが優先される。
// 認証済みメールアドレスをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, viaHeader := tokenFromRequest(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			email, err := verifier.VerifyToken(token)
			if err != nil {
				slog.Warn("token verification failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			recordEmail(r, email)
			ctx := ContextWithEmail(r.Context(), email)
			if viaHeader {
				ctx = context.WithValue(ctx, bearerContextKey, true)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest はリクエストからトークンを取り出す。
// 2番目の戻り値はAuthorizationヘッダーから取得したかどうか。
func tokenFromRequest(r *http.Request) (string, bool) {
	if token := bearerToken(r); token != "" {
		return token, true
	}
	cookie, err := r.Cookie(TokenCookieName)
	if err != nil {
		return "", false
	}
	return cookie.Value, false
}

// bearerToken はAuthorizationヘッダーのBearerトークンを返す。
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// EmailFromContext はリクエストコンテキストから認証済みメールアドレスを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func EmailFromContext(ctx context.Context) (string, error) {
	email, ok := ctx.Value(emailContextKey).(string)
	if !ok || email == "" {
		return "", fmt.Errorf("user email not found in context")
	}
	return email, nil
}

// ContextWithEmail はコンテキストにメールアドレスを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailContextKey, email)
}

// AuthenticatedByHeader はAuthorizationヘッダーで認証されたリクエストかどうかを返す。
func AuthenticatedByHeader(ctx context.Context) bool {
	v, _ := ctx.Value(bearerContextKey).(bool)
	return v
}
