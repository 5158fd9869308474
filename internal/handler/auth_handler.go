// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/foodshare/internal/auth"
	"github.com/hitoshi/foodshare/internal/middleware"
	"github.com/hitoshi/foodshare/internal/model"
)

// TokenIssuer は認証ハンドラーが必要とするトークン発行インターフェース。
type TokenIssuer interface {
	IssueToken(email string) (string, time.Time, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite // 未指定の場合はLax
}

// AuthHandler はトークンの発行・破棄を行うHTTPハンドラー。
type AuthHandler struct {
	issuer TokenIssuer
	config AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(issuer TokenIssuer, config AuthHandlerConfig) *AuthHandler {
	if config.CookieSameSite == 0 {
		config.CookieSameSite = http.SameSiteLaxMode
	}
	return &AuthHandler{
		issuer: issuer,
		config: config,
	}
}

// issueTokenRequest はトークン発行リクエストのボディ。
type issueTokenRequest struct {
	Email string `json:"email"`
}

// issueTokenResponse はトークン発行レスポンス。
type issueTokenResponse struct {
	Success   bool      `json:"success"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssueToken はメールアドレスに対するトークンを発行し、HttpOnly Cookieに設定する。
// POST /auth/jwt
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, expiresAt, err := h.issuer.IssueToken(req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrEmptyEmail) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("email"))
			return
		}
		slog.ErrorContext(r.Context(), "failed to issue token", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: h.config.CookieSameSite,
	})

	writeJSON(w, http.StatusOK, issueTokenResponse{Success: true, ExpiresAt: expiresAt})
}

// Logout はトークンCookieを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: h.config.CookieSameSite,
	})

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// Me は現在のトークンに含まれるメールアドレスを返す。認証ミドルウェアの内側で使う。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	email, err := middleware.EmailFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": email})
}
