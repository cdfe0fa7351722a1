// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/recipes/internal/middleware"
	"github.com/hitoshi/recipes/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
// session.Storeが満たす。
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (model.Session, error)
	Logout(ctx context.Context, token string)
	Lookup(ctx context.Context, token string) (model.Session, error)
}

// AuthHandler はBearerトークン認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// loginRequest はログインリクエストのボディ。passwordは検証しない。
type loginRequest struct {
	Username *string `json:"username"`
	Password string  `json:"password"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
}

// meResponse は現在のユーザー情報のレスポンス。
type meResponse struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
}

// Login はセッションを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Username == nil {
		handleServiceError(w, model.NewValidationError("username", "is required"))
		return
	}

	sess, err := h.service.Login(r.Context(), *req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Token:   sess.Token,
		User:    userResponse{ID: sess.UserID, Name: sess.UserName},
	})
}

// Logout はBearerトークンのセッションを破棄する。未知のトークンでも成功する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "Missing Authorization Bearer token")
		return
	}

	h.service.Logout(r.Context(), token)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		handleServiceError(w, model.NewUnauthorizedError())
		return
	}

	sess, err := h.service.Lookup(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		Success: true,
		User:    userResponse{ID: sess.UserID, Name: sess.UserName},
	})
}
