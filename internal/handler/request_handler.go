package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/foodshare/internal/model"
)

// RequestServiceInterface はリクエストハンドラーが必要とするサービスインターフェース。
type RequestServiceInterface interface {
	Create(ctx context.Context, payload map[string]any) (string, error)
	ListByEmail(ctx context.Context, email string) ([]*model.Request, error)
}

// RequestHandler は受け取りリクエストのHTTPハンドラー。
type RequestHandler struct {
	service RequestServiceInterface
}

// NewRequestHandler はRequestHandlerを生成する。
func NewRequestHandler(service RequestServiceInterface) *RequestHandler {
	return &RequestHandler{service: service}
}

// Create はリクエストを記録する。ボディはJSONオブジェクトであればそのまま保存する。
// POST /api/requests
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if !decodeJSON(w, r, &payload) {
		return
	}

	id, err := h.service.Create(r.Context(), payload)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, insertedResponse{InsertedID: id})
}

// ListMine は認証済みユーザーのリクエスト一覧を返す。
// GET /api/my-requests?email=xxx
func (h *RequestHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	email, ok := ownerEmail(w, r)
	if !ok {
		return
	}

	requests, err := h.service.ListByEmail(r.Context(), email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if requests == nil {
		requests = []*model.Request{}
	}
	writeJSON(w, http.StatusOK, requests)
}
