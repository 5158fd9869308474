package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/foodshare/internal/food"
	"github.com/hitoshi/foodshare/internal/middleware"
	"github.com/hitoshi/foodshare/internal/model"
)

// FoodServiceInterface は食品リストハンドラーが必要とするサービスインターフェース。
type FoodServiceInterface interface {
	Create(ctx context.Context, in food.CreateInput) (string, error)
	Featured(ctx context.Context, limit int) ([]model.FeaturedFood, error)
	ListAvailable(ctx context.Context, search, sort string) ([]*model.Food, error)
	Get(ctx context.Context, id string) (*model.Food, error)
	MarkRequested(ctx context.Context, id string) (bool, error)
	ListMine(ctx context.Context, donorEmail string) ([]*model.Food, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}

// FoodHandler は食品リストのHTTPハンドラー。
type FoodHandler struct {
	service FoodServiceInterface
}

// NewFoodHandler はFoodHandlerを生成する。
func NewFoodHandler(service FoodServiceInterface) *FoodHandler {
	return &FoodHandler{service: service}
}

// insertedResponse は作成系エンドポイントのレスポンス。
type insertedResponse struct {
	InsertedID string `json:"insertedId"`
}

// successResponse は更新・削除系エンドポイントのレスポンス。
type successResponse struct {
	Success bool `json:"success"`
}

// modifiedResponse はステータス変更のレスポンス。
type modifiedResponse struct {
	Modified bool `json:"modified"`
}

// Featured はおすすめの食品リストを返す。
// GET /api/foods/featured
func (h *FoodHandler) Featured(w http.ResponseWriter, r *http.Request) {
	featured, err := h.service.Featured(r.Context(), 0)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if featured == nil {
		featured = []model.FeaturedFood{}
	}
	writeJSON(w, http.StatusOK, featured)
}

// ListAvailable は受付中の食品リストを返す。
// GET /api/foods/available?search=xxx&sort=asc|desc
func (h *FoodHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	foods, err := h.service.ListAvailable(r.Context(), q.Get("search"), q.Get("sort"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeFoods(w, foods)
}

// Get は食品リストの詳細を返す。
// GET /api/foods/{id}
func (h *FoodHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Create は食品リストを登録する。
// POST /api/foods
func (h *FoodHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in food.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	id, err := h.service.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, insertedResponse{InsertedID: id})
}

// MarkRequested は食品リストをリクエスト済みにする。
// PATCH /api/foods/{id}/request
func (h *FoodHandler) MarkRequested(w http.ResponseWriter, r *http.Request) {
	modified, err := h.service.MarkRequested(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, modifiedResponse{Modified: modified})
}

// Update は食品リストを部分更新する。
// PUT /api/foods/{id}
func (h *FoodHandler) Update(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if !decodeJSON(w, r, &fields) {
		return
	}

	if err := h.service.Update(r.Context(), chi.URLParam(r, "id"), fields); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// Delete は食品リストを削除する。
// DELETE /api/foods/{id}
func (h *FoodHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// ListMine は認証済みユーザーが寄付した食品リストを返す。
// GET /api/my-foods?email=xxx
func (h *FoodHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	email, ok := ownerEmail(w, r)
	if !ok {
		return
	}

	foods, err := h.service.ListMine(r.Context(), email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeFoods(w, foods)
}

func writeFoods(w http.ResponseWriter, foods []*model.Food) {
	if foods == nil {
		foods = []*model.Food{}
	}
	writeJSON(w, http.StatusOK, foods)
}

// ownerEmail はクエリのemailを取り出し、トークンのメールアドレスと一致するか確認する。
// 不一致の場合は403を書き込み、falseを返す。
func ownerEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("email"))
		return "", false
	}

	caller, err := middleware.EmailFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	if !strings.EqualFold(caller, email) {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return "", false
	}
	return email, true
}
