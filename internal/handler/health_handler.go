package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/foodshare/internal/store"
)

// healthPingTimeout はヘルスチェック時のストア疎通確認のタイムアウト。
const healthPingTimeout = 2 * time.Second

// HealthChecker はヘルスチェックに必要なストアのインターフェース。
type HealthChecker interface {
	State() store.State
	Ping(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// Health はストアの状態を返す。Readyかつ疎通できる場合のみ200。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	state := h.checker.State()
	if state != store.StateReady {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Store: state.String()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()
	if err := h.checker.Ping(ctx); err != nil {
		slog.WarnContext(r.Context(), "store ping failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Store: state.String()})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: state.String()})
}
