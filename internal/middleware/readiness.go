package middleware

import (
	"net/http"

	"github.com/hitoshi/foodshare/internal/model"
	"github.com/hitoshi/foodshare/internal/store"
)

// StoreStateProvider はストア接続状態の取得に必要なインターフェース。
type StoreStateProvider interface {
	State() store.State
}

// NewReadinessMiddleware はストアがReadyでない間、503 Service Unavailableを返すミドルウェアを返す。
// ストアを使うルートにのみ適用する。
func NewReadinessMiddleware(provider StoreStateProvider) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if state := provider.State(); state != store.StateReady {
				WriteServiceUnavailable(w, DefaultRetryAfter, model.NewStoreNotReadyError(state.String()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
