package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/foodshare/internal/model"
	"github.com/hitoshi/foodshare/internal/quantity"
)

// memoryFood はインメモリストアに保持する食品リストと旧形式の賞味期限。
type memoryFood struct {
	food        model.Food
	rawExpireAt string
}

// MemoryFoodRepo はプロセス内に食品リストを保持するリポジトリ。
// ローカル開発とテストで使用する。登録順を自然順として保持する。
type MemoryFoodRepo struct {
	mu    sync.RWMutex
	order []string
	foods map[string]*memoryFood
}

// NewMemoryFoodRepo はMemoryFoodRepoを生成する。
func NewMemoryFoodRepo() *MemoryFoodRepo {
	return &MemoryFoodRepo{foods: make(map[string]*memoryFood)}
}

// Create は食品リストを作成する。
func (r *MemoryFoodRepo) Create(_ context.Context, food *model.Food) error {
	r.insert(food, "")
	return nil
}

// CreateWithRawExpireAt は賞味期限を文字列のまま保持した旧形式の食品リストを作成する。
// 旧データの取り込みに使用する。
func (r *MemoryFoodRepo) CreateWithRawExpireAt(food *model.Food, raw string) {
	f := *food
	f.ExpireAt = nil
	r.insert(&f, raw)
}

func (r *MemoryFoodRepo) insert(food *model.Food, raw string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.foods[food.ID]; !exists {
		r.order = append(r.order, food.ID)
	}
	r.foods[food.ID] = &memoryFood{food: cloneFood(food), rawExpireAt: raw}
}

// FindByID は指定IDの食品リストを取得する。見つからない場合はnilを返す。
func (r *MemoryFoodRepo) FindByID(_ context.Context, id string) (*model.Food, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mf, ok := r.foods[id]
	if !ok {
		return nil, nil
	}
	f := cloneFood(&mf.food)
	return &f, nil
}

// ListAvailable は受付中の食品リストを返す。
func (r *MemoryFoodRepo) ListAvailable(_ context.Context, filter model.AvailableFilter) ([]*model.Food, error) {
	search := strings.ToLower(filter.Search)
	foods := r.collect(func(f *model.Food) bool {
		if f.FoodStatus != model.FoodStatusAvailable {
			return false
		}
		return search == "" || strings.Contains(strings.ToLower(f.FoodName), search)
	})

	if filter.Sort == model.SortAsc || filter.Sort == model.SortDesc {
		desc := filter.Sort == model.SortDesc
		sort.SliceStable(foods, func(i, j int) bool {
			a, b := foods[i].ExpireAt, foods[j].ExpireAt
			// 賞味期限の無いものは末尾に置く
			if a == nil || b == nil {
				return a != nil && b == nil
			}
			if desc {
				return a.After(*b)
			}
			return a.Before(*b)
		})
	}
	return foods, nil
}

// ListFeatured は受付中の食品リストを正規化した数量の降順で返す。
// 同値の場合は登録順を維持する。
func (r *MemoryFoodRepo) ListFeatured(_ context.Context, limit int) ([]model.FeaturedFood, error) {
	foods := r.collect(func(f *model.Food) bool {
		return f.FoodStatus == model.FoodStatusAvailable
	})

	sort.SliceStable(foods, func(i, j int) bool {
		return quantity.Normalize(foods[i].Quantity) > quantity.Normalize(foods[j].Quantity)
	})
	if limit >= 0 && len(foods) > limit {
		foods = foods[:limit]
	}

	featured := make([]model.FeaturedFood, len(foods))
	for i, f := range foods {
		featured[i] = model.FeaturedFood{
			FoodName:  f.FoodName,
			FoodImage: f.FoodImage,
			Quantity:  f.Quantity,
			Location:  f.Location,
			Note:      f.Note,
		}
	}
	return featured, nil
}

// ListByDonorEmail は指定寄付者の食品リストをcreatedAt降順で返す。
func (r *MemoryFoodRepo) ListByDonorEmail(_ context.Context, email string) ([]*model.Food, error) {
	foods := r.collect(func(f *model.Food) bool {
		return f.DonorEmail == email
	})
	// 同時刻の場合は後から登録したものを先にする
	for i, j := 0, len(foods)-1; i < j; i, j = i+1, j-1 {
		foods[i], foods[j] = foods[j], foods[i]
	}
	sort.SliceStable(foods, func(i, j int) bool {
		return foods[i].CreatedAt.After(foods[j].CreatedAt)
	})
	return foods, nil
}

// MarkRequested はステータスをrequestedに変更し、実際に変更されたかどうかを返す。
func (r *MemoryFoodRepo) MarkRequested(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mf, ok := r.foods[id]
	if !ok || mf.food.FoodStatus == model.FoodStatusRequested {
		return false, nil
	}
	mf.food.FoodStatus = model.FoodStatusRequested
	return true, nil
}

// Update は部分更新を適用し、該当する食品リストが存在したかどうかを返す。
func (r *MemoryFoodRepo) Update(_ context.Context, id string, patch *model.FoodPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mf, ok := r.foods[id]
	if !ok {
		return false, nil
	}
	patch.Apply(&mf.food)
	if patch.ExpireAt != nil {
		mf.rawExpireAt = ""
	}
	return true, nil
}

// Delete は食品リストを削除し、削除されたかどうかを返す。
func (r *MemoryFoodRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.foods[id]; !ok {
		return false, nil
	}
	delete(r.foods, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// ListLegacyExpireAt は賞味期限が文字列のまま保持されている食品リストを返す。
func (r *MemoryFoodRepo) ListLegacyExpireAt(_ context.Context) ([]model.LegacyExpireAt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var legacy []model.LegacyExpireAt
	for _, id := range r.order {
		mf := r.foods[id]
		if mf.food.ExpireAt == nil && mf.rawExpireAt != "" {
			legacy = append(legacy, model.LegacyExpireAt{ID: id, Raw: mf.rawExpireAt})
		}
	}
	return legacy, nil
}

// SetExpireAt は賞味期限をタイムスタンプとして保存し直す。
func (r *MemoryFoodRepo) SetExpireAt(_ context.Context, id string, expireAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mf, ok := r.foods[id]
	if !ok {
		return fmt.Errorf("賞味期限の正規化に失敗しました: %w: %s", ErrRecordNotFound, id)
	}
	t := expireAt
	mf.food.ExpireAt = &t
	mf.rawExpireAt = ""
	return nil
}

// collect は条件に一致する食品リストのコピーを登録順で返す。
func (r *MemoryFoodRepo) collect(match func(f *model.Food) bool) []*model.Food {
	r.mu.RLock()
	defer r.mu.RUnlock()

	foods := []*model.Food{}
	for _, id := range r.order {
		mf := r.foods[id]
		if match(&mf.food) {
			f := cloneFood(&mf.food)
			foods = append(foods, &f)
		}
	}
	return foods
}

// cloneFood は呼び出し元と内部状態が共有されないようにコピーを作る。
func cloneFood(f *model.Food) model.Food {
	c := *f
	if f.ExpireAt != nil {
		t := *f.ExpireAt
		c.ExpireAt = &t
	}
	if f.Extra != nil {
		c.Extra = make(map[string]any, len(f.Extra))
		for k, v := range f.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// MemoryRequestRepo はプロセス内にリクエストを保持するリポジトリ。
type MemoryRequestRepo struct {
	mu       sync.RWMutex
	requests []model.Request
}

// NewMemoryRequestRepo はMemoryRequestRepoを生成する。
func NewMemoryRequestRepo() *MemoryRequestRepo {
	return &MemoryRequestRepo{}
}

// Create はリクエストを作成する。
func (r *MemoryRequestRepo) Create(_ context.Context, req *model.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *req
	c.Payload = make(map[string]any, len(req.Payload))
	for k, v := range req.Payload {
		c.Payload[k] = v
	}
	r.requests = append(r.requests, c)
	return nil
}

// ListByUserEmail は指定ユーザーのリクエストをcreatedAt降順で返す。
func (r *MemoryRequestRepo) ListByUserEmail(_ context.Context, email string) ([]*model.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requests := []*model.Request{}
	for i := len(r.requests) - 1; i >= 0; i-- {
		if r.requests[i].UserEmail == email {
			c := r.requests[i]
			requests = append(requests, &c)
		}
	}
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return requests, nil
}

// compile-time interface check
var _ FoodRepository = (*MemoryFoodRepo)(nil)
var _ RequestRepository = (*MemoryRequestRepo)(nil)
