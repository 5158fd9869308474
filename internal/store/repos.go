package store

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/foodshare/internal/model"
	"github.com/hitoshi/foodshare/internal/repository"
)

// ErrNotReady はストアが未接続の状態でリポジトリを使った場合のエラー。
var ErrNotReady = errors.New("store is not ready")

// FoodRepository は呼び出しのたびに接続中のリポジトリへ委譲するFoodRepositoryを返す。
// サービスはConnect前に組み立てておき、接続後にそのまま使える。
func (c *Client) FoodRepository() repository.FoodRepository {
	return foodRepo{c: c}
}

// RequestRepository はRequestRepositoryの委譲版を返す。
func (c *Client) RequestRepository() repository.RequestRepository {
	return requestRepo{c: c}
}

type foodRepo struct{ c *Client }

func (r foodRepo) repo() (repository.FoodRepository, error) {
	foods := r.c.Foods()
	if foods == nil {
		return nil, ErrNotReady
	}
	return foods, nil
}

func (r foodRepo) Create(ctx context.Context, food *model.Food) error {
	repo, err := r.repo()
	if err != nil {
		return err
	}
	return repo.Create(ctx, food)
}

func (r foodRepo) FindByID(ctx context.Context, id string) (*model.Food, error) {
	repo, err := r.repo()
	if err != nil {
		return nil, err
	}
	return repo.FindByID(ctx, id)
}

func (r foodRepo) ListAvailable(ctx context.Context, filter model.AvailableFilter) ([]*model.Food, error) {
	repo, err := r.repo()
	if err != nil {
		return nil, err
	}
	return repo.ListAvailable(ctx, filter)
}

func (r foodRepo) ListFeatured(ctx context.Context, limit int) ([]model.FeaturedFood, error) {
	repo, err := r.repo()
	if err != nil {
		return nil, err
	}
	return repo.ListFeatured(ctx, limit)
}

func (r foodRepo) ListByDonorEmail(ctx context.Context, email string) ([]*model.Food, error) {
	repo, err := r.repo()
	if err != nil {
		return nil, err
	}
	return repo.ListByDonorEmail(ctx, email)
}

func (r foodRepo) MarkRequested(ctx context.Context, id string) (bool, error) {
	repo, err := r.repo()
	if err != nil {
		return false, err
	}
	return repo.MarkRequested(ctx, id)
}

func (r foodRepo) Update(ctx context.Context, id string, patch *model.FoodPatch) (bool, error) {
	repo, err := r.repo()
	if err != nil {
		return false, err
	}
	return repo.Update(ctx, id, patch)
}

func (r foodRepo) Delete(ctx context.Context, id string) (bool, error) {
	repo, err := r.repo()
	if err != nil {
		return false, err
	}
	return repo.Delete(ctx, id)
}

func (r foodRepo) ListLegacyExpireAt(ctx context.Context) ([]model.LegacyExpireAt, error) {
	repo, err := r.repo()
	if err != nil {
		return nil, err
	}
	return repo.ListLegacyExpireAt(ctx)
}

func (r foodRepo) SetExpireAt(ctx context.Context, id string, expireAt time.Time) error {
	repo, err := r.repo()
	if err != nil {
		return err
	}
	return repo.SetExpireAt(ctx, id, expireAt)
}

type requestRepo struct{ c *Client }

func (r requestRepo) Create(ctx context.Context, req *model.Request) error {
	requests := r.c.Requests()
	if requests == nil {
		return ErrNotReady
	}
	return requests.Create(ctx, req)
}

func (r requestRepo) ListByUserEmail(ctx context.Context, email string) ([]*model.Request, error) {
	requests := r.c.Requests()
	if requests == nil {
		return nil, ErrNotReady
	}
	return requests.ListByUserEmail(ctx, email)
}
