// Package food は食品リストのライフサイクル（作成・閲覧・リクエスト・更新・削除）の
// ドメインロジックを提供する。
package food

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/foodshare/internal/metrics"
	"github.com/hitoshi/foodshare/internal/model"
	"github.com/hitoshi/foodshare/internal/quantity"
	"github.com/hitoshi/foodshare/internal/repository"
	"github.com/hitoshi/foodshare/internal/security"
)

// CreateInput は食品リスト作成時の入力。
// JSONのキーはフロントエンドが送信する名前に合わせている。
type CreateInput struct {
	FoodName   string `json:"foodName"`
	FoodImage  string `json:"foodImage"`
	Quantity   any    `json:"quantity"`
	Location   string `json:"location"`
	ExpireAt   any    `json:"expireAt"`
	Note       string `json:"note"`
	DonorName  string `json:"userName"`
	DonorEmail string `json:"userEmail"`
	DonorImage string `json:"userImage"`
}

// Service は食品リストのサービス層。
type Service struct {
	repo      repository.FoodRepository
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time

	featuredLimit int
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock は現在時刻の取得方法を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithFeaturedLimit はおすすめ一覧のデフォルト件数を設定する。
func WithFeaturedLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.featuredLimit = n
		}
	}
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService はServiceを生成する。
func NewService(repo repository.FoodRepository, sanitizer security.TextSanitizer, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		sanitizer:     sanitizer,
		metrics:       metrics.Nop{},
		logger:        slog.Default(),
		now:           time.Now,
		featuredLimit: model.DefaultFeaturedLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create は食品リストを作成し、割り当てたIDを返す。
// 必須項目: foodName, quantity, location, expireAt, userName, userEmail
func (s *Service) Create(ctx context.Context, in CreateInput) (string, error) {
	food := &model.Food{
		FoodName:   s.sanitizer.SanitizeText(in.FoodName),
		FoodImage:  s.sanitizer.SanitizeURL(in.FoodImage),
		Location:   s.sanitizer.SanitizeText(in.Location),
		Note:       s.sanitizer.SanitizeText(in.Note),
		DonorName:  s.sanitizer.SanitizeText(in.DonorName),
		DonorEmail: strings.TrimSpace(in.DonorEmail),
		DonorImage: s.sanitizer.SanitizeURL(in.DonorImage),
		FoodStatus: model.FoodStatusAvailable,
	}

	var missing []string
	if food.FoodName == "" {
		missing = append(missing, "foodName")
	}
	if isBlank(in.Quantity) {
		missing = append(missing, "quantity")
	}
	if food.Location == "" {
		missing = append(missing, "location")
	}
	if isBlank(in.ExpireAt) {
		missing = append(missing, "expireAt")
	}
	if food.DonorName == "" {
		missing = append(missing, "userName")
	}
	if food.DonorEmail == "" {
		missing = append(missing, "userEmail")
	}
	if len(missing) > 0 {
		return "", model.NewMissingFieldError(missing...)
	}

	qty, ok := quantity.Coerce(in.Quantity)
	if !ok {
		return "", model.NewInvalidQuantityError(in.Quantity)
	}
	food.Quantity = qty

	expireAt, err := model.ParseExpireAt(in.ExpireAt)
	if err != nil {
		return "", model.NewInvalidDateError(fmt.Sprint(in.ExpireAt))
	}
	food.ExpireAt = &expireAt

	food.ID = uuid.New().String()
	food.CreatedAt = s.now().UTC()

	if err := s.repo.Create(ctx, food); err != nil {
		return "", fmt.Errorf("食品リストの作成に失敗しました: %w", err)
	}
	s.metrics.RecordListingCreated()

	s.logger.InfoContext(ctx, "food listing created",
		slog.String("food_id", food.ID),
		slog.String("donor_email", food.DonorEmail),
	)
	return food.ID, nil
}

// Featured は受付中の食品リストを数量の多い順に最大limit件返す。
// limitが0以下の場合はデフォルト件数を使う。
func (s *Service) Featured(ctx context.Context, limit int) ([]model.FeaturedFood, error) {
	if limit <= 0 {
		limit = s.featuredLimit
	}
	featured, err := s.repo.ListFeatured(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("おすすめ一覧の取得に失敗しました: %w", err)
	}
	s.metrics.RecordFeaturedQuery(len(featured))
	return featured, nil
}

// ListAvailable は受付中の食品リストを検索・並べ替えして返す。
// sortが "asc"/"desc" 以外の場合は並べ替えない。
func (s *Service) ListAvailable(ctx context.Context, search, sort string) ([]*model.Food, error) {
	filter := model.AvailableFilter{
		Search: strings.TrimSpace(search),
		Sort:   model.ParseSortOrder(sort),
	}
	foods, err := s.repo.ListAvailable(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("食品リスト一覧の取得に失敗しました: %w", err)
	}
	return foods, nil
}

// Get は指定IDの食品リストを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Food, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	food, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("食品リストの取得に失敗しました: %w", err)
	}
	if food == nil {
		return nil, model.NewFoodNotFoundError(id)
	}
	return food, nil
}

// MarkRequested はステータスをrequestedに変更し、変更が発生したかを返す。
// すでにrequestedの場合と、該当IDが存在しない場合はどちらもfalseを返す。
func (s *Service) MarkRequested(ctx context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	modified, err := s.repo.MarkRequested(ctx, id)
	if err != nil {
		return false, fmt.Errorf("ステータスの更新に失敗しました: %w", err)
	}
	s.metrics.RecordStatusTransition(modified)
	return modified, nil
}

// ListMine は指定した寄付者の食品リストを新しい順に返す。
func (s *Service) ListMine(ctx context.Context, donorEmail string) ([]*model.Food, error) {
	donorEmail = strings.TrimSpace(donorEmail)
	if donorEmail == "" {
		return nil, model.NewMissingFieldError("email")
	}
	foods, err := s.repo.ListByDonorEmail(ctx, donorEmail)
	if err != nil {
		return nil, fmt.Errorf("寄付者の食品リスト取得に失敗しました: %w", err)
	}
	return foods, nil
}

// Update は食品リストを部分更新する。
// 該当する食品リストが存在すれば、値が変わらなくても成功とする。
func (s *Service) Update(ctx context.Context, id string, fields map[string]any) error {
	if err := validateID(id); err != nil {
		return err
	}
	patch, err := s.buildPatch(fields)
	if err != nil {
		return err
	}

	matched, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return fmt.Errorf("食品リストの更新に失敗しました: %w", err)
	}
	if !matched {
		return model.NewFoodNotFoundError(id)
	}
	if patch.FoodStatus != nil {
		s.metrics.RecordStatusTransition(true)
	}
	return nil
}

// Delete は食品リストを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("食品リストの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewFoodNotFoundError(id)
	}
	s.logger.InfoContext(ctx, "food listing deleted", slog.String("food_id", id))
	return nil
}

// validateID はIDがUUID形式かを検証する。ストアへの問い合わせ前に行う。
func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewInvalidIDError(id)
	}
	return nil
}

// isBlank は必須項目が未入力かどうかを判定する。
func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}
