// Package request は受け取り希望（リクエスト）の記録と閲覧を提供する。
package request

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/foodshare/internal/model"
	"github.com/hitoshi/foodshare/internal/repository"
)

// Service はリクエストのサービス層。
// ペイロードは検証せずにそのまま保存する。食品リストとの整合性は確認しない。
type Service struct {
	repo   repository.RequestRepository
	logger *slog.Logger
	now    func() time.Time
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithLogger はログの出力先を設定する。
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService はServiceを生成する。
func NewService(repo repository.RequestRepository, opts ...Option) *Service {
	s := &Service{repo: repo, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create はリクエストを保存し、割り当てたIDを返す。
// ペイロードの _id は無視し、createdAt はサーバー時刻で上書きする。
func (s *Service) Create(ctx context.Context, payload map[string]any) (string, error) {
	stored := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == "_id" || k == "createdAt" {
			continue
		}
		stored[k] = v
	}

	req := &model.Request{
		ID:        uuid.New().String(),
		Payload:   stored,
		CreatedAt: s.now().UTC(),
	}
	if email, ok := stored["userEmail"].(string); ok {
		req.UserEmail = strings.TrimSpace(email)
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return "", fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}

	s.logger.InfoContext(ctx, "food request recorded",
		slog.String("request_id", req.ID),
		slog.String("user_email", req.UserEmail),
	)
	return req.ID, nil
}

// ListByEmail は指定ユーザーのリクエストを新しい順に返す。
func (s *Service) ListByEmail(ctx context.Context, email string) ([]*model.Request, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, model.NewMissingFieldError("email")
	}
	requests, err := s.repo.ListByUserEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("リクエスト一覧の取得に失敗しました: %w", err)
	}
	return requests, nil
}
