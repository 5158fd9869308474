package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/foodshare/internal/model"
)

// PostgresRequestRepo はPostgreSQLを使用したリクエストリポジトリ。
// ペイロードはJSONB列にそのまま格納する。
type PostgresRequestRepo struct {
	db *sql.DB
}

// NewPostgresRequestRepo はPostgresRequestRepoを生成する。
func NewPostgresRequestRepo(db *sql.DB) *PostgresRequestRepo {
	return &PostgresRequestRepo{db: db}
}

// Create はリクエストを作成する。
func (r *PostgresRequestRepo) Create(ctx context.Context, req *model.Request) error {
	payload, err := encodeExtra(req.Payload)
	if err != nil {
		return fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO requests (id, user_email, payload, created_at)
		 VALUES ($1, $2, $3::jsonb, $4)`,
		req.ID, req.UserEmail, payload, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByUserEmail は指定ユーザーのリクエストをcreatedAt降順で返す。
func (r *PostgresRequestRepo) ListByUserEmail(ctx context.Context, email string) ([]*model.Request, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_email, payload, created_at
		 FROM requests
		 WHERE user_email = $1
		 ORDER BY created_at DESC`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("リクエスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	requests := []*model.Request{}
	for rows.Next() {
		req := &model.Request{}
		var payload []byte
		if err := rows.Scan(&req.ID, &req.UserEmail, &payload, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("リクエスト行の読み取りに失敗しました: %w", err)
		}
		req.Payload = map[string]any{}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req.Payload); err != nil {
				return nil, fmt.Errorf("リクエストの復元に失敗しました: %w", err)
			}
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リクエスト一覧の走査に失敗しました: %w", err)
	}

	return requests, nil
}

// compile-time interface check
var _ RequestRepository = (*PostgresRequestRepo)(nil)
