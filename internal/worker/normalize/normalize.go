// Package normalize は文字列のまま保存された旧データの賞味期限を
// タイムスタンプに変換するジョブを提供する。
// 1件ごとの失敗はログと件数に残すだけで、処理全体は止めない。
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/foodshare/internal/metrics"
	"github.com/hitoshi/foodshare/internal/model"
)

// Store はジョブが必要とする食品リストストアのインターフェース。
type Store interface {
	ListLegacyExpireAt(ctx context.Context) ([]model.LegacyExpireAt, error)
	SetExpireAt(ctx context.Context, id string, expireAt time.Time) error
}

// Result は1回の実行結果。
type Result struct {
	Scanned int
	Fixed   int
	Failed  int
}

// Job は旧形式の賞味期限を正規化するジョブ。
// 何度実行しても結果は変わらない。
type Job struct {
	store   Store
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewJob は新しいJobを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewJob(store Store, logger *slog.Logger, collector metrics.MetricsCollector) *Job {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Job{
		store:   store,
		logger:  logger,
		metrics: collector,
	}
}

// Run は文字列の賞味期限を解析してタイムスタンプで保存し直す。
// 対象一覧の取得に失敗した場合のみエラーを返す。
func (j *Job) Run(ctx context.Context) (Result, error) {
	start := time.Now()

	legacy, err := j.store.ListLegacyExpireAt(ctx)
	if err != nil {
		j.logger.Error("旧形式の賞味期限の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return Result{}, fmt.Errorf("旧形式の賞味期限の取得に失敗: %w", err)
	}

	res := Result{Scanned: len(legacy)}
	for _, rec := range legacy {
		if err := ctx.Err(); err != nil {
			j.logger.Warn("賞味期限の正規化を中断しました",
				slog.Int("fixed", res.Fixed),
				slog.Int("remaining", res.Scanned-res.Fixed-res.Failed),
			)
			break
		}

		expireAt, err := model.ParseExpireAt(rec.Raw)
		if err != nil {
			res.Failed++
			j.logger.Warn("賞味期限を解析できませんでした",
				slog.String("food_id", rec.ID),
				slog.String("raw", rec.Raw),
			)
			continue
		}

		if err := j.store.SetExpireAt(ctx, rec.ID, expireAt); err != nil {
			res.Failed++
			j.logger.Warn("賞味期限の保存に失敗しました",
				slog.String("food_id", rec.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		res.Fixed++
	}

	j.metrics.RecordLegacyNormalized(res.Fixed, res.Failed)
	j.logger.Info("賞味期限の正規化ジョブが完了しました",
		slog.Int("scanned", res.Scanned),
		slog.Int("fixed", res.Fixed),
		slog.Int("failed", res.Failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return res, nil
}
