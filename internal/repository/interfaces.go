// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/foodshare/internal/model"
)

// ErrRecordNotFound は更新対象のレコードが存在しない場合のエラー。
var ErrRecordNotFound = errors.New("record not found")

// FoodRepository は食品リストの永続化インターフェース。
// 各操作は単一ドキュメントに対する原子性のみを前提とし、複数操作にまたがるトランザクションは持たない。
type FoodRepository interface {
	// Create は食品リストを作成する。
	Create(ctx context.Context, food *model.Food) error

	// FindByID は指定IDの食品リストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Food, error)

	// ListAvailable は受付中の食品リストを返す。
	// filter.Searchが指定された場合はfoodNameの部分一致（大文字小文字を区別しない）で絞り込む。
	// filter.Sortがasc/descの場合はexpireAtで並び替え、それ以外は順序を保証しない。
	ListAvailable(ctx context.Context, filter model.AvailableFilter) ([]*model.Food, error)

	// ListFeatured は受付中の食品リストを正規化した数量の降順で最大limit件返す。
	// 同値の場合はストアの自然順（登録順）を維持する。
	ListFeatured(ctx context.Context, limit int) ([]model.FeaturedFood, error)

	// ListByDonorEmail は指定寄付者の食品リストをcreatedAt降順で返す。
	ListByDonorEmail(ctx context.Context, email string) ([]*model.Food, error)

	// MarkRequested はステータスをrequestedに変更し、実際に変更されたかどうかを返す。
	// 既にrequestedの場合と該当IDが無い場合はどちらもfalseを返す。
	MarkRequested(ctx context.Context, id string) (bool, error)

	// Update は部分更新を適用し、該当する食品リストが存在したかどうかを返す。
	// 値が変わらなかった場合も存在すればtrueを返す。
	Update(ctx context.Context, id string, patch *model.FoodPatch) (bool, error)

	// Delete は食品リストを削除し、削除されたかどうかを返す。
	Delete(ctx context.Context, id string) (bool, error)

	// ListLegacyExpireAt は賞味期限が文字列のまま保存されている食品リストを返す。
	ListLegacyExpireAt(ctx context.Context) ([]model.LegacyExpireAt, error)

	// SetExpireAt は賞味期限をタイムスタンプとして保存し直す。
	// 該当IDが無い場合は ErrRecordNotFound をラップしたエラーを返す。
	SetExpireAt(ctx context.Context, id string, expireAt time.Time) error
}

// RequestRepository はリクエストの永続化インターフェース。
type RequestRepository interface {
	// Create はリクエストを作成する。
	Create(ctx context.Context, req *model.Request) error

	// ListByUserEmail は指定ユーザーのリクエストをcreatedAt降順で返す。
	ListByUserEmail(ctx context.Context, email string) ([]*model.Request, error)
}
