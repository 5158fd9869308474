package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/foodshare/internal/model"
	"github.com/hitoshi/foodshare/internal/quantity"
)

// PostgresFoodRepo はPostgreSQLを使用した食品リストリポジトリ。
// 数量は登録時の表現を保つためJSONB列に格納する。
type PostgresFoodRepo struct {
	db *sql.DB
}

// NewPostgresFoodRepo はPostgresFoodRepoを生成する。
func NewPostgresFoodRepo(db *sql.DB) *PostgresFoodRepo {
	return &PostgresFoodRepo{db: db}
}

// foodColumns はSELECTで取得する列の並び。scanFoodと一致させること。
const foodColumns = `id, food_name, food_image, quantity, location, expire_at, note,
	donor_name, donor_email, donor_image, food_status, extra, created_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanFood は1行分の食品リストを読み取る。
func scanFood(s rowScanner) (*model.Food, error) {
	food := &model.Food{}
	var quantityJSON, extraJSON []byte
	var expireAt sql.NullTime
	var status string

	if err := s.Scan(
		&food.ID, &food.FoodName, &food.FoodImage, &quantityJSON, &food.Location,
		&expireAt, &food.Note, &food.DonorName, &food.DonorEmail, &food.DonorImage,
		&status, &extraJSON, &food.CreatedAt,
	); err != nil {
		return nil, err
	}

	food.FoodStatus = model.FoodStatus(status)
	if expireAt.Valid {
		t := expireAt.Time.UTC()
		food.ExpireAt = &t
	}

	q, err := decodeJSONValue(quantityJSON)
	if err != nil {
		return nil, fmt.Errorf("数量の復元に失敗しました: %w", err)
	}
	food.Quantity = q

	if len(extraJSON) > 0 {
		extra := map[string]any{}
		if err := json.Unmarshal(extraJSON, &extra); err != nil {
			return nil, fmt.Errorf("追加フィールドの復元に失敗しました: %w", err)
		}
		if len(extra) > 0 {
			food.Extra = extra
		}
	}

	return food, nil
}

// Create は食品リストを作成する。
func (r *PostgresFoodRepo) Create(ctx context.Context, food *model.Food) error {
	quantityJSON, err := encodeJSONValue(food.Quantity)
	if err != nil {
		return fmt.Errorf("数量のエンコードに失敗しました: %w", err)
	}
	extraJSON, err := encodeExtra(food.Extra)
	if err != nil {
		return fmt.Errorf("追加フィールドのエンコードに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO foods (id, food_name, food_image, quantity, location, expire_at, note,
		                    donor_name, donor_email, donor_image, food_status, extra, created_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13)`,
		food.ID, food.FoodName, food.FoodImage, quantityJSON, food.Location, food.ExpireAt,
		food.Note, food.DonorName, food.DonorEmail, food.DonorImage, string(food.FoodStatus),
		extraJSON, food.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("食品リストの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの食品リストを取得する。見つからない場合はnilを返す。
func (r *PostgresFoodRepo) FindByID(ctx context.Context, id string) (*model.Food, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+foodColumns+` FROM foods WHERE id = $1`,
		id,
	)
	food, err := scanFood(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("食品リストの取得に失敗しました: %w", err)
	}
	return food, nil
}

// ListAvailable は受付中の食品リストを返す。
func (r *PostgresFoodRepo) ListAvailable(ctx context.Context, filter model.AvailableFilter) ([]*model.Food, error) {
	query := `SELECT ` + foodColumns + ` FROM foods WHERE food_status = $1`
	args := []any{string(model.FoodStatusAvailable)}

	// 部分一致はstrposで行い、LIKEのワイルドカード文字をエスケープせずに済ませる
	if filter.Search != "" {
		query += fmt.Sprintf(" AND strpos(lower(food_name), lower($%d)) > 0", len(args)+1)
		args = append(args, filter.Search)
	}

	switch filter.Sort {
	case model.SortAsc:
		query += " ORDER BY expire_at ASC NULLS LAST"
	case model.SortDesc:
		query += " ORDER BY expire_at DESC NULLS LAST"
	}

	return r.queryFoods(ctx, query, args...)
}

// ListFeatured は受付中の食品リストを正規化した数量の降順で返す。
// 数量の正規化はSQL式で行い、全件をアプリケーションに読み込まない。
func (r *PostgresFoodRepo) ListFeatured(ctx context.Context, limit int) ([]model.FeaturedFood, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT food_name, food_image, quantity, location, note
		 FROM foods
		 WHERE food_status = $1
		 ORDER BY `+quantity.PostgresExpr("quantity")+` DESC, seq ASC
		 LIMIT $2`,
		string(model.FoodStatusAvailable), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("おすすめ食品の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	featured := []model.FeaturedFood{}
	for rows.Next() {
		var f model.FeaturedFood
		var quantityJSON []byte
		if err := rows.Scan(&f.FoodName, &f.FoodImage, &quantityJSON, &f.Location, &f.Note); err != nil {
			return nil, fmt.Errorf("おすすめ食品の行読み取りに失敗しました: %w", err)
		}
		q, err := decodeJSONValue(quantityJSON)
		if err != nil {
			return nil, fmt.Errorf("数量の復元に失敗しました: %w", err)
		}
		f.Quantity = q
		featured = append(featured, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("おすすめ食品の走査に失敗しました: %w", err)
	}

	return featured, nil
}

// ListByDonorEmail は指定寄付者の食品リストをcreatedAt降順で返す。
func (r *PostgresFoodRepo) ListByDonorEmail(ctx context.Context, email string) ([]*model.Food, error) {
	return r.queryFoods(ctx,
		`SELECT `+foodColumns+` FROM foods WHERE donor_email = $1 ORDER BY created_at DESC, seq DESC`,
		email,
	)
}

// MarkRequested はステータスをrequestedに変更し、実際に変更されたかどうかを返す。
func (r *PostgresFoodRepo) MarkRequested(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE foods SET food_status = $2 WHERE id = $1 AND food_status <> $2`,
		id, string(model.FoodStatusRequested),
	)
	if err != nil {
		return false, fmt.Errorf("ステータスの更新に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// Update は部分更新を適用する。
// PostgreSQLのUPDATEは値が同じでも一致した行数を返すため、存在確認として扱える。
func (r *PostgresFoodRepo) Update(ctx context.Context, id string, patch *model.FoodPatch) (bool, error) {
	sets := []string{}
	args := []any{id}

	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if patch.FoodName != nil {
		add("food_name = $%d", *patch.FoodName)
	}
	if patch.FoodImage != nil {
		add("food_image = $%d", *patch.FoodImage)
	}
	if patch.Quantity != nil {
		q, err := encodeJSONValue(patch.Quantity)
		if err != nil {
			return false, fmt.Errorf("数量のエンコードに失敗しました: %w", err)
		}
		add("quantity = $%d::jsonb", q)
	}
	if patch.Location != nil {
		add("location = $%d", *patch.Location)
	}
	if patch.ExpireAt != nil {
		add("expire_at = $%d", *patch.ExpireAt)
		sets = append(sets, "expire_at_raw = NULL")
	}
	if patch.Note != nil {
		add("note = $%d", *patch.Note)
	}
	if patch.DonorName != nil {
		add("donor_name = $%d", *patch.DonorName)
	}
	if patch.DonorEmail != nil {
		add("donor_email = $%d", *patch.DonorEmail)
	}
	if patch.DonorImage != nil {
		add("donor_image = $%d", *patch.DonorImage)
	}
	if patch.FoodStatus != nil {
		add("food_status = $%d", string(*patch.FoodStatus))
	}
	if len(patch.Extra) > 0 {
		extraJSON, err := encodeExtra(patch.Extra)
		if err != nil {
			return false, fmt.Errorf("追加フィールドのエンコードに失敗しました: %w", err)
		}
		add("extra = extra || $%d::jsonb", extraJSON)
	}

	if len(sets) == 0 {
		return r.exists(ctx, id)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE foods SET `+strings.Join(sets, ", ")+` WHERE id = $1`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("食品リストの更新に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// Delete は食品リストを削除し、削除されたかどうかを返す。
func (r *PostgresFoodRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM foods WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("食品リストの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// ListLegacyExpireAt は賞味期限がexpire_at_rawにのみ残っている行を返す。
func (r *PostgresFoodRepo) ListLegacyExpireAt(ctx context.Context) ([]model.LegacyExpireAt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, expire_at_raw FROM foods
		 WHERE expire_at IS NULL AND expire_at_raw IS NOT NULL
		 ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("旧形式の賞味期限の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var legacy []model.LegacyExpireAt
	for rows.Next() {
		var l model.LegacyExpireAt
		if err := rows.Scan(&l.ID, &l.Raw); err != nil {
			return nil, fmt.Errorf("旧形式の賞味期限の行読み取りに失敗しました: %w", err)
		}
		legacy = append(legacy, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("旧形式の賞味期限の走査に失敗しました: %w", err)
	}
	return legacy, nil
}

// SetExpireAt は賞味期限をタイムスタンプとして保存し直す。
func (r *PostgresFoodRepo) SetExpireAt(ctx context.Context, id string, expireAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE foods SET expire_at = $2, expire_at_raw = NULL WHERE id = $1`,
		id, expireAt,
	)
	if err != nil {
		return fmt.Errorf("賞味期限の正規化に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("賞味期限の正規化結果の取得に失敗しました: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("賞味期限の正規化に失敗しました: %w: %s", ErrRecordNotFound, id)
	}
	return nil
}

// exists は指定IDの行が存在するかどうかを返す。
func (r *PostgresFoodRepo) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM foods WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("食品リストの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// queryFoods は食品リストの一覧クエリを実行する。
func (r *PostgresFoodRepo) queryFoods(ctx context.Context, query string, args ...any) ([]*model.Food, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("食品リスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	foods := []*model.Food{}
	for rows.Next() {
		food, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("食品リスト行の読み取りに失敗しました: %w", err)
		}
		foods = append(foods, food)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("食品リスト一覧の走査に失敗しました: %w", err)
	}
	return foods, nil
}

// encodeJSONValue は値をJSONB列に渡す文字列にエンコードする。
// lib/pqは[]byteをbyteaとして送るため文字列で渡す。nilはSQLのNULLになる。
func encodeJSONValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// encodeExtra は追加フィールドをJSONBオブジェクトの文字列にエンコードする。
func encodeExtra(extra map[string]any) (string, error) {
	if len(extra) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeJSONValue はJSONB列の値を復元する。NULLはnilになる。
func decodeJSONValue(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// compile-time interface check
var _ FoodRepository = (*PostgresFoodRepo)(nil)
