package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// FoodStatus は食品リストの受付状態を表す。
type FoodStatus string

const (
	// FoodStatusAvailable は受付中（閲覧一覧に表示される）状態。
	FoodStatusAvailable FoodStatus = "Available"
	// FoodStatusRequested はリクエスト済みの状態。
	FoodStatusRequested FoodStatus = "requested"
)

// Valid は定義済みのステータスかどうかを返す。
func (s FoodStatus) Valid() bool {
	return s == FoodStatusAvailable || s == FoodStatusRequested
}

// DefaultFeaturedLimit はおすすめ一覧のデフォルト件数。
const DefaultFeaturedLimit = 6

// Food は寄付者が登録した食品リストを表す。
// Quantityは登録時の表現（数値または文字列）をそのまま保持する。
type Food struct {
	ID         string
	FoodName   string
	FoodImage  string
	Quantity   any
	Location   string
	ExpireAt   *time.Time // 文字列のまま保存された旧データは正規化されるまでnil
	Note       string
	DonorName  string
	DonorEmail string
	DonorImage string
	FoodStatus FoodStatus
	CreatedAt  time.Time
	Extra      map[string]any // 更新時に渡された任意フィールド
}

// MarshalJSON はExtraをトップレベルに展開したJSONを返す。
// 既知フィールドと同名のExtraキーは既知フィールドが優先される。
func (f Food) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(f.Extra)+12)
	for k, v := range f.Extra {
		doc[k] = v
	}
	doc["_id"] = f.ID
	doc["foodName"] = f.FoodName
	doc["foodImage"] = f.FoodImage
	doc["quantity"] = f.Quantity
	doc["location"] = f.Location
	doc["expireAt"] = f.ExpireAt
	doc["note"] = f.Note
	doc["donorName"] = f.DonorName
	doc["donorEmail"] = f.DonorEmail
	doc["donorImage"] = f.DonorImage
	doc["foodStatus"] = f.FoodStatus
	doc["createdAt"] = f.CreatedAt
	return json.Marshal(doc)
}

// FeaturedFood はおすすめ一覧用の射影。IDと寄付者情報は含まない。
type FeaturedFood struct {
	FoodName  string `json:"foodName"`
	FoodImage string `json:"foodImage"`
	Quantity  any    `json:"quantity"`
	Location  string `json:"location"`
	Note      string `json:"note"`
}

// SortOrder は賞味期限による並び順を表す。
type SortOrder string

const (
	// SortNone は並び順を指定しない。
	SortNone SortOrder = ""
	// SortAsc は賞味期限の昇順。
	SortAsc SortOrder = "asc"
	// SortDesc は賞味期限の降順。
	SortDesc SortOrder = "desc"
)

// ParseSortOrder はクエリ文字列を並び順に変換する。
// asc/desc 以外は並び順の指定なしとして扱う。
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(s) {
	case SortAsc, SortDesc:
		return SortOrder(s)
	default:
		return SortNone
	}
}

// AvailableFilter は受付中一覧の検索条件。
type AvailableFilter struct {
	Search string // foodNameの部分一致（大文字小文字を区別しない）
	Sort   SortOrder
}

// FoodPatch は食品リストの部分更新内容。
// nilのフィールドは変更しない。
type FoodPatch struct {
	FoodName   *string
	FoodImage  *string
	Quantity   any
	Location   *string
	ExpireAt   *time.Time
	Note       *string
	DonorName  *string
	DonorEmail *string
	DonorImage *string
	FoodStatus *FoodStatus
	Extra      map[string]any
}

// IsEmpty は更新対象が1つもない場合にtrueを返す。
func (p *FoodPatch) IsEmpty() bool {
	return p.FoodName == nil && p.FoodImage == nil && p.Quantity == nil &&
		p.Location == nil && p.ExpireAt == nil && p.Note == nil &&
		p.DonorName == nil && p.DonorEmail == nil && p.DonorImage == nil &&
		p.FoodStatus == nil && len(p.Extra) == 0
}

// Apply はパッチを食品リストに適用する。インメモリストア用。
func (p *FoodPatch) Apply(f *Food) {
	if p.FoodName != nil {
		f.FoodName = *p.FoodName
	}
	if p.FoodImage != nil {
		f.FoodImage = *p.FoodImage
	}
	if p.Quantity != nil {
		f.Quantity = p.Quantity
	}
	if p.Location != nil {
		f.Location = *p.Location
	}
	if p.ExpireAt != nil {
		t := *p.ExpireAt
		f.ExpireAt = &t
	}
	if p.Note != nil {
		f.Note = *p.Note
	}
	if p.DonorName != nil {
		f.DonorName = *p.DonorName
	}
	if p.DonorEmail != nil {
		f.DonorEmail = *p.DonorEmail
	}
	if p.DonorImage != nil {
		f.DonorImage = *p.DonorImage
	}
	if p.FoodStatus != nil {
		f.FoodStatus = *p.FoodStatus
	}
	if len(p.Extra) > 0 {
		if f.Extra == nil {
			f.Extra = make(map[string]any, len(p.Extra))
		}
		for k, v := range p.Extra {
			f.Extra[k] = v
		}
	}
}

// LegacyExpireAt は賞味期限が文字列のまま保存されている旧データを表す。
type LegacyExpireAt struct {
	ID  string
	Raw string
}

// expireAtLayouts は受け付ける日時フォーマット。
// フロントエンドのdatetime-local入力（秒なし）と日付のみの入力も受け付ける。
var expireAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// expireAt として受け付ける範囲。JSONのRFC 3339表現が4桁の年に限られるため。
var (
	minExpireAt = time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC)
	maxExpireAt = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)
)

// ParseExpireAt は賞味期限の値をタイムスタンプに変換する。
// 文字列は expireAtLayouts のいずれかで解析し、タイムゾーンの無い値はUTCとみなす。
// 数値はUnixエポックからのミリ秒として扱う。UTCで0年から9999年の範囲外はエラー。
func ParseExpireAt(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return inExpireAtRange(val.UTC())
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range expireAtLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return inExpireAtRange(t.UTC())
			}
		}
		return time.Time{}, fmt.Errorf("unsupported time format: %q", val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return time.Time{}, fmt.Errorf("invalid epoch milliseconds: %v", val)
		}
		if val < float64(minExpireAt.UnixMilli()) || val > float64(maxExpireAt.UnixMilli()) {
			return time.Time{}, fmt.Errorf("epoch milliseconds out of range: %v", val)
		}
		return time.UnixMilli(int64(val)).UTC(), nil
	case int64:
		return epochMillis(val)
	case int:
		return epochMillis(int64(val))
	default:
		return time.Time{}, fmt.Errorf("unsupported time value type %T", v)
	}
}

func epochMillis(ms int64) (time.Time, error) {
	if ms < minExpireAt.UnixMilli() || ms > maxExpireAt.UnixMilli() {
		return time.Time{}, fmt.Errorf("epoch milliseconds out of range: %d", ms)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func inExpireAtRange(t time.Time) (time.Time, error) {
	if t.Before(minExpireAt) || t.After(maxExpireAt) {
		return time.Time{}, fmt.Errorf("expireAt year out of range: %d", t.Year())
	}
	return t, nil
}
