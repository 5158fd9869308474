package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hitoshi/foodshare/internal/model"
	"github.com/hitoshi/foodshare/internal/quantity"
)

// コレクション名
const (
	FoodsCollection    = "foods"
	RequestsCollection = "requests"
)

// MongoDBドキュメントのフィールド名
const (
	fieldID         = "_id"
	fieldFoodName   = "foodName"
	fieldFoodImage  = "foodImage"
	fieldQuantity   = "quantity"
	fieldLocation   = "location"
	fieldExpireAt   = "expireAt"
	fieldNote       = "note"
	fieldDonorName  = "donorName"
	fieldDonorEmail = "donorEmail"
	fieldDonorImage = "donorImage"
	fieldFoodStatus = "foodStatus"
	fieldCreatedAt  = "createdAt"
	fieldUserEmail  = "userEmail"
)

// knownFoodFields はExtraに含めない既知のフィールド。
var knownFoodFields = map[string]bool{
	fieldID: true, fieldFoodName: true, fieldFoodImage: true, fieldQuantity: true,
	fieldLocation: true, fieldExpireAt: true, fieldNote: true, fieldDonorName: true,
	fieldDonorEmail: true, fieldDonorImage: true, fieldFoodStatus: true, fieldCreatedAt: true,
}

// MongoFoodRepo はMongoDBを使用した食品リストリポジトリ。
// 任意フィールドはドキュメントのトップレベルにそのまま保存する。
type MongoFoodRepo struct {
	coll *mongo.Collection
}

// NewMongoFoodRepo はMongoFoodRepoを生成する。
func NewMongoFoodRepo(db *mongo.Database) *MongoFoodRepo {
	return &MongoFoodRepo{coll: db.Collection(FoodsCollection)}
}

// EnsureIndexes は検索と並び替えに使うインデックスを作成する。冪等。
func (r *MongoFoodRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: fieldFoodStatus, Value: 1}, {Key: fieldExpireAt, Value: 1}}},
		{Keys: bson.D{{Key: fieldDonorEmail, Value: 1}, {Key: fieldCreatedAt, Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("foodsコレクションのインデックス作成に失敗しました: %w", err)
	}
	return nil
}

// Create は食品リストを作成する。
func (r *MongoFoodRepo) Create(ctx context.Context, food *model.Food) error {
	doc := bson.M{}
	for k, v := range food.Extra {
		doc[k] = v
	}
	doc[fieldID] = food.ID
	doc[fieldFoodName] = food.FoodName
	doc[fieldFoodImage] = food.FoodImage
	doc[fieldQuantity] = food.Quantity
	doc[fieldLocation] = food.Location
	doc[fieldExpireAt] = food.ExpireAt
	doc[fieldNote] = food.Note
	doc[fieldDonorName] = food.DonorName
	doc[fieldDonorEmail] = food.DonorEmail
	doc[fieldDonorImage] = food.DonorImage
	doc[fieldFoodStatus] = string(food.FoodStatus)
	doc[fieldCreatedAt] = food.CreatedAt

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("食品リストの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの食品リストを取得する。見つからない場合はnilを返す。
func (r *MongoFoodRepo) FindByID(ctx context.Context, id string) (*model.Food, error) {
	var doc bson.M
	err := r.coll.FindOne(ctx, idFilter(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("食品リストの取得に失敗しました: %w", err)
	}
	return foodFromDocument(doc), nil
}

// ListAvailable は受付中の食品リストを返す。
func (r *MongoFoodRepo) ListAvailable(ctx context.Context, filter model.AvailableFilter) ([]*model.Food, error) {
	query := bson.M{fieldFoodStatus: string(model.FoodStatusAvailable)}
	if filter.Search != "" {
		query[fieldFoodName] = bson.M{
			"$regex":   regexp.QuoteMeta(filter.Search),
			"$options": "i",
		}
	}

	opts := options.Find()
	switch filter.Sort {
	case model.SortAsc:
		opts.SetSort(bson.D{{Key: fieldExpireAt, Value: 1}})
	case model.SortDesc:
		opts.SetSort(bson.D{{Key: fieldExpireAt, Value: -1}})
	}

	return r.findFoods(ctx, query, opts)
}

// mongoFeatured はおすすめ一覧の射影結果。
type mongoFeatured struct {
	FoodName  string `bson:"foodName"`
	FoodImage string `bson:"foodImage"`
	Quantity  any    `bson:"quantity"`
	Location  string `bson:"location"`
	Note      string `bson:"note"`
}

// ListFeatured は集計パイプラインで数量を正規化し、降順に並べて返す。
func (r *MongoFoodRepo) ListFeatured(ctx context.Context, limit int) ([]model.FeaturedFood, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{fieldFoodStatus: string(model.FoodStatusAvailable)}}},
		{{Key: "$addFields", Value: bson.M{"normalizedQuantity": quantity.MongoExpr(fieldQuantity)}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "normalizedQuantity", Value: -1},
			{Key: fieldCreatedAt, Value: 1},
			{Key: fieldID, Value: 1},
		}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.M{
			fieldID: 0, fieldFoodName: 1, fieldFoodImage: 1,
			fieldQuantity: 1, fieldLocation: 1, fieldNote: 1,
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("おすすめ食品の取得に失敗しました: %w", err)
	}
	defer cursor.Close(ctx)

	featured := []model.FeaturedFood{}
	for cursor.Next(ctx) {
		var doc mongoFeatured
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("おすすめ食品の読み取りに失敗しました: %w", err)
		}
		featured = append(featured, model.FeaturedFood{
			FoodName:  doc.FoodName,
			FoodImage: doc.FoodImage,
			Quantity:  doc.Quantity,
			Location:  doc.Location,
			Note:      doc.Note,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("おすすめ食品の走査に失敗しました: %w", err)
	}
	return featured, nil
}

// ListByDonorEmail は指定寄付者の食品リストをcreatedAt降順で返す。
func (r *MongoFoodRepo) ListByDonorEmail(ctx context.Context, email string) ([]*model.Food, error) {
	opts := options.Find().SetSort(bson.D{{Key: fieldCreatedAt, Value: -1}})
	return r.findFoods(ctx, bson.M{fieldDonorEmail: email}, opts)
}

// MarkRequested はステータスをrequestedに変更し、実際に変更されたかどうかを返す。
func (r *MongoFoodRepo) MarkRequested(ctx context.Context, id string) (bool, error) {
	result, err := r.coll.UpdateOne(ctx,
		idFilter(id),
		bson.M{"$set": bson.M{fieldFoodStatus: string(model.FoodStatusRequested)}},
	)
	if err != nil {
		return false, fmt.Errorf("ステータスの更新に失敗しました: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

// Update は部分更新を適用し、該当ドキュメントが存在したかどうかを返す。
func (r *MongoFoodRepo) Update(ctx context.Context, id string, patch *model.FoodPatch) (bool, error) {
	set := bson.M{}
	for k, v := range patch.Extra {
		set[k] = v
	}
	if patch.FoodName != nil {
		set[fieldFoodName] = *patch.FoodName
	}
	if patch.FoodImage != nil {
		set[fieldFoodImage] = *patch.FoodImage
	}
	if patch.Quantity != nil {
		set[fieldQuantity] = patch.Quantity
	}
	if patch.Location != nil {
		set[fieldLocation] = *patch.Location
	}
	if patch.ExpireAt != nil {
		set[fieldExpireAt] = *patch.ExpireAt
	}
	if patch.Note != nil {
		set[fieldNote] = *patch.Note
	}
	if patch.DonorName != nil {
		set[fieldDonorName] = *patch.DonorName
	}
	if patch.DonorEmail != nil {
		set[fieldDonorEmail] = *patch.DonorEmail
	}
	if patch.DonorImage != nil {
		set[fieldDonorImage] = *patch.DonorImage
	}
	if patch.FoodStatus != nil {
		set[fieldFoodStatus] = string(*patch.FoodStatus)
	}

	if len(set) == 0 {
		n, err := r.coll.CountDocuments(ctx, idFilter(id))
		if err != nil {
			return false, fmt.Errorf("食品リストの存在確認に失敗しました: %w", err)
		}
		return n > 0, nil
	}

	result, err := r.coll.UpdateOne(ctx, idFilter(id), bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("食品リストの更新に失敗しました: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// Delete は食品リストを削除し、削除されたかどうかを返す。
func (r *MongoFoodRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.coll.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return false, fmt.Errorf("食品リストの削除に失敗しました: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// ListLegacyExpireAt はexpireAtが文字列型のまま保存されているドキュメントを返す。
func (r *MongoFoodRepo) ListLegacyExpireAt(ctx context.Context) ([]model.LegacyExpireAt, error) {
	opts := options.Find().SetProjection(bson.M{fieldExpireAt: 1})
	cursor, err := r.coll.Find(ctx, bson.M{fieldExpireAt: bson.M{"$type": "string"}}, opts)
	if err != nil {
		return nil, fmt.Errorf("旧形式の賞味期限の取得に失敗しました: %w", err)
	}
	defer cursor.Close(ctx)

	var legacy []model.LegacyExpireAt
	for cursor.Next(ctx) {
		var doc struct {
			ID       any    `bson:"_id"`
			ExpireAt string `bson:"expireAt"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("旧形式の賞味期限の読み取りに失敗しました: %w", err)
		}
		legacy = append(legacy, model.LegacyExpireAt{ID: documentString(doc.ID), Raw: doc.ExpireAt})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("旧形式の賞味期限の走査に失敗しました: %w", err)
	}
	return legacy, nil
}

// SetExpireAt は賞味期限をタイムスタンプとして保存し直す。
// 該当するドキュメントがない場合はエラーを返す。
func (r *MongoFoodRepo) SetExpireAt(ctx context.Context, id string, expireAt time.Time) error {
	result, err := r.coll.UpdateOne(ctx,
		idFilter(id),
		bson.M{"$set": bson.M{fieldExpireAt: expireAt}},
	)
	if err != nil {
		return fmt.Errorf("賞味期限の正規化に失敗しました: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("賞味期限の正規化に失敗しました: %w: %s", ErrRecordNotFound, id)
	}
	return nil
}

// findFoods は検索条件に一致する食品リストを返す。
func (r *MongoFoodRepo) findFoods(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Food, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("食品リスト一覧の取得に失敗しました: %w", err)
	}
	defer cursor.Close(ctx)

	foods := []*model.Food{}
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("食品リストの読み取りに失敗しました: %w", err)
		}
		foods = append(foods, foodFromDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("食品リスト一覧の走査に失敗しました: %w", err)
	}
	return foods, nil
}

// foodFromDocument はMongoDBのドキュメントを食品リストに変換する。
// 文字列のまま保存されたexpireAtは正規化されるまでnilとして扱う。
func foodFromDocument(doc bson.M) *model.Food {
	food := &model.Food{
		ID:         documentString(doc[fieldID]),
		FoodName:   documentString(doc[fieldFoodName]),
		FoodImage:  documentString(doc[fieldFoodImage]),
		Quantity:   doc[fieldQuantity],
		Location:   documentString(doc[fieldLocation]),
		Note:       documentString(doc[fieldNote]),
		DonorName:  documentString(doc[fieldDonorName]),
		DonorEmail: documentString(doc[fieldDonorEmail]),
		DonorImage: documentString(doc[fieldDonorImage]),
		FoodStatus: model.FoodStatus(documentString(doc[fieldFoodStatus])),
	}
	if t, ok := documentTime(doc[fieldExpireAt]); ok {
		food.ExpireAt = &t
	}
	if t, ok := documentTime(doc[fieldCreatedAt]); ok {
		food.CreatedAt = t
	}

	for k, v := range doc {
		if knownFoodFields[k] {
			continue
		}
		if food.Extra == nil {
			food.Extra = map[string]any{}
		}
		food.Extra[k] = v
	}
	return food
}

// idFilter はIDで1件を指定する検索条件を返す。
// 旧データの_idはObjectIDのため、16進文字列として解釈できるIDは両方の型で照合する。
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{fieldID: bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{fieldID: id}
}

// documentString はドキュメントの値を文字列として取り出す。
// 旧データのObjectIDは16進文字列に変換する。
func documentString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case primitive.ObjectID:
		return s.Hex()
	default:
		return ""
	}
}

// documentTime はドキュメントの日時値を取り出す。
func documentTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC(), true
	case time.Time:
		return t.UTC(), true
	default:
		return time.Time{}, false
	}
}

// compile-time interface check
var _ FoodRepository = (*MongoFoodRepo)(nil)
