package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hitoshi/foodshare/internal/model"
)

// MongoRequestRepo はMongoDBを使用したリクエストリポジトリ。
// ペイロードはドキュメントのトップレベルにそのまま保存する。
type MongoRequestRepo struct {
	coll *mongo.Collection
}

// NewMongoRequestRepo はMongoRequestRepoを生成する。
func NewMongoRequestRepo(db *mongo.Database) *MongoRequestRepo {
	return &MongoRequestRepo{coll: db.Collection(RequestsCollection)}
}

// EnsureIndexes はユーザー別一覧用のインデックスを作成する。冪等。
func (r *MongoRequestRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: fieldUserEmail, Value: 1}, {Key: fieldCreatedAt, Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("requestsコレクションのインデックス作成に失敗しました: %w", err)
	}
	return nil
}

// Create はリクエストを作成する。
func (r *MongoRequestRepo) Create(ctx context.Context, req *model.Request) error {
	doc := bson.M{}
	for k, v := range req.Payload {
		doc[k] = v
	}
	doc[fieldID] = req.ID
	doc[fieldCreatedAt] = req.CreatedAt

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByUserEmail は指定ユーザーのリクエストをcreatedAt降順で返す。
func (r *MongoRequestRepo) ListByUserEmail(ctx context.Context, email string) ([]*model.Request, error) {
	opts := options.Find().SetSort(bson.D{{Key: fieldCreatedAt, Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{fieldUserEmail: email}, opts)
	if err != nil {
		return nil, fmt.Errorf("リクエスト一覧の取得に失敗しました: %w", err)
	}
	defer cursor.Close(ctx)

	requests := []*model.Request{}
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("リクエストの読み取りに失敗しました: %w", err)
		}

		req := &model.Request{
			ID:        documentString(doc[fieldID]),
			UserEmail: documentString(doc[fieldUserEmail]),
			Payload:   map[string]any{},
		}
		if t, ok := documentTime(doc[fieldCreatedAt]); ok {
			req.CreatedAt = t
		}
		for k, v := range doc {
			if k == fieldID || k == fieldCreatedAt {
				continue
			}
			req.Payload[k] = v
		}
		requests = append(requests, req)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("リクエスト一覧の走査に失敗しました: %w", err)
	}
	return requests, nil
}

// compile-time interface check
var _ RequestRepository = (*MongoRequestRepo)(nil)
