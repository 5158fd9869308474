package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/hitoshi/foodshare/internal/model"
)

// TestMongoRepos_ImplementInterfaces はMongoDB実装がインターフェースを満たすことを検証する。
func TestMongoRepos_ImplementInterfaces(t *testing.T) {
	var _ FoodRepository = (*MongoFoodRepo)(nil)
	var _ RequestRepository = (*MongoRequestRepo)(nil)
}

// setupMongo はテスト用データベースを空にして返す。
// TEST_MONGODB_URI のサーバーに接続できない場合はスキップする。
func setupMongo(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("MongoDBクライアントの生成に失敗: %v", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		t.Skipf("テスト用MongoDBに接続できません（スキップ）: %v", err)
	}

	db := client.Database("foodshare_test")
	if err := db.Drop(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		t.Fatalf("クリーンアップに失敗: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return db
}

func TestMongoFoodRepo_CreateAndFind(t *testing.T) {
	db := setupMongo(t)
	repo := NewMongoFoodRepo(db)
	ctx := context.Background()
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes returned error: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	food := newTestFood(uuid.NewString(), "Brown Rice", 4.0, now)
	food.Extra = map[string]any{"pickupWindow": "evenings"}
	if err := repo.Create(ctx, food); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	got, err := repo.FindByID(ctx, food.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected food to be found")
	}
	if got.FoodName != "Brown Rice" || got.FoodStatus != model.FoodStatusAvailable {
		t.Errorf("got %+v", got)
	}
	if got.Extra["pickupWindow"] != "evenings" {
		t.Errorf("Extra = %v, want pickupWindow preserved", got.Extra)
	}
	if got.ExpireAt == nil || !got.ExpireAt.Equal(*food.ExpireAt) {
		t.Errorf("ExpireAt = %v, want %v", got.ExpireAt, food.ExpireAt)
	}

	missing, err := repo.FindByID(ctx, uuid.NewString())
	if err != nil || missing != nil {
		t.Errorf("FindByID(missing) = (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestMongoFoodRepo_ListFeatured_NormalizesInAggregation(t *testing.T) {
	db := setupMongo(t)
	repo := NewMongoFoodRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	inputs := []struct {
		name string
		qty  any
	}{
		{"Rice", "2 kg"},
		{"Bread", 5.0},
		{"Milk", "12"},
		{"Eggs", "3.5"},
		{"Soup", nil},
		{"Flour", "1e3"},
		{"Juice", "NaN"},
		{"Salt", "Infinity"},
	}
	for _, in := range inputs {
		if err := repo.Create(ctx, newTestFood(uuid.NewString(), in.name, in.qty, now)); err != nil {
			t.Fatalf("Create(%s) returned error: %v", in.name, err)
		}
	}

	featured, err := repo.ListFeatured(ctx, 3)
	if err != nil {
		t.Fatalf("ListFeatured returned error: %v", err)
	}
	want := []string{"Milk", "Bread", "Eggs"}
	if len(featured) != len(want) {
		t.Fatalf("featured count = %d, want %d", len(featured), len(want))
	}
	for i, name := range want {
		if featured[i].FoodName != name {
			t.Errorf("featured[%d] = %q, want %q", i, featured[i].FoodName, name)
		}
	}
	if featured[0].Quantity != "12" {
		t.Errorf("original quantity should be preserved, got %v", featured[0].Quantity)
	}
}

func TestMongoFoodRepo_StatusUpdateAndDelete(t *testing.T) {
	db := setupMongo(t)
	repo := NewMongoFoodRepo(db)
	ctx := context.Background()

	food := newTestFood(uuid.NewString(), "Bread", 2.0, time.Now().UTC())
	if err := repo.Create(ctx, food); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if modified, err := repo.MarkRequested(ctx, food.ID); err != nil || !modified {
		t.Fatalf("first MarkRequested = (%v, %v), want (true, nil)", modified, err)
	}
	if modified, err := repo.MarkRequested(ctx, food.ID); err != nil || modified {
		t.Errorf("second MarkRequested = (%v, %v), want (false, nil)", modified, err)
	}

	available, err := repo.ListAvailable(ctx, model.AvailableFilter{})
	if err != nil {
		t.Fatalf("ListAvailable returned error: %v", err)
	}
	if len(available) != 0 {
		t.Errorf("requested food should not be listed as available, got %d", len(available))
	}

	// 値が変わらない更新も一致すれば成功とみなす
	name := "Bread"
	matched, err := repo.Update(ctx, food.ID, &model.FoodPatch{FoodName: &name})
	if err != nil || !matched {
		t.Errorf("Update(same value) = (%v, %v), want (true, nil)", matched, err)
	}
	matched, err = repo.Update(ctx, uuid.NewString(), &model.FoodPatch{FoodName: &name})
	if err != nil || matched {
		t.Errorf("Update(missing) = (%v, %v), want (false, nil)", matched, err)
	}

	deleted, err := repo.Delete(ctx, food.ID)
	if err != nil || !deleted {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", deleted, err)
	}
	deleted, _ = repo.Delete(ctx, food.ID)
	if deleted {
		t.Error("second Delete should report nothing deleted")
	}
}

func TestMongoFoodRepo_LegacyExpireAt(t *testing.T) {
	db := setupMongo(t)
	repo := NewMongoFoodRepo(db)
	ctx := context.Background()

	id := uuid.NewString()
	_, err := db.Collection(FoodsCollection).InsertOne(ctx, bson.M{
		"_id":        id,
		"foodName":   "Lentils",
		"quantity":   "3",
		"location":   "Dhaka",
		"expireAt":   "2024-05-01",
		"foodStatus": string(model.FoodStatusAvailable),
	})
	if err != nil {
		t.Fatalf("InsertOne returned error: %v", err)
	}

	got, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if got.ExpireAt != nil {
		t.Errorf("textual expireAt should read as nil, got %v", got.ExpireAt)
	}

	legacy, err := repo.ListLegacyExpireAt(ctx)
	if err != nil {
		t.Fatalf("ListLegacyExpireAt returned error: %v", err)
	}
	if len(legacy) != 1 || legacy[0].ID != id || legacy[0].Raw != "2024-05-01" {
		t.Fatalf("legacy = %+v", legacy)
	}

	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.SetExpireAt(ctx, id, at); err != nil {
		t.Fatalf("SetExpireAt returned error: %v", err)
	}
	legacy, _ = repo.ListLegacyExpireAt(ctx)
	if len(legacy) != 0 {
		t.Errorf("legacy after fix = %d, want 0", len(legacy))
	}
}

func TestMongoFoodRepo_LegacyExpireAt_ObjectID(t *testing.T) {
	db := setupMongo(t)
	repo := NewMongoFoodRepo(db)
	ctx := context.Background()

	oid := primitive.NewObjectID()
	_, err := db.Collection(FoodsCollection).InsertOne(ctx, bson.M{
		"_id":        oid,
		"foodName":   "Beans",
		"quantity":   "1",
		"expireAt":   "2024-06-01",
		"foodStatus": string(model.FoodStatusAvailable),
	})
	if err != nil {
		t.Fatalf("InsertOne returned error: %v", err)
	}

	legacy, err := repo.ListLegacyExpireAt(ctx)
	if err != nil {
		t.Fatalf("ListLegacyExpireAt returned error: %v", err)
	}
	if len(legacy) != 1 || legacy[0].ID != oid.Hex() {
		t.Fatalf("legacy = %+v, want id %s", legacy, oid.Hex())
	}

	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.SetExpireAt(ctx, legacy[0].ID, at); err != nil {
		t.Fatalf("SetExpireAt returned error: %v", err)
	}

	var doc bson.M
	if err := db.Collection(FoodsCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		t.Fatalf("FindOne returned error: %v", err)
	}
	if _, ok := doc["expireAt"].(primitive.DateTime); !ok {
		t.Errorf("expireAt should be stored as a date, got %T", doc["expireAt"])
	}
	legacy, _ = repo.ListLegacyExpireAt(ctx)
	if len(legacy) != 0 {
		t.Errorf("legacy after fix = %d, want 0", len(legacy))
	}
}

func TestMongoFoodRepo_SetExpireAt_UnknownID(t *testing.T) {
	db := setupMongo(t)
	repo := NewMongoFoodRepo(db)

	err := repo.SetExpireAt(context.Background(), primitive.NewObjectID().Hex(), time.Now().UTC())
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("SetExpireAt error = %v, want ErrRecordNotFound", err)
	}
}

func TestMongoRequestRepo_CreateAndList(t *testing.T) {
	db := setupMongo(t)
	repo := NewMongoRequestRepo(db)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, email := range []string{"a@example.com", "b@example.com", "a@example.com"} {
		err := repo.Create(ctx, &model.Request{
			ID:        uuid.NewString(),
			UserEmail: email,
			Payload:   map[string]any{"userEmail": email, "foodName": "Rice", "seq": int32(i)},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	requests, err := repo.ListByUserEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("ListByUserEmail returned error: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("count = %d, want 2", len(requests))
	}
	if requests[0].Payload["seq"] != int32(2) {
		t.Errorf("first seq = %v, want newest first", requests[0].Payload["seq"])
	}
	if requests[0].UserEmail != "a@example.com" {
		t.Errorf("UserEmail = %q", requests[0].UserEmail)
	}
}
