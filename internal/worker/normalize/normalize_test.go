package normalize

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/foodshare/internal/model"
	"github.com/hitoshi/foodshare/internal/repository"
)

// mockStore はStoreのモック実装。
type mockStore struct {
	listFn func(ctx context.Context) ([]model.LegacyExpireAt, error)
	setFn  func(ctx context.Context, id string, expireAt time.Time) error

	set map[string]time.Time
}

func (m *mockStore) ListLegacyExpireAt(ctx context.Context) ([]model.LegacyExpireAt, error) {
	return m.listFn(ctx)
}

func (m *mockStore) SetExpireAt(ctx context.Context, id string, expireAt time.Time) error {
	if m.set == nil {
		m.set = make(map[string]time.Time)
	}
	if m.setFn != nil {
		if err := m.setFn(ctx, id, expireAt); err != nil {
			return err
		}
	}
	m.set[id] = expireAt
	return nil
}

// recordingMetrics はRecordLegacyNormalizedの呼び出しを記録する。
type recordingMetrics struct {
	fixed, failed int
	calls         int
}

func (r *recordingMetrics) RecordHTTPStatus(int)                       {}
func (r *recordingMetrics) RecordRequestLatency(string, time.Duration) {}
func (r *recordingMetrics) RecordListingCreated()                      {}
func (r *recordingMetrics) RecordStatusTransition(bool)                {}
func (r *recordingMetrics) RecordFeaturedQuery(int)                    {}
func (r *recordingMetrics) RecordLegacyNormalized(fixed, failed int) {
	r.calls++
	r.fixed += fixed
	r.failed += failed
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestJob_Run_FixesParseableAndCountsFailures(t *testing.T) {
	var buf bytes.Buffer
	store := &mockStore{
		listFn: func(ctx context.Context) ([]model.LegacyExpireAt, error) {
			return []model.LegacyExpireAt{
				{ID: "a", Raw: "2026-11-01T12:00"},
				{ID: "b", Raw: "next tuesday"},
				{ID: "c", Raw: "2026-12-24"},
			}, nil
		},
	}
	m := &recordingMetrics{}
	job := NewJob(store, newTestLogger(&buf), m)

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := Result{Scanned: 3, Fixed: 2, Failed: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if got := store.set["a"]; !got.Equal(time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("a expireAt = %v", got)
	}
	if _, ok := store.set["b"]; ok {
		t.Error("unparseable value should not be written")
	}
	if m.calls != 1 || m.fixed != 2 || m.failed != 1 {
		t.Errorf("metrics = %+v, want one call with fixed=2 failed=1", m)
	}
	if !strings.Contains(buf.String(), `"food_id":"b"`) {
		t.Error("failure for record b should be logged")
	}
}

func TestJob_Run_WriteFailureDoesNotAbort(t *testing.T) {
	var buf bytes.Buffer
	store := &mockStore{
		listFn: func(ctx context.Context) ([]model.LegacyExpireAt, error) {
			return []model.LegacyExpireAt{
				{ID: "a", Raw: "2026-11-01"},
				{ID: "b", Raw: "2026-11-02"},
			}, nil
		},
		setFn: func(ctx context.Context, id string, expireAt time.Time) error {
			if id == "a" {
				return errors.New("write conflict")
			}
			return nil
		},
	}
	job := NewJob(store, newTestLogger(&buf), nil)

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Fixed != 1 || res.Failed != 1 {
		t.Errorf("result = %+v, want fixed=1 failed=1", res)
	}
	if _, ok := store.set["b"]; !ok {
		t.Error("record after a failure should still be processed")
	}
}

func TestJob_Run_ListError(t *testing.T) {
	var buf bytes.Buffer
	store := &mockStore{
		listFn: func(ctx context.Context) ([]model.LegacyExpireAt, error) {
			return nil, errors.New("connection refused")
		},
	}
	job := NewJob(store, newTestLogger(&buf), nil)

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("Run should return the scan error")
	}
	if !strings.Contains(buf.String(), "connection refused") {
		t.Error("scan error should be logged")
	}
}

func TestJob_Run_CancelledContextStops(t *testing.T) {
	var buf bytes.Buffer
	store := &mockStore{
		listFn: func(ctx context.Context) ([]model.LegacyExpireAt, error) {
			return []model.LegacyExpireAt{{ID: "a", Raw: "2026-11-01"}}, nil
		},
	}
	job := NewJob(store, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Fixed != 0 || len(store.set) != 0 {
		t.Errorf("no records should be written after cancellation, got %+v", res)
	}
}

func TestJob_Run_MemoryStore_Idempotent(t *testing.T) {
	var buf bytes.Buffer
	repo := repository.NewMemoryFoodRepo()
	repo.CreateWithRawExpireAt(&model.Food{
		ID:         "11111111-1111-4111-8111-111111111111",
		FoodName:   "Rice",
		Quantity:   "2",
		Location:   "Dhaka",
		DonorName:  "D",
		DonorEmail: "d@example.com",
		FoodStatus: model.FoodStatusAvailable,
	}, "2026-11-01 08:30")

	job := NewJob(repo, newTestLogger(&buf), nil)
	ctx := context.Background()

	first, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	if first.Fixed != 1 {
		t.Fatalf("first run fixed = %d, want 1", first.Fixed)
	}

	food, _ := repo.FindByID(ctx, "11111111-1111-4111-8111-111111111111")
	if food.ExpireAt == nil || !food.ExpireAt.Equal(time.Date(2026, 11, 1, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("expireAt after normalize = %v", food.ExpireAt)
	}

	second, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if second.Scanned != 0 {
		t.Errorf("second run scanned = %d, want 0", second.Scanned)
	}
}

// vanishingStore は一覧取得後に削除されたレコードを含む一覧を返す。
type vanishingStore struct {
	*repository.MemoryFoodRepo
	goneID string
}

func (s vanishingStore) ListLegacyExpireAt(ctx context.Context) ([]model.LegacyExpireAt, error) {
	legacy, err := s.MemoryFoodRepo.ListLegacyExpireAt(ctx)
	if err != nil {
		return nil, err
	}
	return append(legacy, model.LegacyExpireAt{ID: s.goneID, Raw: "2026-11-02"}), nil
}

func TestJob_Run_UnmatchedRecordCountsAsFailed(t *testing.T) {
	var buf bytes.Buffer
	repo := repository.NewMemoryFoodRepo()
	repo.CreateWithRawExpireAt(&model.Food{
		ID:         "22222222-2222-4222-8222-222222222222",
		FoodName:   "Beans",
		Quantity:   "1",
		FoodStatus: model.FoodStatusAvailable,
	}, "2026-11-01")
	m := &recordingMetrics{}
	job := NewJob(vanishingStore{MemoryFoodRepo: repo, goneID: "33333333-3333-4333-8333-333333333333"}, newTestLogger(&buf), m)

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := Result{Scanned: 2, Fixed: 1, Failed: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if m.fixed != 1 || m.failed != 1 {
		t.Errorf("metrics = %+v, want fixed=1 failed=1", m)
	}
	if !strings.Contains(buf.String(), `"food_id":"33333333-3333-4333-8333-333333333333"`) {
		t.Error("unmatched record should be logged")
	}
}
