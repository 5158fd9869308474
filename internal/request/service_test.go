package request

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/foodshare/internal/model"
	"github.com/hitoshi/foodshare/internal/repository"
)

// mockRequestRepo はテスト用のRequestRepositoryモック。
type mockRequestRepo struct {
	createFn func(ctx context.Context, req *model.Request) error
	listFn   func(ctx context.Context, email string) ([]*model.Request, error)
}

func (m *mockRequestRepo) Create(ctx context.Context, req *model.Request) error {
	return m.createFn(ctx, req)
}

func (m *mockRequestRepo) ListByUserEmail(ctx context.Context, email string) ([]*model.Request, error) {
	return m.listFn(ctx, email)
}

func TestCreate_StoresPayloadVerbatim(t *testing.T) {
	repo := repository.NewMemoryRequestRepo()
	svc := NewService(repo)
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	payload := map[string]any{
		"foodId":          "0b7e2a52-1a7d-4f2c-9d7c-3a4a7d0f2f10",
		"userEmail":       "karim@example.com",
		"additionalNotes": "After 6pm please",
		"donationMoney":   50.0,
		"_id":             "client-chosen",
		"createdAt":       "1999-01-01",
	}

	id, err := svc.Create(ctx, payload)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("id %q is not a UUID", id)
	}

	reqs, _ := repo.ListByUserEmail(ctx, "karim@example.com")
	if len(reqs) != 1 {
		t.Fatalf("count = %d, want 1", len(reqs))
	}
	got := reqs[0]
	if got.ID != id {
		t.Errorf("ID = %q, want %q", got.ID, id)
	}
	if !got.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want server time %v", got.CreatedAt, fixed)
	}
	if got.Payload["additionalNotes"] != "After 6pm please" || got.Payload["donationMoney"] != 50.0 {
		t.Errorf("payload = %v", got.Payload)
	}
	if _, ok := got.Payload["_id"]; ok {
		t.Error("client supplied _id should not be stored in payload")
	}
}

func TestCreate_NilPayload(t *testing.T) {
	repo := repository.NewMemoryRequestRepo()
	svc := NewService(repo)

	if _, err := svc.Create(context.Background(), nil); err != nil {
		t.Fatalf("Create(nil) returned error: %v", err)
	}
}

func TestCreate_NonStringEmailIsNotIndexed(t *testing.T) {
	var stored *model.Request
	svc := NewService(&mockRequestRepo{
		createFn: func(_ context.Context, req *model.Request) error {
			stored = req
			return nil
		},
	})

	if _, err := svc.Create(context.Background(), map[string]any{"userEmail": 123}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if stored.UserEmail != "" {
		t.Errorf("UserEmail = %q, want empty", stored.UserEmail)
	}
	if stored.Payload["userEmail"] != 123 {
		t.Errorf("payload userEmail = %v, want preserved", stored.Payload["userEmail"])
	}
}

func TestCreate_StoreError(t *testing.T) {
	storeErr := errors.New("insert failed")
	svc := NewService(&mockRequestRepo{
		createFn: func(context.Context, *model.Request) error { return storeErr },
	})

	_, err := svc.Create(context.Background(), map[string]any{"userEmail": "a@example.com"})
	if !errors.Is(err, storeErr) {
		t.Errorf("error = %v, want wrapped store error", err)
	}
}

func TestListByEmail_NewestFirst(t *testing.T) {
	repo := repository.NewMemoryRequestRepo()
	svc := NewService(repo)
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	first, _ := svc.Create(ctx, map[string]any{"userEmail": "a@example.com"})
	now = now.Add(time.Minute)
	svc.Create(ctx, map[string]any{"userEmail": "b@example.com"})
	now = now.Add(time.Minute)
	third, _ := svc.Create(ctx, map[string]any{"userEmail": "a@example.com"})

	reqs, err := svc.ListByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("ListByEmail returned error: %v", err)
	}
	if len(reqs) != 2 || reqs[0].ID != third || reqs[1].ID != first {
		t.Errorf("requests = %v, want [%s %s]", reqs, third, first)
	}
}

func TestListByEmail_RequiresEmail(t *testing.T) {
	svc := NewService(&mockRequestRepo{
		listFn: func(context.Context, string) ([]*model.Request, error) {
			t.Fatal("store should not be queried without an email")
			return nil, nil
		},
	})

	_, err := svc.ListByEmail(context.Background(), "")
	if !model.IsValidation(err) {
		t.Errorf("error = %v, want validation error", err)
	}
}

func TestCreate_LogsToInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	svc := NewService(repository.NewMemoryRequestRepo(), WithLogger(logger))

	id, err := svc.Create(context.Background(), map[string]any{"userEmail": "karim@example.com"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"request_id":"`+id+`"`) {
		t.Errorf("log should contain request_id %s, got %s", id, out)
	}
	if !strings.Contains(out, `"user_email":"karim@example.com"`) {
		t.Errorf("log should contain user_email, got %s", out)
	}
}
