package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-commerce-edge/internal/catalog"
	"github.com/tbourn/go-commerce-edge/internal/domain"
	"github.com/tbourn/go-commerce-edge/internal/http/middleware"
	"github.com/tbourn/go-commerce-edge/internal/repo"
	"github.com/tbourn/go-commerce-edge/internal/services"
)

type syncStub struct {
	apply func(ctx context.Context, ownerID string, changes []domain.ChangeRecord) ([]domain.SyncOutcome, error)
}

func (s *syncStub) Apply(ctx context.Context, ownerID string, changes []domain.ChangeRecord) ([]domain.SyncOutcome, error) {
	return s.apply(ctx, ownerID, changes)
}

func newSyncRouter(svc SyncService, mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(nil, svc, nil, nil, nil)
	r.POST("/sync", append(mw, h.PostSync)...)
	return r
}

func postSync(r *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sync", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestPostSync_OutcomesAndCounts(t *testing.T) {
	stub := &syncStub{
		apply: func(_ context.Context, ownerID string, changes []domain.ChangeRecord) ([]domain.SyncOutcome, error) {
			if ownerID != "u-42" {
				t.Fatalf("owner = %q", ownerID)
			}
			if len(changes) != 2 || changes[0].ID != "c1" {
				t.Fatalf("changes = %+v", changes)
			}
			return []domain.SyncOutcome{
				{ID: "c1", Success: true},
				{ID: "c2", Error: domain.OutcomeKindNotFound, Message: "product not found"},
			}, nil
		},
	}
	r := newSyncRouter(stub)

	body := `{"changes":[
		{"id":"c1","type":"wishlist_add","payload":{"product_id":"p1"}},
		{"id":"c2","type":"wishlist_add","payload":{"product_id":"ghost"}}
	]}`
	w := postSync(r, body, map[string]string{"X-User-ID": "u-42"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SyncResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Applied != 1 || resp.Failed != 1 || len(resp.Outcomes) != 2 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Outcomes[0].ID != "c1" || resp.Outcomes[1].ID != "c2" {
		t.Fatalf("outcome order changed: %+v", resp.Outcomes)
	}
}

func TestPostSync_Errors(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		r := newSyncRouter(&syncStub{})
		w := postSync(r, `{"changes":`, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
	})

	t.Run("missing changes field", func(t *testing.T) {
		r := newSyncRouter(&syncStub{})
		w := postSync(r, `{}`, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		stub := &syncStub{
			apply: func(_ context.Context, _ string, _ []domain.ChangeRecord) ([]domain.SyncOutcome, error) {
				return nil, services.ErrEmptyBatch
			},
		}
		r := newSyncRouter(stub)
		w := postSync(r, `{"changes":[]}`, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
		var er ErrorResponse
		_ = json.Unmarshal(w.Body.Bytes(), &er)
		if er.Code != ErrCodeBadRequest {
			t.Fatalf("code = %q", er.Code)
		}
	})

	t.Run("service failure", func(t *testing.T) {
		stub := &syncStub{
			apply: func(_ context.Context, _ string, _ []domain.ChangeRecord) ([]domain.SyncOutcome, error) {
				return nil, errors.New("backend down")
			},
		}
		r := newSyncRouter(stub)
		w := postSync(r, `{"changes":[{"id":"c1","type":"cart_update","payload":{}}]}`, nil)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", w.Code)
		}
		var er ErrorResponse
		_ = json.Unmarshal(w.Body.Bytes(), &er)
		if er.Code != ErrCodeSyncFailed {
			t.Fatalf("code = %q", er.Code)
		}
	})
}

func TestPostSync_ReplayHeaderAndReapplication(t *testing.T) {
	applied := 0
	stub := &syncStub{
		apply: func(_ context.Context, _ string, changes []domain.ChangeRecord) ([]domain.SyncOutcome, error) {
			applied++
			return []domain.SyncOutcome{{ID: changes[0].ID, Success: true}}, nil
		},
	}
	lookup := func(_ context.Context, _, _, _ string, _ time.Time) (bool, error) {
		return true, nil
	}
	r := newSyncRouter(stub, middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup))

	body := `{"changes":[{"id":"c1","type":"wishlist_add","payload":{"product_id":"p1"}}]}`
	w := postSync(r, body, map[string]string{"Idempotency-Key": "retry-1"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("missing replay header")
	}
	// Recognized retries are still re-applied; sync converges on its own.
	if applied != 1 {
		t.Fatalf("apply calls = %d, want 1", applied)
	}
}

func TestPostSync_RecordsIdempotencyKey(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:sync_handler_idem?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	fix := catalog.NewFixtureStore()
	fix.AddProduct(catalog.ProductRecord{ID: "p1", Name: "Tires", Active: true})
	fix.AddIdentity(catalog.Profile{ID: "u-42", Name: "Dina"}, nil, nil, nil)

	r := newSyncRouter(services.NewSyncService(db, fix, fix))
	body := `{"changes":[{"id":"c1","type":"wishlist_add","payload":{"product_id":"p1"}}]}`
	w := postSync(r, body, map[string]string{"X-User-ID": "u-42", "Idempotency-Key": "batch-7"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	rec, err := repo.GetIdempotency(context.Background(), db, "u-42", "POST /sync", "batch-7", time.Now().UTC())
	if err != nil {
		t.Fatalf("key not recorded: %v", err)
	}
	if rec.Status != http.StatusOK {
		t.Fatalf("recorded status = %d", rec.Status)
	}
}
