package repo

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-commerce-edge/internal/domain"
)

// seedLink inserts a link row for click tests to hang events off.
func seedLink(t *testing.T, db *gorm.DB, code string) *domain.ShortLink {
	t.Helper()
	l, err := CreateLink(context.Background(), db, &domain.ShortLink{
		Code: code, TargetType: "product", TargetKey: "p1",
		NativeURI: "shopapp://product/p1", SchemaVer: 1,
	})
	if err != nil {
		t.Fatalf("seed link: %v", err)
	}
	return l
}

func TestAppendClick_DefaultsAndInsert(t *testing.T) {
	db := newTestDB(t, "clicks_append")
	ctx := context.Background()
	link := seedLink(t, db, "clk001")

	ev := &domain.ClickEvent{LinkID: link.ID, Platform: "ios", UserAgent: "test", IP: "10.0.0.1"}
	if err := AppendClick(ctx, db, ev); err != nil {
		t.Fatalf("AppendClick: %v", err)
	}
	if ev.ID == "" || ev.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be stamped: %+v", ev)
	}

	total, err := CountClicks(ctx, db, link.ID, time.Now().UTC().Add(-time.Minute))
	if err != nil || total != 1 {
		t.Fatalf("CountClicks = %d, %v; want 1", total, err)
	}
}

func TestClickAggregations(t *testing.T) {
	db := newTestDB(t, "clicks_agg")
	ctx := context.Background()
	link := seedLink(t, db, "agg001")
	other := seedLink(t, db, "agg002")

	now := time.Now().UTC()
	rows := []domain.ClickEvent{
		{LinkID: link.ID, Platform: "ios", Country: "GR", CreatedAt: now.Add(-2 * time.Minute)},
		{LinkID: link.ID, Platform: "ios", Country: "GR", CreatedAt: now.Add(-time.Minute)},
		{LinkID: link.ID, Platform: "android", Country: "DE", CreatedAt: now},
		{LinkID: link.ID, Platform: "other", Country: "", CreatedAt: now},
		// Outside the window and on another link; both must be excluded.
		{LinkID: link.ID, Platform: "ios", Country: "GR", CreatedAt: now.Add(-48 * time.Hour)},
		{LinkID: other.ID, Platform: "ios", Country: "GR", CreatedAt: now},
	}
	for i := range rows {
		if err := AppendClick(ctx, db, &rows[i]); err != nil {
			t.Fatalf("AppendClick %d: %v", i, err)
		}
	}
	since := now.Add(-24 * time.Hour)

	t.Run("count", func(t *testing.T) {
		total, err := CountClicks(ctx, db, link.ID, since)
		if err != nil || total != 4 {
			t.Fatalf("CountClicks = %d, %v; want 4", total, err)
		}
	})

	t.Run("by day", func(t *testing.T) {
		days, err := ClicksByDay(ctx, db, link.ID, since)
		if err != nil {
			t.Fatalf("ClicksByDay: %v", err)
		}
		var total int64
		for _, d := range days {
			if d.Day == "" {
				t.Fatalf("empty day bucket: %+v", days)
			}
			total += d.Clicks
		}
		if total != 4 {
			t.Fatalf("day buckets sum to %d, want 4: %+v", total, days)
		}
	})

	t.Run("by platform", func(t *testing.T) {
		plats, err := ClicksByPlatform(ctx, db, link.ID, since)
		if err != nil {
			t.Fatalf("ClicksByPlatform: %v", err)
		}
		got := map[string]int64{}
		for _, p := range plats {
			got[p.Value] = p.Clicks
		}
		if got["ios"] != 2 || got["android"] != 1 || got["other"] != 1 {
			t.Fatalf("platform buckets = %v", got)
		}
		// Ordered by volume descending.
		if plats[0].Value != "ios" {
			t.Fatalf("top platform = %q, want ios", plats[0].Value)
		}
	})

	t.Run("by country skips empty", func(t *testing.T) {
		countries, err := ClicksByCountry(ctx, db, link.ID, since)
		if err != nil {
			t.Fatalf("ClicksByCountry: %v", err)
		}
		got := map[string]int64{}
		for _, c := range countries {
			got[c.Value] = c.Clicks
		}
		if len(got) != 2 || got["GR"] != 2 || got["DE"] != 1 {
			t.Fatalf("country buckets = %v", got)
		}
	})

	t.Run("no data yields empty buckets", func(t *testing.T) {
		days, err := ClicksByDay(ctx, db, "ghost", since)
		if err != nil || len(days) != 0 {
			t.Fatalf("ClicksByDay(ghost) = %v, %v; want empty", days, err)
		}
	})
}
