package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-commerce-edge/internal/domain"
	"github.com/tbourn/go-commerce-edge/internal/repo"
)

func TestAggregate(t *testing.T) {
	db := newTestDB(t, "analytics")
	svc := NewAnalyticsService(db)
	ctx := context.Background()

	link, err := repo.CreateLink(ctx, db, &domain.ShortLink{
		Code: "ana001", TargetType: "product", TargetKey: "p1",
		NativeURI: "shopapp://product/p1", SchemaVer: 1,
	})
	if err != nil {
		t.Fatalf("seed link: %v", err)
	}

	now := time.Now().UTC()
	seed := []domain.ClickEvent{
		{LinkID: link.ID, Platform: "ios", Country: "GR", CreatedAt: now.Add(-time.Hour)},
		{LinkID: link.ID, Platform: "ios", Country: "GR", CreatedAt: now.Add(-2 * time.Hour)},
		{LinkID: link.ID, Platform: "android", Country: "DE", CreatedAt: now.Add(-25 * time.Hour)},
		{LinkID: link.ID, Platform: "other", Country: "", CreatedAt: now.Add(-40 * 24 * time.Hour)},
	}
	for i := range seed {
		if err := repo.AppendClick(ctx, db, &seed[i]); err != nil {
			t.Fatalf("seed click %d: %v", i, err)
		}
	}

	t.Run("default window", func(t *testing.T) {
		rep, err := svc.Aggregate(ctx, link.ID, 0)
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
		if rep.WindowDays != DefaultWindowDays {
			t.Fatalf("window = %d, want %d", rep.WindowDays, DefaultWindowDays)
		}
		// The 40-day-old click falls outside the default window.
		if rep.TotalClicks != 3 {
			t.Fatalf("total = %d, want 3", rep.TotalClicks)
		}
		plats := map[string]int64{}
		for _, b := range rep.ByPlatform {
			plats[b.Value] = b.Clicks
		}
		if plats["ios"] != 2 || plats["android"] != 1 {
			t.Fatalf("platform buckets = %v", plats)
		}
		countries := map[string]int64{}
		for _, b := range rep.ByCountry {
			countries[b.Value] = b.Clicks
		}
		if len(countries) != 2 || countries["GR"] != 2 || countries["DE"] != 1 {
			t.Fatalf("country buckets = %v", countries)
		}
		if len(rep.ByDay) == 0 {
			t.Fatalf("expected day buckets")
		}
	})

	t.Run("oversized window clamps to the cap", func(t *testing.T) {
		rep, err := svc.Aggregate(ctx, link.ID, 5000)
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
		if rep.WindowDays != MaxWindowDays {
			t.Fatalf("window = %d, want %d", rep.WindowDays, MaxWindowDays)
		}
		if rep.TotalClicks != 4 {
			t.Fatalf("total = %d, want 4 inside a year", rep.TotalClicks)
		}
	})

	t.Run("narrow window excludes older clicks", func(t *testing.T) {
		rep, err := svc.Aggregate(ctx, link.ID, 1)
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
		if rep.TotalClicks != 2 {
			t.Fatalf("total = %d, want 2 inside one day", rep.TotalClicks)
		}
	})
}

func TestAggregate_NoClicks(t *testing.T) {
	db := newTestDB(t, "analytics_empty")
	svc := NewAnalyticsService(db)
	ctx := context.Background()

	link, err := repo.CreateLink(ctx, db, &domain.ShortLink{
		Code: "ana002", TargetType: "store", TargetKey: "s1",
		NativeURI: "shopapp://store/s1", SchemaVer: 1,
	})
	if err != nil {
		t.Fatalf("seed link: %v", err)
	}

	rep, err := svc.Aggregate(ctx, link.ID, 30)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if rep.TotalClicks != 0 {
		t.Fatalf("total = %d, want 0", rep.TotalClicks)
	}
	// Empty buckets, never nil: the JSON must render as [] not null.
	if rep.ByDay == nil || rep.ByPlatform == nil || rep.ByCountry == nil {
		t.Fatalf("buckets must be empty slices: %+v", rep)
	}
}

func TestAggregate_UnknownLink(t *testing.T) {
	svc := NewAnalyticsService(newTestDB(t, "analytics_missing"))
	if _, err := svc.Aggregate(context.Background(), "ghost", 30); !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}
