package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func ptrF(v float64) *float64 { return &v }
func ptrS(v string) *string   { return &v }

func seedStore() *FixtureStore {
	s := NewFixtureStore()
	s.AddProduct(ProductRecord{ID: "p1", Name: "Gravel Tires", Price: 59.90, CategoryID: "cycling", Location: "Athens", Active: true, InStock: true})
	s.AddProduct(ProductRecord{ID: "p2", Name: "Helmet", Price: 120, CategoryID: "cycling", Location: "Berlin", Active: true, InStock: true})
	s.AddProduct(ProductRecord{ID: "p3", Name: "Retired SKU", Price: 10, CategoryID: "cycling", Active: false})
	s.AddProduct(ProductRecord{ID: "p4", Name: "Espresso Beans", Price: 14.50, CategoryID: "grocery", Location: "Athens", Active: true, InStock: true})
	return s
}

func TestFixtureStore_Products_Filters(t *testing.T) {
	s := seedStore()
	ctx := context.Background()

	t.Run("no filter excludes inactive", func(t *testing.T) {
		got, err := s.Products(ctx, ProductFilter{})
		if err != nil {
			t.Fatalf("Products: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("got %d products, want 3", len(got))
		}
		// Sorted by id for determinism.
		if got[0].ID != "p1" || got[1].ID != "p2" || got[2].ID != "p4" {
			t.Fatalf("unexpected order: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
		}
	})

	t.Run("category filter", func(t *testing.T) {
		got, err := s.Products(ctx, ProductFilter{Categories: []string{"grocery"}})
		if err != nil || len(got) != 1 || got[0].ID != "p4" {
			t.Fatalf("got %v err=%v, want [p4]", got, err)
		}
	})

	t.Run("price band", func(t *testing.T) {
		got, err := s.Products(ctx, ProductFilter{PriceMin: ptrF(50), PriceMax: ptrF(100)})
		if err != nil || len(got) != 1 || got[0].ID != "p1" {
			t.Fatalf("got %v err=%v, want [p1]", got, err)
		}
	})

	t.Run("location substring case-insensitive", func(t *testing.T) {
		got, err := s.Products(ctx, ProductFilter{Location: "ath"})
		if err != nil || len(got) != 2 {
			t.Fatalf("got %d err=%v, want 2", len(got), err)
		}
	})

	t.Run("limit caps results", func(t *testing.T) {
		got, err := s.Products(ctx, ProductFilter{Limit: 1})
		if err != nil || len(got) != 1 {
			t.Fatalf("got %d err=%v, want 1", len(got), err)
		}
	})
}

func TestFixtureStore_Product(t *testing.T) {
	s := seedStore()
	ctx := context.Background()

	p, err := s.Product(ctx, "p1")
	if err != nil || p.Name != "Gravel Tires" {
		t.Fatalf("Product(p1) = %v, %v", p, err)
	}
	if _, err := s.Product(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing product: %v", err)
	}
	// Inactive products are invisible.
	if _, err := s.Product(ctx, "p3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("inactive product: %v", err)
	}
}

func TestFixtureStore_CategoriesAndCounts(t *testing.T) {
	s := seedStore()
	s.AddCategory(CategoryRecord{ID: "cycling", Name: "Cycling", Active: true})
	s.AddCategory(CategoryRecord{ID: "grocery", Name: "Grocery", Active: true})
	s.AddCategory(CategoryRecord{ID: "hidden", Name: "Hidden", Active: false})
	ctx := context.Background()

	cats, err := s.Categories(ctx)
	if err != nil || len(cats) != 2 {
		t.Fatalf("Categories = %d, %v; want 2", len(cats), err)
	}
	n, err := s.CountProducts(ctx, "cycling")
	if err != nil || n != 2 {
		t.Fatalf("CountProducts(cycling) = %d, %v; want 2 (inactive excluded)", n, err)
	}
}

func TestFixtureStore_Stores(t *testing.T) {
	s := NewFixtureStore()
	s.AddStore(StoreRecord{ID: "s1", Name: "Velo Hub", Rating: 4.8, Active: true})
	s.AddStore(StoreRecord{ID: "s2", Name: "Closed", Active: false})
	ctx := context.Background()

	all, err := s.Stores(ctx)
	if err != nil || len(all) != 1 || all[0].ID != "s1" {
		t.Fatalf("Stores = %v, %v", all, err)
	}
	if _, err := s.Store(ctx, "s2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("inactive store: %v", err)
	}
}

func TestFixtureStore_Promotion_CaseInsensitive(t *testing.T) {
	s := NewFixtureStore()
	s.AddPromotion(PromotionRecord{Code: "SPRING25", Title: "Spring Sale", Active: true})
	ctx := context.Background()

	p, err := s.Promotion(ctx, "spring25")
	if err != nil || p.Title != "Spring Sale" {
		t.Fatalf("Promotion = %v, %v", p, err)
	}
	if _, err := s.Promotion(ctx, "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing promotion: %v", err)
	}
}

func TestPromotionRecord_Live(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name string
		p    PromotionRecord
		want bool
	}{
		{"inactive", PromotionRecord{Active: false}, false},
		{"no window", PromotionRecord{Active: true}, true},
		{"inside window", PromotionRecord{Active: true, StartsAt: &past, EndsAt: &future}, true},
		{"not started", PromotionRecord{Active: true, StartsAt: &future}, false},
		{"ended", PromotionRecord{Active: true, EndsAt: &past}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.Live(now); got != tc.want {
				t.Fatalf("Live = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFixtureStore_Identity(t *testing.T) {
	s := NewFixtureStore()
	placed := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.AddIdentity(
		Profile{ID: "u-1", Name: "Dina", Email: "dina@example.com"},
		[]OrderRecord{
			{ID: "o1", OwnerID: "u-1", Status: "delivered", PlacedAt: placed},
			{ID: "o2", OwnerID: "u-1", Status: "shipped", PlacedAt: placed.Add(time.Hour)},
			{ID: "o3", OwnerID: "u-1", Status: "pending", PlacedAt: placed.Add(2 * time.Hour)},
		},
		[]AddressRecord{
			{ID: "a1", Label: "Home", City: "Athens", Active: true},
			{ID: "a2", Label: "Old", City: "Patras", Active: false},
		},
		[]string{"p1", "p2"},
	)
	ctx := context.Background()

	t.Run("profile copy is isolated", func(t *testing.T) {
		p, err := s.Profile(ctx, "u-1")
		if err != nil || p.Name != "Dina" {
			t.Fatalf("Profile = %v, %v", p, err)
		}
		if _, err := s.Profile(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("missing profile: %v", err)
		}
	})

	t.Run("orders newest first with limit", func(t *testing.T) {
		orders, err := s.Orders(ctx, "u-1", 2)
		if err != nil || len(orders) != 2 {
			t.Fatalf("Orders = %d, %v; want 2", len(orders), err)
		}
		if orders[0].ID != "o3" || orders[1].ID != "o2" {
			t.Fatalf("order = %s, %s; want o3, o2", orders[0].ID, orders[1].ID)
		}
	})

	t.Run("single order lookup scoped to owner", func(t *testing.T) {
		o, err := s.Order(ctx, "u-1", "o1")
		if err != nil || o.Status != "delivered" {
			t.Fatalf("Order = %v, %v", o, err)
		}
		if _, err := s.Order(ctx, "other", "o1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("cross-owner order must be invisible: %v", err)
		}
	})

	t.Run("addresses filter inactive", func(t *testing.T) {
		addrs, err := s.Addresses(ctx, "u-1")
		if err != nil || len(addrs) != 1 || addrs[0].ID != "a1" {
			t.Fatalf("Addresses = %v, %v", addrs, err)
		}
	})

	t.Run("wishlist insertion order", func(t *testing.T) {
		wl, err := s.Wishlist(ctx, "u-1")
		if err != nil || len(wl) != 2 || wl[0] != "p1" {
			t.Fatalf("Wishlist = %v, %v", wl, err)
		}
	})
}

func TestFixtureStore_Writer_Idempotence(t *testing.T) {
	s := NewFixtureStore()
	s.AddIdentity(Profile{ID: "u-1", Name: "Dina"}, nil, nil, nil)
	ctx := context.Background()

	t.Run("wishlist add twice keeps one entry", func(t *testing.T) {
		if err := s.WishlistAdd(ctx, "u-1", "p1"); err != nil {
			t.Fatalf("WishlistAdd: %v", err)
		}
		if err := s.WishlistAdd(ctx, "u-1", "p1"); err != nil {
			t.Fatalf("WishlistAdd replay: %v", err)
		}
		wl, _ := s.Wishlist(ctx, "u-1")
		if len(wl) != 1 {
			t.Fatalf("wishlist = %v, want one entry", wl)
		}
	})

	t.Run("wishlist remove absent is a no-op", func(t *testing.T) {
		if err := s.WishlistRemove(ctx, "u-1", "never-added"); err != nil {
			t.Fatalf("WishlistRemove: %v", err)
		}
		if err := s.WishlistRemove(ctx, "u-1", "p1"); err != nil {
			t.Fatalf("WishlistRemove: %v", err)
		}
		if s.Wishlisted("u-1", "p1") {
			t.Fatalf("p1 should be removed")
		}
	})

	t.Run("cart set and zero removes", func(t *testing.T) {
		if err := s.CartSet(ctx, "u-1", "p2", 3); err != nil {
			t.Fatalf("CartSet: %v", err)
		}
		if q := s.CartQuantity("u-1", "p2"); q != 3 {
			t.Fatalf("quantity = %d, want 3", q)
		}
		// Same write again lands in the same state.
		if err := s.CartSet(ctx, "u-1", "p2", 3); err != nil {
			t.Fatalf("CartSet replay: %v", err)
		}
		if q := s.CartQuantity("u-1", "p2"); q != 3 {
			t.Fatalf("quantity after replay = %d, want 3", q)
		}
		if err := s.CartSet(ctx, "u-1", "p2", 0); err != nil {
			t.Fatalf("CartSet zero: %v", err)
		}
		if q := s.CartQuantity("u-1", "p2"); q != 0 {
			t.Fatalf("quantity = %d, want line removed", q)
		}
	})

	t.Run("profile patch touches only set fields", func(t *testing.T) {
		err := s.ProfilePatch(ctx, "u-1", ProfilePatch{
			Phone:       ptrS("+301234567"),
			Preferences: map[string]string{"lang": "el"},
		})
		if err != nil {
			t.Fatalf("ProfilePatch: %v", err)
		}
		p, _ := s.Profile(ctx, "u-1")
		if p.Name != "Dina" || p.Phone != "+301234567" || p.Preferences["lang"] != "el" {
			t.Fatalf("patched profile = %+v", p)
		}
		if err := s.ProfilePatch(ctx, "ghost", ProfilePatch{}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("patch on missing profile: %v", err)
		}
	})

	t.Run("address upsert replaces by id", func(t *testing.T) {
		if err := s.AddressUpsert(ctx, "u-1", AddressRecord{ID: "a1", Label: "Home", City: "Athens"}); err != nil {
			t.Fatalf("AddressUpsert: %v", err)
		}
		if err := s.AddressUpsert(ctx, "u-1", AddressRecord{ID: "a1", Label: "Home", City: "Thessaloniki"}); err != nil {
			t.Fatalf("AddressUpsert replace: %v", err)
		}
		addrs, _ := s.Addresses(ctx, "u-1")
		if len(addrs) != 1 || addrs[0].City != "Thessaloniki" {
			t.Fatalf("addresses = %v, want single replaced entry", addrs)
		}
	})
}

func TestLoadFixture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.json")
	seed := `{
		"products": [{"id": "p1", "name": "Tires", "price": 59.9, "active": true, "in_stock": true}],
		"categories": [{"id": "c1", "name": "Cycling", "active": true}],
		"promotions": [{"code": "spring25", "title": "Spring", "active": true}],
		"identities": [{
			"profile": {"id": "u-1", "name": "Dina"},
			"wishlist": ["p1"],
			"cart": {"p1": 2}
		}]
	}`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	s, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	ctx := context.Background()
	if _, err := s.Product(ctx, "p1"); err != nil {
		t.Fatalf("seeded product: %v", err)
	}
	// Codes are normalized on load.
	if _, err := s.Promotion(ctx, "SPRING25"); err != nil {
		t.Fatalf("seeded promotion: %v", err)
	}
	if !s.Wishlisted("u-1", "p1") {
		t.Fatalf("seeded wishlist missing p1")
	}
	if q := s.CartQuantity("u-1", "p1"); q != 2 {
		t.Fatalf("seeded cart quantity = %d, want 2", q)
	}

	if _, err := LoadFixture(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte("{"), 0o600)
	if _, err := LoadFixture(bad); err == nil {
		t.Fatalf("expected error for malformed json")
	}
}
