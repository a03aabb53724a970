// Package domain – offline snapshot payload shapes.
//
// Snapshots are reduced, point-in-time projections of catalog and identity
// data, built at cache-rebuild cadence and served to mobile clients for
// offline use. They are stored compressed in the key-value cache, never in
// the relational store.
package domain

import "time"

// SnapshotDomain enumerates the four snapshot kinds the builder produces.
type SnapshotDomain string

const (
	SnapshotProducts   SnapshotDomain = "products"
	SnapshotCategories SnapshotDomain = "categories"
	SnapshotProfile    SnapshotDomain = "profile"
	SnapshotStores     SnapshotDomain = "stores"
)

// ValidSnapshotDomain reports whether d names a known snapshot domain.
func ValidSnapshotDomain(d SnapshotDomain) bool {
	switch d {
	case SnapshotProducts, SnapshotCategories, SnapshotProfile, SnapshotStores:
		return true
	}
	return false
}

// ProductItem is one projected product row inside a products snapshot.
// Description is hard-truncated to a fixed budget; Gallery holds at most
// three image URLs and Thumbnail is always the first source image.
type ProductItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency,omitempty"`
	CategoryID  string   `json:"category_id,omitempty"`
	StoreID     string   `json:"store_id,omitempty"`
	Description string   `json:"description,omitempty"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	Gallery     []string `json:"gallery,omitempty"`
	InStock     bool     `json:"in_stock"`
}

// ProductsSnapshot is the payload cached under (owner, products).
type ProductsSnapshot struct {
	Items    []ProductItem `json:"items"`
	CachedAt time.Time     `json:"cached_at"`
}

// CategoryNode is one category in the assembled tree. Children is populated
// only when the snapshot was built with subcategories enabled.
type CategoryNode struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	ParentID     string          `json:"parent_id,omitempty"`
	ProductCount *int64          `json:"product_count,omitempty"`
	Children     []*CategoryNode `json:"children,omitempty"`
}

// CategoriesSnapshot is the payload cached under (owner, categories).
type CategoriesSnapshot struct {
	Categories []*CategoryNode `json:"categories"`
	CachedAt   time.Time       `json:"cached_at"`
}

// OrderSummary is a compact view of a recent order for the profile snapshot.
type OrderSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Total     float64   `json:"total"`
	ItemCount int       `json:"item_count"`
	PlacedAt  time.Time `json:"placed_at"`
}

// AddressEntry is an active saved address. The profile snapshot is the only
// snapshot type that carries addresses.
type AddressEntry struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Street  string `json:"street"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// WishlistItem is a capped wishlist preview entry (first image only).
type WishlistItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
}

// ProfileSnapshot is the payload cached under (owner, profile).
type ProfileSnapshot struct {
	Name         string            `json:"name"`
	Email        string            `json:"email,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Location     string            `json:"location,omitempty"`
	Preferences  map[string]string `json:"preferences,omitempty"`
	RecentOrders []OrderSummary    `json:"recent_orders"`
	Addresses    []AddressEntry    `json:"addresses"`
	Wishlist     []WishlistItem    `json:"wishlist"`
	CachedAt     time.Time         `json:"cached_at"`
}

// StoreItem is one ranked store row inside a stores snapshot.
type StoreItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Rating      float64 `json:"rating"`
	ReviewCount int64   `json:"review_count"`
	Location    string  `json:"location,omitempty"`
	Description string  `json:"description,omitempty"`
	Logo        string  `json:"logo,omitempty"`
}

// StoresSnapshot is the payload cached under (owner, stores).
type StoresSnapshot struct {
	Items    []StoreItem `json:"items"`
	CachedAt time.Time   `json:"cached_at"`
}
