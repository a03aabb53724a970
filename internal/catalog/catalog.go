// Package catalog defines the contracts to the canonical commerce backends
// this service projects from and reconciles into. The real catalog and
// identity systems live elsewhere; the edge layer only needs the narrow
// read/write surfaces below.
//
// A JSON-fixture-backed implementation (see fixture.go) serves development
// and tests; production deployments inject their own implementations.
package catalog

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("catalog: not found")

// ProductRecord is a canonical product row as exposed by the catalog system.
type ProductRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency,omitempty"`
	CategoryID  string   `json:"category_id,omitempty"`
	StoreID     string   `json:"store_id,omitempty"`
	Location    string   `json:"location,omitempty"`
	Images      []string `json:"images,omitempty"`
	InStock     bool     `json:"in_stock"`
	Active      bool     `json:"active"`
}

// CategoryRecord is a canonical category row. ParentID is empty for roots.
type CategoryRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
	Active   bool   `json:"active"`
}

// StoreRecord is a canonical store row.
type StoreRecord struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Location    string  `json:"location,omitempty"`
	Rating      float64 `json:"rating"`
	ReviewCount int64   `json:"review_count"`
	Logo        string  `json:"logo,omitempty"`
	Active      bool    `json:"active"`
}

// PromotionRecord is a canonical promotion. A promotion is linkable only
// while Active and inside its validity window.
type PromotionRecord struct {
	Code        string     `json:"code"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Image       string     `json:"image,omitempty"`
	Active      bool       `json:"active"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

// Live reports whether the promotion is active and inside its window.
func (p *PromotionRecord) Live(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return false
	}
	return true
}

// ProductFilter narrows a product query. Zero values mean "no constraint";
// Limit <= 0 applies the reader's default cap.
type ProductFilter struct {
	Categories []string
	PriceMin   *float64
	PriceMax   *float64
	Location   string // substring match on product location
	Limit      int
}

// Reader is the read surface over the canonical catalog.
type Reader interface {
	// Products returns active products matching the filter.
	Products(ctx context.Context, f ProductFilter) ([]ProductRecord, error)
	// Product returns one active product or ErrNotFound.
	Product(ctx context.Context, id string) (*ProductRecord, error)
	// Categories returns all active categories, flat.
	Categories(ctx context.Context) ([]CategoryRecord, error)
	// CountProducts returns the number of active products in a category.
	CountProducts(ctx context.Context, categoryID string) (int64, error)
	// Stores returns all active stores.
	Stores(ctx context.Context) ([]StoreRecord, error)
	// Store returns one active store or ErrNotFound.
	Store(ctx context.Context, id string) (*StoreRecord, error)
	// Promotion returns a promotion by code or ErrNotFound.
	Promotion(ctx context.Context, code string) (*PromotionRecord, error)
}

// Profile is the canonical identity record for an owner.
type Profile struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Location    string            `json:"location,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// OrderRecord is a canonical order row, already reduced to summary fields.
type OrderRecord struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Status    string    `json:"status"`
	Total     float64   `json:"total"`
	ItemCount int       `json:"item_count"`
	PlacedAt  time.Time `json:"placed_at"`
}

// AddressRecord is a canonical saved address. ID is the client-stable key.
type AddressRecord struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Label    string `json:"label"`
	Street   string `json:"street"`
	City     string `json:"city"`
	Country  string `json:"country"`
	Postcode string `json:"postcode,omitempty"`
	Active   bool   `json:"active"`
}

// IdentityReader is the read surface over the canonical identity system.
type IdentityReader interface {
	// Profile returns the identity record or ErrNotFound.
	Profile(ctx context.Context, ownerID string) (*Profile, error)
	// Orders returns the owner's most recent orders, newest first,
	// capped at limit.
	Orders(ctx context.Context, ownerID string, limit int) ([]OrderRecord, error)
	// Order returns one order owned by ownerID, or ErrNotFound.
	Order(ctx context.Context, ownerID, orderID string) (*OrderRecord, error)
	// Addresses returns the owner's active saved addresses.
	Addresses(ctx context.Context, ownerID string) ([]AddressRecord, error)
	// Wishlist returns the owner's wishlisted product ids, oldest first.
	Wishlist(ctx context.Context, ownerID string) ([]string, error)
}

// ProfilePatch carries the allow-listed mutable profile fields. Nil fields
// are left untouched; Preferences, when non-nil, is merged key by key.
type ProfilePatch struct {
	Name        *string
	Phone       *string
	Location    *string
	Preferences map[string]string
}

// Writer is the write surface the reconciler mutates canonical state
// through. All operations must be idempotent under at-least-once delivery.
type Writer interface {
	// WishlistAdd upserts (ownerID, productID); adding a present pair
	// succeeds silently.
	WishlistAdd(ctx context.Context, ownerID, productID string) error
	// WishlistRemove deletes the pair; removing an absent pair succeeds.
	WishlistRemove(ctx context.Context, ownerID, productID string) error
	// CartSet sets the cart line quantity; 0 removes the line.
	CartSet(ctx context.Context, ownerID, productID string, quantity int) error
	// ProfilePatch applies the patch to the owner's profile.
	ProfilePatch(ctx context.Context, ownerID string, patch ProfilePatch) error
	// AddressUpsert inserts or replaces the address keyed by its ID.
	AddressUpsert(ctx context.Context, ownerID string, addr AddressRecord) error
}

// Store bundles the full catalog surface. The fixture-backed implementation
// satisfies it; a future service-backed one would too.
type Store interface {
	Reader
	IdentityReader
	Writer
}
