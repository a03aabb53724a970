// Package catalog – fixture-backed implementation.
//
// FixtureStore is a concurrency-safe in-memory implementation of Reader,
// IdentityReader, and Writer, optionally seeded from a JSON file. It backs
// the demo binary and the test suites; deployments wire the real catalog
// and identity clients instead.
package catalog

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
)

// defaultProductLimit caps product queries when the filter sets no limit.
const defaultProductLimit = 100

// identityFixture groups one owner's identity data in the seed file.
type identityFixture struct {
	Profile   Profile         `json:"profile"`
	Orders    []OrderRecord   `json:"orders,omitempty"`
	Addresses []AddressRecord `json:"addresses,omitempty"`
	Wishlist  []string        `json:"wishlist,omitempty"`
	Cart      map[string]int  `json:"cart,omitempty"` // product id -> quantity
}

// fixtureFile is the on-disk seed shape.
type fixtureFile struct {
	Products   []ProductRecord   `json:"products,omitempty"`
	Categories []CategoryRecord  `json:"categories,omitempty"`
	Stores     []StoreRecord     `json:"stores,omitempty"`
	Promotions []PromotionRecord `json:"promotions,omitempty"`
	Identities []identityFixture `json:"identities,omitempty"`
}

// FixtureStore holds canonical records in memory. The zero value is not
// usable; construct with NewFixtureStore or LoadFixture.
type FixtureStore struct {
	mu         sync.RWMutex
	products   map[string]ProductRecord
	categories map[string]CategoryRecord
	stores     map[string]StoreRecord
	promotions map[string]PromotionRecord
	profiles   map[string]Profile
	orders     map[string][]OrderRecord    // owner -> orders, newest first
	addresses  map[string][]AddressRecord  // owner -> addresses, insertion order
	wishlists  map[string][]string         // owner -> product ids, insertion order
	carts      map[string]map[string]int   // owner -> product id -> quantity
}

// NewFixtureStore returns an empty store.
func NewFixtureStore() *FixtureStore {
	return &FixtureStore{
		products:   make(map[string]ProductRecord),
		categories: make(map[string]CategoryRecord),
		stores:     make(map[string]StoreRecord),
		promotions: make(map[string]PromotionRecord),
		profiles:   make(map[string]Profile),
		orders:     make(map[string][]OrderRecord),
		addresses:  make(map[string][]AddressRecord),
		wishlists:  make(map[string][]string),
		carts:      make(map[string]map[string]int),
	}
}

// LoadFixture builds a store from a JSON seed file.
func LoadFixture(path string) (*FixtureStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fixtureFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}

	s := NewFixtureStore()
	for _, p := range f.Products {
		s.products[p.ID] = p
	}
	for _, c := range f.Categories {
		s.categories[c.ID] = c
	}
	for _, st := range f.Stores {
		s.stores[st.ID] = st
	}
	for _, pr := range f.Promotions {
		s.promotions[strings.ToUpper(pr.Code)] = pr
	}
	for _, id := range f.Identities {
		owner := id.Profile.ID
		s.profiles[owner] = id.Profile
		s.orders[owner] = sortOrdersDesc(id.Orders)
		s.addresses[owner] = id.Addresses
		s.wishlists[owner] = id.Wishlist
		if id.Cart != nil {
			s.carts[owner] = id.Cart
		}
	}
	return s, nil
}

// AddProduct seeds a product (test helper).
func (s *FixtureStore) AddProduct(p ProductRecord) {
	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
}

// AddCategory seeds a category (test helper).
func (s *FixtureStore) AddCategory(c CategoryRecord) {
	s.mu.Lock()
	s.categories[c.ID] = c
	s.mu.Unlock()
}

// AddStore seeds a store (test helper).
func (s *FixtureStore) AddStore(st StoreRecord) {
	s.mu.Lock()
	s.stores[st.ID] = st
	s.mu.Unlock()
}

// AddPromotion seeds a promotion (test helper).
func (s *FixtureStore) AddPromotion(p PromotionRecord) {
	s.mu.Lock()
	s.promotions[strings.ToUpper(p.Code)] = p
	s.mu.Unlock()
}

// AddIdentity seeds one owner's identity data (test helper).
func (s *FixtureStore) AddIdentity(p Profile, orders []OrderRecord, addrs []AddressRecord, wishlist []string) {
	s.mu.Lock()
	s.profiles[p.ID] = p
	s.orders[p.ID] = sortOrdersDesc(orders)
	s.addresses[p.ID] = addrs
	s.wishlists[p.ID] = wishlist
	s.mu.Unlock()
}

//
// Reader
//

// Products implements Reader.
func (s *FixtureStore) Products(_ context.Context, f ProductFilter) ([]ProductRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultProductLimit
	}

	var cats map[string]struct{}
	if len(f.Categories) > 0 {
		cats = make(map[string]struct{}, len(f.Categories))
		for _, c := range f.Categories {
			cats[c] = struct{}{}
		}
	}
	loc := strings.ToLower(strings.TrimSpace(f.Location))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ProductRecord, 0, limit)
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		if cats != nil {
			if _, ok := cats[p.CategoryID]; !ok {
				continue
			}
		}
		if f.PriceMin != nil && p.Price < *f.PriceMin {
			continue
		}
		if f.PriceMax != nil && p.Price > *f.PriceMax {
			continue
		}
		if loc != "" && !strings.Contains(strings.ToLower(p.Location), loc) {
			continue
		}
		out = append(out, p)
	}
	// Map iteration order is random; sort for deterministic snapshots.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Product implements Reader.
func (s *FixtureStore) Product(_ context.Context, id string) (*ProductRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok || !p.Active {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

// Categories implements Reader.
func (s *FixtureStore) Categories(_ context.Context) ([]CategoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CategoryRecord, 0, len(s.categories))
	for _, c := range s.categories {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CountProducts implements Reader.
func (s *FixtureStore) CountProducts(_ context.Context, categoryID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, p := range s.products {
		if p.Active && p.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

// Stores implements Reader.
func (s *FixtureStore) Stores(_ context.Context) ([]StoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StoreRecord, 0, len(s.stores))
	for _, st := range s.stores {
		if st.Active {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Store implements Reader.
func (s *FixtureStore) Store(_ context.Context, id string) (*StoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stores[id]
	if !ok || !st.Active {
		return nil, ErrNotFound
	}
	cp := st
	return &cp, nil
}

// Promotion implements Reader. Lookup is case-insensitive on the code.
func (s *FixtureStore) Promotion(_ context.Context, code string) (*PromotionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.promotions[strings.ToUpper(code)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

//
// IdentityReader
//

// Profile implements IdentityReader.
func (s *FixtureStore) Profile(_ context.Context, ownerID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[ownerID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	if p.Preferences != nil {
		cp.Preferences = make(map[string]string, len(p.Preferences))
		for k, v := range p.Preferences {
			cp.Preferences[k] = v
		}
	}
	return &cp, nil
}

// Orders implements IdentityReader.
func (s *FixtureStore) Orders(_ context.Context, ownerID string, limit int) ([]OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders := s.orders[ownerID]
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return append([]OrderRecord(nil), orders...), nil
}

// Order implements IdentityReader.
func (s *FixtureStore) Order(_ context.Context, ownerID, orderID string) (*OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders[ownerID] {
		if o.ID == orderID {
			cp := o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Addresses implements IdentityReader.
func (s *FixtureStore) Addresses(_ context.Context, ownerID string) ([]AddressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AddressRecord, 0, len(s.addresses[ownerID]))
	for _, a := range s.addresses[ownerID] {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

// Wishlist implements IdentityReader.
func (s *FixtureStore) Wishlist(_ context.Context, ownerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.wishlists[ownerID]...), nil
}

//
// Writer
//

// WishlistAdd implements Writer (idempotent upsert).
func (s *FixtureStore) WishlistAdd(_ context.Context, ownerID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.wishlists[ownerID] {
		if id == productID {
			return nil
		}
	}
	s.wishlists[ownerID] = append(s.wishlists[ownerID], productID)
	return nil
}

// WishlistRemove implements Writer (absent pair is a no-op).
func (s *FixtureStore) WishlistRemove(_ context.Context, ownerID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.wishlists[ownerID]
	for i, id := range list {
		if id == productID {
			s.wishlists[ownerID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

// CartSet implements Writer.
func (s *FixtureStore) CartSet(_ context.Context, ownerID, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.carts[ownerID]
	if cart == nil {
		cart = make(map[string]int)
		s.carts[ownerID] = cart
	}
	if quantity <= 0 {
		delete(cart, productID)
		return nil
	}
	cart[productID] = quantity
	return nil
}

// ProfilePatch implements Writer.
func (s *FixtureStore) ProfilePatch(_ context.Context, ownerID string, patch ProfilePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[ownerID]
	if !ok {
		return ErrNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	if patch.Preferences != nil {
		if p.Preferences == nil {
			p.Preferences = make(map[string]string, len(patch.Preferences))
		}
		for k, v := range patch.Preferences {
			p.Preferences[k] = v
		}
	}
	s.profiles[ownerID] = p
	return nil
}

// AddressUpsert implements Writer.
func (s *FixtureStore) AddressUpsert(_ context.Context, ownerID string, addr AddressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr.OwnerID = ownerID
	addr.Active = true
	list := s.addresses[ownerID]
	for i, a := range list {
		if a.ID == addr.ID {
			list[i] = addr
			return nil
		}
	}
	s.addresses[ownerID] = append(list, addr)
	return nil
}

// Wishlisted reports whether the pair exists (test helper).
func (s *FixtureStore) Wishlisted(ownerID, productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.wishlists[ownerID] {
		if id == productID {
			return true
		}
	}
	return false
}

// CartQuantity returns the quantity for a cart line, 0 if absent (test helper).
func (s *FixtureStore) CartQuantity(ownerID, productID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carts[ownerID][productID]
}

// sortOrdersDesc orders by placement time, newest first, stable on id.
func sortOrdersDesc(orders []OrderRecord) []OrderRecord {
	out := append([]OrderRecord(nil), orders...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].PlacedAt.After(out[j].PlacedAt)
	})
	return out
}
