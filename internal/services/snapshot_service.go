// Package services – SnapshotService
//
// This file implements the SnapshotService, which builds the four reduced
// offline snapshots (products, categories, profile, stores) mobile clients
// download before going offline. Each builder queries the canonical catalog
// or identity collaborator, projects and truncates records deterministically,
// and writes the result through the compressed TTL cache keyed by
// (owner, domain) — one live entry per pair, last write wins.
//
// Every build emits a best-effort audit record (domain, item count, byte
// size, filters) on the background event channel; audit failure never fails
// the cache write.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the owner and snapshot domain.
package services

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-commerce-edge/internal/cache"
	"github.com/tbourn/go-commerce-edge/internal/catalog"
	"github.com/tbourn/go-commerce-edge/internal/domain"
)

const (
	// DefaultSnapshotTTL applies to any domain without an explicit TTL.
	DefaultSnapshotTTL = 24 * time.Hour

	// descriptionBudget is the hard character budget for truncated
	// descriptions, ellipsis included.
	descriptionBudget = 120

	// galleryCap bounds the image gallery per product.
	galleryCap = 3

	// recentOrdersCap bounds the order summaries in a profile snapshot.
	recentOrdersCap = 5

	// wishlistPreviewCap bounds the wishlist preview in a profile snapshot.
	wishlistPreviewCap = 10

	// defaultStoreLimit bounds a stores snapshot when no limit was given.
	defaultStoreLimit = 20
)

// AuditEmitter is the narrow fire-and-forget contract the builder logs
// through. The events.Writer satisfies it.
type AuditEmitter interface {
	EmitAudit(a domain.SnapshotAudit) bool
}

// ProductFilters narrows a products snapshot build.
type ProductFilters struct {
	Categories     []string `json:"categories,omitempty"`
	PriceMin       *float64 `json:"price_min,omitempty"`
	PriceMax       *float64 `json:"price_max,omitempty"`
	Location       string   `json:"location,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	IncludeImages  bool     `json:"include_images"`
	IncludeDetails bool     `json:"include_details"`
}

// CategoryOptions shapes a categories snapshot build.
type CategoryOptions struct {
	IncludeSubcategories bool `json:"include_subcategories"`
	IncludeProductCount  bool `json:"include_product_count"`
}

// StoreOptions shapes a stores snapshot build.
type StoreOptions struct {
	Limit int `json:"limit,omitempty"`
}

// SnapshotService builds, fetches, and clears offline snapshots.
type SnapshotService struct {
	// Cache is the compressed TTL store snapshots are written through.
	Cache *cache.Store
	// Catalog reads canonical products, categories, stores.
	Catalog catalog.Reader
	// Identity reads canonical profile, orders, addresses, wishlist.
	Identity catalog.IdentityReader
	// Audit receives best-effort build records; may be nil.
	Audit AuditEmitter

	// TTL overrides the default per snapshot domain.
	TTL map[domain.SnapshotDomain]time.Duration
	// DefaultTTL applies when no per-domain override exists.
	DefaultTTL time.Duration
}

// NewSnapshotService constructs a SnapshotService with the default 24h TTL
// for all four domains.
func NewSnapshotService(c *cache.Store, cat catalog.Reader, idr catalog.IdentityReader, audit AuditEmitter) *SnapshotService {
	return &SnapshotService{
		Cache:      c,
		Catalog:    cat,
		Identity:   idr,
		Audit:      audit,
		DefaultTTL: DefaultSnapshotTTL,
	}
}

// ttlFor resolves the TTL for a snapshot domain.
func (s *SnapshotService) ttlFor(d domain.SnapshotDomain) time.Duration {
	if ttl, ok := s.TTL[d]; ok && ttl > 0 {
		return ttl
	}
	if s.DefaultTTL > 0 {
		return s.DefaultTTL
	}
	return DefaultSnapshotTTL
}

// BuildProducts projects the matching products into an offline snapshot and
// caches it under (ownerID, products). Identifier and numeric fields pass
// through unchanged; descriptions are hard-truncated to a fixed budget; the
// image set is capped to a thumbnail plus a three-image gallery.
func (s *SnapshotService) BuildProducts(ctx context.Context, ownerID string, f ProductFilters) (*cache.Entry, error) {
	ctx, span := s.span(ctx, "BuildProducts", ownerID, domain.SnapshotProducts)
	defer span.End()

	records, err := s.Catalog.Products(ctx, catalog.ProductFilter{
		Categories: f.Categories,
		PriceMin:   f.PriceMin,
		PriceMax:   f.PriceMax,
		Location:   f.Location,
		Limit:      f.Limit,
	})
	if err != nil {
		return nil, err
	}

	snap := domain.ProductsSnapshot{
		Items:    make([]domain.ProductItem, 0, len(records)),
		CachedAt: time.Now().UTC(),
	}
	for _, p := range records {
		item := domain.ProductItem{
			ID:         p.ID,
			Name:       p.Name,
			Price:      p.Price,
			Currency:   p.Currency,
			CategoryID: p.CategoryID,
			StoreID:    p.StoreID,
			InStock:    p.InStock,
		}
		if f.IncludeDetails {
			item.Description = Truncate(p.Description, descriptionBudget)
		}
		if f.IncludeImages && len(p.Images) > 0 {
			item.Thumbnail = p.Images[0]
			gallery := p.Images
			if len(gallery) > galleryCap {
				gallery = gallery[:galleryCap]
			}
			item.Gallery = append([]string(nil), gallery...)
		}
		snap.Items = append(snap.Items, item)
	}

	return s.store(ctx, ownerID, domain.SnapshotProducts, snap, f, len(snap.Items), 0)
}

// BuildCategories caches the active category list under (ownerID,
// categories). With IncludeSubcategories the flat list becomes a tree in
// two passes: pass one indexes every category by id, pass two attaches each
// child under its parent and collects parentless categories as roots.
//
// A category whose parent id resolves to nothing is an orphan. Orphans are
// dropped from the tree — clients never see them — but they are counted in
// the audit record and logged at warn level so the catalog team can repair
// the data.
func (s *SnapshotService) BuildCategories(ctx context.Context, ownerID string, opts CategoryOptions) (*cache.Entry, error) {
	ctx, span := s.span(ctx, "BuildCategories", ownerID, domain.SnapshotCategories)
	defer span.End()

	records, err := s.Catalog.Categories(ctx)
	if err != nil {
		return nil, err
	}

	nodes := make([]*domain.CategoryNode, 0, len(records))
	for _, c := range records {
		n := &domain.CategoryNode{ID: c.ID, Name: c.Name, ParentID: c.ParentID}
		if opts.IncludeProductCount {
			// One count query per category is fine at cache-build cadence.
			count, err := s.Catalog.CountProducts(ctx, c.ID)
			if err != nil {
				return nil, err
			}
			n.ProductCount = &count
		}
		nodes = append(nodes, n)
	}

	snap := domain.CategoriesSnapshot{CachedAt: time.Now().UTC()}
	orphans := 0
	if !opts.IncludeSubcategories {
		snap.Categories = nodes
	} else {
		snap.Categories, orphans = assembleTree(nodes)
		if orphans > 0 {
			log.Warn().Int("orphans", orphans).Str("owner_id", ownerID).
				Msg("categories with unresolvable parents dropped from tree")
		}
	}

	return s.store(ctx, ownerID, domain.SnapshotCategories, snap, opts, len(nodes)-orphans, orphans)
}

// BuildProfile caches the owner's identity snapshot: profile fields, the
// most recent order summaries, active saved addresses, and a capped
// wishlist preview carrying only the first image per item. Profile is the
// only snapshot type that includes addresses; that restriction is fixed,
// not configurable.
func (s *SnapshotService) BuildProfile(ctx context.Context, ownerID string) (*cache.Entry, error) {
	ctx, span := s.span(ctx, "BuildProfile", ownerID, domain.SnapshotProfile)
	defer span.End()

	prof, err := s.Identity.Profile(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	orders, err := s.Identity.Orders(ctx, ownerID, recentOrdersCap)
	if err != nil {
		return nil, err
	}
	addrs, err := s.Identity.Addresses(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	wishIDs, err := s.Identity.Wishlist(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(wishIDs) > wishlistPreviewCap {
		wishIDs = wishIDs[:wishlistPreviewCap]
	}

	snap := domain.ProfileSnapshot{
		Name:         prof.Name,
		Email:        prof.Email,
		Phone:        prof.Phone,
		Location:     prof.Location,
		Preferences:  prof.Preferences,
		RecentOrders: make([]domain.OrderSummary, 0, len(orders)),
		Addresses:    make([]domain.AddressEntry, 0, len(addrs)),
		Wishlist:     make([]domain.WishlistItem, 0, len(wishIDs)),
		CachedAt:     time.Now().UTC(),
	}
	for _, o := range orders {
		snap.RecentOrders = append(snap.RecentOrders, domain.OrderSummary{
			ID: o.ID, Status: o.Status, Total: o.Total,
			ItemCount: o.ItemCount, PlacedAt: o.PlacedAt,
		})
	}
	for _, a := range addrs {
		snap.Addresses = append(snap.Addresses, domain.AddressEntry{
			ID: a.ID, Label: a.Label, Street: a.Street, City: a.City, Country: a.Country,
		})
	}
	for _, pid := range wishIDs {
		p, err := s.Catalog.Product(ctx, pid)
		if err != nil {
			// Wishlisted products can vanish from the catalog; skip them.
			continue
		}
		item := domain.WishlistItem{ProductID: p.ID, Name: p.Name, Price: p.Price}
		if len(p.Images) > 0 {
			item.Image = p.Images[0]
		}
		snap.Wishlist = append(snap.Wishlist, item)
	}

	itemCount := len(snap.RecentOrders) + len(snap.Addresses) + len(snap.Wishlist)
	return s.store(ctx, ownerID, domain.SnapshotProfile, snap, nil, itemCount, 0)
}

// BuildStores ranks active stores by rating, then review count, caps the
// result, truncates descriptions with the same deterministic rule as
// products, and caches the list under (ownerID, stores).
func (s *SnapshotService) BuildStores(ctx context.Context, ownerID string, opts StoreOptions) (*cache.Entry, error) {
	ctx, span := s.span(ctx, "BuildStores", ownerID, domain.SnapshotStores)
	defer span.End()

	records, err := s.Catalog.Stores(ctx)
	if err != nil {
		return nil, err
	}
	rankStores(records)

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultStoreLimit
	}
	if len(records) > limit {
		records = records[:limit]
	}

	snap := domain.StoresSnapshot{
		Items:    make([]domain.StoreItem, 0, len(records)),
		CachedAt: time.Now().UTC(),
	}
	for _, st := range records {
		snap.Items = append(snap.Items, domain.StoreItem{
			ID:          st.ID,
			Name:        st.Name,
			Rating:      st.Rating,
			ReviewCount: st.ReviewCount,
			Location:    st.Location,
			Description: Truncate(st.Description, descriptionBudget),
			Logo:        st.Logo,
		})
	}

	return s.store(ctx, ownerID, domain.SnapshotStores, snap, opts, len(snap.Items), 0)
}

// Fetch returns the live cache entry for (ownerID, dom), or
// ErrSnapshotNotFound when absent or expired.
func (s *SnapshotService) Fetch(ctx context.Context, ownerID string, dom domain.SnapshotDomain) (*cache.Entry, error) {
	if !domain.ValidSnapshotDomain(dom) {
		return nil, ErrUnknownDomain
	}
	entry, err := s.Cache.Get(ctx, cache.SnapshotKey(ownerID, dom))
	if err == cache.ErrMiss {
		return nil, ErrSnapshotNotFound
	}
	return entry, err
}

// Clear evicts the listed snapshot domains for an owner; with no domains
// given, it evicts all four.
func (s *SnapshotService) Clear(ctx context.Context, ownerID string, domains ...domain.SnapshotDomain) error {
	if len(domains) == 0 {
		domains = []domain.SnapshotDomain{
			domain.SnapshotProducts, domain.SnapshotCategories,
			domain.SnapshotProfile, domain.SnapshotStores,
		}
	}
	keys := make([]string, 0, len(domains))
	for _, d := range domains {
		if !domain.ValidSnapshotDomain(d) {
			return ErrUnknownDomain
		}
		keys = append(keys, cache.SnapshotKey(ownerID, d))
	}
	return s.Cache.Delete(ctx, keys...)
}

// store writes the snapshot through the cache and emits the audit record.
func (s *SnapshotService) store(ctx context.Context, ownerID string, dom domain.SnapshotDomain, snap any, filters any, itemCount, orphans int) (*cache.Entry, error) {
	filterJSON := ""
	if filters != nil {
		if b, err := json.Marshal(filters); err == nil {
			filterJSON = string(b)
		}
	}

	entry, err := s.Cache.Put(ctx, cache.SnapshotKey(ownerID, dom), snap, ownerID, dom, filterJSON, s.ttlFor(dom))
	if err != nil {
		return nil, err
	}

	if s.Audit != nil {
		s.Audit.EmitAudit(domain.SnapshotAudit{
			OwnerID:   ownerID,
			Domain:    string(dom),
			ItemCount: itemCount,
			ByteSize:  entry.ByteSize,
			Orphans:   orphans,
			Filters:   filterJSON,
		})
	}
	return entry, nil
}

// span starts an OTel span for a builder method.
func (s *SnapshotService) span(ctx context.Context, op, ownerID string, dom domain.SnapshotDomain) (context.Context, trace.Span) {
	tr := otel.Tracer("services/SnapshotService")
	return tr.Start(ctx, op, trace.WithAttributes(
		attribute.String("owner.id", ownerID),
		attribute.String("snapshot.domain", string(dom)),
	))
}

// assembleTree converts a flat category list into a forest in two passes
// over an index keyed by id. Pass one indexes; pass two attaches children
// and collects roots. Categories pointing at unknown parents are dropped
// and counted.
func assembleTree(nodes []*domain.CategoryNode) (roots []*domain.CategoryNode, orphans int) {
	index := make(map[string]*domain.CategoryNode, len(nodes))
	for _, n := range nodes {
		index[n.ID] = n
	}
	roots = make([]*domain.CategoryNode, 0, len(nodes))
	for _, n := range nodes {
		if n.ParentID == "" {
			roots = append(roots, n)
			continue
		}
		parent, ok := index[n.ParentID]
		if !ok {
			orphans++
			continue
		}
		parent.Children = append(parent.Children, n)
	}
	return roots, orphans
}
