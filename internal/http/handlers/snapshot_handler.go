// Snapshot HTTP handlers.
//
// This file exposes REST endpoints for offline snapshots:
//   - POST   /snapshots/{domain}/build  (build and cache a snapshot)
//   - GET    /snapshots/{domain}        (fetch the cached snapshot)
//   - DELETE /snapshots                 (clear cached snapshots)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-commerce-edge/internal/cache"
	"github.com/tbourn/go-commerce-edge/internal/domain"
	"github.com/tbourn/go-commerce-edge/internal/services"
	"github.com/tbourn/go-commerce-edge/internal/utils"
)

//
// Service contracts (context-aware)
//

// SnapshotService defines snapshot lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SnapshotService interface {
	// BuildProducts assembles and caches a filtered products snapshot.
	BuildProducts(ctx context.Context, ownerID string, f services.ProductFilters) (*cache.Entry, error)
	// BuildCategories assembles and caches the category tree.
	BuildCategories(ctx context.Context, ownerID string, opts services.CategoryOptions) (*cache.Entry, error)
	// BuildProfile assembles and caches the owner's profile snapshot.
	BuildProfile(ctx context.Context, ownerID string) (*cache.Entry, error)
	// BuildStores assembles and caches a ranked stores snapshot.
	BuildStores(ctx context.Context, ownerID string, opts services.StoreOptions) (*cache.Entry, error)
	// Fetch returns the cached snapshot for a domain, if still valid.
	Fetch(ctx context.Context, ownerID string, dom domain.SnapshotDomain) (*cache.Entry, error)
	// Clear drops cached snapshots; no domains means all of them.
	Clear(ctx context.Context, ownerID string, domains ...domain.SnapshotDomain) error
}

// SyncService applies batched offline changes for a user.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SyncService interface {
	// Apply runs the batch in order and returns one outcome per record.
	Apply(ctx context.Context, ownerID string, changes []domain.ChangeRecord) ([]domain.SyncOutcome, error)
}

// LinkService defines short-link operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type LinkService interface {
	// Create validates the target, mints a code, and persists the link.
	Create(ctx context.Context, requesterID string, desc domain.TargetDescriptor, opts services.CreateLinkOptions) (*services.LinkResult, error)
	// Get returns a link by ID.
	Get(ctx context.Context, id string) (*domain.ShortLink, error)
	// ListPage returns a page of the creator's links and the total count.
	ListPage(ctx context.Context, creatorID string, page, pageSize int) ([]domain.ShortLink, int64, error)
}

// AnalyticsService aggregates click events for a link.
type AnalyticsService interface {
	// Aggregate reports clicks for linkID over the trailing windowDays.
	Aggregate(ctx context.Context, linkID string, windowDays int) (*services.Analytics, error)
}

// RedirectService resolves short codes into redirect decisions.
type RedirectService interface {
	// Resolve computes the destination for a code; it never fails.
	Resolve(ctx context.Context, code, userAgent, ip, country string) services.RedirectDecision
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for snapshots, sync, links, redirects, and
// analytics. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	snapSvc  SnapshotService
	syncSvc  SyncService
	linkSvc  LinkService
	anaSvc   AnalyticsService
	redirSvc RedirectService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(snapSvc SnapshotService, syncSvc SyncService, linkSvc LinkService, anaSvc AnalyticsService, redirSvc RedirectService) *Handlers {
	return &Handlers{snapSvc: snapSvc, syncSvc: syncSvc, linkSvc: linkSvc, anaSvc: anaSvc, redirSvc: redirSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// BuildSnapshotRequest is the JSON payload for building a snapshot. Only the
// fields relevant to the requested domain are consulted; the rest are ignored.
type BuildSnapshotRequest struct {
	// Products
	Categories     []string `json:"categories,omitempty"`
	PriceMin       *float64 `json:"price_min,omitempty"`
	PriceMax       *float64 `json:"price_max,omitempty"`
	Location       string   `json:"location,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	IncludeImages  bool     `json:"include_images"`
	IncludeDetails bool     `json:"include_details"`

	// Categories
	IncludeSubcategories bool `json:"include_subcategories"`
	IncludeProductCount  bool `json:"include_product_count"`
}

// SnapshotResponse describes a cached snapshot without repeating its payload.
type SnapshotResponse struct {
	Domain    string `json:"domain"`
	ByteSize  int    `json:"byte_size"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// parseSnapshotDomain validates the :domain path parameter.
func parseSnapshotDomain(c *gin.Context) (domain.SnapshotDomain, bool) {
	d := domain.SnapshotDomain(strings.ToLower(strings.TrimSpace(c.Param("domain"))))
	if !domain.ValidSnapshotDomain(d) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown snapshot domain")
		return "", false
	}
	return d, true
}

//
// Handlers
//

// BuildSnapshot godoc
// @ID          buildSnapshot
// @Summary     Build a snapshot
// @Description Assembles a fresh snapshot for the given domain, caches it, and returns it.
// @Description The request body carries optional build filters; irrelevant fields are ignored.
// @Tags        Snapshots
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       domain     path    string  true  "Snapshot domain"        Enums(products, categories, profile, stores)
// @Param       body       body    handlers.BuildSnapshotRequest  false  "Build filters"
//
// @Success     201  {object}  cache.Entry
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /snapshots/{domain}/build [post]
func (h *Handlers) BuildSnapshot(c *gin.Context) {
	ctx := c.Request.Context()
	dom, okDom := parseSnapshotDomain(c)
	if !okDom {
		return
	}

	var req BuildSnapshotRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	uid := userID(c)
	var (
		entry *cache.Entry
		err   error
	)
	switch dom {
	case domain.SnapshotProducts:
		entry, err = h.snapSvc.BuildProducts(ctx, uid, services.ProductFilters{
			Categories:     req.Categories,
			PriceMin:       req.PriceMin,
			PriceMax:       req.PriceMax,
			Location:       req.Location,
			Limit:          req.Limit,
			IncludeImages:  req.IncludeImages,
			IncludeDetails: req.IncludeDetails,
		})
	case domain.SnapshotCategories:
		entry, err = h.snapSvc.BuildCategories(ctx, uid, services.CategoryOptions{
			IncludeSubcategories: req.IncludeSubcategories,
			IncludeProductCount:  req.IncludeProductCount,
		})
	case domain.SnapshotProfile:
		entry, err = h.snapSvc.BuildProfile(ctx, uid)
	case domain.SnapshotStores:
		entry, err = h.snapSvc.BuildStores(ctx, uid, services.StoreOptions{Limit: req.Limit})
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeBuildFailed, err.Error())
		return
	}

	ok(c, http.StatusCreated, entry)
}

// GetSnapshot godoc
// @ID          getSnapshot
// @Summary     Fetch a cached snapshot
// @Description Returns the cached snapshot for the given domain, or 404 when
// @Description none exists or the cached copy has expired.
// @Tags        Snapshots
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       domain     path    string  true  "Snapshot domain"        Enums(products, categories, profile, stores)
//
// @Success     200  {object}  cache.Entry
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Snapshot not found or expired"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /snapshots/{domain} [get]
func (h *Handlers) GetSnapshot(c *gin.Context) {
	dom, okDom := parseSnapshotDomain(c)
	if !okDom {
		return
	}

	entry, err := h.snapSvc.Fetch(c.Request.Context(), userID(c), dom)
	if err != nil {
		switch err {
		case services.ErrSnapshotNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "snapshot not found or expired")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, entry)
}

// ClearSnapshots godoc
// @ID          clearSnapshots
// @Summary     Clear cached snapshots
// @Description Drops the user's cached snapshots. With no "domains" query
// @Description parameter, all snapshot domains are cleared.
// @Tags        Snapshots
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       domains    query   string  false "Comma-separated domains to clear"  example(products,stores)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /snapshots [delete]
func (h *Handlers) ClearSnapshots(c *gin.Context) {
	var domains []domain.SnapshotDomain
	if raw := strings.TrimSpace(c.Query("domains")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			d := domain.SnapshotDomain(strings.ToLower(strings.TrimSpace(part)))
			if d == "" {
				continue
			}
			if !domain.ValidSnapshotDomain(d) {
				fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown snapshot domain: "+string(d))
				return
			}
			domains = append(domains, d)
		}
	}

	if err := h.snapSvc.Clear(c.Request.Context(), userID(c), domains...); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
