// Short-link HTTP handlers.
//
// This file exposes REST endpoints for short links and their analytics:
//   - POST /links                (create a short link)
//   - GET  /links                (list the caller's links, paginated)
//   - GET  /links/{id}           (fetch one link)
//   - GET  /links/{id}/analytics (aggregated click report)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (user, scope, key), the handler returns the previously
// minted link and sets `Idempotency-Replayed: true` instead of allocating a
// second code.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-commerce-edge/internal/domain"
	"github.com/tbourn/go-commerce-edge/internal/repo"
	"github.com/tbourn/go-commerce-edge/internal/services"
	"github.com/tbourn/go-commerce-edge/internal/utils"
)

//
// DTOs
//

// CreateLinkRequest is the JSON payload for minting a short link.
type CreateLinkRequest struct {
	// Type names the target entity kind.
	Type string `json:"type" binding:"required" example:"product"`
	// Key identifies the target entity. Optional for referral links, where
	// it defaults to the requesting user.
	Key string `json:"key" example:"prod-123"`
	// Campaign, Medium, and Source are optional attribution tags.
	Campaign string `json:"campaign,omitempty" example:"summer-sale"`
	Medium   string `json:"medium,omitempty" example:"social"`
	Source   string `json:"source,omitempty" example:"instagram"`
	// ExpiresAt optionally bounds the link's lifetime.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ListLinksResponse wraps a page of links and pagination information.
type ListLinksResponse struct {
	Links      []domain.ShortLink `json:"links"`
	Pagination Pagination         `json:"pagination"`
}

//
// Handlers
//

// CreateLink godoc
// @ID          createLink
// @Summary     Create a short link
// @Description Validates the target, mints a unique short code, and returns the
// @Description link plus its share preview. Supports idempotency via the
// @Description Idempotency-Key header (same key → same link).
// @Tags        Links
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body    handlers.CreateLinkRequest  true  "Link target"
//
// @Success     201  {object}  services.LinkResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Target owned by another user"
// @Failure     404  {object}  handlers.ErrorResponse  "Target not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Promotion not active"
// @Failure     503  {object}  handlers.ErrorResponse  "Code space exhausted"
// @Router      /links [post]
func (h *Handlers) CreateLink(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	currentUser := userID(c)

	// Idempotency (replay path): return the previously minted link instead of
	// allocating a second code.
	idemKey, hasKey := idempotencyKeyFrom(c)
	if hasKey {
		if svc, okSvc := h.linkSvc.(*services.LinkService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, currentUser, idemScope(c), idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := h.linkSvc.Get(ctx, rec.ResourceID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, prev)
					return
				}
			}
		}
	}

	desc := domain.TargetDescriptor{
		SchemaVersion: domain.TargetSchemaVersion,
		Type:          domain.TargetType(strings.ToLower(strings.TrimSpace(req.Type))),
		Key:           strings.TrimSpace(req.Key),
		Campaign:      strings.TrimSpace(req.Campaign),
		Medium:        strings.TrimSpace(req.Medium),
		Source:        strings.TrimSpace(req.Source),
	}

	res, err := h.linkSvc.Create(ctx, currentUser, desc, services.CreateLinkOptions{ExpiresAt: req.ExpiresAt})
	if err != nil {
		switch err {
		case services.ErrInvalidTarget:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid link target")
		case services.ErrTargetNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "link target not found")
		case services.ErrForbiddenTarget:
			fail(c, http.StatusForbidden, ErrCodeForbidden, "cannot link another user's order")
		case services.ErrPromotionInactive:
			fail(c, http.StatusConflict, ErrCodeConflict, "promotion is not active")
		case services.ErrCodeSpaceExhausted:
			fail(c, http.StatusServiceUnavailable, ErrCodeCodeSpace, "could not allocate a unique code, retry later")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if hasKey {
		if svc, okSvc := h.linkSvc.(*services.LinkService); okSvc && svc.DB != nil {
			_, _ = repo.CreateIdempotency(ctx, svc.DB, currentUser, idemScope(c), idemKey,
				res.Link.ID, http.StatusCreated, 24*time.Hour)
		}
	}

	ok(c, http.StatusCreated, res)
}

// GetLink godoc
// @ID          getLink
// @Summary     Fetch a short link
// @Description Returns a single short link by ID.
// @Tags        Links
// @Produce     json
//
// @Param       id  path  string  true  "Link ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.ShortLink
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Link not found"
// @Router      /links/{id} [get]
func (h *Handlers) GetLink(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "link id must be a UUID")
		return
	}

	link, err := h.linkSvc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "link not found")
		return
	}
	ok(c, http.StatusOK, link)
}

// ListLinks godoc
// @ID          listLinks
// @Summary     List the caller's short links (paginated)
// @Description Returns a page of links created by the current user, newest first.
// @Tags        Links
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"            minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"         minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListLinksResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /links [get]
func (h *Handlers) ListLinks(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.linkSvc.ListPage(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListLinksResponse{
		Links: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// LinkAnalytics godoc
// @ID          linkAnalytics
// @Summary     Aggregated click report for a link
// @Description Returns total clicks plus per-day, per-platform, and per-country
// @Description breakdowns over a trailing window (default 30 days, max 365).
// @Tags        Links
// @Produce     json
//
// @Param       id           path   string  true  "Link ID (UUID)"  format(uuid)
// @Param       window_days  query  int     false "Trailing window in days"  minimum(1) maximum(365) default(30)
//
// @Success     200  {object}  services.Analytics
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Link not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /links/{id}/analytics [get]
func (h *Handlers) LinkAnalytics(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "link id must be a UUID")
		return
	}

	window := utils.AtoiDefault(c.Query("window_days"), 0)

	report, err := h.anaSvc.Aggregate(c.Request.Context(), id, window)
	if err != nil {
		switch err {
		case services.ErrLinkNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "link not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeAnalyticsFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, report)
}
