// Sync HTTP handlers.
//
// This file exposes the reconciliation endpoint:
//   - POST /sync  (apply a batch of queued offline changes)
//
// Idempotency:
// Applying the same batch twice converges on the same state, so a replayed
// Idempotency-Key does not short-circuit processing; the batch is re-applied
// and the response carries `Idempotency-Replayed: true` so clients can tell
// a retry was recognized. Recognized retries also bypass rate limiting.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-commerce-edge/internal/domain"
	"github.com/tbourn/go-commerce-edge/internal/http/middleware"
	"github.com/tbourn/go-commerce-edge/internal/repo"
	"github.com/tbourn/go-commerce-edge/internal/services"
)

//
// DTOs
//

// SyncRequest is the JSON payload for a reconciliation batch. Changes are
// applied strictly in slice order.
type SyncRequest struct {
	Changes []domain.ChangeRecord `json:"changes" binding:"required"`
}

// SyncResponse reports per-record outcomes in input order plus summary counts.
type SyncResponse struct {
	Outcomes []domain.SyncOutcome `json:"outcomes"`
	Applied  int                  `json:"applied"`
	Failed   int                  `json:"failed"`
}

//
// Helpers
//

// idemScope derives the idempotency scope for the current route. It must stay
// in lockstep with the scope the validator middleware passes to its lookup.
func idemScope(c *gin.Context) string {
	if fp := c.FullPath(); fp != "" {
		return c.Request.Method + " " + fp
	}
	return c.Request.Method + " " + c.Request.URL.Path
}

// idempotencyKeyFrom extracts an idempotency key if an upstream middleware has
// already validated/stashed it. The fallback behavior reads the
// "Idempotency-Key" header directly when no dedicated middleware exists.
func idempotencyKeyFrom(c *gin.Context) (string, bool) {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k, true
	}
	if v := strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey)); v != "" {
		return v, true
	}
	return "", false
}

//
// Handlers
//

// PostSync godoc
// @ID          postSync
// @Summary     Apply queued offline changes
// @Description Applies a batch of client-queued changes in order. One failing
// @Description record never aborts the batch; each record gets its own outcome.
// @Tags        Sync
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.SyncRequest  true  "Change batch"
//
// @Success     200  {object}  handlers.SyncResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sync [post]
func (h *Handlers) PostSync(c *gin.Context) {
	ctx := c.Request.Context()

	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	currentUser := userID(c)

	outcomes, err := h.syncSvc.Apply(ctx, currentUser, req.Changes)
	if err != nil {
		switch err {
		case services.ErrEmptyBatch:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "changes must not be empty")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSyncFailed, err.Error())
		}
		return
	}

	applied := 0
	for _, o := range outcomes {
		if o.Success {
			applied++
		}
	}

	// Record the key so retries are recognized (rate-limit bypass); the batch
	// itself is safe to re-apply, so no payload is replayed from storage.
	if idemKey, okKey := idempotencyKeyFrom(c); okKey {
		if middleware.IsReplay(c) {
			c.Header("Idempotency-Replayed", "true")
		} else if svc, okSvc := h.syncSvc.(*services.SyncService); okSvc && svc.DB != nil {
			_, _ = repo.CreateIdempotency(ctx, svc.DB, currentUser, idemScope(c), idemKey,
				uuid.NewString(), http.StatusOK, 24*time.Hour)
		}
	}

	ok(c, http.StatusOK, SyncResponse{
		Outcomes: outcomes,
		Applied:  applied,
		Failed:   len(outcomes) - applied,
	})
}
