// Redirect HTTP handler.
//
// This file exposes the public short-link endpoint:
//   - GET /l/{code}  (resolve a code and redirect)
//
// Resolution never errors toward the client: unknown and expired codes fall
// back to the web root so a shared link always lands somewhere sensible.
// Clicks on live and expired links are recorded asynchronously.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-commerce-edge/internal/device"
)

// ResolveRedirect godoc
// @ID          resolveRedirect
// @Summary     Resolve a short code
// @Description Redirects to the platform-appropriate destination: the native
// @Description deep link (with a store-listing fallback parameter) on iOS and
// @Description Android, the web equivalent elsewhere, and the web root for
// @Description unknown or expired codes.
// @Tags        Redirect
//
// @Param       code  path  string  true  "Short code"  example(x7Qm2a)
//
// @Success     302  {string} string "Redirect to the resolved destination"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /l/{code} [get]
func (h *Handlers) ResolveRedirect(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code required")
		return
	}

	ua := c.Request.UserAgent()
	country := device.Country(c.Request.Header)

	decision := h.redirSvc.Resolve(c.Request.Context(), code, ua, c.ClientIP(), country)

	// Short links are shared and re-resolved per device; never let an
	// intermediary cache one device's destination for another.
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, decision.URL)
}
