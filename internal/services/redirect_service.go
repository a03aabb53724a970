// Package services – RedirectService
//
// This file implements the RedirectService, which turns a short code plus
// request context into a platform-appropriate redirect decision. The
// resolve path never fails toward the end user: an unknown or expired code
// degrades to the generic web root, and click logging is fire-and-forget
// through the bounded event channel so a slow or failed write can never
// delay the redirect response.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-commerce-edge/internal/device"
	"github.com/tbourn/go-commerce-edge/internal/domain"
	"github.com/tbourn/go-commerce-edge/internal/repo"
)

// Redirect outcomes, recorded on the decision for logging and tests.
const (
	RedirectOK              = "ok"
	RedirectExpiredFallback = "expired_fallback"
	RedirectUnknownFallback = "unknown_fallback"
)

// RedirectDecision is the computed destination for one resolution.
type RedirectDecision struct {
	URL      string          `json:"url"`
	Platform device.Platform `json:"platform"`
	Outcome  string          `json:"outcome"`
	LinkID   string          `json:"link_id,omitempty"`
}

// ClickEmitter is the narrow fire-and-forget contract the resolver logs
// clicks through. The events.Writer satisfies it.
type ClickEmitter interface {
	EmitClick(ev domain.ClickEvent) bool
}

// RedirectService resolves short codes into redirect decisions.
type RedirectService struct {
	// DB is the GORM handle used for link lookups.
	DB *gorm.DB
	// Clicks receives click events; may be nil (resolution still works).
	Clicks ClickEmitter

	// WebDomain hosts the web equivalents of link targets and the generic
	// fallback root.
	WebDomain string
	// AppStoreURL and PlayStoreURL are the store listings embedded as the
	// native-redirect fallback parameter.
	AppStoreURL  string
	PlayStoreURL string
}

// NewRedirectService constructs a RedirectService.
func NewRedirectService(db *gorm.DB, clicks ClickEmitter, webDomain, appStoreURL, playStoreURL string) *RedirectService {
	return &RedirectService{
		DB:           db,
		Clicks:       clicks,
		WebDomain:    webDomain,
		AppStoreURL:  appStoreURL,
		PlayStoreURL: playStoreURL,
	}
}

// Resolve computes the destination for a code. It always returns a usable
// decision:
//   - unknown code → generic web root, no click recorded,
//   - expired link → generic web root, click recorded against the link,
//   - live link, ios/android → native URI with an embedded fallback query
//     parameter pointing at the platform's store listing,
//   - live link, other → the web equivalent of the target.
func (s *RedirectService) Resolve(ctx context.Context, code, userAgent, ip, country string) RedirectDecision {
	platform := device.Classify(userAgent)
	fallback := RedirectDecision{
		URL:      fmt.Sprintf("https://%s", s.WebDomain),
		Platform: platform,
		Outcome:  RedirectUnknownFallback,
	}

	link, err := repo.GetLinkByCode(ctx, s.DB, code)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			// Lookup failures degrade to the fallback; the end user never
			// sees an error page on the redirect path.
			log.Warn().Err(err).Str("code", code).Msg("link lookup failed")
		}
		return fallback
	}

	if link.Expired(nowUTC()) {
		dec := fallback
		dec.Outcome = RedirectExpiredFallback
		dec.LinkID = link.ID
		s.recordClick(link.ID, userAgent, ip, country, platform)
		return dec
	}

	dec := RedirectDecision{
		Platform: platform,
		Outcome:  RedirectOK,
		LinkID:   link.ID,
	}
	switch platform {
	case device.PlatformIOS:
		dec.URL = s.nativeWithFallback(link.NativeURI, s.AppStoreURL)
	case device.PlatformAndroid:
		dec.URL = s.nativeWithFallback(link.NativeURI, s.PlayStoreURL)
	default:
		dec.URL = s.webURL(link)
	}
	s.recordClick(link.ID, userAgent, ip, country, platform)
	return dec
}

// nativeWithFallback appends the store listing as a fallback parameter.
func (s *RedirectService) nativeWithFallback(nativeURI, storeURL string) string {
	return nativeURI + "?fallback=" + url.QueryEscape(storeURL)
}

// webURL renders the web equivalent of a link target, {domain}/{type}/{id}.
func (s *RedirectService) webURL(link *domain.ShortLink) string {
	return fmt.Sprintf("https://%s/%s/%s", s.WebDomain, link.TargetType, link.TargetKey)
}

// recordClick emits the click event; it never blocks or fails the caller.
func (s *RedirectService) recordClick(linkID, userAgent, ip, country string, platform device.Platform) {
	if s.Clicks == nil {
		return
	}
	s.Clicks.EmitClick(domain.ClickEvent{
		LinkID:    linkID,
		Platform:  string(platform),
		UserAgent: userAgent,
		IP:        ip,
		Country:   country,
		CreatedAt: nowUTC(),
	})
}
