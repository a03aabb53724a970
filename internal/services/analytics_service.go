// Package services – AnalyticsService
//
// This file implements the read-only click aggregation for a short link.
// Aggregation degrades gracefully: dimensions with no data come back as
// empty buckets, and a failing dimension query is logged and omitted
// rather than failing the whole call.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-commerce-edge/internal/repo"
)

const (
	// DefaultWindowDays is used when the caller passes no window.
	DefaultWindowDays = 30
	// MaxWindowDays caps the aggregation window.
	MaxWindowDays = 365
)

// Analytics is the aggregated click report for one link.
type Analytics struct {
	LinkID      string           `json:"link_id"`
	WindowDays  int              `json:"window_days"`
	TotalClicks int64            `json:"total_clicks"`
	ByDay       []repo.DayBucket `json:"by_day"`
	ByPlatform  []repo.DimBucket `json:"by_platform"`
	ByCountry   []repo.DimBucket `json:"by_country"`
}

// AnalyticsService aggregates click events. Pure reads; no mutation.
type AnalyticsService struct {
	// DB is the GORM handle used for aggregation queries.
	DB *gorm.DB
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{DB: db}
}

// Aggregate reports clicks for linkID over the trailing windowDays.
// Invalid windows are clamped to [1, MaxWindowDays] with DefaultWindowDays
// for zero/negative input. A missing link returns ErrLinkNotFound.
func (s *AnalyticsService) Aggregate(ctx context.Context, linkID string, windowDays int) (*Analytics, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if windowDays > MaxWindowDays {
		windowDays = MaxWindowDays
	}

	if _, err := repo.GetLink(ctx, s.DB, linkID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	since := nowUTC().AddDate(0, 0, -windowDays)
	out := &Analytics{
		LinkID:     linkID,
		WindowDays: windowDays,
		ByDay:      []repo.DayBucket{},
		ByPlatform: []repo.DimBucket{},
		ByCountry:  []repo.DimBucket{},
	}

	total, err := repo.CountClicks(ctx, s.DB, linkID, since)
	if err != nil {
		return nil, err
	}
	out.TotalClicks = total
	if total == 0 {
		return out, nil
	}

	if byDay, err := repo.ClicksByDay(ctx, s.DB, linkID, since); err == nil {
		out.ByDay = byDay
	} else {
		log.Warn().Err(err).Str("link_id", linkID).Msg("by-day aggregation failed")
	}
	if byPlatform, err := repo.ClicksByPlatform(ctx, s.DB, linkID, since); err == nil {
		out.ByPlatform = byPlatform
	} else {
		log.Warn().Err(err).Str("link_id", linkID).Msg("by-platform aggregation failed")
	}
	if byCountry, err := repo.ClicksByCountry(ctx, s.DB, linkID, since); err == nil {
		out.ByCountry = byCountry
	} else {
		log.Warn().Err(err).Str("link_id", linkID).Msg("by-country aggregation failed")
	}
	return out, nil
}

// nowUTC is a shared clock helper for the link services.
func nowUTC() time.Time { return time.Now().UTC() }
