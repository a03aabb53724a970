// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the append-only
// ClickEvent model and its read-side aggregations.
//
// Click rows are never updated or deleted here. Aggregations group over a
// bounded time window and return empty slices (never errors) for dimensions
// with no data, so the analytics surface can degrade gracefully.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-commerce-edge/internal/domain"
)

// AppendClick inserts one click event. CreatedAt defaults to UTC now when
// the caller left it zero (the background writer stamps event time itself).
func AppendClick(ctx context.Context, db *gorm.DB, ev *domain.ClickEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(ev).Error
}

// CountClicks returns the number of clicks for a link since the cutoff.
func CountClicks(ctx context.Context, db *gorm.DB, linkID string, since time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ClickEvent{}).
		Where("link_id = ? AND created_at >= ?", linkID, since).
		Count(&total).Error
	return total, err
}

// DayBucket is one row of the per-day aggregation.
type DayBucket struct {
	Day    string `json:"day"` // YYYY-MM-DD
	Clicks int64  `json:"clicks"`
}

// ClicksByDay groups a link's clicks per calendar day since the cutoff,
// oldest day first. Days with no clicks are simply absent.
func ClicksByDay(ctx context.Context, db *gorm.DB, linkID string, since time.Time) ([]DayBucket, error) {
	var out []DayBucket
	err := db.WithContext(ctx).
		Model(&domain.ClickEvent{}).
		Select("DATE(created_at) AS day, COUNT(*) AS clicks").
		Where("link_id = ? AND created_at >= ?", linkID, since).
		Group("DATE(created_at)").
		Order("day asc").
		Scan(&out).Error
	return out, err
}

// DimBucket is one row of a categorical aggregation (platform or country).
type DimBucket struct {
	Value  string `json:"value"`
	Clicks int64  `json:"clicks"`
}

// ClicksByPlatform groups a link's clicks per derived platform class.
func ClicksByPlatform(ctx context.Context, db *gorm.DB, linkID string, since time.Time) ([]DimBucket, error) {
	var out []DimBucket
	err := db.WithContext(ctx).
		Model(&domain.ClickEvent{}).
		Select("platform AS value, COUNT(*) AS clicks").
		Where("link_id = ? AND created_at >= ?", linkID, since).
		Group("platform").
		Order("clicks desc").
		Scan(&out).Error
	return out, err
}

// ClicksByCountry groups a link's clicks per recorded country, skipping
// rows where no country was derived.
func ClicksByCountry(ctx context.Context, db *gorm.DB, linkID string, since time.Time) ([]DimBucket, error) {
	var out []DimBucket
	err := db.WithContext(ctx).
		Model(&domain.ClickEvent{}).
		Select("country AS value, COUNT(*) AS clicks").
		Where("link_id = ? AND created_at >= ? AND country <> ''", linkID, since).
		Group("country").
		Order("clicks desc").
		Scan(&out).Error
	return out, err
}
