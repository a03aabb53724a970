// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ShortLink
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a link is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - CreateLink returns ErrDuplicate on a code collision, which is the
//     storage-level compare-and-set the code allocator builds its bounded
//     retry loop on. "Check then write" as two steps would race under
//     concurrent callers; the unique index makes the insert itself the check.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-commerce-edge/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a row with the same unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// CreateLink inserts a new ShortLink row. The link ID is a randomly
// generated UUID; CreatedAt is set to UTC. The insert relies on the unique
// index on code: a collision surfaces as ErrDuplicate, never as a partial
// write, so allocation is atomic at the storage layer.
func CreateLink(ctx context.Context, db *gorm.DB, link *domain.ShortLink) (*domain.ShortLink, error) {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	link.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return link, nil
}

// GetLinkByCode fetches a link by its code regardless of expiry. Callers
// decide how to treat expired rows (the resolver degrades to the fallback,
// the allocator treats only live rows as collisions).
func GetLinkByCode(ctx context.Context, db *gorm.DB, code string) (*domain.ShortLink, error) {
	var l domain.ShortLink
	err := db.WithContext(ctx).Where("code = ?", code).First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLink fetches a link by primary key.
func GetLink(ctx context.Context, db *gorm.DB, id string) (*domain.ShortLink, error) {
	var l domain.ShortLink
	err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetReferralLink returns the existing referral link for an identity, or
// ErrNotFound. Referral codes are minted once per identity and reused.
func GetReferralLink(ctx context.Context, db *gorm.DB, ownerKey string) (*domain.ShortLink, error) {
	var l domain.ShortLink
	err := db.WithContext(ctx).
		Where("target_type = ? AND target_key = ?", string(domain.TargetReferral), ownerKey).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// IncrementClickCount bumps click_count by one. The update is a single SQL
// statement, so concurrent resolutions never lose counts.
func IncrementClickCount(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.ShortLink{}).
		Where("id = ?", id).
		UpdateColumn("click_count", gorm.Expr("click_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountLinksByCreator returns the number of links minted by a creator.
func CountLinksByCreator(ctx context.Context, db *gorm.DB, creatorID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ShortLink{}).
		Where("created_by = ?", creatorID).
		Count(&total).Error
	return total, err
}

// ListLinksByCreatorPage returns a page of a creator's links, newest first.
// The caller computes offset and limit (e.g., (page-1)*pageSize).
func ListLinksByCreatorPage(ctx context.Context, db *gorm.DB, creatorID string, offset, limit int) ([]domain.ShortLink, error) {
	var out []domain.ShortLink
	err := db.WithContext(ctx).
		Where("created_by = ?", creatorID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// isUniqueViolation recognizes unique-constraint failures across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
