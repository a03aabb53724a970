// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// SnapshotAudit build log.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-commerce-edge/internal/domain"
)

// AppendAudit inserts one snapshot build record. Audits are best-effort:
// callers run this off the request path and drop failures.
func AppendAudit(ctx context.Context, db *gorm.DB, a *domain.SnapshotAudit) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(a).Error
}

// ListAuditsPage returns a page of an owner's build records, newest first.
func ListAuditsPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.SnapshotAudit, error) {
	var out []domain.SnapshotAudit
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
