// Package domain defines the persistence models for short links, click
// events, and snapshot audit records. These types are mapped with GORM and
// form the relational data layer of the mobile edge service.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// ShortLink maps a compact code to a typed target descriptor. Codes are
// unique among live links; expired links are retained (soft-expired) so
// click history stays attributable.
//
// Fields:
//   - Code: fixed-length base62 code, unique (enforced by DB constraint).
//   - TargetType / TargetKey: typed reference to the linked entity
//     (product/store/order/promotion/referral + its natural key).
//   - Campaign / Medium / Source: optional UTM-style attribution metadata.
//   - NativeURI: deep-link form (scheme://type/id) precomputed at creation.
//   - ClickCount: incremented on every resolution, including expired hits.
//   - CreatedBy: identity of the creator; nullable for anonymous mints.
//   - ExpiresAt: nil means the link never expires.
type ShortLink struct {
	ID          string     `json:"id"          gorm:"type:char(36);primaryKey"`
	Code        string     `json:"code"        gorm:"type:varchar(32);not null;uniqueIndex:ux_links_code"`
	TargetType  string     `json:"target_type" gorm:"type:varchar(16);not null;index:idx_links_target,priority:1"`
	TargetKey   string     `json:"target_key"  gorm:"type:varchar(64);not null;index:idx_links_target,priority:2"`
	Campaign    string     `json:"campaign,omitempty" gorm:"type:varchar(64)"`
	Medium      string     `json:"medium,omitempty"   gorm:"type:varchar(32)"`
	Source      string     `json:"source,omitempty"   gorm:"type:varchar(32)"`
	NativeURI   string     `json:"native_uri"  gorm:"type:text;not null"`
	ClickCount  int64      `json:"click_count" gorm:"not null;default:0"`
	CreatedBy   *string    `json:"created_by,omitempty" gorm:"type:varchar(64);index"`
	SchemaVer   int        `json:"schema_version" gorm:"not null;default:1"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" gorm:"index"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for ShortLink.
func (ShortLink) TableName() string { return "short_links" }

// Expired reports whether the link is past its expiry at the given instant.
// Links without an expiry never expire.
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// ClickEvent records a single resolution of a short link. Rows are
// append-only: the service never mutates or deletes them.
//
// Platform is the coarse device class derived from the user agent at
// resolution time ("ios", "android", "other"). Country is best-effort and
// may be empty when no edge geo header was present.
type ClickEvent struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	LinkID    string    `json:"link_id"    gorm:"type:char(36);not null;index:idx_clicks_link,priority:1"`
	Platform  string    `json:"platform"   gorm:"type:varchar(16);not null;check:platform IN ('ios','android','other')"`
	UserAgent string    `json:"user_agent" gorm:"type:text"`
	IP        string    `json:"ip"         gorm:"type:varchar(64)"`
	Country   string    `json:"country,omitempty" gorm:"type:varchar(2)"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_clicks_link,priority:2"`

	// Link is the resolved short link. Clicks are cascade-deleted only if
	// the link row itself is hard-deleted, which the service never does.
	Link ShortLink `json:"-" gorm:"foreignKey:LinkID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ClickEvent.
func (ClickEvent) TableName() string { return "click_events" }

// SnapshotAudit is the best-effort build log written after every snapshot
// rebuild. Audit failures never fail the cache write itself.
type SnapshotAudit struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	OwnerID   string    `json:"owner_id"   gorm:"type:varchar(64);not null;index:idx_audits_owner,priority:1"`
	Domain    string    `json:"domain"     gorm:"type:varchar(16);not null"`
	ItemCount int       `json:"item_count" gorm:"not null"`
	ByteSize  int       `json:"byte_size"  gorm:"not null"`
	Orphans   int       `json:"orphans"    gorm:"not null;default:0"`
	Filters   string    `json:"filters"    gorm:"type:text"` // JSON-encoded build filters
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_audits_owner,priority:2"`
}

// TableName returns the database table name for SnapshotAudit.
func (SnapshotAudit) TableName() string { return "snapshot_audits" }
