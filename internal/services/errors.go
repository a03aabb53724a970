// Package services defines the business logic for snapshots, offline sync,
// and short links. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked
// by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer. The taxonomy follows four
// classes: validation (always surfaced), not-found (never escalated),
// forbidden (ownership violations), and expired (treated as not-found from
// the caller's perspective).
package services

import "errors"

// Snapshot-related errors.
var (
	// ErrUnknownDomain is returned when a snapshot domain is not one of
	// products, categories, profile, stores.
	ErrUnknownDomain = errors.New("unknown snapshot domain")

	// ErrSnapshotNotFound indicates that no live cache entry exists for the
	// requested (owner, domain) pair. An expired entry reports the same.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Sync-related errors.
var (
	// ErrEmptyBatch is returned when a sync request carries no changes.
	// An empty batch is a top-level validation error, not an empty success.
	ErrEmptyBatch = errors.New("change batch is empty")
)

// Short-link-related errors.
var (
	// ErrInvalidTarget is returned when a target descriptor names an
	// unknown type or is missing its natural key.
	ErrInvalidTarget = errors.New("invalid link target")

	// ErrTargetNotFound indicates that the referenced entity does not exist.
	ErrTargetNotFound = errors.New("link target not found")

	// ErrForbiddenTarget is returned when a requester tries to mint a link
	// to an order they do not own.
	ErrForbiddenTarget = errors.New("cannot link another user's order")

	// ErrPromotionInactive is returned when the targeted promotion is
	// disabled or outside its validity window.
	ErrPromotionInactive = errors.New("promotion is not active")

	// ErrLinkNotFound indicates that the requested link does not exist or
	// is not accessible to the current user.
	ErrLinkNotFound = errors.New("link not found")

	// ErrCodeSpaceExhausted is returned when code allocation keeps
	// colliding past the retry cap. With a 62^6 keyspace this is a
	// theoretical terminal case, but the allocator must not loop forever.
	ErrCodeSpaceExhausted = errors.New("short code space exhausted")
)
