// Package domain – offline synchronization types.
//
// ChangeRecord is the client-supplied unit of reconciliation: mobile clients
// queue mutations locally while offline and submit them as an ordered batch.
// Records are transient; they are consumed once and never persisted as-is.
package domain

import (
	"encoding/json"
	"time"
)

// ChangeType enumerates the client mutations the reconciler understands.
type ChangeType string

const (
	ChangeWishlistAdd    ChangeType = "wishlist_add"
	ChangeWishlistRemove ChangeType = "wishlist_remove"
	ChangeCartUpdate     ChangeType = "cart_update"
	ChangeProfileUpdate  ChangeType = "profile_update"
	ChangeAddressAdd     ChangeType = "address_add"
)

// ValidChangeType reports whether t names a known change type.
func ValidChangeType(t ChangeType) bool {
	switch t {
	case ChangeWishlistAdd, ChangeWishlistRemove, ChangeCartUpdate,
		ChangeProfileUpdate, ChangeAddressAdd:
		return true
	}
	return false
}

// ChangeRecord is one queued client mutation. ID is assigned by the client
// and echoed back in the matching SyncOutcome so the client can mark its
// local queue entry as applied.
//
// Payload stays raw here; the handler for each ChangeType decodes it into
// the matching typed payload and validates it before touching canonical
// state.
type ChangeRecord struct {
	ID        string          `json:"id"`
	Type      ChangeType      `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// SyncOutcome reports the result of applying a single ChangeRecord.
// Outcomes are returned in input order; OutcomeKind is empty on success.
type SyncOutcome struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"` // machine-readable kind, see OutcomeKind*
	Message string `json:"message,omitempty"`
}

// Outcome error kinds. They mirror the service error taxonomy but are
// inlined per record so one failing change never aborts the batch.
const (
	OutcomeKindValidation = "validation"
	OutcomeKindNotFound   = "not_found"
	OutcomeKindInternal   = "internal"
)

// WishlistChange is the payload for wishlist_add and wishlist_remove.
type WishlistChange struct {
	SchemaVersion int    `json:"schema_version"`
	ProductID     string `json:"product_id"`
}

// CartChange is the payload for cart_update. Quantity 0 removes the line.
type CartChange struct {
	SchemaVersion int    `json:"schema_version"`
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
}

// ProfileChange is the payload for profile_update. Only the allow-listed
// fields below are ever applied; unknown fields in the raw payload are
// silently ignored by virtue of not being modeled here.
type ProfileChange struct {
	SchemaVersion int               `json:"schema_version"`
	Name          *string           `json:"name,omitempty"`
	Phone         *string           `json:"phone,omitempty"`
	Location      *string           `json:"location,omitempty"`
	Preferences   map[string]string `json:"preferences,omitempty"`
}

// AddressChange is the payload for address_add. ClientKey is the client's
// stable identifier for the address, making re-delivery an upsert.
type AddressChange struct {
	SchemaVersion int    `json:"schema_version"`
	ClientKey     string `json:"client_key"`
	Label         string `json:"label"`
	Street        string `json:"street"`
	City          string `json:"city"`
	Country       string `json:"country"`
	Postcode      string `json:"postcode,omitempty"`
}
