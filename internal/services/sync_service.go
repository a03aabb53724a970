// Package services – SyncService
//
// This file implements the SyncService, which reconciles batches of
// client-queued offline mutations against canonical state. Changes are
// applied strictly in input order; each change is dispatched by type to a
// handler that validates its own payload before touching canonical state
// through the catalog.Writer collaborator. One failing change records a
// failed outcome and never aborts or rolls back the rest of the batch.
//
// Handlers are idempotent under at-least-once delivery: re-applying a
// wishlist_add, an address_add with the same client key, or the same
// cart_update is always safe. profile_update applies only an explicit
// allow-list of mutable fields; anything else in the payload is silently
// ignored rather than rejected.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-commerce-edge/internal/catalog"
	"github.com/tbourn/go-commerce-edge/internal/domain"
)

// SyncService applies change batches for one owner at a time. Batches for
// different owners are fully independent; the service holds no mutable
// state, so concurrent Apply calls are safe.
type SyncService struct {
	// DB is the GORM handle used for idempotency bookkeeping; Apply itself
	// never touches it. May be nil in tests.
	DB *gorm.DB
	// Catalog verifies referenced products still exist.
	Catalog catalog.Reader
	// Writer mutates canonical identity state.
	Writer catalog.Writer
}

// NewSyncService constructs a SyncService.
func NewSyncService(db *gorm.DB, cat catalog.Reader, w catalog.Writer) *SyncService {
	return &SyncService{DB: db, Catalog: cat, Writer: w}
}

// Apply reconciles changes in input order and returns one outcome per
// change, preserving order and the caller-supplied ids. An empty batch is
// a top-level validation error (ErrEmptyBatch): clients must submit at
// least one change.
func (s *SyncService) Apply(ctx context.Context, ownerID string, changes []domain.ChangeRecord) ([]domain.SyncOutcome, error) {
	if len(changes) == 0 {
		return nil, ErrEmptyBatch
	}

	tr := otel.Tracer("services/SyncService")
	ctx, span := tr.Start(ctx, "Apply")
	span.SetAttributes(
		attribute.String("owner.id", ownerID),
		attribute.Int("batch.size", len(changes)),
	)
	defer span.End()

	outcomes := make([]domain.SyncOutcome, len(changes))
	for i, ch := range changes {
		outcomes[i] = s.applyOne(ctx, ownerID, ch)
	}
	return outcomes, nil
}

// applyOne dispatches a single change and converts handler errors into the
// per-record outcome shape.
func (s *SyncService) applyOne(ctx context.Context, ownerID string, ch domain.ChangeRecord) domain.SyncOutcome {
	out := domain.SyncOutcome{ID: ch.ID}

	var err error
	switch ch.Type {
	case domain.ChangeWishlistAdd:
		err = s.applyWishlist(ctx, ownerID, ch.Payload, true)
	case domain.ChangeWishlistRemove:
		err = s.applyWishlist(ctx, ownerID, ch.Payload, false)
	case domain.ChangeCartUpdate:
		err = s.applyCart(ctx, ownerID, ch.Payload)
	case domain.ChangeProfileUpdate:
		err = s.applyProfile(ctx, ownerID, ch.Payload)
	case domain.ChangeAddressAdd:
		err = s.applyAddress(ctx, ownerID, ch.Payload)
	default:
		err = validationErr("unknown change type: " + string(ch.Type))
	}

	if err == nil {
		out.Success = true
		return out
	}
	out.Error, out.Message = classify(err)
	return out
}

// applyWishlist handles wishlist_add and wishlist_remove. Adding a present
// pair and removing an absent pair both succeed silently.
func (s *SyncService) applyWishlist(ctx context.Context, ownerID string, raw json.RawMessage, add bool) error {
	var p domain.WishlistChange
	if err := json.Unmarshal(raw, &p); err != nil {
		return validationErr("malformed wishlist payload")
	}
	if strings.TrimSpace(p.ProductID) == "" {
		return validationErr("product_id is required")
	}
	if add {
		if _, err := s.Catalog.Product(ctx, p.ProductID); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return notFoundErr("product not found: " + p.ProductID)
			}
			return err
		}
		return s.Writer.WishlistAdd(ctx, ownerID, p.ProductID)
	}
	// Removal does not require the product to still exist in the catalog.
	return s.Writer.WishlistRemove(ctx, ownerID, p.ProductID)
}

// applyCart handles cart_update. Quantity 0 removes the line; negative
// quantities are invalid.
func (s *SyncService) applyCart(ctx context.Context, ownerID string, raw json.RawMessage) error {
	var p domain.CartChange
	if err := json.Unmarshal(raw, &p); err != nil {
		return validationErr("malformed cart payload")
	}
	if strings.TrimSpace(p.ProductID) == "" {
		return validationErr("product_id is required")
	}
	if p.Quantity < 0 {
		return validationErr("quantity must be >= 0")
	}
	if p.Quantity > 0 {
		if _, err := s.Catalog.Product(ctx, p.ProductID); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return notFoundErr("product not found: " + p.ProductID)
			}
			return err
		}
	}
	return s.Writer.CartSet(ctx, ownerID, p.ProductID, p.Quantity)
}

// applyProfile handles profile_update. Only name, phone, location, and
// preferences are applied. Unknown fields in the raw payload fall away
// during decoding — silently ignored, not rejected — which keeps oversized
// payloads harmless without making benign extra fields fatal.
func (s *SyncService) applyProfile(ctx context.Context, ownerID string, raw json.RawMessage) error {
	var p domain.ProfileChange
	if err := json.Unmarshal(raw, &p); err != nil {
		return validationErr("malformed profile payload")
	}
	if p.Name == nil && p.Phone == nil && p.Location == nil && p.Preferences == nil {
		return validationErr("no mutable profile fields present")
	}
	err := s.Writer.ProfilePatch(ctx, ownerID, catalog.ProfilePatch{
		Name:        p.Name,
		Phone:       p.Phone,
		Location:    p.Location,
		Preferences: p.Preferences,
	})
	if errors.Is(err, catalog.ErrNotFound) {
		return notFoundErr("profile not found")
	}
	return err
}

// applyAddress handles address_add. The client-stable key makes redelivery
// an upsert.
func (s *SyncService) applyAddress(ctx context.Context, ownerID string, raw json.RawMessage) error {
	var p domain.AddressChange
	if err := json.Unmarshal(raw, &p); err != nil {
		return validationErr("malformed address payload")
	}
	switch {
	case strings.TrimSpace(p.ClientKey) == "":
		return validationErr("client_key is required")
	case strings.TrimSpace(p.Street) == "":
		return validationErr("street is required")
	case strings.TrimSpace(p.City) == "":
		return validationErr("city is required")
	case strings.TrimSpace(p.Country) == "":
		return validationErr("country is required")
	}
	return s.Writer.AddressUpsert(ctx, ownerID, catalog.AddressRecord{
		ID:       p.ClientKey,
		Label:    p.Label,
		Street:   p.Street,
		City:     p.City,
		Country:  p.Country,
		Postcode: p.Postcode,
	})
}

// outcomeError carries the machine-readable kind alongside the message.
type outcomeError struct {
	kind string
	msg  string
}

func (e *outcomeError) Error() string { return e.msg }

func validationErr(msg string) error { return &outcomeError{kind: domain.OutcomeKindValidation, msg: msg} }
func notFoundErr(msg string) error   { return &outcomeError{kind: domain.OutcomeKindNotFound, msg: msg} }

// classify maps a handler error to (kind, message) for the outcome row.
func classify(err error) (kind, msg string) {
	var oe *outcomeError
	if errors.As(err, &oe) {
		return oe.kind, oe.msg
	}
	return domain.OutcomeKindInternal, err.Error()
}
