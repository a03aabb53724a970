// Package services – LinkService
//
// This file implements the LinkService (the short-link registry): it mints
// collision-free short codes that resolve to typed target descriptors and
// persists them with optional expiry.
//
// Codes are 6 characters drawn from a 62-symbol alphabet. Allocation is a
// bounded retry loop over an atomic insert: the unique index on code makes
// the insert itself the existence check, so concurrent callers can never
// race a "check then write" window. At 62^6 (~57 billion) codes, repeated
// collisions are practically negligible, but the loop still terminates with
// ErrCodeSpaceExhausted instead of spinning forever.
//
// Referral targets are special-cased: each identity gets exactly one
// referral code, generated once from a name fragment plus a random numeric
// suffix and reused on every subsequent request.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"

	"github.com/tbourn/go-commerce-edge/internal/catalog"
	"github.com/tbourn/go-commerce-edge/internal/domain"
	"github.com/tbourn/go-commerce-edge/internal/repo"
)

const (
	// base62Chars is the code alphabet.
	base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// DefaultCodeLength is the fixed short-code length.
	DefaultCodeLength = 6

	// DefaultCodeMaxRetries caps the allocation loop.
	DefaultCodeMaxRetries = 5

	// referralFragmentLen is how many name letters seed a referral code.
	referralFragmentLen = 4

	// previewBudget caps share-preview descriptions.
	previewBudget = 80
)

// CreateLinkOptions carries caller-supplied link settings. Links have no
// default expiry; ExpiresAt stays nil unless the caller sets one.
type CreateLinkOptions struct {
	ExpiresAt *time.Time
}

// LinkResult is the full creation response: the persisted row plus the
// derived URIs and the human-shareable preview.
type LinkResult struct {
	Link      *domain.ShortLink   `json:"link"`
	ShortURL  string              `json:"short_url"`
	NativeURI string              `json:"native_uri"`
	Preview   domain.SharePreview `json:"preview"`
}

// LinkService mints and lists short links.
type LinkService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Catalog verifies product/store/promotion targets.
	Catalog catalog.Reader
	// Identity verifies order ownership and referral identities.
	Identity catalog.IdentityReader

	// Scheme is the native deep-link scheme (without "://").
	Scheme string
	// WebDomain hosts the web equivalents of link targets.
	WebDomain string
	// ShortDomain hosts the short URLs themselves.
	ShortDomain string

	// CodeLength and CodeMaxRetries shape the allocation loop.
	CodeLength     int
	CodeMaxRetries int

	printer *message.Printer
}

// NewLinkService constructs a LinkService with default code settings.
func NewLinkService(db *gorm.DB, cat catalog.Reader, idr catalog.IdentityReader, scheme, webDomain, shortDomain string) *LinkService {
	return &LinkService{
		DB:             db,
		Catalog:        cat,
		Identity:       idr,
		Scheme:         scheme,
		WebDomain:      webDomain,
		ShortDomain:    shortDomain,
		CodeLength:     DefaultCodeLength,
		CodeMaxRetries: DefaultCodeMaxRetries,
		printer:        message.NewPrinter(language.English),
	}
}

// Create validates the target, allocates a code, persists the link, and
// returns the derived URIs plus a type-specific share preview.
//
// Target rules:
//   - every type requires its referenced entity to exist,
//   - order additionally requires the requester to own the order,
//   - promotion requires the code to be live (active and inside its window),
//   - referral reuses the identity's existing code when one exists.
func (s *LinkService) Create(ctx context.Context, requesterID string, desc domain.TargetDescriptor, opts CreateLinkOptions) (*LinkResult, error) {
	tr := otel.Tracer("services/LinkService")
	ctx, span := tr.Start(ctx, "Create")
	span.SetAttributes(
		attribute.String("target.type", string(desc.Type)),
		attribute.String("target.key", desc.Key),
	)
	defer span.End()

	if !domain.ValidTargetType(desc.Type) {
		return nil, ErrInvalidTarget
	}
	if desc.Type == domain.TargetReferral && desc.Key == "" {
		// A referral link always points at the requester's own identity.
		desc.Key = requesterID
	}
	if strings.TrimSpace(desc.Key) == "" {
		return nil, ErrInvalidTarget
	}

	preview, err := s.verifyTarget(ctx, requesterID, desc)
	if err != nil {
		return nil, err
	}

	if desc.Type == domain.TargetReferral {
		if existing, err := repo.GetReferralLink(ctx, s.DB, desc.Key); err == nil {
			return s.result(existing, preview), nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	link, err := s.allocate(ctx, requesterID, desc, opts)
	if err != nil {
		return nil, err
	}
	return s.result(link, preview), nil
}

// Get fetches a link by id, for analytics and listings.
func (s *LinkService) Get(ctx context.Context, id string) (*domain.ShortLink, error) {
	l, err := repo.GetLink(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrLinkNotFound
	}
	return l, err
}

// ListPage returns a page of a creator's links plus the total count.
// It applies defaults for invalid page/pageSize.
func (s *LinkService) ListPage(ctx context.Context, creatorID string, page, pageSize int) ([]domain.ShortLink, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountLinksByCreator(ctx, s.DB, creatorID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ShortLink{}, 0, nil
	}
	items, err := repo.ListLinksByCreatorPage(ctx, s.DB, creatorID, offset, pageSize)
	return items, total, err
}

// allocate draws codes until the insert lands or the retry cap is hit.
func (s *LinkService) allocate(ctx context.Context, requesterID string, desc domain.TargetDescriptor, opts CreateLinkOptions) (*domain.ShortLink, error) {
	retries := s.CodeMaxRetries
	if retries <= 0 {
		retries = DefaultCodeMaxRetries
	}

	for attempt := 0; attempt < retries; attempt++ {
		code, err := s.generateCode(ctx, desc)
		if err != nil {
			return nil, err
		}
		link := &domain.ShortLink{
			Code:       code,
			TargetType: string(desc.Type),
			TargetKey:  desc.Key,
			Campaign:   desc.Campaign,
			Medium:     desc.Medium,
			Source:     desc.Source,
			NativeURI:  s.nativeURI(desc),
			SchemaVer:  desc.SchemaVersion,
			ExpiresAt:  opts.ExpiresAt,
		}
		if link.SchemaVer == 0 {
			link.SchemaVer = domain.TargetSchemaVersion
		}
		if requesterID != "" {
			link.CreatedBy = &requesterID
		}

		created, err := repo.CreateLink(ctx, s.DB, link)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, repo.ErrDuplicate) {
			return nil, err
		}
		// Collision: redraw. With a 62^6 keyspace this branch is rare.
	}
	return nil, ErrCodeSpaceExhausted
}

// generateCode draws one candidate code. Referral codes use the name
// fragment + numeric suffix form; everything else gets random base62.
func (s *LinkService) generateCode(ctx context.Context, desc domain.TargetDescriptor) (string, error) {
	if desc.Type == domain.TargetReferral {
		return s.referralCode(ctx, desc.Key)
	}
	length := s.CodeLength
	if length <= 0 {
		length = DefaultCodeLength
	}
	return randomBase62(length)
}

// referralCode builds "name fragment + random 3-digit suffix", e.g. "anna927".
func (s *LinkService) referralCode(ctx context.Context, ownerID string) (string, error) {
	fragment := "ref"
	if prof, err := s.Identity.Profile(ctx, ownerID); err == nil {
		if f := nameFragment(prof.Name, referralFragmentLen); f != "" {
			fragment = f
		}
	}
	n, err := rand.Int(rand.Reader, big.NewInt(900))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", fragment, n.Int64()+100), nil
}

// verifyTarget checks the target's existence/ownership rules and builds
// the share preview in one pass over the collaborator data.
func (s *LinkService) verifyTarget(ctx context.Context, requesterID string, desc domain.TargetDescriptor) (domain.SharePreview, error) {
	var pv domain.SharePreview

	switch desc.Type {
	case domain.TargetProduct:
		p, err := s.Catalog.Product(ctx, desc.Key)
		if err != nil {
			return pv, targetErr(err)
		}
		pv.Title = p.Name
		pv.Description = Truncate(p.Description, previewBudget)
		if len(p.Images) > 0 {
			pv.ImageURL = p.Images[0]
		}
		pv.Price = s.formatPrice(p.Price, p.Currency)

	case domain.TargetStore:
		st, err := s.Catalog.Store(ctx, desc.Key)
		if err != nil {
			return pv, targetErr(err)
		}
		pv.Title = st.Name
		pv.Description = Truncate(st.Description, previewBudget)
		pv.ImageURL = st.Logo

	case domain.TargetOrder:
		o, err := s.Identity.Order(ctx, requesterID, desc.Key)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				// The order may exist under another identity; from this
				// requester's perspective that is a forbidden target.
				return pv, ErrForbiddenTarget
			}
			return pv, err
		}
		pv.Title = fmt.Sprintf("Order %s", o.ID)
		pv.Description = fmt.Sprintf("%d items, %s", o.ItemCount, o.Status)

	case domain.TargetPromotion:
		pr, err := s.Catalog.Promotion(ctx, desc.Key)
		if err != nil {
			return pv, targetErr(err)
		}
		if !pr.Live(time.Now()) {
			return pv, ErrPromotionInactive
		}
		pv.Title = pr.Title
		pv.Description = Truncate(pr.Description, previewBudget)
		pv.ImageURL = pr.Image

	case domain.TargetReferral:
		prof, err := s.Identity.Profile(ctx, desc.Key)
		if err != nil {
			return pv, targetErr(err)
		}
		pv.Title = fmt.Sprintf("%s invited you", prof.Name)
		pv.Description = "Join and shop with a welcome discount."

	default:
		return pv, ErrInvalidTarget
	}
	return pv, nil
}

// result assembles the creation response for a persisted link.
func (s *LinkService) result(link *domain.ShortLink, preview domain.SharePreview) *LinkResult {
	return &LinkResult{
		Link:      link,
		ShortURL:  fmt.Sprintf("https://%s/l/%s", s.ShortDomain, link.Code),
		NativeURI: link.NativeURI,
		Preview:   preview,
	}
}

// nativeURI renders the deep-link form scheme://type/id.
func (s *LinkService) nativeURI(desc domain.TargetDescriptor) string {
	return fmt.Sprintf("%s://%s/%s", s.Scheme, desc.Type, desc.Key)
}

// formatPrice renders a grouped, two-decimal price ("$1,299.00").
func (s *LinkService) formatPrice(price float64, currency string) string {
	symbol := currencySymbol(currency)
	return s.printer.Sprintf("%s%.2f", symbol, price)
}

// currencySymbol maps the common ISO codes to display symbols, falling
// back to "CODE " for anything else.
func currencySymbol(code string) string {
	switch strings.ToUpper(code) {
	case "", "USD":
		return "$"
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	default:
		return strings.ToUpper(code) + " "
	}
}

// nameFragment keeps the first n letters (lowercased) of a display name.
func nameFragment(name string, n int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= n {
			break
		}
	}
	return b.String()
}

// targetErr maps a collaborator lookup failure to the service taxonomy.
func targetErr(err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return ErrTargetNotFound
	}
	return err
}

// randomBase62 draws length characters uniformly from the base62 alphabet.
func randomBase62(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = base62Chars[int(b[i])%len(base62Chars)]
	}
	return string(b), nil
}
