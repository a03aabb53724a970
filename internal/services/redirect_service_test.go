package services

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-commerce-edge/internal/device"
	"github.com/tbourn/go-commerce-edge/internal/domain"
	"github.com/tbourn/go-commerce-edge/internal/repo"
)

const (
	uaIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X)"
	uaAndroid = "Mozilla/5.0 (Linux; Android 14; Pixel 8)"
	uaDesktop = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
)

// clickRecorder captures emitted clicks for assertions.
type clickRecorder struct {
	clicks []domain.ClickEvent
}

func (c *clickRecorder) EmitClick(ev domain.ClickEvent) bool {
	c.clicks = append(c.clicks, ev)
	return true
}

func newRedirectStack(t *testing.T, name string) (*RedirectService, *clickRecorder, *domain.ShortLink) {
	t.Helper()
	db := newTestDB(t, name)
	link, err := repo.CreateLink(context.Background(), db, &domain.ShortLink{
		Code: "x7Qm2a", TargetType: "product", TargetKey: "p1",
		NativeURI: "shopapp://product/p1", SchemaVer: 1,
	})
	if err != nil {
		t.Fatalf("seed link: %v", err)
	}
	clicks := &clickRecorder{}
	svc := NewRedirectService(db, clicks, "shop.test",
		"https://apps.example.com/shopapp", "https://play.example.com/shopapp")
	return svc, clicks, link
}

func TestResolve_PlatformBranching(t *testing.T) {
	svc, clicks, link := newRedirectStack(t, "redirect_platform")
	ctx := context.Background()

	t.Run("ios gets native with app store fallback", func(t *testing.T) {
		dec := svc.Resolve(ctx, "x7Qm2a", uaIPhone, "10.0.0.1", "GR")
		if dec.Outcome != RedirectOK || dec.Platform != device.PlatformIOS {
			t.Fatalf("decision = %+v", dec)
		}
		want := "shopapp://product/p1?fallback=https%3A%2F%2Fapps.example.com%2Fshopapp"
		if dec.URL != want {
			t.Fatalf("url = %q, want %q", dec.URL, want)
		}
	})

	t.Run("android gets native with play store fallback", func(t *testing.T) {
		dec := svc.Resolve(ctx, "x7Qm2a", uaAndroid, "10.0.0.2", "DE")
		if dec.Platform != device.PlatformAndroid {
			t.Fatalf("decision = %+v", dec)
		}
		want := "shopapp://product/p1?fallback=https%3A%2F%2Fplay.example.com%2Fshopapp"
		if dec.URL != want {
			t.Fatalf("url = %q, want %q", dec.URL, want)
		}
	})

	t.Run("everything else gets the web equivalent", func(t *testing.T) {
		dec := svc.Resolve(ctx, "x7Qm2a", uaDesktop, "10.0.0.3", "")
		if dec.URL != "https://shop.test/product/p1" {
			t.Fatalf("url = %q", dec.URL)
		}
	})

	if len(clicks.clicks) != 3 {
		t.Fatalf("clicks recorded = %d, want 3", len(clicks.clicks))
	}
	first := clicks.clicks[0]
	if first.LinkID != link.ID || first.Platform != "ios" || first.Country != "GR" || first.IP != "10.0.0.1" {
		t.Fatalf("click = %+v", first)
	}
}

func TestResolve_UnknownCode(t *testing.T) {
	svc, clicks, _ := newRedirectStack(t, "redirect_unknown")

	dec := svc.Resolve(context.Background(), "nosuch", uaDesktop, "10.0.0.1", "")
	if dec.Outcome != RedirectUnknownFallback {
		t.Fatalf("outcome = %q", dec.Outcome)
	}
	if dec.URL != "https://shop.test" {
		t.Fatalf("url = %q, want generic web root", dec.URL)
	}
	if dec.LinkID != "" {
		t.Fatalf("unknown code must not carry a link id: %+v", dec)
	}
	// Nothing to attribute a click to.
	if len(clicks.clicks) != 0 {
		t.Fatalf("clicks recorded = %d, want 0", len(clicks.clicks))
	}
}

func TestResolve_ExpiredLink(t *testing.T) {
	svc, clicks, _ := newRedirectStack(t, "redirect_expired")
	past := time.Now().UTC().Add(-time.Hour)
	expired, err := repo.CreateLink(context.Background(), svc.DB, &domain.ShortLink{
		Code: "oldone", TargetType: "product", TargetKey: "p9",
		NativeURI: "shopapp://product/p9", SchemaVer: 1, ExpiresAt: &past,
	})
	if err != nil {
		t.Fatalf("seed expired link: %v", err)
	}

	dec := svc.Resolve(context.Background(), "oldone", uaIPhone, "10.0.0.1", "GR")
	if dec.Outcome != RedirectExpiredFallback {
		t.Fatalf("outcome = %q", dec.Outcome)
	}
	if dec.URL != "https://shop.test" {
		t.Fatalf("url = %q, want generic web root", dec.URL)
	}
	if dec.LinkID != expired.ID {
		t.Fatalf("link id = %q, want %q", dec.LinkID, expired.ID)
	}
	// Expired hits still count toward the link's history.
	if len(clicks.clicks) != 1 || clicks.clicks[0].LinkID != expired.ID {
		t.Fatalf("clicks = %+v, want one against the expired link", clicks.clicks)
	}
}

func TestResolve_NilEmitter(t *testing.T) {
	svc, _, _ := newRedirectStack(t, "redirect_nilemit")
	svc.Clicks = nil
	dec := svc.Resolve(context.Background(), "x7Qm2a", uaDesktop, "10.0.0.1", "")
	if dec.Outcome != RedirectOK {
		t.Fatalf("resolution must work without an emitter: %+v", dec)
	}
}
