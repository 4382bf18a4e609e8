package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/authgate/authgate/internal"
	"github.com/authgate/authgate/store"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewManager(store.NewRedis(rdb, "", 0), ttl)
}

func TestIssueRedeemRoundTrip(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	raw, err := m.Issue(ctx, "id-1", "203.0.113.9")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if len(raw) != internal.OpaqueTokenLength {
		t.Fatalf("token length = %d, want %d", len(raw), internal.OpaqueTokenLength)
	}

	rec, err := m.Redeem(ctx, raw)
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if rec.IdentityID != "id-1" {
		t.Fatalf("identity = %q", rec.IdentityID)
	}
	if rec.CreatedByIP != "203.0.113.9" {
		t.Fatalf("ip = %q", rec.CreatedByIP)
	}
	if !rec.IsActive(time.Now()) {
		t.Fatal("fresh record must be active")
	}
}

func TestRedeemUnknownToken(t *testing.T) {
	m := newTestManager(t, time.Hour)
	if _, err := m.Redeem(context.Background(), "never-issued"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedeemDoesNotConsume(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	raw, err := m.Issue(ctx, "id-1", "")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := m.Redeem(ctx, raw); err != nil {
		t.Fatalf("first Redeem failed: %v", err)
	}
	if _, err := m.Redeem(ctx, raw); err != nil {
		t.Fatalf("second Redeem failed: %v", err)
	}
}

func TestRevokeSingleUse(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	raw, err := m.Issue(ctx, "id-1", "")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	existed, err := m.Revoke(ctx, raw)
	if err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if !existed {
		t.Fatal("first revoke must observe the record")
	}

	existed, err = m.Revoke(ctx, raw)
	if err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if existed {
		t.Fatal("second revoke must not observe the record")
	}

	if _, err := m.Redeem(ctx, raw); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after revoke, got %v", err)
	}
}

func TestRedeemExpiredRecord(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	raw, err := m.Issue(ctx, "id-1", "")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Move the manager's clock past expiry; the stored record is still
	// present so the expiry branch, not the TTL, rejects it.
	m.WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) })

	if _, err := m.Redeem(ctx, raw); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// Lazy cleanup removed the record.
	m.WithClock(time.Now)
	if _, err := m.Redeem(ctx, raw); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after lazy cleanup, got %v", err)
	}
}

func TestRotationTombstone(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	raw, err := m.Issue(ctx, "id-1", "")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, found, err := m.Rotated(ctx, raw); err != nil || found {
		t.Fatalf("unrotated token: found=%v err=%v", found, err)
	}

	if err := m.MarkRotated(ctx, raw, "id-1"); err != nil {
		t.Fatalf("MarkRotated failed: %v", err)
	}

	id, found, err := m.Rotated(ctx, raw)
	if err != nil {
		t.Fatalf("Rotated failed: %v", err)
	}
	if !found || id != "id-1" {
		t.Fatalf("found=%v id=%q", found, id)
	}
}

func TestRevokeAllForIdentity(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	var tokens []string
	for i := 0; i < 3; i++ {
		raw, err := m.Issue(ctx, "id-1", "")
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		tokens = append(tokens, raw)
	}
	other, err := m.Issue(ctx, "id-2", "")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	n, err := m.RevokeAllForIdentity(ctx, "id-1")
	if err != nil {
		t.Fatalf("RevokeAllForIdentity failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("revoked %d, want 3", n)
	}

	for _, raw := range tokens {
		if _, err := m.Redeem(ctx, raw); !errors.Is(err, ErrNotFound) {
			t.Fatalf("token survived revoke-all: %v", err)
		}
	}
	if _, err := m.Redeem(ctx, other); err != nil {
		t.Fatalf("unrelated identity's token revoked: %v", err)
	}
}
