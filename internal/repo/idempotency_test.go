package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

const scopePurchases = "purchases.create"

func TestGetIdempotency_EmptyScopeOrKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	if rec, err := GetIdempotency(context.Background(), db, "u1", "   ", "k1", now); rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for empty scope, got (%v, %v)", rec, err)
	}
	if rec, err := GetIdempotency(context.Background(), db, "u1", scopePurchases, "", now); rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for empty key, got (%v, %v)", rec, err)
	}
}

func TestCreateThenGetIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "u1", scopePurchases, "k1", "p1", 201, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ResourceID != "p1" || rec.Status != 201 || !rec.ExpiresAt.After(rec.CreatedAt) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "u1", scopePurchases, "k1", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.ResourceID != "p1" {
		t.Fatalf("ResourceID = %q; want p1", got.ResourceID)
	}

	// same key under another user or scope is independent
	if _, err := GetIdempotency(ctx, db, "u2", scopePurchases, "k1", time.Now().UTC()); err != ErrNotFound {
		t.Fatalf("other user should miss, got %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "u1", "clients.create", "k1", time.Now().UTC()); err != ErrNotFound {
		t.Fatalf("other scope should miss, got %v", err)
	}
}

func TestGetIdempotency_Expired(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", scopePurchases, "k1", "p1", 201, time.Minute); err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	later := time.Now().UTC().Add(2 * time.Minute)
	if _, err := GetIdempotency(ctx, db, "u1", scopePurchases, "k1", later); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound past expiry, got %v", err)
	}
}

func TestCreateIdempotency_Duplicate(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", scopePurchases, "k1", "p1", 201, time.Hour); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := CreateIdempotency(ctx, db, "u1", scopePurchases, "k1", "p2", 201, time.Hour)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateIdempotency_NoTable(t *testing.T) {
	db := newTestDB(t)
	if _, err := CreateIdempotency(context.Background(), db, "u1", scopePurchases, "k1", "p1", 201, time.Hour); err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected plain DB error, got %v", err)
	}
}
