package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

func TestCreateClient_AssignsIDAndRegistration(t *testing.T) {
	db := newTestDB(t, &domain.Client{})
	ctx := context.Background()

	c := &domain.Client{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	if err := CreateClient(ctx, db, c); err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if c.ID == "" || c.RegisteredAt.IsZero() {
		t.Fatalf("expected ID and RegisteredAt to be set: %+v", c)
	}

	got, err := GetClient(ctx, db, c.ID)
	if err != nil || got.Email != "ada@example.com" {
		t.Fatalf("GetClient: got=%+v err=%v", got, err)
	}
	if ok, err := ClientExists(ctx, db, c.ID); err != nil || !ok {
		t.Fatalf("ClientExists = %v, %v", ok, err)
	}
}

func TestCreateClient_DuplicateEmail(t *testing.T) {
	db := newTestDB(t, &domain.Client{})
	ctx := context.Background()

	if err := CreateClient(ctx, db, &domain.Client{FirstName: "a", Email: "x@example.com"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	err := CreateClient(ctx, db, &domain.Client{FirstName: "b", Email: "x@example.com"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestGetClient_NotFound(t *testing.T) {
	db := newTestDB(t, &domain.Client{})
	if _, err := GetClient(context.Background(), db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientListings(t *testing.T) {
	db := newTestDB(t, &domain.Client{})
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []domain.Client{
		{ID: "a", FirstName: "a", Email: "a@x", RegisteredAt: base, ChurnScore: 0.9},
		{ID: "b", FirstName: "b", Email: "b@x", RegisteredAt: base.Add(time.Hour), ChurnScore: 0.65},
		{ID: "c", FirstName: "c", Email: "c@x", RegisteredAt: base.Add(2 * time.Hour), ChurnScore: 0.1},
	}
	for i := range seed {
		if err := CreateClient(ctx, db, &seed[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	page, err := ListClientsPage(ctx, db, 0, 2)
	if err != nil || len(page) != 2 || page[0].ID != "c" || page[1].ID != "b" {
		t.Fatalf("ListClientsPage = %+v, %v", page, err)
	}

	byReg, err := ListClientsByRegistration(ctx, db)
	if err != nil || len(byReg) != 3 || byReg[0].ID != "a" || byReg[2].ID != "c" {
		t.Fatalf("ListClientsByRegistration = %+v, %v", byReg, err)
	}

	risky, err := ListClientsByChurn(ctx, db, 0.6, 5)
	if err != nil || len(risky) != 2 || risky[0].ID != "a" || risky[1].ID != "b" {
		t.Fatalf("ListClientsByChurn = %+v, %v", risky, err)
	}

	if n, _ := CountClientsByChurn(ctx, db, 0.7); n != 1 {
		t.Fatalf("CountClientsByChurn = %d; want 1", n)
	}
	if n, _ := CountClientsRegisteredSince(ctx, db, base.Add(30*time.Minute)); n != 2 {
		t.Fatalf("CountClientsRegisteredSince = %d; want 2", n)
	}
	if n, _ := CountClients(ctx, db); n != 3 {
		t.Fatalf("CountClients = %d; want 3", n)
	}
}

func TestUpdateClientMetrics(t *testing.T) {
	db := newTestDB(t, &domain.Client{})
	ctx := context.Background()

	c := &domain.Client{FirstName: "a", Email: "a@x"}
	if err := CreateClient(ctx, db, c); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := UpdateClientMetrics(ctx, db, c.ID, 4, 120.5, 0.42); err != nil {
		t.Fatalf("UpdateClientMetrics: %v", err)
	}
	got, _ := GetClient(ctx, db, c.ID)
	if got.TotalPurchases != 4 || got.LifetimeValue != 120.5 || got.ChurnScore != 0.42 {
		t.Fatalf("metrics not written: %+v", got)
	}

	if err := UpdateClientMetrics(ctx, db, "missing", 1, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateClientProfile(t *testing.T) {
	db := newTestDB(t, &domain.Client{})
	ctx := context.Background()

	a := &domain.Client{FirstName: "a", Email: "a@x"}
	b := &domain.Client{FirstName: "b", Email: "b@x"}
	_ = CreateClient(ctx, db, a)
	_ = CreateClient(ctx, db, b)

	a.LastName = "Smith"
	if err := UpdateClientProfile(ctx, db, a); err != nil {
		t.Fatalf("UpdateClientProfile: %v", err)
	}
	b.Email = "a@x"
	if err := UpdateClientProfile(ctx, db, b); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := UpdateClientProfile(ctx, db, &domain.Client{ID: "missing", Email: "z@x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteClient_RemovesPurchases(t *testing.T) {
	db := newTestDB(t, &domain.Client{}, &domain.Purchase{})
	ctx := context.Background()

	c := &domain.Client{FirstName: "a", Email: "a@x"}
	_ = CreateClient(ctx, db, c)
	if err := CreatePurchase(ctx, db, &domain.Purchase{ClientID: c.ID, ProductName: "p", Quantity: 1, UnitPrice: 1, Total: 1}); err != nil {
		t.Fatalf("seed purchase: %v", err)
	}

	if err := DeleteClient(ctx, db, c.ID); err != nil {
		t.Fatalf("DeleteClient: %v", err)
	}
	if n, _ := CountPurchases(ctx, db); n != 0 {
		t.Fatalf("purchases left behind: %d", n)
	}
	if err := DeleteClient(ctx, db, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}
