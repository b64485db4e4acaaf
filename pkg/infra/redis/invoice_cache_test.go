package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"

	"github.com/ona79/facturation-app/pkg/domain"
	"github.com/ona79/facturation-app/pkg/infra/memory"
)

const ttl = time.Minute

func sampleInvoice() *domain.Invoice {
	return &domain.Invoice{
		ID:       "inv-1",
		Number:   "FACT-20261014-0042",
		IssuedAt: time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC),
		Issuer:   domain.Issuer{Name: "Boutique Awa"},
		Lines: []domain.LineItem{
			domain.NewLineItem("Chair", decimal.NewFromInt(1000), 3, ""),
		},
		Subtotal:   decimal.NewFromInt(3000),
		Tax:        domain.Tax{Rate: decimal.Zero, Amount: decimal.Zero},
		GrandTotal: decimal.NewFromInt(3000),
		Currency:   "FCFA",
	}
}

func payload(t *testing.T, inv *domain.Invoice) string {
	t.Helper()
	b, err := json.Marshal(inv)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestInsertWritesThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := memory.NewInvoiceStore()
	cache := NewInvoiceCache(inner, db, "fx:", ttl, nil)

	inv := sampleInvoice()
	body := payload(t, inv)
	mock.ExpectSet("fx:invoice:id:inv-1", body, ttl).SetVal("OK")
	mock.ExpectSet("fx:invoice:number:FACT-20261014-0042", body, ttl).SetVal("OK")

	if err := cache.Insert(context.Background(), inv); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if inner.Len() != 1 {
		t.Errorf("expected inner store to hold the invoice")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestInsertDuplicateSkipsCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := memory.NewInvoiceStore()
	_ = inner.Insert(context.Background(), sampleInvoice())
	cache := NewInvoiceCache(inner, db, "", ttl, nil)

	dup := sampleInvoice()
	dup.ID = "inv-2"
	err := cache.Insert(context.Background(), dup)
	if !errors.Is(err, domain.ErrDuplicateNumber) {
		t.Fatalf("expected ErrDuplicateNumber, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFindByNumberHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewInvoiceCache(memory.NewInvoiceStore(), db, "", ttl, nil)

	inv := sampleInvoice()
	mock.ExpectGet("invoice:number:FACT-20261014-0042").SetVal(payload(t, inv))

	got, err := cache.FindByNumber(context.Background(), inv.Number)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.ID != inv.ID || !got.GrandTotal.Equal(inv.GrandTotal) || !got.IssuedAt.Equal(inv.IssuedAt) {
		t.Errorf("unexpected invoice from cache: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFindByIDMissLoadsAndFills(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := memory.NewInvoiceStore()
	inv := sampleInvoice()
	_ = inner.Insert(context.Background(), inv)
	cache := NewInvoiceCache(inner, db, "", ttl, nil)

	body := payload(t, inv)
	mock.ExpectGet("invoice:id:inv-1").RedisNil()
	mock.ExpectSet("invoice:id:inv-1", body, ttl).SetVal("OK")
	mock.ExpectSet("invoice:number:FACT-20261014-0042", body, ttl).SetVal("OK")

	got, err := cache.FindByID(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Number != inv.Number {
		t.Errorf("expected %s, got %s", inv.Number, got.Number)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFindByNumberMissIsNotCached(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewInvoiceCache(memory.NewInvoiceStore(), db, "", ttl, nil)

	mock.ExpectGet("invoice:number:FACT-20261014-0001").RedisNil()

	_, err := cache.FindByNumber(context.Background(), "FACT-20261014-0001")
	if !errors.Is(err, domain.ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisDownFallsBackToStore(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := memory.NewInvoiceStore()
	inv := sampleInvoice()
	_ = inner.Insert(context.Background(), inv)
	cache := NewInvoiceCache(inner, db, "", ttl, nil)

	down := errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
	mock.ExpectGet("invoice:number:FACT-20261014-0042").SetErr(down)
	mock.ExpectSet("invoice:id:inv-1", payload(t, inv), ttl).SetErr(down)

	got, err := cache.FindByNumber(context.Background(), inv.Number)
	if err != nil {
		t.Fatalf("expected fallback to inner store, got %v", err)
	}
	if got.ID != inv.ID {
		t.Errorf("expected %s, got %s", inv.ID, got.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDeleteInvalidates(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := memory.NewInvoiceStore()
	_ = inner.Insert(context.Background(), sampleInvoice())
	cache := NewInvoiceCache(inner, db, "", ttl, nil)

	mock.ExpectDel("invoice:id:inv-1", "invoice:number:FACT-20261014-0042").SetVal(2)

	ok, err := cache.DeleteByID(context.Background(), "inv-1")
	if err != nil || !ok {
		t.Fatalf("expected deletion, got ok=%v err=%v", ok, err)
	}
	if inner.Len() != 0 {
		t.Errorf("expected inner store to be empty")
	}

	ok, err = cache.DeleteByID(context.Background(), "inv-1")
	if err != nil || ok {
		t.Errorf("expected no-op on second delete, got ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

// cancellingStore cancels the caller's request while the load is running.
type cancellingStore struct {
	*memory.InvoiceStore
	cancel context.CancelFunc
}

func (s cancellingStore) FindByID(ctx context.Context, id string) (*domain.Invoice, error) {
	s.cancel()
	return s.InvoiceStore.FindByID(ctx, id)
}

func TestSharedLoadSurvivesCallerCancel(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := memory.NewInvoiceStore()
	inv := sampleInvoice()
	_ = inner.Insert(context.Background(), inv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache := NewInvoiceCache(cancellingStore{InvoiceStore: inner, cancel: cancel}, db, "", ttl, nil)

	body := payload(t, inv)
	mock.ExpectGet("invoice:id:inv-1").RedisNil()
	mock.ExpectSet("invoice:id:inv-1", body, ttl).SetVal("OK")
	mock.ExpectSet("invoice:number:FACT-20261014-0042", body, ttl).SetVal("OK")

	got, err := cache.FindByID(ctx, "inv-1")
	if err != nil {
		t.Fatalf("expected the shared load to ignore the caller's cancel, got %v", err)
	}
	if got.ID != inv.ID {
		t.Errorf("expected %s, got %s", inv.ID, got.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
