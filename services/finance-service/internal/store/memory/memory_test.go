package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/document"
	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/statistics"
)

func newDoc(number string, status invoice.InvoiceStatus, amount string, issued time.Time) *invoice.Invoice {
	return &invoice.Invoice{
		ID:             uuid.New(),
		DocumentNumber: number,
		Status:         status,
		Amount:         decimal.RequireFromString(amount),
		IssuedDate:     issued,
		Version:        1,
	}
}

var jan = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

func TestRunInTx_RollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	doc := newDoc("INV-2025-0001", invoice.StatusDraft, "10", jan)
	if err := s.InsertInvoice(ctx, doc); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		doc.Status = invoice.StatusPending
		if err := s.UpdateInvoice(ctx, doc); err != nil {
			return err
		}
		if err := s.InsertInvoice(ctx, newDoc("INV-2025-0002", invoice.StatusDraft, "5", jan)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, _ := s.GetInvoice(ctx, doc.ID)
	if got.Status != invoice.StatusDraft || got.Version != 1 {
		t.Errorf("update survived rollback: %s v%d", got.Status, got.Version)
	}
	latest, _ := s.LatestNumber(ctx, "INV", 2025)
	if latest != "INV-2025-0001" {
		t.Errorf("insert survived rollback, latest=%s", latest)
	}
}

func TestRunInTx_RollsBackOnPanic(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	defer func() {
		if recover() == nil {
			t.Fatal("panic was swallowed")
		}
		if latest, _ := s.LatestNumber(ctx, "INV", 2025); latest != "" {
			t.Errorf("insert survived panic, latest=%s", latest)
		}
	}()
	_ = s.RunInTx(ctx, func(ctx context.Context) error {
		_ = s.InsertInvoice(ctx, newDoc("INV-2025-0001", invoice.StatusDraft, "1", jan))
		panic("handler bug")
	})
}

func TestUpdateInvoice_VersionCheck(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	doc := newDoc("INV-2025-0001", invoice.StatusDraft, "10", jan)
	_ = s.InsertInvoice(ctx, doc)

	stale := *doc
	if err := s.UpdateInvoice(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.Version != 2 {
		t.Errorf("version not bumped on caller copy: %d", doc.Version)
	}
	if err := s.UpdateInvoice(ctx, &stale); !errors.Is(err, domainErr.ErrConcurrentModification) {
		t.Fatalf("stale write: expected ErrConcurrentModification, got %v", err)
	}
	if err := s.SoftDeleteInvoice(ctx, doc.ID, 1, jan); !errors.Is(err, domainErr.ErrConcurrentModification) {
		t.Fatalf("stale delete: expected ErrConcurrentModification, got %v", err)
	}
}

func TestInsertInvoice_DuplicateNumber(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.InsertInvoice(ctx, newDoc("INV-2025-0001", invoice.StatusDraft, "1", jan))
	err := s.InsertInvoice(ctx, newDoc("INV-2025-0001", invoice.StatusDraft, "1", jan))
	if !errors.Is(err, domainErr.ErrDuplicateDocumentNumber) {
		t.Fatalf("expected ErrDuplicateDocumentNumber, got %v", err)
	}
}

func TestLatestNumber_NumericOrderAndDeleted(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, n := range []string{"INV-2025-9999", "INV-2025-10000", "INV-2025-0002", "INV-2024-20000", "QUO-2025-50000"} {
		if err := s.InsertInvoice(ctx, newDoc(n, invoice.StatusDraft, "1", jan)); err != nil {
			t.Fatal(err)
		}
	}
	latest, err := s.LatestNumber(ctx, "INV", 2025)
	if err != nil {
		t.Fatal(err)
	}
	if latest != "INV-2025-10000" {
		t.Errorf("expected numeric ordering, got %s", latest)
	}

	doc := newDoc("INV-2025-10001", invoice.StatusDraft, "1", jan)
	_ = s.InsertInvoice(ctx, doc)
	if err := s.SoftDeleteInvoice(ctx, doc.ID, doc.Version, jan); err != nil {
		t.Fatal(err)
	}
	if latest, _ := s.LatestNumber(ctx, "INV", 2025); latest != "INV-2025-10001" {
		t.Errorf("soft-deleted numbers must still count, got %s", latest)
	}
	if got, _ := s.GetInvoice(ctx, doc.ID); got != nil {
		t.Error("soft-deleted document still readable")
	}
}

func TestStatusTotals(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	feb := jan.AddDate(0, 1, 0)
	docs := []*invoice.Invoice{
		newDoc("INV-2025-0001", invoice.StatusPaid, "100", jan),
		newDoc("INV-2025-0002", invoice.StatusPaid, "50.25", jan),
		newDoc("INV-2025-0003", invoice.StatusPending, "10", jan),
		newDoc("INV-2025-0004", invoice.StatusPending, "20", feb),
	}
	for _, d := range docs {
		_ = s.InsertInvoice(ctx, d)
	}
	deleted := newDoc("INV-2025-0005", invoice.StatusDraft, "999", jan)
	_ = s.InsertInvoice(ctx, deleted)
	_ = s.SoftDeleteInvoice(ctx, deleted.ID, 1, jan)

	rows, err := s.StatusTotals(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	byStatus := map[invoice.InvoiceStatus]statistics.StatusTotal{}
	for _, r := range rows {
		byStatus[r.Status] = r
	}
	if _, ok := byStatus[invoice.StatusDraft]; ok {
		t.Error("soft-deleted documents must not be counted")
	}
	if paid := byStatus[invoice.StatusPaid]; paid.Count != 2 || !paid.Sum.Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("paid row %+v", paid)
	}

	janOnly := &statistics.DateFilter{From: &jan, To: &jan}
	rows, _ = s.StatusTotals(ctx, janOnly)
	for _, r := range rows {
		if r.Status == invoice.StatusPending && r.Count != 1 {
			t.Errorf("date filter ignored: pending count %d", r.Count)
		}
	}
}

func TestArtifacts_NewestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	owner := uuid.New()

	if a, err := s.LatestArtifact(ctx, owner, document.KindInvoice); a != nil || err != nil {
		t.Fatalf("expected nil, nil before any render, got %v %v", a, err)
	}

	first := &document.Artifact{ID: uuid.New(), OwnerDocumentID: owner, Kind: document.KindInvoice, ContentHash: "a"}
	receipt := &document.Artifact{ID: uuid.New(), OwnerDocumentID: owner, Kind: document.KindReceipt, ContentHash: "r"}
	second := &document.Artifact{ID: uuid.New(), OwnerDocumentID: owner, Kind: document.KindInvoice, ContentHash: "b"}
	for _, a := range []*document.Artifact{first, receipt, second} {
		if err := s.InsertArtifact(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	latest, _ := s.LatestArtifact(ctx, owner, document.KindInvoice)
	if latest == nil || latest.ID != second.ID {
		t.Fatalf("expected second artifact, got %+v", latest)
	}
	list, _ := s.ListArtifacts(ctx, owner, document.KindInvoice)
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("unexpected history %+v", list)
	}
}

func TestCancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.GetInvoice(ctx, uuid.New()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := s.RunInTx(ctx, func(context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
