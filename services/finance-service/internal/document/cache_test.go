package document_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/blob"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/document"
	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/store/memory"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/logger"
)

// countingRenderer returns a tiny fake PDF and counts calls.
type countingRenderer struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	block bool

	// started is closed on the first call; the render then waits for release.
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *countingRenderer) Render(ctx context.Context, doc *invoice.Invoice, kind document.Kind) ([]byte, error) {
	r.calls.Add(1)
	if r.started != nil {
		r.once.Do(func() { close(r.started) })
		<-r.release
	}
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3 " + doc.DocumentNumber + " " + string(kind)), nil
}

type cacheFixture struct {
	svc      *document.CacheService
	store    *memory.Store
	blobs    *blob.MemoryStore
	renderer *countingRenderer
}

func newCacheFixture() *cacheFixture {
	f := &cacheFixture{
		store:    memory.NewStore(),
		blobs:    blob.NewMemoryStore(),
		renderer: &countingRenderer{},
	}
	f.svc = document.NewCacheService(f.store, f.blobs, f.renderer).WithLogger(logger.Nop())
	return f
}

func pendingDoc() *invoice.Invoice {
	issued := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	return &invoice.Invoice{
		ID:             uuid.New(),
		Type:           invoice.TypeInvoice,
		DocumentNumber: "INV-2025-0007",
		Status:         invoice.StatusPending,
		CustomerName:   "Acme Pty Ltd",
		Currency:       "AUD",
		GSTPercent:     decimal.NewFromInt(10),
		IssuedDate:     issued,
		DueDate:        issued.AddDate(0, 0, 14),
		Items: []invoice.LineItem{
			{Description: "Consulting", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50)},
		},
	}
}

func TestGetOrCreate_ReusesUnchangedContent(t *testing.T) {
	f := newCacheFixture()
	ctx := context.Background()
	doc := pendingDoc()

	first, err := f.svc.GetOrCreate(ctx, doc, document.KindInvoice, document.Options{})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if !first.Regenerated {
		t.Error("first call must render")
	}
	if !strings.HasPrefix(first.BlobKey, "documents/"+doc.ID.String()+"/invoice/") {
		t.Errorf("unexpected blob key %s", first.BlobKey)
	}
	if first.SignedURL == "" {
		t.Error("expected a signed url")
	}

	doc.Notes = "internal note"
	doc.Version++
	second, err := f.svc.GetOrCreate(ctx, doc, document.KindInvoice, document.Options{})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.Regenerated {
		t.Error("unchanged content re-rendered")
	}
	if second.ArtifactID != first.ArtifactID || second.BlobKey != first.BlobKey {
		t.Error("expected the cached artifact to be served")
	}
	if f.renderer.calls.Load() != 1 || f.blobs.Puts() != 1 {
		t.Errorf("renders=%d puts=%d, want 1/1", f.renderer.calls.Load(), f.blobs.Puts())
	}
}

func TestGetOrCreate_ChangedContentAppendsArtifact(t *testing.T) {
	f := newCacheFixture()
	ctx := context.Background()
	doc := pendingDoc()

	first, err := f.svc.GetOrCreate(ctx, doc, document.KindInvoice, document.Options{})
	if err != nil {
		t.Fatal(err)
	}

	doc.Items = append(doc.Items, invoice.LineItem{Description: "Travel", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(25)})
	second, err := f.svc.GetOrCreate(ctx, doc, document.KindInvoice, document.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !second.Regenerated || second.ArtifactID == first.ArtifactID || second.ContentHash == first.ContentHash {
		t.Fatalf("expected a new artifact for changed items: %+v", second)
	}

	history, err := f.svc.History(ctx, doc.ID, document.KindInvoice)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(history))
	}
	if history[0].ID != second.ArtifactID || history[1].ID != first.ArtifactID {
		t.Error("history must be newest first")
	}

	// the old blob is kept
	if ok, _ := f.blobs.Exists(ctx, first.BlobKey); !ok {
		t.Error("previous artifact blob was removed")
	}
}

func TestGetOrCreate_MissingBlobIsRegenerated(t *testing.T) {
	f := newCacheFixture()
	ctx := context.Background()
	doc := pendingDoc()

	first, err := f.svc.GetOrCreate(ctx, doc, document.KindInvoice, document.Options{})
	if err != nil {
		t.Fatal(err)
	}
	f.blobs.Delete(first.BlobKey)

	second, err := f.svc.GetOrCreate(ctx, doc, document.KindInvoice, document.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !second.Regenerated || second.ArtifactID == first.ArtifactID {
		t.Fatal("lost blob must be rendered again under a new artifact")
	}
	if second.ContentHash != first.ContentHash {
		t.Error("content did not change, hash should match")
	}
	data, err := f.svc.Download(ctx, second.BlobKey, 0)
	if err != nil || !strings.HasPrefix(string(data), "%PDF") {
		t.Errorf("download: %q %v", data, err)
	}
}

func TestGetOrCreate_Receipt(t *testing.T) {
	f := newCacheFixture()
	ctx := context.Background()
	doc := pendingDoc()

	if _, err := f.svc.GetOrCreate(ctx, doc, document.KindReceipt, document.Options{}); !errors.Is(err, domainErr.ErrInvalidOperation) {
		t.Fatalf("receipt for PENDING: expected ErrInvalidOperation, got %v", err)
	}
	if f.renderer.calls.Load() != 0 {
		t.Error("renderer called for a rejected receipt")
	}

	paid := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	method, receipt := "card", "RCT-2025-0007"
	doc.Status = invoice.StatusPaid
	doc.PaidDate, doc.PaymentMethod, doc.ReceiptNumber = &paid, &method, &receipt

	res, err := f.svc.GetOrCreate(ctx, doc, document.KindReceipt, document.Options{})
	if err != nil {
		t.Fatalf("receipt for PAID: %v", err)
	}
	if !strings.Contains(res.BlobKey, "/receipt/") {
		t.Errorf("unexpected blob key %s", res.BlobKey)
	}
}

func TestGetOrCreate_InvalidInput(t *testing.T) {
	f := newCacheFixture()
	ctx := context.Background()
	if _, err := f.svc.GetOrCreate(ctx, nil, document.KindInvoice, document.Options{}); !errors.Is(err, domainErr.ErrValidation) {
		t.Errorf("nil doc: got %v", err)
	}
	if _, err := f.svc.GetOrCreate(ctx, pendingDoc(), "QUOTE", document.Options{}); !errors.Is(err, domainErr.ErrValidation) {
		t.Errorf("bad kind: got %v", err)
	}
	if _, err := f.svc.History(ctx, uuid.New(), "QUOTE"); !errors.Is(err, domainErr.ErrValidation) {
		t.Errorf("history bad kind: got %v", err)
	}
}

func TestGetOrCreate_RenderFailureRecordsNothing(t *testing.T) {
	f := newCacheFixture()
	f.renderer.err = errors.New("font missing")
	doc := pendingDoc()

	if _, err := f.svc.GetOrCreate(context.Background(), doc, document.KindInvoice, document.Options{}); err == nil {
		t.Fatal("expected render error")
	}
	history, _ := f.svc.History(context.Background(), doc.ID, document.KindInvoice)
	if len(history) != 0 || f.blobs.Puts() != 0 {
		t.Errorf("failed render left artifacts=%d puts=%d", len(history), f.blobs.Puts())
	}
}

func TestGetOrCreate_Timeout(t *testing.T) {
	f := newCacheFixture()
	f.renderer.block = true

	_, err := f.svc.GetOrCreate(context.Background(), pendingDoc(), document.KindInvoice, document.Options{Timeout: 20 * time.Millisecond})
	if !errors.Is(err, domainErr.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestGetOrCreate_ConcurrentCallersShareOneRender(t *testing.T) {
	f := newCacheFixture()
	f.renderer.delay = 50 * time.Millisecond
	doc := pendingDoc()
	const n = 10

	var wg sync.WaitGroup
	results := make([]*document.Result, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.GetOrCreate(context.Background(), doc, document.KindInvoice, document.Options{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
		if results[i].ContentHash != results[0].ContentHash {
			t.Error("callers saw different hashes for the same content")
		}
	}
	if calls := f.renderer.calls.Load(); calls >= n {
		t.Errorf("expected concurrent renders to be collapsed, got %d renders for %d callers", calls, n)
	}
}

func TestGetOrCreate_CancelledCallerDoesNotFailJoinedCallers(t *testing.T) {
	f := newCacheFixture()
	f.renderer.started = make(chan struct{})
	f.renderer.release = make(chan struct{})
	doc := pendingDoc()

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.svc.GetOrCreate(firstCtx, doc, document.KindInvoice, document.Options{})
		firstErr <- err
	}()
	<-f.renderer.started

	type outcome struct {
		res *document.Result
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := f.svc.GetOrCreate(context.Background(), doc, document.KindInvoice, document.Options{})
		second <- outcome{res, err}
	}()
	// Let the second caller join the in-flight render.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller: expected context.Canceled, got %v", err)
	}
	close(f.renderer.release)

	got := <-second
	if got.err != nil {
		t.Fatalf("joined caller failed with the first caller's cancellation: %v", got.err)
	}
	if ok, _ := f.blobs.Exists(context.Background(), got.res.BlobKey); !ok {
		t.Error("render finished but blob is missing")
	}
	if calls := f.renderer.calls.Load(); calls != 1 {
		t.Errorf("expected one render, got %d", calls)
	}
}
