package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/document"
	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/notify"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/logger"
)

type fakeReader struct {
	docs map[uuid.UUID]*invoice.Invoice
	err  error
}

func (f *fakeReader) GetByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, domainErr.NotFound("invoice", id)
	}
	return doc, nil
}

type fakeCache struct {
	mu    sync.Mutex
	kinds []document.Kind
	err   error
}

func (f *fakeCache) GetOrCreate(ctx context.Context, doc *invoice.Invoice, kind document.Kind, opts document.Options) (*document.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	if f.err != nil {
		return nil, f.err
	}
	return &document.Result{Regenerated: true}, nil
}

func eventBytes(t *testing.T, id uuid.UUID, status invoice.InvoiceStatus) []byte {
	t.Helper()
	raw, err := json.Marshal(notify.Envelope{
		Type:    notify.EventStatusChanged,
		Payload: invoice.StatusChangedEvent{InvoiceID: id, NewStatus: status},
	})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestHandle(t *testing.T) {
	paidID := uuid.New()
	reader := &fakeReader{docs: map[uuid.UUID]*invoice.Invoice{
		paidID: {ID: paidID, DocumentNumber: "INV-2025-0001", Status: invoice.StatusPaid},
	}}

	tests := []struct {
		name      string
		value     []byte
		cacheErr  error
		wantKinds int
		wantErr   bool
	}{
		{name: "paid prewarms invoice and receipt", value: eventBytes(t, paidID, invoice.StatusPaid), wantKinds: 2},
		{name: "other status ignored", value: eventBytes(t, paidID, invoice.StatusOverdue)},
		{name: "undecodable dropped", value: []byte("{broken")},
		{name: "vanished document dropped", value: eventBytes(t, uuid.New(), invoice.StatusPaid)},
		{
			name:      "validation failure dropped",
			value:     eventBytes(t, paidID, invoice.StatusPaid),
			cacheErr:  domainErr.NewValidationError("kind", "unsupported"),
			wantKinds: 2,
		},
		{
			name:      "transient failure retried",
			value:     eventBytes(t, paidID, invoice.StatusPaid),
			cacheErr:  errors.New("storage unavailable"),
			wantKinds: 2,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &fakeCache{err: tt.cacheErr}
			w := NewReceiptPrewarmer(reader, cache, document.Options{}).WithLogger(logger.Nop())

			err := w.Handle(context.Background(), []byte("k"), tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(cache.kinds) != tt.wantKinds {
				t.Errorf("cache called %d times, want %d", len(cache.kinds), tt.wantKinds)
			}
		})
	}
}

func TestHandle_ReaderFailureRetried(t *testing.T) {
	w := NewReceiptPrewarmer(&fakeReader{err: domainErr.ErrTimeout}, &fakeCache{}, document.Options{}).WithLogger(logger.Nop())
	err := w.Handle(context.Background(), nil, eventBytes(t, uuid.New(), invoice.StatusPaid))
	if !errors.Is(err, domainErr.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}
