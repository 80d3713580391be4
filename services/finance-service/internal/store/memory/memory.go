// services/finance-service/internal/store/memory/memory.go

package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/document"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/statistics"
)

// Store keeps every table in process memory. Transactions run one at a time
// and roll back by restoring a snapshot, which gives tests the same
// all-or-nothing behaviour as Postgres. A rollback also drops writes made
// outside any transaction while it was running.
type Store struct {
	txMu sync.Mutex   // held for the whole of RunInTx
	mu   sync.RWMutex // guards the maps below

	invoices  map[uuid.UUID]*invoice.Invoice
	numbers   map[string]uuid.UUID
	artifacts []document.Artifact
}

func NewStore() *Store {
	return &Store{
		invoices: make(map[uuid.UUID]*invoice.Invoice),
		numbers:  make(map[string]uuid.UUID),
	}
}

type snapshot struct {
	invoices  map[uuid.UUID]*invoice.Invoice
	numbers   map[string]uuid.UUID
	artifacts []document.Artifact
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		invoices:  make(map[uuid.UUID]*invoice.Invoice, len(s.invoices)),
		numbers:   make(map[string]uuid.UUID, len(s.numbers)),
		artifacts: append([]document.Artifact(nil), s.artifacts...),
	}
	for id, inv := range s.invoices {
		snap.invoices[id] = cloneInvoice(inv)
	}
	for n, id := range s.numbers {
		snap.numbers[n] = id
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices = snap.invoices
	s.numbers = snap.numbers
	s.artifacts = snap.artifacts
}

// RunInTx serialises fn against every other transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		} else if err != nil {
			s.restore(snap)
		}
	}()

	if err = fn(ctx); err != nil {
		return err
	}
	// a deadline hit inside fn aborts the commit like it would in Postgres
	return ctx.Err()
}

func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func cloneInvoice(src *invoice.Invoice) *invoice.Invoice {
	dst := *src
	dst.Items = append([]invoice.LineItem(nil), src.Items...)
	dst.Payments = append([]invoice.Payment(nil), src.Payments...)
	dst.StatusHistory = append([]invoice.StatusHistoryEntry(nil), src.StatusHistory...)
	if src.Metadata.Entries != nil {
		dst.Metadata.Entries = make(map[string]string, len(src.Metadata.Entries))
		for k, v := range src.Metadata.Entries {
			dst.Metadata.Entries[k] = v
		}
	}
	return &dst
}

func (s *Store) InsertInvoice(ctx context.Context, inv *invoice.Invoice) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.numbers[inv.DocumentNumber]; taken {
		return fmt.Errorf("%w: %s", domainErr.ErrDuplicateDocumentNumber, inv.DocumentNumber)
	}
	if _, exists := s.invoices[inv.ID]; exists {
		return fmt.Errorf("invoice %s already exists", inv.ID)
	}
	s.invoices[inv.ID] = cloneInvoice(inv)
	s.numbers[inv.DocumentNumber] = inv.ID
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok || inv.DeletedAt != nil {
		return nil, nil
	}
	out := cloneInvoice(inv)
	sort.SliceStable(out.Items, func(i, j int) bool { return out.Items[i].Position < out.Items[j].Position })
	return out, nil
}

// LockInvoice needs no extra lock: callers inside RunInTx already hold txMu.
func (s *Store) LockInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return s.GetInvoice(ctx, id)
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.invoices[inv.ID]
	if !ok || stored.DeletedAt != nil || stored.Version != inv.Version {
		return fmt.Errorf("%w: invoice %s at version %d", domainErr.ErrConcurrentModification, inv.ID, inv.Version)
	}
	items, payments, history := stored.Items, stored.Payments, stored.StatusHistory
	next := cloneInvoice(inv)
	next.Items, next.Payments, next.StatusHistory = items, payments, history
	next.Version = inv.Version + 1
	s.invoices[inv.ID] = next
	inv.Version = next.Version
	return nil
}

func (s *Store) DeleteItemsExcept(ctx context.Context, invoiceID uuid.UUID, keep []uuid.UUID) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.invoices[invoiceID]
	if !ok {
		return domainErr.NotFound("invoice", invoiceID)
	}
	kept := make(map[uuid.UUID]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	items := stored.Items[:0:0]
	for _, item := range stored.Items {
		if _, ok := kept[item.ID]; ok {
			items = append(items, item)
		}
	}
	stored.Items = items
	return nil
}

func (s *Store) UpdateItem(ctx context.Context, item invoice.LineItem) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.invoices[item.InvoiceID]
	if !ok {
		return domainErr.NotFound("invoice", item.InvoiceID)
	}
	for i := range stored.Items {
		if stored.Items[i].ID == item.ID {
			stored.Items[i] = item
			return nil
		}
	}
	return domainErr.NotFound("line item", item.ID)
}

func (s *Store) InsertItems(ctx context.Context, items []invoice.LineItem) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		stored, ok := s.invoices[item.InvoiceID]
		if !ok {
			return domainErr.NotFound("invoice", item.InvoiceID)
		}
		stored.Items = append(stored.Items, item)
	}
	return nil
}

func (s *Store) InsertPayment(ctx context.Context, p invoice.Payment) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.invoices[p.InvoiceID]
	if !ok {
		return domainErr.NotFound("invoice", p.InvoiceID)
	}
	stored.Payments = append(stored.Payments, p)
	return nil
}

func (s *Store) AppendStatusHistory(ctx context.Context, entry invoice.StatusHistoryEntry) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.invoices[entry.InvoiceID]
	if !ok {
		return domainErr.NotFound("invoice", entry.InvoiceID)
	}
	stored.StatusHistory = append(stored.StatusHistory, entry)
	return nil
}

func (s *Store) SoftDeleteInvoice(ctx context.Context, id uuid.UUID, version int64, at time.Time) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.invoices[id]
	if !ok || stored.DeletedAt != nil || stored.Version != version {
		return fmt.Errorf("%w: invoice %s at version %d", domainErr.ErrConcurrentModification, id, version)
	}
	stored.DeletedAt = &at
	stored.UpdatedAt = at
	stored.Version++
	return nil
}

// LatestNumber includes soft-deleted documents: numbers are never reused.
func (s *Store) LatestNumber(ctx context.Context, prefix string, year int) (string, error) {
	if err := checkCtx(ctx); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	scope := fmt.Sprintf("%s-%d-", prefix, year)
	latest := ""
	for number := range s.numbers {
		if !strings.HasPrefix(number, scope) {
			continue
		}
		if len(number) > len(latest) || (len(number) == len(latest) && number > latest) {
			latest = number
		}
	}
	return latest, nil
}

func (s *Store) LatestArtifact(ctx context.Context, owner uuid.UUID, kind document.Kind) (*document.Artifact, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.artifacts) - 1; i >= 0; i-- {
		a := s.artifacts[i]
		if a.OwnerDocumentID == owner && a.Kind == kind {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertArtifact(ctx context.Context, a *document.Artifact) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = append(s.artifacts, *a)
	return nil
}

func (s *Store) ListArtifacts(ctx context.Context, owner uuid.UUID, kind document.Kind) ([]document.Artifact, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []document.Artifact
	for i := len(s.artifacts) - 1; i >= 0; i-- {
		a := s.artifacts[i]
		if a.OwnerDocumentID == owner && a.Kind == kind {
			out = append(out, a)
		}
	}
	return out, nil
}

// StatusTotals mirrors the grouped SQL aggregate over live documents.
func (s *Store) StatusTotals(ctx context.Context, filter *statistics.DateFilter) ([]statistics.StatusTotal, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	grouped := make(map[invoice.InvoiceStatus]*statistics.StatusTotal)
	for _, inv := range s.invoices {
		if inv.DeletedAt != nil || !filter.Contains(inv.IssuedDate) {
			continue
		}
		row, ok := grouped[inv.Status]
		if !ok {
			row = &statistics.StatusTotal{Status: inv.Status, Sum: decimal.Zero}
			grouped[inv.Status] = row
		}
		row.Count++
		row.Sum = row.Sum.Add(inv.Amount)
	}
	out := make([]statistics.StatusTotal, 0, len(grouped))
	for _, status := range invoice.AllStatuses {
		if row, ok := grouped[status]; ok {
			out = append(out, *row)
		}
	}
	return out, nil
}
