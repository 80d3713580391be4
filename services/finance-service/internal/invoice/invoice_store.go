// services/finance-service/internal/invoice/invoice_store.go

package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InvoiceStore handles persistence of the document aggregate.
// Placed in the invoice package to avoid import cycles between store and invoice.
// Every method uses the transaction carried by ctx when there is one.
type InvoiceStore interface {
	// InsertInvoice writes header, items and the initial history row.
	// A taken document number surfaces as ErrDuplicateDocumentNumber.
	InsertInvoice(ctx context.Context, inv *Invoice) error

	// GetInvoice returns the full aggregate, or nil, nil when the document is
	// missing or soft-deleted.
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// LockInvoice is GetInvoice with a row lock held until the transaction ends.
	LockInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// UpdateInvoice writes the header when the stored version still equals
	// inv.Version and bumps inv.Version on success.
	// A stale version is ErrConcurrentModification.
	UpdateInvoice(ctx context.Context, inv *Invoice) error

	DeleteItemsExcept(ctx context.Context, invoiceID uuid.UUID, keep []uuid.UUID) error
	UpdateItem(ctx context.Context, item LineItem) error
	InsertItems(ctx context.Context, items []LineItem) error

	InsertPayment(ctx context.Context, p Payment) error
	AppendStatusHistory(ctx context.Context, entry StatusHistoryEntry) error

	// SoftDeleteInvoice sets deleted_at under the same version check as UpdateInvoice.
	SoftDeleteInvoice(ctx context.Context, id uuid.UUID, version int64, at time.Time) error
}

// TxManager runs fn inside one transaction carried by the context.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// StatusChangedEvent is emitted after a committed status change.
type StatusChangedEvent struct {
	InvoiceID      uuid.UUID     `json:"invoice_id"`
	DocumentNumber string        `json:"document_number"`
	Type           DocumentType  `json:"type"`
	PreviousStatus InvoiceStatus `json:"previous_status,omitempty"`
	NewStatus      InvoiceStatus `json:"new_status"`
	Actor          string        `json:"actor"`
	Version        int64         `json:"version"`
	OccurredAt     time.Time     `json:"occurred_at"`
}

// EventPublisher receives lifecycle events once the transaction has committed.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, event StatusChangedEvent) error
}

// ReminderJob is handed to the delivery layer after a reminder is recorded.
type ReminderJob struct {
	InvoiceID      uuid.UUID `json:"invoice_id"`
	DocumentNumber string    `json:"document_number"`
	CustomerEmail  string    `json:"customer_email"`
	CustomerName   string    `json:"customer_name"`
	AmountDue      string    `json:"amount_due"`
	Currency       string    `json:"currency"`
	DueDate        string    `json:"due_date"`
	ReminderCount  int       `json:"reminder_count"`
}

type ReminderNotifier interface {
	EnqueueReminder(ctx context.Context, job ReminderJob) error
}
