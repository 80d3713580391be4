// services/finance-service/internal/invoice/invoice_models.go

package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	StatusDraft         InvoiceStatus = "DRAFT"
	StatusPending       InvoiceStatus = "PENDING"
	StatusPaid          InvoiceStatus = "PAID"
	StatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	StatusOverdue       InvoiceStatus = "OVERDUE"
	StatusCancelled     InvoiceStatus = "CANCELLED"
)

// AllStatuses lists every status in display order.
var AllStatuses = []InvoiceStatus{
	StatusDraft,
	StatusPending,
	StatusPartiallyPaid,
	StatusOverdue,
	StatusPaid,
	StatusCancelled,
}

func (s InvoiceStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// DocumentType distinguishes invoices from quotes. Both share one status machine
// and differ only in their number prefix.
type DocumentType string

const (
	TypeInvoice DocumentType = "INVOICE"
	TypeQuote   DocumentType = "QUOTE"
)

func (t DocumentType) Valid() bool {
	return t == TypeInvoice || t == TypeQuote
}

const DefaultCurrency = "AUD"

// Invoice is the FinancialDocument aggregate: header, owned line items,
// payments and the append-only status history.
type Invoice struct {
	ID             uuid.UUID
	Type           DocumentType
	DocumentNumber string // PREFIX-YEAR-NNNN, assigned once at creation
	Status         InvoiceStatus

	CustomerID    uuid.UUID
	CustomerName  string
	CustomerEmail string
	Currency      string

	Amount         decimal.Decimal // always Σ Items[].Total
	GSTPercent     decimal.Decimal
	DiscountAmount decimal.Decimal
	AmountPaid     decimal.Decimal
	AmountDue      decimal.Decimal

	IssuedDate time.Time
	DueDate    time.Time

	PaidDate      *time.Time
	PaymentMethod *string
	ReceiptNumber *string

	CancelledDate *time.Time
	CancelReason  *string

	RemindersSent  int
	LastReminderAt *time.Time

	Notes    string // internal only, never rendered
	Metadata Metadata

	DeletedAt *time.Time
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time

	Items         []LineItem
	Payments      []Payment
	StatusHistory []StatusHistoryEntry
}

type LineItem struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	Position    int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal // Quantity * UnitPrice
	ProductID   *uuid.UUID      // weak reference into the product catalog
}

type Payment struct {
	ID        uuid.UUID
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	Method    string
	PaidDate  time.Time
	Notes     string
	CreatedAt time.Time
}

// StatusHistoryEntry is one row of the append-only transition log.
// PreviousStatus is nil for the entry written at creation.
type StatusHistoryEntry struct {
	ID             uuid.UUID
	InvoiceID      uuid.UUID
	PreviousStatus *InvoiceStatus
	NewStatus      InvoiceStatus
	ChangedAt      time.Time
	Actor          string
	Note           string
}

// IsTerminal reports whether the document can no longer change status.
func (inv *Invoice) IsTerminal() bool {
	return IsTerminal(inv.Status)
}

// Totals are the figures printed on the document. Amount stays the item
// subtotal; GST and discount are applied here, at rendering time.
type Totals struct {
	Subtotal   decimal.Decimal
	GST        decimal.Decimal
	Discount   decimal.Decimal
	GrandTotal decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

func (inv *Invoice) Totals() Totals {
	subtotal := SumItems(inv.Items)
	gst := subtotal.Mul(inv.GSTPercent).Div(hundred).Round(2)
	return Totals{
		Subtotal:   subtotal,
		GST:        gst,
		Discount:   inv.DiscountAmount,
		GrandTotal: subtotal.Add(gst).Sub(inv.DiscountAmount),
	}
}

// FormatAmount prints d with two decimals, or with every digit it has when
// it is more precise than that. Printed figures never hide a fraction of a cent.
func FormatAmount(d decimal.Decimal) string {
	if d.Equal(d.Round(2)) {
		return d.StringFixed(2)
	}
	return d.String()
}

// LineTotal computes quantity * unitPrice exactly.
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice)
}

// SumItems returns Σ items[].Total recomputed from quantity and unit price.
func SumItems(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(LineTotal(item.Quantity, item.UnitPrice))
	}
	return sum
}
