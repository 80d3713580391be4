package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
)

// ItemInput is one line item as sent by the caller. A nil ID means a new item.
type ItemInput struct {
	ID          *uuid.UUID
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	ProductID   *uuid.UUID
}

type CreateInput struct {
	Type           DocumentType  // defaults to INVOICE
	Status         InvoiceStatus // DRAFT (default) or PENDING
	CustomerID     uuid.UUID
	CustomerName   string
	CustomerEmail  string
	Currency       string
	GSTPercent     decimal.Decimal
	DiscountAmount decimal.Decimal
	IssuedDate     time.Time
	DueDate        time.Time
	Notes          string
	Metadata       *Metadata
	Items          []ItemInput
}

type CreateResult struct {
	ID             uuid.UUID
	DocumentNumber string
	Version        int64
}

// UpdateInput replaces the editable header fields and the full item set.
// Status must echo the stored status; moving status is done by the
// dedicated lifecycle operations only.
type UpdateInput struct {
	Status         InvoiceStatus
	CustomerName   string
	CustomerEmail  string
	Currency       string
	GSTPercent     decimal.Decimal
	DiscountAmount decimal.Decimal
	IssuedDate     time.Time
	DueDate        time.Time
	Notes          string
	Metadata       *Metadata
	Items          []ItemInput
}

type PaymentInput struct {
	Amount   decimal.Decimal
	Method   string
	PaidDate time.Time
	Notes    string
}

const maxItems = 500

var maxGSTPercent = decimal.NewFromInt(100)

const (
	// MoneyPlaces is the precision of prices and discounts.
	MoneyPlaces = 2
	// QuantityPlaces is the precision of line item quantities.
	QuantityPlaces = 4
)

// exceedsPlaces reports whether d carries non-zero digits beyond places.
func exceedsPlaces(d decimal.Decimal, places int32) bool {
	return !d.Equal(d.Truncate(places))
}

func (in *CreateInput) validate() error {
	if in.Type == "" {
		in.Type = TypeInvoice
	}
	if !in.Type.Valid() {
		return domainErr.NewValidationError("type", fmt.Sprintf("unknown document type %q", in.Type))
	}
	if in.Status == "" {
		in.Status = StatusDraft
	}
	if in.Status != StatusDraft && in.Status != StatusPending {
		return domainErr.NewValidationError("status", "documents start as DRAFT or PENDING")
	}
	if len(in.Items) == 0 {
		return domainErr.NewValidationError("items", "at least one line item is required")
	}
	if err := validateHeader(in.CustomerName, in.CustomerEmail, in.GSTPercent, in.DiscountAmount, in.IssuedDate, in.DueDate, in.Metadata); err != nil {
		return err
	}
	if in.Currency == "" {
		in.Currency = DefaultCurrency
	}
	return validateItems(in.Items, false)
}

func (in *UpdateInput) validate() error {
	if in.Status == "" {
		return domainErr.NewValidationError("status", "current status is required")
	}
	if !in.Status.Valid() {
		return domainErr.NewValidationError("status", "unknown status "+string(in.Status))
	}
	if err := validateHeader(in.CustomerName, in.CustomerEmail, in.GSTPercent, in.DiscountAmount, in.IssuedDate, in.DueDate, in.Metadata); err != nil {
		return err
	}
	if in.Currency == "" {
		in.Currency = DefaultCurrency
	}
	return validateItems(in.Items, true)
}

func (in PaymentInput) validate() error {
	if !in.Amount.IsPositive() {
		return domainErr.NewValidationError("amount", "payment amount must be greater than zero")
	}
	if strings.TrimSpace(in.Method) == "" {
		return domainErr.NewValidationError("method", "payment method is required")
	}
	return nil
}

func validateHeader(name, email string, gst, discount decimal.Decimal, issued, due time.Time, md *Metadata) error {
	if strings.TrimSpace(name) == "" {
		return domainErr.NewValidationError("customerName", "customer name is required")
	}
	if email != "" && !strings.Contains(email, "@") {
		return domainErr.NewValidationError("customerEmail", "invalid email address")
	}
	if gst.IsNegative() || gst.GreaterThan(maxGSTPercent) {
		return domainErr.NewValidationError("gstPercent", "must be between 0 and 100")
	}
	if discount.IsNegative() {
		return domainErr.NewValidationError("discountAmount", "must not be negative")
	}
	if exceedsPlaces(discount, MoneyPlaces) {
		return domainErr.NewValidationError("discountAmount", fmt.Sprintf("at most %d decimal places", MoneyPlaces))
	}
	if issued.IsZero() {
		return domainErr.NewValidationError("issuedDate", "issued date is required")
	}
	if due.IsZero() {
		return domainErr.NewValidationError("dueDate", "due date is required")
	}
	if due.Before(issued) {
		return domainErr.NewValidationError("dueDate", "due date is before issued date")
	}
	if md != nil {
		return md.Validate()
	}
	return nil
}

func validateItems(items []ItemInput, allowIDs bool) error {
	if len(items) > maxItems {
		return domainErr.NewValidationError("items", fmt.Sprintf("at most %d line items allowed", maxItems))
	}
	seen := make(map[uuid.UUID]struct{}, len(items))
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(item.Description) == "" {
			return domainErr.NewValidationError(field+".description", "description is required")
		}
		if item.Quantity.IsNegative() {
			return domainErr.NewValidationError(field+".quantity", "quantity must not be negative")
		}
		if exceedsPlaces(item.Quantity, QuantityPlaces) {
			return domainErr.NewValidationError(field+".quantity", fmt.Sprintf("at most %d decimal places", QuantityPlaces))
		}
		if item.UnitPrice.IsNegative() {
			return domainErr.NewValidationError(field+".unitPrice", "unit price must not be negative")
		}
		if exceedsPlaces(item.UnitPrice, MoneyPlaces) {
			return domainErr.NewValidationError(field+".unitPrice", fmt.Sprintf("at most %d decimal places", MoneyPlaces))
		}
		if item.ID == nil {
			continue
		}
		if !allowIDs {
			return domainErr.NewValidationError(field+".id", "new documents cannot reference existing items")
		}
		if _, dup := seen[*item.ID]; dup {
			return domainErr.NewValidationError(field+".id", "duplicate line item id")
		}
		seen[*item.ID] = struct{}{}
	}
	return nil
}

// buildItems turns inputs into positioned line items with computed totals.
// Items with an ID keep it; new items get a fresh one.
func buildItems(invoiceID uuid.UUID, inputs []ItemInput) []LineItem {
	items := make([]LineItem, 0, len(inputs))
	for i, in := range inputs {
		id := uuid.New()
		if in.ID != nil {
			id = *in.ID
		}
		items = append(items, LineItem{
			ID:          id,
			InvoiceID:   invoiceID,
			Position:    i,
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Total:       LineTotal(in.Quantity, in.UnitPrice),
			ProductID:   in.ProductID,
		})
	}
	return items
}
