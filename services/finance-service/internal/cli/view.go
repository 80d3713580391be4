package cli

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
)

type itemView struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

type paymentView struct {
	Amount   decimal.Decimal `json:"amount"`
	Method   string          `json:"method"`
	PaidDate string          `json:"paid_date"`
	Notes    string          `json:"notes,omitempty"`
}

type historyView struct {
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
	Actor     string    `json:"actor"`
	Note      string    `json:"note,omitempty"`
}

type invoiceView struct {
	ID             uuid.UUID         `json:"id"`
	Type           string            `json:"type"`
	DocumentNumber string            `json:"document_number"`
	Status         string            `json:"status"`
	CustomerName   string            `json:"customer_name"`
	CustomerEmail  string            `json:"customer_email,omitempty"`
	Currency       string            `json:"currency"`
	Amount         decimal.Decimal   `json:"amount"`
	GrandTotal     decimal.Decimal   `json:"grand_total"`
	AmountPaid     decimal.Decimal   `json:"amount_paid"`
	AmountDue      decimal.Decimal   `json:"amount_due"`
	IssuedDate     string            `json:"issued_date"`
	DueDate        string            `json:"due_date"`
	PaidDate       string            `json:"paid_date,omitempty"`
	PaymentMethod  string            `json:"payment_method,omitempty"`
	ReceiptNumber  string            `json:"receipt_number,omitempty"`
	CancelReason   string            `json:"cancel_reason,omitempty"`
	RemindersSent  int               `json:"reminders_sent"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Version        int64             `json:"version"`
	Items          []itemView        `json:"items"`
	Payments       []paymentView     `json:"payments,omitempty"`
	History        []historyView     `json:"history,omitempty"`
}

func newInvoiceView(inv *invoice.Invoice) invoiceView {
	v := invoiceView{
		ID:             inv.ID,
		Type:           string(inv.Type),
		DocumentNumber: inv.DocumentNumber,
		Status:         string(inv.Status),
		CustomerName:   inv.CustomerName,
		CustomerEmail:  inv.CustomerEmail,
		Currency:       inv.Currency,
		Amount:         inv.Amount,
		GrandTotal:     inv.Totals().GrandTotal,
		AmountPaid:     inv.AmountPaid,
		AmountDue:      inv.AmountDue,
		IssuedDate:     inv.IssuedDate.Format(dateLayout),
		DueDate:        inv.DueDate.Format(dateLayout),
		PaymentMethod:  deref(inv.PaymentMethod),
		ReceiptNumber:  deref(inv.ReceiptNumber),
		CancelReason:   deref(inv.CancelReason),
		RemindersSent:  inv.RemindersSent,
		Metadata:       inv.Metadata.Entries,
		Version:        inv.Version,
	}
	if inv.PaidDate != nil {
		v.PaidDate = inv.PaidDate.Format(dateLayout)
	}
	for _, it := range inv.Items {
		v.Items = append(v.Items, itemView{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
		})
	}
	for _, p := range inv.Payments {
		v.Payments = append(v.Payments, paymentView{
			Amount:   p.Amount,
			Method:   p.Method,
			PaidDate: p.PaidDate.Format(dateLayout),
			Notes:    p.Notes,
		})
	}
	for _, h := range inv.StatusHistory {
		hv := historyView{To: string(h.NewStatus), ChangedAt: h.ChangedAt, Actor: h.Actor, Note: h.Note}
		if h.PreviousStatus != nil {
			hv.From = string(*h.PreviousStatus)
		}
		v.History = append(v.History, hv)
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
