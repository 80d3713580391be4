package document

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
)

type Kind string

const (
	KindInvoice Kind = "INVOICE"
	KindReceipt Kind = "RECEIPT"
)

func (k Kind) Valid() bool {
	return k == KindInvoice || k == KindReceipt
}

const dateLayout = "2006-01-02"

// renderedItem and renderedDocument are the canonical projection that gets
// hashed. Struct field order fixes the JSON key order.
type renderedItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Total       string `json:"total"`
}

type renderedReceipt struct {
	PaidDate      string `json:"paid_date"`
	PaymentMethod string `json:"payment_method"`
	ReceiptNumber string `json:"receipt_number"`
	AmountPaid    string `json:"amount_paid"`
}

type renderedDocument struct {
	Kind           Kind             `json:"kind"`
	Type           string           `json:"type"`
	DocumentNumber string           `json:"document_number"`
	CustomerName   string           `json:"customer_name"`
	CustomerEmail  string           `json:"customer_email"`
	Currency       string           `json:"currency"`
	IssuedDate     string           `json:"issued_date"`
	DueDate        string           `json:"due_date"`
	GSTPercent     string           `json:"gst_percent"`
	Discount       string           `json:"discount"`
	Items          []renderedItem   `json:"items"`
	Subtotal       string           `json:"subtotal"`
	GST            string           `json:"gst"`
	GrandTotal     string           `json:"grand_total"`
	Receipt        *renderedReceipt `json:"receipt,omitempty"`
}

// ContentHash digests only what ends up on the rendered page. Amounts are
// hashed exactly, so any change to a figure yields a new hash. Status,
// version, timestamps, notes, metadata and reminder counters are left out,
// so changing them never invalidates a cached artifact.
func ContentHash(doc *invoice.Invoice, kind Kind) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("content hash: nil document")
	}
	if !kind.Valid() {
		return "", fmt.Errorf("content hash: unknown kind %q", kind)
	}

	totals := doc.Totals()
	proj := renderedDocument{
		Kind:           kind,
		Type:           string(doc.Type),
		DocumentNumber: doc.DocumentNumber,
		CustomerName:   doc.CustomerName,
		CustomerEmail:  doc.CustomerEmail,
		Currency:       doc.Currency,
		IssuedDate:     doc.IssuedDate.Format(dateLayout),
		DueDate:        doc.DueDate.Format(dateLayout),
		GSTPercent:     doc.GSTPercent.String(),
		Discount:       doc.DiscountAmount.String(),
		Items:          make([]renderedItem, 0, len(doc.Items)),
		Subtotal:       totals.Subtotal.String(),
		GST:            totals.GST.String(),
		GrandTotal:     totals.GrandTotal.String(),
	}
	for _, item := range doc.Items {
		proj.Items = append(proj.Items, renderedItem{
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			UnitPrice:   item.UnitPrice.String(),
			Total:       invoice.LineTotal(item.Quantity, item.UnitPrice).String(),
		})
	}
	if kind == KindReceipt {
		r := &renderedReceipt{AmountPaid: doc.AmountPaid.String()}
		if doc.PaidDate != nil {
			r.PaidDate = doc.PaidDate.Format(dateLayout)
		}
		if doc.PaymentMethod != nil {
			r.PaymentMethod = *doc.PaymentMethod
		}
		if doc.ReceiptNumber != nil {
			r.ReceiptNumber = *doc.ReceiptNumber
		}
		proj.Receipt = r
	}

	canonical, err := json.Marshal(proj)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
