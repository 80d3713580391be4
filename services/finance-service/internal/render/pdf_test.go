package render

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/document"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
)

func paidDoc() *invoice.Invoice {
	issued := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	paid := issued.AddDate(0, 0, 17)
	method, receipt := "card", "RCT-2025-0001"
	return &invoice.Invoice{
		ID:             uuid.New(),
		Type:           invoice.TypeInvoice,
		DocumentNumber: "INV-2025-0001",
		Status:         invoice.StatusPaid,
		CustomerName:   "Café Zürich",
		CustomerEmail:  "hallo@cafe.test",
		Currency:       "AUD",
		GSTPercent:     decimal.NewFromInt(10),
		DiscountAmount: decimal.NewFromInt(5),
		Amount:         decimal.NewFromInt(125),
		AmountPaid:     decimal.NewFromInt(125),
		IssuedDate:     issued,
		DueDate:        issued.AddDate(0, 0, 14),
		PaidDate:       &paid,
		PaymentMethod:  &method,
		ReceiptNumber:  &receipt,
		Items: []invoice.LineItem{
			{Description: "Consulting", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50)},
			{Description: "Travel", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(25)},
		},
	}
}

func TestRender(t *testing.T) {
	r := NewPDFRenderer("Finance Co")
	for _, kind := range []document.Kind{document.KindInvoice, document.KindReceipt} {
		t.Run(string(kind), func(t *testing.T) {
			data, err := r.Render(context.Background(), paidDoc(), kind)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if !bytes.HasPrefix(data, []byte("%PDF")) {
				t.Errorf("output is not a PDF: %q", data[:8])
			}
		})
	}
}

func TestRender_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewPDFRenderer("").Render(ctx, paidDoc(), document.KindInvoice); err == nil {
		t.Fatal("expected context error")
	}
}
