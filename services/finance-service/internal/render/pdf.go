// services/finance-service/internal/render/pdf.go

package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/document"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
)

const dateLayout = "02 Jan 2006"

// PDFRenderer draws a plain A4 layout. Only fields that feed the content
// hash are printed, so a cached file never shows stale data.
type PDFRenderer struct {
	CompanyName string
}

func NewPDFRenderer(companyName string) *PDFRenderer {
	return &PDFRenderer{CompanyName: companyName}
}

func (r *PDFRenderer) Render(ctx context.Context, doc *invoice.Invoice, kind document.Kind) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title(doc, kind), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(title(doc, kind)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if r.CompanyName != "" {
		pdf.CellFormat(0, 6, tr(r.CompanyName), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.CellFormat(0, 6, tr("Bill to: "+doc.CustomerName), "", 1, "L", false, 0, "")
	if doc.CustomerEmail != "" {
		pdf.CellFormat(0, 6, tr(doc.CustomerEmail), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, "Issued: "+doc.IssuedDate.Format(dateLayout), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Due: "+doc.DueDate.Format(dateLayout), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(95, 7, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 7, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 7, "Unit price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 7, "Total", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range doc.Items {
		pdf.CellFormat(95, 7, tr(item.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, item.Quantity.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, invoice.FormatAmount(item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, invoice.FormatAmount(invoice.LineTotal(item.Quantity, item.UnitPrice)), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	totals := doc.Totals()
	summary := func(label, value string) {
		pdf.CellFormat(155, 6, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, value, "", 1, "R", false, 0, "")
	}
	summary("Subtotal", invoice.FormatAmount(totals.Subtotal))
	summary(fmt.Sprintf("GST (%s%%)", doc.GSTPercent.String()), invoice.FormatAmount(totals.GST))
	if totals.Discount.IsPositive() {
		summary("Discount", "-"+invoice.FormatAmount(totals.Discount))
	}
	pdf.SetFont("Helvetica", "B", 11)
	summary("Total "+doc.Currency, invoice.FormatAmount(totals.GrandTotal))

	if kind == document.KindReceipt {
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 10)
		if doc.ReceiptNumber != nil {
			pdf.CellFormat(0, 6, "Receipt: "+*doc.ReceiptNumber, "", 1, "L", false, 0, "")
		}
		if doc.PaidDate != nil {
			pdf.CellFormat(0, 6, "Paid on: "+doc.PaidDate.Format(dateLayout), "", 1, "L", false, 0, "")
		}
		if doc.PaymentMethod != nil {
			pdf.CellFormat(0, 6, tr("Method: "+*doc.PaymentMethod), "", 1, "L", false, 0, "")
		}
		pdf.CellFormat(0, 6, "Amount paid: "+invoice.FormatAmount(doc.AmountPaid), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func title(doc *invoice.Invoice, kind document.Kind) string {
	switch {
	case kind == document.KindReceipt:
		return "Receipt " + doc.DocumentNumber
	case doc.Type == invoice.TypeQuote:
		return "Quote " + doc.DocumentNumber
	default:
		return "Invoice " + doc.DocumentNumber
	}
}
