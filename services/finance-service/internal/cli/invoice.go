package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
)

const dateLayout = "2006-01-02"

func newInvoiceCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invoice",
		Aliases: []string{"inv"},
		Short:   "Create documents and move them through their lifecycle",
	}
	cmd.AddCommand(
		newInvoiceCreateCmd(rt),
		newInvoiceUpdateCmd(rt),
		newInvoiceShowCmd(rt),
		newInvoiceTransitionCmd(rt, "pending", "Issue a draft (DRAFT -> PENDING)", (*invoice.LifecycleService).MarkAsPending),
		newInvoiceTransitionCmd(rt, "overdue", "Flag an unpaid document as overdue", (*invoice.LifecycleService).MarkAsOverdue),
		newInvoicePayCmd(rt),
		newInvoicePaymentCmd(rt),
		newInvoiceCancelCmd(rt),
		newInvoiceTransitionCmd(rt, "remind", "Record and send a payment reminder", (*invoice.LifecycleService).SendReminder),
		newInvoiceDeleteCmd(rt),
	)
	return cmd
}

func newInvoiceCreateCmd(rt *runtime) *cobra.Command {
	var (
		docType, status, customerID, name, email, currency string
		gst, discount, issued, due, notes                  string
		items                                              []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new invoice or quote with a fresh document number",
		Example: `  financectl invoice create --customer-id 6f1c... --customer-name "Acme" \
    --item "2:50.00:Consulting" --item "1:25:Travel" --gst 10 --due 2025-02-15`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := invoice.CreateInput{
				Type:          invoice.DocumentType(strings.ToUpper(docType)),
				Status:        invoice.InvoiceStatus(strings.ToUpper(status)),
				CustomerName:  name,
				CustomerEmail: email,
				Currency:      currency,
				Notes:         notes,
			}
			var err error
			if input.CustomerID, err = parseID("customer-id", customerID); err != nil {
				return err
			}
			if input.GSTPercent, err = parseDecimal("gst", gst); err != nil {
				return err
			}
			if input.DiscountAmount, err = parseDecimal("discount", discount); err != nil {
				return err
			}
			if input.IssuedDate, err = parseDate("issued", issued, time.Now()); err != nil {
				return err
			}
			if input.DueDate, err = parseDate("due", due, input.IssuedDate.AddDate(0, 0, 14)); err != nil {
				return err
			}
			for _, raw := range items {
				item, err := parseItem(raw)
				if err != nil {
					return err
				}
				input.Items = append(input.Items, item)
			}

			d, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			res, err := d.lifecycle.Create(rt.ctx(cmd), input)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"id":              res.ID,
				"document_number": res.DocumentNumber,
				"version":         res.Version,
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&docType, "type", string(invoice.TypeInvoice), "INVOICE or QUOTE")
	f.StringVar(&status, "status", string(invoice.StatusDraft), "initial status, DRAFT or PENDING")
	f.StringVar(&customerID, "customer-id", "", "customer uuid")
	f.StringVar(&name, "customer-name", "", "customer display name")
	f.StringVar(&email, "customer-email", "", "customer email for reminders")
	f.StringVar(&currency, "currency", invoice.DefaultCurrency, "ISO currency code")
	f.StringVar(&gst, "gst", "0", "GST percent")
	f.StringVar(&discount, "discount", "0", "discount amount")
	f.StringVar(&issued, "issued", "", "issue date YYYY-MM-DD (default today)")
	f.StringVar(&due, "due", "", "due date YYYY-MM-DD (default issued + 14 days)")
	f.StringVar(&notes, "notes", "", "internal notes")
	f.StringArrayVar(&items, "item", nil, "line item as QTY:PRICE:DESCRIPTION, repeatable")
	_ = cmd.MarkFlagRequired("customer-id")
	_ = cmd.MarkFlagRequired("customer-name")
	return cmd
}

// updateRequest is the JSON shape accepted by `invoice update --file`.
type updateRequest struct {
	Status         string          `json:"status"`
	CustomerName   string          `json:"customer_name"`
	CustomerEmail  string          `json:"customer_email"`
	Currency       string          `json:"currency"`
	GSTPercent     decimal.Decimal `json:"gst_percent"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	IssuedDate     string          `json:"issued_date"`
	DueDate        string          `json:"due_date"`
	Notes          string          `json:"notes"`
	Items          []struct {
		ID          *uuid.UUID      `json:"id"`
		Description string          `json:"description"`
		Quantity    decimal.Decimal `json:"quantity"`
		UnitPrice   decimal.Decimal `json:"unit_price"`
		ProductID   *uuid.UUID      `json:"product_id"`
	} `json:"items"`
}

func (r updateRequest) toInput() (invoice.UpdateInput, error) {
	in := invoice.UpdateInput{
		Status:         invoice.InvoiceStatus(strings.ToUpper(r.Status)),
		CustomerName:   r.CustomerName,
		CustomerEmail:  r.CustomerEmail,
		Currency:       r.Currency,
		GSTPercent:     r.GSTPercent,
		DiscountAmount: r.DiscountAmount,
		Notes:          r.Notes,
	}
	var err error
	if in.IssuedDate, err = parseDate("issued_date", r.IssuedDate, time.Time{}); err != nil {
		return in, err
	}
	if in.DueDate, err = parseDate("due_date", r.DueDate, time.Time{}); err != nil {
		return in, err
	}
	for _, it := range r.Items {
		in.Items = append(in.Items, invoice.ItemInput{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			ProductID:   it.ProductID,
		})
	}
	return in, nil
}

func newInvoiceUpdateCmd(rt *runtime) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace the header and item set of a draft or open document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			var req updateRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return domainErr.NewValidationError("file", err.Error())
			}
			input, err := req.toInput()
			if err != nil {
				return err
			}

			d, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			inv, err := d.lifecycle.UpdateWithItems(rt.ctx(cmd), id, input)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), newInvoiceView(inv))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the full update")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newInvoiceShowCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a document with its items, payments and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			d, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			inv, err := d.lifecycle.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), newInvoiceView(inv))
		},
	}
}

type simpleTransition func(*invoice.LifecycleService, context.Context, uuid.UUID) (*invoice.Invoice, error)

func newInvoiceTransitionCmd(rt *runtime, use, short string, op simpleTransition) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			d, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			inv, err := op(d.lifecycle, rt.ctx(cmd), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), newInvoiceView(inv))
		},
	}
}

func newInvoicePayCmd(rt *runtime) *cobra.Command {
	var date, method string
	cmd := &cobra.Command{
		Use:   "pay <id>",
		Short: "Settle a document in full and issue its receipt number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			paidDate, err := parseDate("date", date, time.Now())
			if err != nil {
				return err
			}
			d, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			inv, err := d.lifecycle.MarkAsPaid(rt.ctx(cmd), id, paidDate, method)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), newInvoiceView(inv))
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "paid date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&method, "method", "", "payment method, e.g. card or bank_transfer")
	_ = cmd.MarkFlagRequired("method")
	return cmd
}

func newInvoicePaymentCmd(rt *runtime) *cobra.Command {
	var amount, method, date, notes string
	cmd := &cobra.Command{
		Use:   "payment <id>",
		Short: "Record a (possibly partial) payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			input := invoice.PaymentInput{Method: method, Notes: notes}
			if input.Amount, err = parseDecimal("amount", amount); err != nil {
				return err
			}
			if input.PaidDate, err = parseDate("date", date, time.Now()); err != nil {
				return err
			}
			d, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			inv, err := d.lifecycle.RecordPayment(rt.ctx(cmd), id, input)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), newInvoiceView(inv))
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount received")
	cmd.Flags().StringVar(&method, "method", "", "payment method")
	cmd.Flags().StringVar(&date, "date", "", "paid date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&notes, "notes", "", "free text kept with the payment")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("method")
	return cmd
}

func newInvoiceCancelCmd(rt *runtime) *cobra.Command {
	var date, reason string
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a document that is not yet paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			cancelled, err := parseDate("date", date, time.Now())
			if err != nil {
				return err
			}
			d, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			inv, err := d.lifecycle.Cancel(rt.ctx(cmd), id, cancelled, reason)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), newInvoiceView(inv))
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "cancellation date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&reason, "reason", "", "why the document was cancelled")
	return cmd
}

func newInvoiceDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a draft that has no payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			d, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			deleted, err := d.lifecycle.SoftDelete(rt.ctx(cmd), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]bool{"deleted": deleted})
		},
	}
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, domainErr.NewValidationError(field, "not a valid uuid")
	}
	return id, nil
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, domainErr.NewValidationError(field, "not a valid number")
	}
	return d, nil
}

// parseDate reads YYYY-MM-DD; an empty value yields def.
func parseDate(field, raw string, def time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, domainErr.NewValidationError(field, "expected YYYY-MM-DD")
	}
	return t, nil
}

// parseItem reads QTY:PRICE:DESCRIPTION. The description may itself
// contain colons.
func parseItem(raw string) (invoice.ItemInput, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return invoice.ItemInput{}, domainErr.NewValidationError("item", fmt.Sprintf("%q is not QTY:PRICE:DESCRIPTION", raw))
	}
	qty, err := parseDecimal("item.quantity", parts[0])
	if err != nil {
		return invoice.ItemInput{}, err
	}
	price, err := parseDecimal("item.unit_price", parts[1])
	if err != nil {
		return invoice.ItemInput{}, err
	}
	return invoice.ItemInput{
		Description: strings.TrimSpace(parts[2]),
		Quantity:    qty,
		UnitPrice:   price,
	}, nil
}
