// services/finance-service/internal/store/postgres/invoice_store.postgres.go

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
)

type InvoiceStore struct {
	db *sql.DB
}

func NewInvoiceStore(db *sql.DB) *InvoiceStore {
	return &InvoiceStore{db: db}
}

const invoiceColumns = `
	id, document_type, document_number, status, customer_id, customer_name, customer_email, currency,
	amount, gst_percent, discount_amount, amount_paid, amount_due, issued_date, due_date,
	paid_date, payment_method, receipt_number, cancelled_date, cancel_reason,
	reminders_sent, last_reminder_at, notes, metadata, deleted_at, version, created_at, updated_at`

// InsertInvoice writes header, items and the creation history row. The
// caller provides the transaction.
func (store *InvoiceStore) InsertInvoice(ctx context.Context, inv *invoice.Invoice) error {
	q := conn(ctx, store.db)

	headerQuery := `
		INSERT INTO invoices (
			id, document_type, document_number, status, customer_id, customer_name, customer_email, currency,
			amount, gst_percent, discount_amount, amount_paid, amount_due, issued_date, due_date,
			notes, metadata, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := q.ExecContext(ctx, headerQuery,
		inv.ID,
		inv.Type,
		inv.DocumentNumber,
		inv.Status,
		inv.CustomerID,
		inv.CustomerName,
		inv.CustomerEmail,
		inv.Currency,
		inv.Amount,
		inv.GSTPercent,
		inv.DiscountAmount,
		inv.AmountPaid,
		inv.AmountDue,
		inv.IssuedDate,
		inv.DueDate,
		inv.Notes,
		inv.Metadata,
		inv.Version,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice header: %w", mapError(err))
	}

	if err := store.InsertItems(ctx, inv.Items); err != nil {
		return err
	}
	for _, entry := range inv.StatusHistory {
		if err := store.AppendStatusHistory(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (store *InvoiceStore) GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return store.load(ctx, id, false)
}

// LockInvoice takes a row lock (SELECT ... FOR UPDATE) held until the
// surrounding transaction ends.
func (store *InvoiceStore) LockInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return store.load(ctx, id, true)
}

func (store *InvoiceStore) load(ctx context.Context, id uuid.UUID, forUpdate bool) (*invoice.Invoice, error) {
	q := conn(ctx, store.db)

	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND deleted_at IS NULL`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	inv, err := scanInvoice(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found is not an error here, just nil
		}
		return nil, fmt.Errorf("failed to fetch invoice header: %w", mapError(err))
	}

	if inv.Items, err = store.items(ctx, q, id); err != nil {
		return nil, err
	}
	if inv.Payments, err = store.payments(ctx, q, id); err != nil {
		return nil, err
	}
	if inv.StatusHistory, err = store.history(ctx, q, id); err != nil {
		return nil, err
	}
	return inv, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*invoice.Invoice, error) {
	var (
		inv                          invoice.Invoice
		paidDate, cancelledDate      sql.NullTime
		lastReminderAt, deletedAt    sql.NullTime
		paymentMethod, receiptNumber sql.NullString
		cancelReason                 sql.NullString
	)
	err := row.Scan(
		&inv.ID,
		&inv.Type,
		&inv.DocumentNumber,
		&inv.Status,
		&inv.CustomerID,
		&inv.CustomerName,
		&inv.CustomerEmail,
		&inv.Currency,
		&inv.Amount,
		&inv.GSTPercent,
		&inv.DiscountAmount,
		&inv.AmountPaid,
		&inv.AmountDue,
		&inv.IssuedDate,
		&inv.DueDate,
		&paidDate,
		&paymentMethod,
		&receiptNumber,
		&cancelledDate,
		&cancelReason,
		&inv.RemindersSent,
		&lastReminderAt,
		&inv.Notes,
		&inv.Metadata,
		&deletedAt,
		&inv.Version,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.PaidDate = timePtr(paidDate)
	inv.CancelledDate = timePtr(cancelledDate)
	inv.LastReminderAt = timePtr(lastReminderAt)
	inv.DeletedAt = timePtr(deletedAt)
	inv.PaymentMethod = stringPtr(paymentMethod)
	inv.ReceiptNumber = stringPtr(receiptNumber)
	inv.CancelReason = stringPtr(cancelReason)
	return &inv, nil
}

func (store *InvoiceStore) items(ctx context.Context, q executor, id uuid.UUID) ([]invoice.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, invoice_id, position, description, quantity, unit_price, total, product_id
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice items: %w", mapError(err))
	}
	defer rows.Close()

	var items []invoice.LineItem
	for rows.Next() {
		var item invoice.LineItem
		var productID uuid.NullUUID
		if err := rows.Scan(
			&item.ID,
			&item.InvoiceID,
			&item.Position,
			&item.Description,
			&item.Quantity,
			&item.UnitPrice,
			&item.Total,
			&productID,
		); err != nil {
			return nil, err
		}
		if productID.Valid {
			pid := productID.UUID
			item.ProductID = &pid
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (store *InvoiceStore) payments(ctx context.Context, q executor, id uuid.UUID) ([]invoice.Payment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, invoice_id, amount, method, paid_date, notes, created_at
		FROM invoice_payments
		WHERE invoice_id = $1
		ORDER BY created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payments: %w", mapError(err))
	}
	defer rows.Close()

	var payments []invoice.Payment
	for rows.Next() {
		var p invoice.Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.PaidDate, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (store *InvoiceStore) history(ctx context.Context, q executor, id uuid.UUID) ([]invoice.StatusHistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, invoice_id, previous_status, new_status, changed_at, actor, note
		FROM invoice_status_history
		WHERE invoice_id = $1
		ORDER BY changed_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status history: %w", mapError(err))
	}
	defer rows.Close()

	var entries []invoice.StatusHistoryEntry
	for rows.Next() {
		var e invoice.StatusHistoryEntry
		var previous sql.NullString
		if err := rows.Scan(&e.ID, &e.InvoiceID, &previous, &e.NewStatus, &e.ChangedAt, &e.Actor, &e.Note); err != nil {
			return nil, err
		}
		if previous.Valid {
			status := invoice.InvoiceStatus(previous.String)
			e.PreviousStatus = &status
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateInvoice is a compare-and-swap on version: the header is written only
// if nobody changed it since it was read.
func (store *InvoiceStore) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		UPDATE invoices SET
			status = $3, customer_name = $4, customer_email = $5, currency = $6,
			amount = $7, gst_percent = $8, discount_amount = $9, amount_paid = $10, amount_due = $11,
			issued_date = $12, due_date = $13,
			paid_date = $14, payment_method = $15, receipt_number = $16,
			cancelled_date = $17, cancel_reason = $18,
			reminders_sent = $19, last_reminder_at = $20,
			notes = $21, metadata = $22, updated_at = $23,
			version = version + 1
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL`

	res, err := conn(ctx, store.db).ExecContext(ctx, query,
		inv.ID,
		inv.Version,
		inv.Status,
		inv.CustomerName,
		inv.CustomerEmail,
		inv.Currency,
		inv.Amount,
		inv.GSTPercent,
		inv.DiscountAmount,
		inv.AmountPaid,
		inv.AmountDue,
		inv.IssuedDate,
		inv.DueDate,
		inv.PaidDate,
		inv.PaymentMethod,
		inv.ReceiptNumber,
		inv.CancelledDate,
		inv.CancelReason,
		inv.RemindersSent,
		inv.LastReminderAt,
		inv.Notes,
		inv.Metadata,
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", mapError(err))
	}
	rows, err := res.RowsAffected() // this ensure that only one row was updated
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: invoice %s at version %d", domainErr.ErrConcurrentModification, inv.ID, inv.Version)
	}
	inv.Version++
	return nil
}

func (store *InvoiceStore) DeleteItemsExcept(ctx context.Context, invoiceID uuid.UUID, keep []uuid.UUID) error {
	ids := make([]string, len(keep))
	for i, id := range keep {
		ids[i] = id.String()
	}
	_, err := conn(ctx, store.db).ExecContext(ctx,
		`DELETE FROM invoice_items WHERE invoice_id = $1 AND NOT (id::text = ANY($2))`,
		invoiceID, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to delete items: %w", mapError(err))
	}
	return nil
}

func (store *InvoiceStore) UpdateItem(ctx context.Context, item invoice.LineItem) error {
	res, err := conn(ctx, store.db).ExecContext(ctx, `
		UPDATE invoice_items
		SET position = $3, description = $4, quantity = $5, unit_price = $6, total = $7, product_id = $8
		WHERE id = $1 AND invoice_id = $2`,
		item.ID, item.InvoiceID, item.Position, item.Description, item.Quantity, item.UnitPrice, item.Total, item.ProductID)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", mapError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domainErr.NotFound("line item", item.ID)
	}
	return nil
}

func (store *InvoiceStore) InsertItems(ctx context.Context, items []invoice.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	// We use the prepared statement for efficiency in loops
	stmt, err := conn(ctx, store.db).PrepareContext(ctx, `
		INSERT INTO invoice_items (id, invoice_id, position, description, quantity, unit_price, total, product_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("failed to prepare item statement: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx,
			item.ID,
			item.InvoiceID,
			item.Position,
			item.Description,
			item.Quantity,
			item.UnitPrice,
			item.Total,
			item.ProductID,
		); err != nil {
			return fmt.Errorf("failed to insert invoice item: %w", mapError(err))
		}
	}
	return nil
}

func (store *InvoiceStore) InsertPayment(ctx context.Context, p invoice.Payment) error {
	_, err := conn(ctx, store.db).ExecContext(ctx, `
		INSERT INTO invoice_payments (id, invoice_id, amount, method, paid_date, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.InvoiceID, p.Amount, p.Method, p.PaidDate, p.Notes, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", mapError(err))
	}
	return nil
}

func (store *InvoiceStore) AppendStatusHistory(ctx context.Context, e invoice.StatusHistoryEntry) error {
	_, err := conn(ctx, store.db).ExecContext(ctx, `
		INSERT INTO invoice_status_history (id, invoice_id, previous_status, new_status, changed_at, actor, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.InvoiceID, e.PreviousStatus, e.NewStatus, e.ChangedAt, e.Actor, e.Note)
	if err != nil {
		return fmt.Errorf("failed to insert status history: %w", mapError(err))
	}
	return nil
}

func (store *InvoiceStore) SoftDeleteInvoice(ctx context.Context, id uuid.UUID, version int64, at time.Time) error {
	res, err := conn(ctx, store.db).ExecContext(ctx, `
		UPDATE invoices SET deleted_at = $3, updated_at = $3, version = version + 1
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL`,
		id, version, at)
	if err != nil {
		return fmt.Errorf("failed to soft-delete invoice: %w", mapError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: invoice %s at version %d", domainErr.ErrConcurrentModification, id, version)
	}
	return nil
}

// LatestNumber orders by length first so 10000 sorts after 9999.
// Soft-deleted rows count: numbers are never reused.
func (store *InvoiceStore) LatestNumber(ctx context.Context, prefix string, year int) (string, error) {
	var number string
	err := conn(ctx, store.db).QueryRowContext(ctx, `
		SELECT document_number FROM invoices
		WHERE document_number LIKE $1
		ORDER BY length(document_number) DESC, document_number DESC
		LIMIT 1`,
		fmt.Sprintf("%s-%d-%%", prefix, year),
	).Scan(&number)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read latest document number: %w", mapError(err))
	}
	return number, nil
}
