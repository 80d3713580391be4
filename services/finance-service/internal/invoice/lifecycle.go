// services/finance-service/internal/invoice/lifecycle.go

package invoice

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/numbering"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/logger"
)

const (
	DefaultOperationTimeout = 10 * time.Second

	// maxNumberAttempts bounds the collision retry on document numbers.
	maxNumberAttempts = 3

	receiptPrefix = "RCT"
	systemActor   = "system"
)

type actorKey struct{}

// WithActor records who performs the lifecycle operations run with ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting user, "system" when none was set.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return systemActor
}

// LifecycleService runs every lifecycle action as one transaction.
// Status moves are checked against the transition table, and each one
// leaves a history row in the same transaction.
type LifecycleService struct {
	store   InvoiceStore
	tx      TxManager
	numbers *numbering.Generator

	log       zerolog.Logger
	now       func() time.Time
	publisher EventPublisher
	notifier  ReminderNotifier
	timeout   time.Duration
	prefixes  map[DocumentType]string
}

type Option func(*LifecycleService)

func WithLogger(l zerolog.Logger) Option {
	return func(s *LifecycleService) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *LifecycleService) { s.now = now }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *LifecycleService) { s.publisher = p }
}

func WithReminderNotifier(n ReminderNotifier) Option {
	return func(s *LifecycleService) { s.notifier = n }
}

// WithOperationTimeout bounds each operation. Zero disables the bound.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *LifecycleService) { s.timeout = d }
}

func WithNumberPrefix(t DocumentType, prefix string) Option {
	return func(s *LifecycleService) { s.prefixes[t] = prefix }
}

func NewLifecycleService(store InvoiceStore, tx TxManager, numbers *numbering.Generator, opts ...Option) *LifecycleService {
	s := &LifecycleService{
		store:   store,
		tx:      tx,
		numbers: numbers,
		log:     logger.WithComponent("invoice-lifecycle"),
		now:     func() time.Time { return time.Now().UTC() },
		timeout: DefaultOperationTimeout,
		prefixes: map[DocumentType]string{
			TypeInvoice: "INV",
			TypeQuote:   "QUO",
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// runInTx applies the operation timeout and maps deadline expiry to ErrTimeout.
func (s *LifecycleService) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return domainErr.WrapTimeout(s.tx.RunInTx(ctx, fn))
}

// lock loads the document under a row lock, mapping absence to ErrNotFound.
func (s *LifecycleService) lock(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.store.LockInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if inv == nil {
		return nil, domainErr.NotFound("invoice", id)
	}
	return inv, nil
}

// Create numbers and inserts a new document with its items.
// A number collision restarts the whole transaction with a fresh number.
func (s *LifecycleService) Create(ctx context.Context, input CreateInput) (CreateResult, error) {
	if err := input.validate(); err != nil {
		return CreateResult{}, err
	}
	prefix, ok := s.prefixes[input.Type]
	if !ok {
		return CreateResult{}, domainErr.NewValidationError("type", "no number prefix configured for "+string(input.Type))
	}
	actor := ActorFrom(ctx)

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		var created *Invoice
		err := s.runInTx(ctx, func(ctx context.Context) error {
			number, err := s.numbers.Generate(ctx, prefix)
			if err != nil {
				return err
			}
			created = s.newInvoice(input, number, actor)
			return s.store.InsertInvoice(ctx, created)
		})
		if err == nil {
			s.log.Info().
				Str("invoice_id", created.ID.String()).
				Str("document_number", created.DocumentNumber).
				Str("status", string(created.Status)).
				Msg("document created")
			s.publishStatusChange(ctx, created, "", actor)
			return CreateResult{ID: created.ID, DocumentNumber: created.DocumentNumber, Version: created.Version}, nil
		}
		if !stdErrors.Is(err, domainErr.ErrDuplicateDocumentNumber) {
			return CreateResult{}, err
		}
		s.log.Debug().
			Int("attempt", attempt).
			Str("prefix", prefix).
			Msg("document number collision, regenerating")
	}
	return CreateResult{}, fmt.Errorf("%w: %d attempts for prefix %s", domainErr.ErrNumberGenerationExhausted, maxNumberAttempts, prefix)
}

func (s *LifecycleService) newInvoice(input CreateInput, number, actor string) *Invoice {
	now := s.now()
	id := uuid.New()
	items := buildItems(id, input.Items)
	amount := SumItems(items)

	md := NewMetadata()
	if input.Metadata != nil {
		md = *input.Metadata
	}

	return &Invoice{
		ID:             id,
		Type:           input.Type,
		DocumentNumber: number,
		Status:         input.Status,
		CustomerID:     input.CustomerID,
		CustomerName:   strings.TrimSpace(input.CustomerName),
		CustomerEmail:  strings.TrimSpace(input.CustomerEmail),
		Currency:       input.Currency,
		Amount:         amount,
		GSTPercent:     input.GSTPercent,
		DiscountAmount: input.DiscountAmount,
		AmountPaid:     decimal.Zero,
		AmountDue:      amount,
		IssuedDate:     input.IssuedDate,
		DueDate:        input.DueDate,
		Notes:          input.Notes,
		Metadata:       md,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
		Items:          items,
		StatusHistory: []StatusHistoryEntry{{
			ID:        uuid.New(),
			InvoiceID: id,
			NewStatus: input.Status,
			ChangedAt: now,
			Actor:     actor,
			Note:      "created",
		}},
	}
}

// UpdateWithItems rewrites the editable header and synchronises line items.
// It never moves status: a payload status that differs from the stored one
// fails with ErrStatusChangeNotAllowed.
func (s *LifecycleService) UpdateWithItems(ctx context.Context, id uuid.UUID, input UpdateInput) (*Invoice, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var updated *Invoice
	err := s.runInTx(ctx, func(ctx context.Context) error {
		inv, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if input.Status != inv.Status {
			return fmt.Errorf("%w: stored %s, payload %s", domainErr.ErrStatusChangeNotAllowed, inv.Status, input.Status)
		}
		if inv.IsTerminal() {
			return domainErr.NewOperationError("updateWithItems", fmt.Sprintf("%s documents cannot be edited", inv.Status))
		}

		existing := make(map[uuid.UUID]struct{}, len(inv.Items))
		for _, item := range inv.Items {
			existing[item.ID] = struct{}{}
		}
		keep := make([]uuid.UUID, 0, len(input.Items))
		for _, in := range input.Items {
			if in.ID == nil {
				continue
			}
			if _, ok := existing[*in.ID]; !ok {
				return domainErr.NotFound("line item", *in.ID)
			}
			keep = append(keep, *in.ID)
		}

		items := buildItems(inv.ID, input.Items)
		amount := SumItems(items)
		if amount.LessThan(inv.AmountPaid) {
			return domainErr.NewValidationError("items", fmt.Sprintf("total %s is below the %s already paid", amount.StringFixed(2), inv.AmountPaid.StringFixed(2)))
		}

		if err := s.store.DeleteItemsExcept(ctx, inv.ID, keep); err != nil {
			return fmt.Errorf("failed to delete removed items: %w", err)
		}
		var fresh []LineItem
		for i, item := range items {
			if input.Items[i].ID == nil {
				fresh = append(fresh, item)
				continue
			}
			if err := s.store.UpdateItem(ctx, item); err != nil {
				return fmt.Errorf("failed to update item %s: %w", item.ID, err)
			}
		}
		if len(fresh) > 0 {
			if err := s.store.InsertItems(ctx, fresh); err != nil {
				return fmt.Errorf("failed to insert items: %w", err)
			}
		}

		inv.CustomerName = strings.TrimSpace(input.CustomerName)
		inv.CustomerEmail = strings.TrimSpace(input.CustomerEmail)
		inv.Currency = input.Currency
		inv.GSTPercent = input.GSTPercent
		inv.DiscountAmount = input.DiscountAmount
		inv.IssuedDate = input.IssuedDate
		inv.DueDate = input.DueDate
		inv.Notes = input.Notes
		if input.Metadata != nil {
			inv.Metadata = *input.Metadata
		}
		inv.Items = items
		inv.Amount = amount
		inv.AmountDue = amount.Sub(inv.AmountPaid)
		inv.UpdatedAt = s.now()

		if err := s.store.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// statusChange is one lifecycle move computed while the row is locked.
type statusChange struct {
	op     string
	target InvoiceStatus
	note   string
	apply  func(ctx context.Context, inv *Invoice) error
}

// transition is the shared path for single-target operations. A document
// already at the target is returned untouched.
func (s *LifecycleService) transition(ctx context.Context, id uuid.UUID, change statusChange) (*Invoice, error) {
	actor := ActorFrom(ctx)
	var (
		result   *Invoice
		previous InvoiceStatus
		moved    bool
	)
	err := s.runInTx(ctx, func(ctx context.Context) error {
		inv, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == change.target {
			result = inv
			return nil
		}
		if err := ValidateTransition(inv.Status, change.target); err != nil {
			return err
		}
		if change.apply != nil {
			if err := change.apply(ctx, inv); err != nil {
				return err
			}
		}
		previous = inv.Status
		if err := s.moveStatus(ctx, inv, change.target, actor, change.note); err != nil {
			return err
		}
		result, moved = inv, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if moved {
		s.log.Info().
			Str("op", change.op).
			Str("invoice_id", id.String()).
			Str("from", string(previous)).
			Str("to", string(change.target)).
			Str("actor", actor).
			Msg("status changed")
		s.publishStatusChange(ctx, result, previous, actor)
	}
	return result, nil
}

// moveStatus writes the header with the new status and appends the history row.
func (s *LifecycleService) moveStatus(ctx context.Context, inv *Invoice, to InvoiceStatus, actor, note string) error {
	from := inv.Status
	now := s.now()
	inv.Status = to
	inv.UpdatedAt = now
	if err := s.store.UpdateInvoice(ctx, inv); err != nil {
		return err
	}
	entry := StatusHistoryEntry{
		ID:             uuid.New(),
		InvoiceID:      inv.ID,
		PreviousStatus: &from,
		NewStatus:      to,
		ChangedAt:      now,
		Actor:          actor,
		Note:           note,
	}
	if err := s.store.AppendStatusHistory(ctx, entry); err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	inv.StatusHistory = append(inv.StatusHistory, entry)
	return nil
}

// MarkAsPaid settles the document in full. Any outstanding amount is
// recorded as a final payment so payments always add up to AmountPaid.
// Calling it on a PAID document returns it unchanged whatever the arguments.
func (s *LifecycleService) MarkAsPaid(ctx context.Context, id uuid.UUID, paidDate time.Time, paymentMethod string) (*Invoice, error) {
	method := strings.TrimSpace(paymentMethod)
	if paidDate.IsZero() {
		paidDate = s.now()
	}
	return s.transition(ctx, id, statusChange{
		op:     "markAsPaid",
		target: StatusPaid,
		note:   "paid by " + method,
		apply: func(ctx context.Context, inv *Invoice) error {
			if method == "" {
				return domainErr.NewValidationError("paymentMethod", "payment method is required")
			}
			if inv.AmountDue.IsPositive() {
				settlement := Payment{
					ID:        uuid.New(),
					InvoiceID: inv.ID,
					Amount:    inv.AmountDue,
					Method:    method,
					PaidDate:  paidDate,
					Notes:     "settlement",
					CreatedAt: s.now(),
				}
				if err := s.store.InsertPayment(ctx, settlement); err != nil {
					return fmt.Errorf("failed to record settlement: %w", err)
				}
				inv.Payments = append(inv.Payments, settlement)
			}
			return s.settle(inv, paidDate, method)
		},
	})
}

// settle fills the PAID-only fields.
func (s *LifecycleService) settle(inv *Invoice, paidDate time.Time, method string) error {
	receipt, err := numbering.Rebase(inv.DocumentNumber, receiptPrefix)
	if err != nil {
		return fmt.Errorf("failed to derive receipt number: %w", err)
	}
	inv.PaidDate = &paidDate
	inv.PaymentMethod = &method
	inv.ReceiptNumber = &receipt
	inv.AmountPaid = inv.Amount
	inv.AmountDue = decimal.Zero
	return nil
}

// MarkAsPending advances a DRAFT or reverts an OVERDUE document.
func (s *LifecycleService) MarkAsPending(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.transition(ctx, id, statusChange{op: "markAsPending", target: StatusPending})
}

// MarkAsOverdue is called by the external due-date detector.
func (s *LifecycleService) MarkAsOverdue(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.transition(ctx, id, statusChange{op: "markAsOverdue", target: StatusOverdue})
}

func (s *LifecycleService) Cancel(ctx context.Context, id uuid.UUID, cancelledDate time.Time, reason string) (*Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domainErr.NewValidationError("reason", "a cancellation reason is required")
	}
	if cancelledDate.IsZero() {
		cancelledDate = s.now()
	}
	return s.transition(ctx, id, statusChange{
		op:     "cancel",
		target: StatusCancelled,
		note:   reason,
		apply: func(_ context.Context, inv *Invoice) error {
			inv.CancelledDate = &cancelledDate
			inv.CancelReason = &reason
			return nil
		},
	})
}

// RecordPayment books a (partial) payment. The document moves to PAID once
// nothing is due, otherwise to PARTIALLY_PAID.
func (s *LifecycleService) RecordPayment(ctx context.Context, id uuid.UUID, input PaymentInput) (*Invoice, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	method := strings.TrimSpace(input.Method)
	paidDate := input.PaidDate
	if paidDate.IsZero() {
		paidDate = s.now()
	}
	actor := ActorFrom(ctx)

	var (
		result   *Invoice
		previous InvoiceStatus
		moved    bool
	)
	err := s.runInTx(ctx, func(ctx context.Context) error {
		inv, err := s.lock(ctx, id)
		if err != nil {
			return err
		}

		target := StatusPartiallyPaid
		if input.Amount.GreaterThanOrEqual(inv.AmountDue) {
			target = StatusPaid
		}
		if inv.IsTerminal() {
			return &domainErr.TransitionError{From: string(inv.Status), To: string(target), Err: domainErr.ErrTerminalState}
		}
		if err := ValidateTransition(inv.Status, target); err != nil {
			return err
		}
		if input.Amount.GreaterThan(inv.AmountDue) {
			return domainErr.NewValidationError("amount", fmt.Sprintf("payment %s exceeds amount due %s", input.Amount.StringFixed(2), inv.AmountDue.StringFixed(2)))
		}

		payment := Payment{
			ID:        uuid.New(),
			InvoiceID: inv.ID,
			Amount:    input.Amount,
			Method:    method,
			PaidDate:  paidDate,
			Notes:     input.Notes,
			CreatedAt: s.now(),
		}
		if err := s.store.InsertPayment(ctx, payment); err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
		inv.Payments = append(inv.Payments, payment)
		inv.AmountPaid = inv.AmountPaid.Add(input.Amount)
		inv.AmountDue = inv.Amount.Sub(inv.AmountPaid)

		if target == StatusPaid {
			if err := s.settle(inv, paidDate, method); err != nil {
				return err
			}
		}

		previous = inv.Status
		if inv.Status == target {
			inv.UpdatedAt = s.now()
			if err := s.store.UpdateInvoice(ctx, inv); err != nil {
				return err
			}
		} else {
			note := fmt.Sprintf("payment of %s by %s", input.Amount.StringFixed(2), method)
			if err := s.moveStatus(ctx, inv, target, actor, note); err != nil {
				return err
			}
			moved = true
		}
		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("invoice_id", id.String()).
		Str("amount", input.Amount.StringFixed(2)).
		Str("amount_due", result.AmountDue.StringFixed(2)).
		Msg("payment recorded")
	if moved {
		s.publishStatusChange(ctx, result, previous, actor)
	}
	return result, nil
}

// remindable lists the statuses where a customer still owes money.
var remindable = map[InvoiceStatus]struct{}{
	StatusPending:       {},
	StatusOverdue:       {},
	StatusPartiallyPaid: {},
}

// SendReminder counts a reminder. Rate limiting is the caller's job; the
// returned LastReminderAt is what it needs for that.
func (s *LifecycleService) SendReminder(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var result *Invoice
	err := s.runInTx(ctx, func(ctx context.Context) error {
		inv, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if _, ok := remindable[inv.Status]; !ok {
			return domainErr.NewOperationError("sendReminder", fmt.Sprintf("no reminders for %s documents", inv.Status))
		}
		now := s.now()
		inv.RemindersSent++
		inv.LastReminderAt = &now
		inv.UpdatedAt = now
		if err := s.store.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		job := ReminderJob{
			InvoiceID:      result.ID,
			DocumentNumber: result.DocumentNumber,
			CustomerEmail:  result.CustomerEmail,
			CustomerName:   result.CustomerName,
			AmountDue:      result.AmountDue.StringFixed(2),
			Currency:       result.Currency,
			DueDate:        result.DueDate.Format("2006-01-02"),
			ReminderCount:  result.RemindersSent,
		}
		if err := s.notifier.EnqueueReminder(ctx, job); err != nil {
			s.log.Warn().Err(err).Str("invoice_id", id.String()).Msg("reminder recorded but not enqueued")
		}
	}
	return result, nil
}

// SoftDelete hides a DRAFT document that never received money. Anything
// else has to go through Cancel.
func (s *LifecycleService) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	err := s.runInTx(ctx, func(ctx context.Context) error {
		inv, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return domainErr.NewOperationError("softDelete", fmt.Sprintf("%s documents cannot be deleted, use cancel instead", inv.Status))
		}
		if len(inv.Payments) > 0 {
			return domainErr.NewOperationError("softDelete", "documents with payments cannot be deleted, use cancel instead")
		}
		return s.store.SoftDeleteInvoice(ctx, inv.ID, inv.Version, s.now())
	})
	if err != nil {
		return false, err
	}
	s.log.Info().Str("invoice_id", id.String()).Msg("document soft-deleted")
	return true, nil
}

func (s *LifecycleService) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var inv *Invoice
	err := s.runInTx(ctx, func(ctx context.Context) error {
		found, err := s.store.GetInvoice(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		if found == nil {
			return domainErr.NotFound("invoice", id)
		}
		inv = found
		return nil
	})
	return inv, err
}

// publishStatusChange runs after commit. A failed publish is logged only:
// the change is already durable.
func (s *LifecycleService) publishStatusChange(ctx context.Context, inv *Invoice, previous InvoiceStatus, actor string) {
	if s.publisher == nil {
		return
	}
	event := StatusChangedEvent{
		InvoiceID:      inv.ID,
		DocumentNumber: inv.DocumentNumber,
		Type:           inv.Type,
		PreviousStatus: previous,
		NewStatus:      inv.Status,
		Actor:          actor,
		Version:        inv.Version,
		OccurredAt:     s.now(),
	}
	if err := s.publisher.PublishStatusChanged(ctx, event); err != nil {
		s.log.Warn().Err(err).
			Str("invoice_id", inv.ID.String()).
			Str("status", string(inv.Status)).
			Msg("failed to publish status change")
	}
}
