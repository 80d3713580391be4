// services/finance-service/internal/worker/receipt_prewarm.go

package worker

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/document"
	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/notify"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/kafka"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/logger"
)

type InvoiceReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
}

type DocumentCache interface {
	GetOrCreate(ctx context.Context, doc *invoice.Invoice, kind document.Kind, opts document.Options) (*document.Result, error)
}

// ReceiptPrewarmer listens for documents reaching PAID and renders their
// final invoice and receipt before anybody asks for them.
type ReceiptPrewarmer struct {
	invoices InvoiceReader
	cache    DocumentCache
	opts     document.Options
	log      zerolog.Logger
}

func NewReceiptPrewarmer(invoices InvoiceReader, cache DocumentCache, opts document.Options) *ReceiptPrewarmer {
	return &ReceiptPrewarmer{
		invoices: invoices,
		cache:    cache,
		opts:     opts,
		log:      logger.WithComponent("receipt-prewarmer"),
	}
}

func (w *ReceiptPrewarmer) WithLogger(l zerolog.Logger) *ReceiptPrewarmer {
	w.log = l
	return w
}

// Run consumes until ctx is cancelled.
func (w *ReceiptPrewarmer) Run(ctx context.Context, consumer *kafka.Consumer) {
	consumer.Start(ctx, w.Handle)
}

// Handle processes one lifecycle event. Failures caused by the document
// itself are logged and dropped; everything else goes back to the consumer
// for another attempt.
func (w *ReceiptPrewarmer) Handle(ctx context.Context, key, value []byte) error {
	env, err := notify.DecodeEnvelope(value)
	if err != nil {
		w.log.Warn().Err(err).Str("key", string(key)).Msg("skipping undecodable event")
		return nil
	}
	if env.Type != notify.EventStatusChanged || env.Payload.NewStatus != invoice.StatusPaid {
		return nil
	}

	doc, err := w.invoices.GetByID(ctx, env.Payload.InvoiceID)
	if err != nil {
		if stdErrors.Is(err, domainErr.ErrNotFound) {
			w.log.Warn().Str("invoice_id", env.Payload.InvoiceID.String()).Msg("paid document vanished before prewarm")
			return nil
		}
		return w.classify(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range []document.Kind{document.KindInvoice, document.KindReceipt} {
		kind := kind
		g.Go(func() error {
			res, err := w.cache.GetOrCreate(gctx, doc, kind, w.opts)
			if err != nil {
				return fmt.Errorf("prewarm %s %s: %w", kind, doc.DocumentNumber, err)
			}
			w.log.Debug().
				Str("document_number", doc.DocumentNumber).
				Str("kind", string(kind)).
				Bool("regenerated", res.Regenerated).
				Msg("prewarmed")
			return nil
		})
	}
	return w.classify(g.Wait())
}

func (w *ReceiptPrewarmer) classify(err error) error {
	if err == nil {
		return nil
	}
	if stdErrors.Is(err, domainErr.ErrValidation) || stdErrors.Is(err, domainErr.ErrInvalidOperation) {
		w.log.Error().Err(err).Msg("prewarm rejected")
		return nil
	}
	return err
}
