package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/blob"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/config"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/document"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/notify"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/numbering"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/render"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/statistics"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/store/postgres"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/kafka"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/logger"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/rabbitmq"
)

// deps is the wired object graph behind every command.
type deps struct {
	db        *sql.DB
	lifecycle *invoice.LifecycleService
	documents *document.CacheService
	stats     *statistics.Aggregator
	docOpts   document.Options

	closers []func() error
	log     zerolog.Logger
}

func buildDeps(ctx context.Context, cfg *config.FinanceConfig) (_ *deps, err error) {
	d := &deps{log: logger.WithComponent("wiring")}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	db, err := postgres.Open(ctx, cfg.CommonConfig.GetDBURL())
	if err != nil {
		return nil, err
	}
	d.db = db
	d.closers = append(d.closers, db.Close)

	invoices := postgres.NewInvoiceStore(db)
	numbers := numbering.NewGenerator(invoices)

	opts := []invoice.Option{
		invoice.WithLogger(logger.WithComponent("lifecycle")),
		invoice.WithOperationTimeout(cfg.OperationTimeout),
		invoice.WithNumberPrefix(invoice.TypeInvoice, cfg.InvoiceNumberPrefix),
		invoice.WithNumberPrefix(invoice.TypeQuote, cfg.QuoteNumberPrefix),
	}

	if brokers := cfg.CommonConfig.KafkaBrokers(); len(brokers) > 0 {
		producer := kafka.NewKafkaProducer(brokers, cfg.EventsTopic)
		d.closers = append(d.closers, producer.Close)
		opts = append(opts, invoice.WithEventPublisher(notify.NewEventPublisher(producer)))
	} else {
		d.log.Warn().Msg("KAFKA_BROKER not set, lifecycle events are not published")
	}

	if cfg.CommonConfig.RabbitMQEnabled() {
		client, err := rabbitmq.NewClient(cfg.CommonConfig.GetRabbitMQURL())
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, client.Close)
		queue, err := notify.NewReminderQueue(client, cfg.ReminderQueue)
		if err != nil {
			return nil, err
		}
		opts = append(opts, invoice.WithReminderNotifier(queue))
	} else {
		d.log.Warn().Msg("RabbitMQ not configured, reminders are recorded but not delivered")
	}

	d.lifecycle = invoice.NewLifecycleService(invoices, postgres.NewTxManager(db), numbers, opts...)

	blobs, err := openBlobStore(ctx, cfg, d)
	if err != nil {
		return nil, err
	}
	d.documents = document.NewCacheService(postgres.NewArtifactStore(db), blobs, render.NewPDFRenderer(cfg.CompanyName)).
		WithLogger(logger.WithComponent("documents"))
	d.docOpts = document.Options{URLTTL: cfg.SignedURLTTL, Timeout: cfg.BlobTimeout}

	d.stats = statistics.NewAggregator(postgres.NewStatisticsStore(db)).
		WithLogger(logger.WithComponent("statistics"))

	return d, nil
}

func openBlobStore(ctx context.Context, cfg *config.FinanceConfig, d *deps) (document.BlobStore, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendMemory:
		d.log.Warn().Msg("using in-memory blob store, rendered documents are lost on exit")
		return blob.NewMemoryStore(), nil
	default:
		store, err := blob.NewGCSStore(ctx, blob.GCSConfig{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.CredentialsFile,
			CredentialsJSON: cfg.CredentialsJSON,
		})
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		d.closers = append(d.closers, store.Close)
		return store, nil
	}
}

// Close releases resources in reverse order of acquisition.
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.log.Warn().Err(err).Msg("close failed")
		}
	}
	d.closers = nil
}
