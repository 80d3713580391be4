// services/finance-service/internal/statistics/aggregator.go

package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/logger"
)

const defaultTimeout = 10 * time.Second

// DateFilter bounds the issued date, both ends inclusive. Nil ends are open.
type DateFilter struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether issued falls inside the filter, day granularity.
func (f *DateFilter) Contains(issued time.Time) bool {
	if f == nil {
		return true
	}
	day := truncateDay(issued)
	if f.From != nil && day.Before(truncateDay(*f.From)) {
		return false
	}
	if f.To != nil && day.After(truncateDay(*f.To)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StatusTotal is one row of the grouped aggregate.
type StatusTotal struct {
	Status invoice.InvoiceStatus
	Count  int64
	Sum    decimal.Decimal
}

// Source runs the single GROUP BY status query over live documents.
type Source interface {
	StatusTotals(ctx context.Context, filter *DateFilter) ([]StatusTotal, error)
}

type Statistics struct {
	Total           int64
	PerStatusCounts map[invoice.InvoiceStatus]int64
	TotalRevenue    decimal.Decimal // PAID
	PendingRevenue  decimal.Decimal // PENDING + OVERDUE
	AvgPaidValue    decimal.Decimal
}

type Aggregator struct {
	source  Source
	log     zerolog.Logger
	timeout time.Duration
}

func NewAggregator(source Source) *Aggregator {
	return &Aggregator{
		source:  source,
		log:     logger.WithComponent("statistics"),
		timeout: defaultTimeout,
	}
}

func (a *Aggregator) WithLogger(l zerolog.Logger) *Aggregator {
	a.log = l
	return a
}

// GetStatistics derives every figure from one grouped read, so the query
// count does not depend on how many statuses exist.
func (a *Aggregator) GetStatistics(ctx context.Context, filter *DateFilter) (*Statistics, error) {
	if filter != nil && filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, domainErr.NewValidationError("dateFilter", "from is after to")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	rows, err := a.source.StatusTotals(ctx, filter)
	if err != nil {
		return nil, domainErr.WrapTimeout(fmt.Errorf("failed to aggregate statuses: %w", err))
	}

	stats := &Statistics{
		PerStatusCounts: make(map[invoice.InvoiceStatus]int64, len(invoice.AllStatuses)),
		TotalRevenue:    decimal.Zero,
		PendingRevenue:  decimal.Zero,
		AvgPaidValue:    decimal.Zero,
	}
	for _, s := range invoice.AllStatuses {
		stats.PerStatusCounts[s] = 0
	}

	var paidCount int64
	for _, row := range rows {
		if !row.Status.Valid() {
			a.log.Warn().Str("status", string(row.Status)).Msg("skipping unknown status in aggregate")
			continue
		}
		stats.PerStatusCounts[row.Status] += row.Count
		stats.Total += row.Count

		switch row.Status {
		case invoice.StatusPaid:
			stats.TotalRevenue = stats.TotalRevenue.Add(row.Sum)
			paidCount += row.Count
		case invoice.StatusPending, invoice.StatusOverdue:
			stats.PendingRevenue = stats.PendingRevenue.Add(row.Sum)
		}
	}

	if paidCount > 0 {
		stats.AvgPaidValue = stats.TotalRevenue.Div(decimal.NewFromInt(paidCount)).Round(2)
	}
	return stats, nil
}
