// services/finance-service/internal/store/postgres/statistics_store.postgres.go

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/statistics"
)

type StatisticsStore struct {
	db *sql.DB
}

func NewStatisticsStore(db *sql.DB) *StatisticsStore {
	return &StatisticsStore{db: db}
}

// StatusTotals is the single grouped query behind the dashboard figures.
func (store *StatisticsStore) StatusTotals(ctx context.Context, filter *statistics.DateFilter) ([]statistics.StatusTotal, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM invoices
		WHERE deleted_at IS NULL
		  AND ($1::date IS NULL OR issued_date >= $1::date)
		  AND ($2::date IS NULL OR issued_date <= $2::date)
		GROUP BY status`

	var from, to sql.NullTime
	if filter != nil {
		if filter.From != nil {
			from = sql.NullTime{Time: *filter.From, Valid: true}
		}
		if filter.To != nil {
			to = sql.NullTime{Time: *filter.To, Valid: true}
		}
	}

	rows, err := conn(ctx, store.db).QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate invoices: %w", mapError(err))
	}
	defer rows.Close()

	var out []statistics.StatusTotal
	for rows.Next() {
		row := statistics.StatusTotal{Sum: decimal.Zero}
		if err := rows.Scan(&row.Status, &row.Count, &row.Sum); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
