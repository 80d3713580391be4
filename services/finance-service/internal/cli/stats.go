package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/statistics"
)

func newStatsCmd(rt *runtime) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Counts per status and revenue figures, optionally by issued date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *statistics.DateFilter
			if from != "" || to != "" {
				filter = &statistics.DateFilter{}
				if from != "" {
					t, err := parseDate("from", from, time.Time{})
					if err != nil {
						return err
					}
					filter.From = &t
				}
				if to != "" {
					t, err := parseDate("to", to, time.Time{})
					if err != nil {
						return err
					}
					filter.To = &t
				}
			}

			d, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := d.stats.GetStatistics(cmd.Context(), filter)
			if err != nil {
				return err
			}

			counts := make(map[string]int64, len(stats.PerStatusCounts))
			for status, n := range stats.PerStatusCounts {
				counts[string(status)] = n
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"total":           stats.Total,
				"per_status":      counts,
				"total_revenue":   stats.TotalRevenue.StringFixed(2),
				"pending_revenue": stats.PendingRevenue.StringFixed(2),
				"avg_paid_value":  stats.AvgPaidValue.StringFixed(2),
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first issued date YYYY-MM-DD, inclusive")
	cmd.Flags().StringVar(&to, "to", "", "last issued date YYYY-MM-DD, inclusive")
	return cmd
}
