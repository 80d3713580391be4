package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/store/postgres"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/logger"
)

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the finance schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.WithComponent("migrate")
			db, err := postgres.Open(cmd.Context(), rt.cfg.CommonConfig.GetDBURL())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			log.Info().Msg("schema up to date")
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
