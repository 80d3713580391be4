package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/worker"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/kafka"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/logger"
)

func newWorkerCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Long-running background consumers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "receipts",
		Short: "Render invoice and receipt PDFs as soon as a document is paid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.WithComponent("worker")
			brokers := rt.cfg.CommonConfig.KafkaBrokers()
			if len(brokers) == 0 {
				return errors.New("KAFKA_BROKER is required for the receipt worker")
			}
			d, err := rt.get(cmd.Context())
			if err != nil {
				return err
			}

			groupID := rt.cfg.CommonConfig.KAFKA_GROUP_ID
			if groupID == "" {
				groupID = "finance-receipt-prewarm"
			}
			consumer := kafka.NewConsumer(brokers, rt.cfg.EventsTopic, groupID)
			defer consumer.Close()

			log.Info().
				Str("topic", rt.cfg.EventsTopic).
				Str("group", groupID).
				Msg("receipt worker started")
			worker.NewReceiptPrewarmer(d.lifecycle, d.documents, d.docOpts).Run(cmd.Context(), consumer)
			log.Info().Msg("receipt worker stopped")
			return nil
		},
	})
	return cmd
}
