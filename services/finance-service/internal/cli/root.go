package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/status"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/app"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/config"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/logger"
)

var version = "0.1.0"

// runtime carries the loaded config and builds the dependency graph on first
// use, so `--help` never dials a database.
type runtime struct {
	cfg   *config.FinanceConfig
	actor string
	deps  *deps
}

func (r *runtime) get(ctx context.Context) (*deps, error) {
	if r.deps != nil {
		return r.deps, nil
	}
	d, err := buildDeps(ctx, r.cfg)
	if err != nil {
		return nil, err
	}
	r.deps = d
	return d, nil
}

// ctx attaches the acting user to the command context.
func (r *runtime) ctx(cmd *cobra.Command) context.Context {
	return invoice.WithActor(cmd.Context(), r.actor)
}

func NewRootCmd(cfg *config.FinanceConfig) *cobra.Command {
	rt := &runtime{cfg: cfg}

	root := &cobra.Command{
		Use:   "financectl",
		Short: "Manage invoices, quotes, receipts and their rendered documents",
		Long: `financectl drives the invoice lifecycle: numbering, status transitions,
payments, reminders, content-addressed PDF rendering and revenue statistics.

Database, Kafka and RabbitMQ settings come from the environment (see .env).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.deps != nil {
				rt.deps.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&rt.actor, "actor", "", "user recorded in the status history (default \"system\")")

	root.AddCommand(
		newMigrateCmd(rt),
		newInvoiceCmd(rt),
		newDocumentCmd(rt),
		newStatsCmd(rt),
		newWorkerCmd(rt),
	)
	return root
}

// Execute runs the CLI until it finishes or the process is signalled.
func Execute(cfg *config.FinanceConfig) {
	log := logger.WithComponent("cmd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd(cfg).ExecuteContext(ctx); err != nil {
		st, _ := status.FromError(app.MapError(err))
		log.Error().
			Err(err).
			Str("code", st.Code().String()).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %s (%s)\n", st.Message(), st.Code())
		stop()
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
