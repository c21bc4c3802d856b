package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/archive"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/orchestrator"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/reconciler"
)

func newCheckOrderStatusCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "check-order-status [order_id]",
		Short: "Check order status and archive the results of finished orders",
		Long: `Query the provider for one order, or for every order of a batch, and bring
the ledger up to date. Successful orders have their imagery and order metadata
copied to the archive before the ledger is marked complete; an archive failure
leaves the ledger unchanged so the next run retries it.

Examples:
  flowzero check-order-status 2f9c1d3e-7a1b-4c5d-9e8f-0a1b2c3d4e5f
  flowzero check-order-status --batch-id 6c1f0e2a-... --skip-completed`,
		Args: inputArgs(cobra.MaximumNArgs(1)),
		RunE: runCheckOrderStatus,
	}

	flags := c.Flags()
	flags.String("batch-id", "", "check every order of this batch")
	flags.Bool("skip-completed", false, "with --batch-id, skip orders already marked successful")
	return c
}

func runCheckOrderStatus(cmd *cobra.Command, args []string) error {
	batchID, _ := cmd.Flags().GetString("batch-id")
	skipCompleted, _ := cmd.Flags().GetBool("skip-completed")
	if (len(args) == 0) == (batchID == "") {
		return &orchestrator.InputError{Err: errors.New("give exactly one of an order ID or --batch-id")}
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	client, err := a.planetClient()
	if err != nil {
		return err
	}
	ledger, err := a.openLedger(ctx)
	if err != nil {
		return err
	}
	defer ledger.Close()
	sink, err := a.openSink(ctx)
	if err != nil {
		return err
	}

	rec := reconciler.New(client, archive.New(sink, client, a.log), ledger, a.log)
	out := cmd.OutOrStdout()

	if batchID == "" {
		o, err := rec.ReconcileOrder(ctx, args[0])
		printOutcomes(out, []reconciler.Outcome{o})
		if err != nil {
			return err
		}
		switch o.State {
		case reconciler.StateError:
			return fmt.Errorf("order %s: %w", o.OrderID, o.Err)
		case reconciler.StateFailed:
			return fmt.Errorf("order %s ended %s: %s", o.OrderID, o.ProviderState, o.Message)
		}
		return nil
	}

	report, err := rec.ReconcileBatch(ctx, batchID, skipCompleted)
	if report != nil {
		heading(out, "Batch %s", batchID)
		if len(report.Outcomes) == 0 {
			fmt.Fprintln(out, warnStyle.Render("No orders recorded for this batch."))
		} else {
			printOutcomes(out, report.Outcomes)
			fmt.Fprintln(out, boxStyle.Render(fmt.Sprintf("%d completed, %d pending, %d failed, %d errors, %d skipped",
				report.Count(reconciler.StateCompleted), report.Count(reconciler.StatePending),
				report.Count(reconciler.StateFailed), report.Count(reconciler.StateError),
				report.Count(reconciler.StateSkipped))))
		}
	}
	if err != nil {
		return err
	}
	if report.HasFailures() {
		return &failureError{
			failed: report.Count(reconciler.StateFailed) + report.Count(reconciler.StateError),
			total:  len(report.Outcomes),
			what:   "orders",
		}
	}
	return nil
}
