package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/store"
)

func newOrdersCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "orders",
		Short: "List orders recorded in the ledger",
		Long: `Print ledger records in submission order, optionally limited to one batch.

Examples:
  flowzero orders
  flowzero orders --batch-id 6c1f0e2a-...`,
		Args: inputArgs(cobra.NoArgs),
		RunE: runOrders,
	}
	c.Flags().String("batch-id", "", "only show orders of this batch")
	return c
}

func runOrders(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	ledger, err := a.openLedger(ctx)
	if err != nil {
		return err
	}
	defer ledger.Close()

	batchID, _ := cmd.Flags().GetString("batch-id")
	var records []store.OrderRecord
	if batchID != "" {
		records, err = ledger.ListByBatch(ctx, batchID)
	} else {
		records, err = ledger.List(ctx)
	}
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, dimStyle.Render("No orders found."))
		return nil
	}

	tw := newTable(out)
	fmt.Fprintln(tw, "ORDER ID\tTYPE\tAOI\tGAGE\tSTART\tEND\tSCENES\tSUBMITTED\tBATCH\tSTATUS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.OrderID, r.OrderType, r.AOIName, dash(r.GageID), r.StartDate, r.EndDate, r.SceneCount,
			r.SubmittedAt.UTC().Format("2006-01-02 15:04"), dash(r.BatchID),
			stateStyle(string(r.Status)).Render(string(r.Status)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d orders\n", len(records))
	return nil
}
