package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/geo"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/manifest"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/orchestrator"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/selector"
)

func newBatchSubmitCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "batch-submit",
		Short: "Submit orders for every gage listed in a CSV or YAML manifest",
		Long: `Read a manifest with one row per gage and its own date range, load
<geojson-dir>/<gage_id>.geojson for each row, split each range into windows of
at most --max-months calendar months and submit one order per window.

Every order of the run shares a batch ID (a new UUID unless --batch-id is
given) so the batch can be checked later with check-order-status --batch-id.
All rows are validated before anything is submitted.

Examples:
  flowzero batch-submit --input gages.csv --geojson-dir ./geojsons
  flowzero batch-submit --input gages.yaml --geojson-dir ./geojsons --gage-field site_no --max-months 3 --dry-run`,
		RunE: runBatchSubmit,
	}

	d := manifest.DefaultMapping()
	flags := c.Flags()
	flags.String("input", "", "manifest file, .csv or .yaml (required)")
	flags.String("geojson-dir", "", "directory holding <gage_id>.geojson files (required)")
	flags.String("gage-field", d.GageIDField, "manifest column holding the gage id")
	flags.String("start-field", d.StartField, "manifest column holding the start date")
	flags.String("end-field", d.EndField, "manifest column holding the end date")
	flags.Int("max-months", 0, "longest window per order in calendar months, 0 for no split (default from config, 6)")
	flags.String("batch-id", "", "batch identifier (default: a new UUID)")
	addOrderFlags(flags)
	return c
}

func runBatchSubmit(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "input", "geojson-dir"); err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	flags := cmd.Flags()
	input, _ := flags.GetString("input")
	dir, _ := flags.GetString("geojson-dir")
	mapping := manifest.FieldMapping{}
	mapping.GageIDField, _ = flags.GetString("gage-field")
	mapping.StartField, _ = flags.GetString("start-field")
	mapping.EndField, _ = flags.GetString("end-field")

	rows, err := manifest.Load(input, mapping)
	if err != nil {
		return err
	}
	entries, err := batchEntries(rows, dir)
	if err != nil {
		return err
	}

	opts, err := orderOptions(cmd)
	if err != nil {
		return err
	}
	opts.MaxMonths = a.cfg.MaxMonths
	if flags.Changed("max-months") {
		opts.MaxMonths, _ = flags.GetInt("max-months")
	}
	opts.BatchID, _ = flags.GetString("batch-id")
	if opts.BatchID == "" {
		opts.BatchID = uuid.NewString()
	}

	client, err := a.planetClient()
	if err != nil {
		return err
	}
	ledger, err := a.openLedger(cmd.Context())
	if err != nil {
		return err
	}
	defer ledger.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d gages from %s, max %d months per order\n", titleStyle.Render("Batch"), len(entries), input, opts.MaxMonths)

	orc := orchestrator.New(selector.New(client, a.cfg.PageSize), client, ledger, a.log)
	result, err := orc.Run(cmd.Context(), entries, opts)
	if result != nil {
		printRunResult(out, result)
		if !opts.DryRun && len(result.Submitted()) > 0 {
			fmt.Fprintln(out, dimStyle.Render("Check progress with: flowzero check-order-status --batch-id "+opts.BatchID))
		}
	}
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return &failureError{failed: len(result.Failed()), total: len(result.Outcomes), what: "order windows"}
	}
	return nil
}

// batchEntries resolves each row's AOI from dir. Rows sharing a gage share
// one loaded AOI.
func batchEntries(rows []manifest.Row, dir string) ([]orchestrator.Entry, error) {
	aois := make(map[string]*geo.AOI)
	entries := make([]orchestrator.Entry, 0, len(rows))
	for _, row := range rows {
		aoi, ok := aois[row.GageID]
		if !ok {
			path := filepath.Join(dir, row.GageID+".geojson")
			var err error
			aoi, err = geo.LoadAOI(path)
			if err != nil {
				return nil, &orchestrator.InputError{Err: fmt.Errorf("line %d: gage %s: %w", row.Line, row.GageID, err)}
			}
			aois[row.GageID] = aoi
		}
		entries = append(entries, orchestrator.Entry{AOI: aoi, GageID: row.GageID, Range: row.Range})
	}
	return entries, nil
}
