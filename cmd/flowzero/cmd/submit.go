package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/orchestrator"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/selector"
)

func newSubmitCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "submit",
		Short: "Select the best scenes for one AOI and submit an order",
		Long: `Search PlanetScope scenes over an AOI, keep the best cloud-free, fully covering
scene per cadence interval and submit one clipped order for the whole date range.

Examples:
  flowzero submit --geojson AOI_Navarro.geojson --start-date 2023-01-01 --end-date 2023-03-31
  flowzero submit --geojson AOI_Navarro.geojson --start-date 2023-01-01 --end-date 2023-03-31 --cadence daily --num-bands eight_bands --dry-run`,
		RunE: runSubmit,
	}

	flags := c.Flags()
	flags.String("geojson", "", "path to the AOI GeoJSON file (required)")
	flags.String("start-date", "", "first day of the range, YYYY-MM-DD (required)")
	flags.String("end-date", "", "last day of the range, YYYY-MM-DD (required)")
	addOrderFlags(flags)
	return c
}

func addOrderFlags(flags *pflag.FlagSet) {
	flags.String("num-bands", orchestrator.FourBands, "band configuration: four_bands or eight_bands")
	flags.String("bundle", "", "product bundle override")
	flags.String("cadence", string(selector.Weekly), "scenes kept per interval: daily, weekly or monthly")
	flags.Bool("dry-run", false, "select scenes without submitting orders")
}

func orderOptions(cmd *cobra.Command) (orchestrator.Options, error) {
	flags := cmd.Flags()
	bands, _ := flags.GetString("num-bands")
	bundle, _ := flags.GetString("bundle")
	cadenceFlag, _ := flags.GetString("cadence")
	dryRun, _ := flags.GetBool("dry-run")

	cadence, err := selector.ParseCadence(cadenceFlag)
	if err != nil {
		return orchestrator.Options{}, &orchestrator.InputError{Err: err}
	}
	return orchestrator.Options{
		Cadence:        cadence,
		BandConfig:     bands,
		BundleOverride: bundle,
		DryRun:         dryRun,
	}, nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "geojson", "start-date", "end-date"); err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	path, _ := cmd.Flags().GetString("geojson")
	aoi, err := loadAOI(path)
	if err != nil {
		return err
	}
	r, err := parseRange(cmd)
	if err != nil {
		return err
	}
	opts, err := orderOptions(cmd)
	if err != nil {
		return err
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
	fmt.Fprintf(out, "%s %s (%.2f sq km), %s, %s cadence\n", titleStyle.Render("AOI"), aoi.Name, aoi.AreaSqKm(), r, opts.Cadence)

	orc := orchestrator.New(selector.New(client, a.cfg.PageSize), client, ledger, a.log)
	result, err := orc.Run(cmd.Context(), []orchestrator.Entry{{AOI: aoi, Range: r}}, opts)
	if result != nil {
		printRunResult(out, result)
	}
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return &failureError{failed: len(result.Failed()), total: len(result.Outcomes), what: "order windows"}
	}
	return nil
}
