package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/daterange"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/orchestrator"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/selector"
	"github.com/kdbartholomew/flowzero-orders-cli/pkg/api"
)

func newOrderBasemapCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "order-basemap",
		Short: "Order a basemap mosaic clipped to an AOI",
		Long: `Look up a basemap mosaic by name and submit an order clipped to the AOI.
Use list-basemaps to find mosaic names.

Example:
  flowzero order-basemap --mosaic-name global_monthly_2023_05_mosaic --geojson AOI_Eel.geojson`,
		RunE: runOrderBasemap,
	}

	flags := c.Flags()
	flags.String("mosaic-name", "", "basemap mosaic name (required)")
	flags.String("geojson", "", "path to the AOI GeoJSON file (required)")
	return c
}

func runOrderBasemap(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "mosaic-name", "geojson"); err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	name, _ := cmd.Flags().GetString("mosaic-name")
	path, _ := cmd.Flags().GetString("geojson")
	aoi, err := loadAOI(path)
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

	orc := orchestrator.New(selector.New(client, a.cfg.PageSize), client, ledger, a.log)
	rec, err := orc.SubmitBasemap(cmd.Context(), aoi, name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, okStyle.Render("Basemap order submitted"))
	tw := newTable(out)
	fmt.Fprintf(tw, "  Order ID:\t%s\n", rec.OrderID)
	fmt.Fprintf(tw, "  Mosaic:\t%s\n", rec.MosaicName)
	fmt.Fprintf(tw, "  AOI:\t%s (%.2f sq km)\n", rec.AOIName, rec.AOIAreaSqKm)
	fmt.Fprintf(tw, "  Coverage:\t%s to %s\n", rec.StartDate, rec.EndDate)
	return tw.Flush()
}

func newListBasemapsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "list-basemaps",
		Short: "List basemap mosaics whose first acquisition falls in a date range",
		Long: `List the basemap mosaics visible to the API key whose first acquisition date
is within the range, inclusive.

Example:
  flowzero list-basemaps --start-date 2023-01-01 --end-date 2023-12-31`,
		RunE: runListBasemaps,
	}

	flags := c.Flags()
	flags.String("start-date", "", "first day of the range, YYYY-MM-DD (required)")
	flags.String("end-date", "", "last day of the range, YYYY-MM-DD (required)")
	return c
}

func runListBasemaps(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "start-date", "end-date"); err != nil {
		return err
	}
	r, err := parseRange(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	client, err := a.planetClient()
	if err != nil {
		return err
	}
	mosaics, err := client.ListMosaics(cmd.Context())
	if err != nil {
		return fmt.Errorf("list mosaics: %w", err)
	}

	matched := filterMosaics(mosaics, r)
	out := cmd.OutOrStdout()
	heading(out, "Basemaps first acquired %s (%d of %d)", r, len(matched), len(mosaics))
	if len(matched) == 0 {
		return nil
	}

	tw := newTable(out)
	fmt.Fprintln(tw, "NAME\tID\tFIRST ACQUIRED\tLAST ACQUIRED\tINTERVAL")
	for _, m := range matched {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.Name, m.ID,
			m.FirstAcquired.UTC().Format(daterange.Layout), m.LastAcquired.UTC().Format(daterange.Layout), dash(m.Interval))
	}
	return tw.Flush()
}

// filterMosaics keeps mosaics whose first acquisition day lies within r.
func filterMosaics(mosaics []api.Mosaic, r daterange.Range) []api.Mosaic {
	var out []api.Mosaic
	for _, m := range mosaics {
		if m.FirstAcquired.IsZero() {
			continue
		}
		if r.Contains(m.FirstAcquired) {
			out = append(out, m)
		}
	}
	return out
}
