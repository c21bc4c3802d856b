package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/daterange"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/orchestrator"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/selector"
)

func newSearchScenesCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "search-scenes",
		Short: "Show the scenes submit would order for an AOI, without ordering",
		Long: `Run the scene search and selection used by submit and print the chosen
scenes with their cloud cover, AOI coverage and thumbnail link, followed by
a comma-separated scene ID list. Nothing is submitted and the
ledger is not touched.

Example:
  flowzero search-scenes --geojson AOI_Navarro.geojson --start-date 2023-05-01 --end-date 2023-05-31 --cadence daily`,
		RunE: runSearchScenes,
	}

	flags := c.Flags()
	flags.String("geojson", "", "path to the AOI GeoJSON file (required)")
	flags.String("start-date", "", "first day of the range, YYYY-MM-DD (required)")
	flags.String("end-date", "", "last day of the range, YYYY-MM-DD (required)")
	flags.String("cadence", string(selector.Weekly), "scenes kept per interval: daily, weekly or monthly")
	return c
}

func runSearchScenes(cmd *cobra.Command, args []string) error {
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
	cadenceFlag, _ := cmd.Flags().GetString("cadence")
	cadence, err := selector.ParseCadence(cadenceFlag)
	if err != nil {
		return &orchestrator.InputError{Err: err}
	}

	client, err := a.planetClient()
	if err != nil {
		return err
	}

	sel, err := selector.New(client, a.cfg.PageSize).Select(cmd.Context(), aoi, r, cadence)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	heading(out, "%s %s", aoi.Name, r)
	fmt.Fprintf(out, "%d scenes found, %d cloud-free with full coverage, %d selected (%s)\n", sel.Found, sel.Eligible, len(sel.Scenes), cadence)
	if sel.PaginationLimitHit {
		fmt.Fprintln(out, warnStyle.Render("Warning: the search returned a full page; matching scenes beyond it were not considered."))
	}
	if len(sel.Scenes) == 0 {
		fmt.Fprintln(out, warnStyle.Render("No valid scenes."))
		return nil
	}

	ids := make([]string, len(sel.Scenes))
	tw := newTable(out)
	fmt.Fprintln(tw, "SCENE ID\tACQUIRED\tCLOUD\tCOVERAGE\tTHUMBNAIL")
	for i, s := range sel.Scenes {
		ids[i] = s.ID
		thumb := s.Thumbnail
		if thumb == "" {
			thumb = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.1f%%\t%s\n", s.ID, s.Acquired.UTC().Format(daterange.Layout), s.CloudCover, s.Coverage*100, thumb)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nScene IDs: %s\n", strings.Join(ids, ","))
	return nil
}
