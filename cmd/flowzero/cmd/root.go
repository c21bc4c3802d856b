package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/orchestrator"
)

var cfgFile string

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowzero",
		Short: "flowzero orders PlanetScope imagery for river-monitoring AOIs",
		Long: `flowzero selects, orders and archives PlanetScope imagery for river-monitoring
Areas of Interest (AOIs).

For each AOI and date window it searches for cloud-free scenes that fully cover
the AOI, keeps the best scene per cadence interval (daily, weekly or monthly),
and submits one clipped order per window. Every accepted order is written to a
ledger so its status can be checked, and its results archived, later.

Common workflows:

  Submit one AOI:
    flowzero submit --geojson AOI_Navarro.geojson --start-date 2023-01-01 --end-date 2023-06-30

  Submit many gages from a CSV, six months per order:
    flowzero batch-submit --input gages.csv --geojson-dir ./geojsons --max-months 6

  Check a batch and archive finished orders:
    flowzero check-order-status --batch-id <batch-id> --skip-completed

  Order a monthly basemap:
    flowzero list-basemaps --start-date 2023-01-01 --end-date 2023-12-31
    flowzero order-basemap --mosaic-name global_monthly_2023_05_mosaic --geojson AOI_Eel.geojson

Configuration:
  Settings come from flags, environment variables (a .env file is loaded if
  present), then flowzero.yaml in the working or home directory:
    PL_API_KEY        Planet API key
    LEDGER_PATH       order ledger file (default: orders.json)
    ARCHIVE_DRIVER    s3 or local (default: s3, bucket flowzero)

Re-running submit or batch-submit creates new orders; it does not check the
ledger for earlier submissions.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./flowzero.yaml or $HOME/flowzero.yaml)")
	flags.String("api-key", "", "Planet API key (env: PL_API_KEY)")
	flags.String("ledger-path", "", "order ledger file (env: LEDGER_PATH)")
	flags.String("log-level", "", "log level: debug, info, warn, error (env: LOG_LEVEL)")
	bindFlags(root)

	// Subcommands inherit this, so every flag parse error exits as bad input.
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &orchestrator.InputError{Err: err}
	})

	root.AddCommand(
		newSubmitCmd(),
		newBatchSubmitCmd(),
		newSearchScenesCmd(),
		newCheckOrderStatusCmd(),
		newOrderBasemapCmd(),
		newListBasemapsCmd(),
		newOrdersCmd(),
	)
	return root
}

func bindFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	viper.BindPFlag("api_key", flags.Lookup("api-key"))
	viper.BindPFlag("ledger_path", flags.Lookup("ledger-path"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
}

// Execute runs the CLI until completion or an interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func initConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("flowzero")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
