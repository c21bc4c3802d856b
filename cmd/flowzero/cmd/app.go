package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/archive"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/config"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/daterange"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/geo"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/logger"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/manifest"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/observability"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/orchestrator"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/planet"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/store"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/store/jsonfile"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/store/postgres"
)

// app holds what a command needs once configuration is resolved.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	shutdown func(context.Context) error
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadFrom(viper.GetViper(), "")
	if err != nil {
		return nil, &orchestrator.InputError{Err: fmt.Errorf("config: %w", err)}
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	shutdown, err := observability.Setup(cmd.Context(), cfg.OTELEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	return &app{cfg: cfg, log: log, shutdown: shutdown}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.log.Warn("telemetry shutdown failed", "error", err)
	}
}

func (a *app) planetClient() (*planet.Client, error) {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, &orchestrator.InputError{Err: err}
	}
	return planet.NewClient(a.cfg.BaseURL, a.cfg.APIKey, planet.Options{
		RateLimit: a.cfg.RateLimit,
		RateBurst: a.cfg.RateBurst,
		Timeout:   a.cfg.HTTPTimeout,
	}), nil
}

func (a *app) openLedger(ctx context.Context) (store.Ledger, error) {
	switch a.cfg.LedgerDriver {
	case config.LedgerPostgres:
		s, err := postgres.New(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		return s, nil
	default:
		s, err := jsonfile.Open(a.cfg.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		return s, nil
	}
}

func (a *app) openSink(ctx context.Context) (archive.Sink, error) {
	switch a.cfg.ArchiveDriver {
	case config.ArchiveLocal:
		return archive.NewLocalSink(a.cfg.ArchiveDir), nil
	default:
		s, err := archive.NewS3Sink(ctx, a.cfg.S3Bucket, a.cfg.S3Region)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		return s, nil
	}
}

// inputArgs reports positional argument errors as input errors.
func inputArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &orchestrator.InputError{Err: err}
		}
		return nil
	}
}

func loadAOI(path string) (*geo.AOI, error) {
	aoi, err := geo.LoadAOI(path)
	if err != nil {
		return nil, &orchestrator.InputError{Err: err}
	}
	return aoi, nil
}

func parseRange(cmd *cobra.Command) (daterange.Range, error) {
	start, _ := cmd.Flags().GetString("start-date")
	end, _ := cmd.Flags().GetString("end-date")
	r, err := daterange.Parse(start, end)
	if err != nil {
		return daterange.Range{}, &orchestrator.InputError{Err: err}
	}
	return r, nil
}

func requireFlags(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		v, _ := cmd.Flags().GetString(name)
		if v == "" {
			return &orchestrator.InputError{Err: fmt.Errorf("--%s is required", name)}
		}
	}
	return nil
}

// failureError reports a run that finished with some failed members.
type failureError struct {
	failed int
	total  int
	what   string
}

func (e *failureError) Error() string {
	return fmt.Sprintf("%d of %d %s failed", e.failed, e.total, e.what)
}

// ExitCode maps an error returned by Execute to a process exit status:
// 2 for invalid input, 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var inputErr *orchestrator.InputError
	var fieldErr *manifest.FieldError
	var rowErr *manifest.RowError
	switch {
	case errors.As(err, &inputErr), errors.As(err, &fieldErr), errors.As(err, &rowErr),
		errors.Is(err, manifest.ErrUnsupportedFormat):
		return 2
	}
	return 1
}
