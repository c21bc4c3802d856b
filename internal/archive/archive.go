package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/geo"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/selector"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/store"
	"github.com/kdbartholomew/flowzero-orders-cli/pkg/api"
)

// ErrNoResults is returned when a successful order lists no downloadable files.
var ErrNoResults = errors.New("order has no downloadable results")

const unknownDate = "unknown_date"

var (
	acquiredPattern = regexp.MustCompile(`(\d{4})(\d{2})(\d{2})_`)
	itemIDPattern   = regexp.MustCompile(`^(\d{8}_\w+?)_(?:3B|1B)_`)
)

// Downloader fetches a delivered asset.
type Downloader interface {
	Download(ctx context.Context, location string) (io.ReadCloser, int64, error)
}

// Asset is one file selected for archival.
type Asset struct {
	Name     string
	Location string
	Key      string
	Acquired time.Time
}

// Report describes what an archival run wrote.
type Report struct {
	// Prefix is the common key prefix, and ArchivePath its sink URI.
	Prefix      string
	ArchivePath string
	Files       []string
	MetadataKey string
	// Skipped lists result files excluded by the asset filter.
	Skipped []string
}

// Archiver downloads order results and writes them to a Sink.
type Archiver struct {
	sink   Sink
	dl     Downloader
	logger *slog.Logger
}

func New(sink Sink, dl Downloader, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{sink: sink, dl: dl, logger: logger}
}

// Archive copies the assets of a successful order described by rec, then
// writes the provider's order JSON as a metadata record. The first failed
// download or upload aborts the run.
func (a *Archiver) Archive(ctx context.Context, rec store.OrderRecord, order *api.Order) (*Report, error) {
	if len(order.Links.Results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoResults, order.ID)
	}

	prefix, assets, skipped := Plan(rec, order)
	report := &Report{
		Prefix:      prefix,
		ArchivePath: a.sink.URI(prefix),
		Skipped:     skipped,
	}

	for _, asset := range assets {
		if err := a.copy(ctx, asset); err != nil {
			return nil, err
		}
		a.logger.Info("archived asset", "order_id", order.ID, "file", asset.Name, "uri", a.sink.URI(asset.Key))
		report.Files = append(report.Files, asset.Key)
	}

	meta := order.Raw
	if len(meta) == 0 {
		var err error
		if meta, err = json.MarshalIndent(order, "", "  "); err != nil {
			return nil, fmt.Errorf("encode order metadata: %w", err)
		}
	}
	report.MetadataKey = MetadataKey(prefix, order.ID)
	if err := a.sink.Put(ctx, report.MetadataKey, strings.NewReader(string(meta)), int64(len(meta)), "application/json"); err != nil {
		return nil, fmt.Errorf("write order metadata: %w", err)
	}
	return report, nil
}

func (a *Archiver) copy(ctx context.Context, asset Asset) error {
	body, size, err := a.dl.Download(ctx, asset.Location)
	if err != nil {
		return fmt.Errorf("download %s: %w", asset.Name, err)
	}
	defer body.Close()

	if err := a.sink.Put(ctx, asset.Key, body, size, contentType(asset.Name)); err != nil {
		return err
	}
	return nil
}

// Plan chooses the files to archive for an order and their keys.
func Plan(rec store.OrderRecord, order *api.Order) (prefix string, assets []Asset, skipped []string) {
	aoi := geo.NormalizeName(rec.AOIName)
	if aoi == "" {
		aoi = "UnknownAOI"
	}

	if isBasemap(rec, order) {
		prefix = path.Join("basemaps", aoi, MosaicDate(rec.MosaicName))
		seen := make(map[string]bool)
		for _, r := range order.Links.Results {
			name := path.Base(r.Name)
			if seen[name] {
				continue
			}
			seen[name] = true
			assets = append(assets, Asset{Name: name, Location: r.Location, Key: path.Join(prefix, name)})
		}
		return prefix, assets, nil
	}

	bands := rec.BandConfig
	if bands == "" {
		bands = "four_bands"
	}
	prefix = path.Join("planetscope analytic", bands, aoi)

	cadence, err := selector.ParseCadence(rec.Cadence)
	if err != nil {
		cadence = selector.Weekly
	}

	var candidates []Asset
	seen := make(map[string]bool)
	for _, r := range order.Links.Results {
		name := path.Base(r.Name)
		if seen[name] {
			continue
		}
		seen[name] = true

		acquired, ok := analyticAcquired(name)
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		key := path.Join(prefix, acquired.Format("2006_01_02")+"_"+itemID(name)+".tiff")
		candidates = append(candidates, Asset{Name: name, Location: r.Location, Key: key, Acquired: acquired})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].Acquired.Equal(candidates[j].Acquired) {
			return candidates[i].Acquired.Before(candidates[j].Acquired)
		}
		return candidates[i].Name < candidates[j].Name
	})

	taken := make(map[time.Time]bool)
	for _, c := range candidates {
		interval := selector.IntervalStart(c.Acquired, cadence)
		if taken[interval] {
			skipped = append(skipped, c.Name)
			continue
		}
		taken[interval] = true
		assets = append(assets, c)
	}
	return prefix, assets, skipped
}

func isBasemap(rec store.OrderRecord, order *api.Order) bool {
	return rec.OrderType == store.OrderTypeBasemap || order.SourceType == "basemaps"
}

// analyticAcquired reports the acquisition date of an analytic GeoTIFF.
// UDM masks, XML sidecars and undated files are rejected.
func analyticAcquired(name string) (time.Time, bool) {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, ".tif") || strings.Contains(lower, "udm") {
		return time.Time{}, false
	}
	m := acquiredPattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", m[1]+m[2]+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// itemID returns the scene identifier embedded in a product file name.
func itemID(name string) string {
	if m := itemIDPattern.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	stem := strings.TrimSuffix(name, path.Ext(name))
	if i := strings.Index(stem, "_"); i >= 0 {
		return stem[i+1:]
	}
	return stem
}

// MosaicDate extracts "2023_05" from names like global_monthly_2023_05_mosaic.
func MosaicDate(mosaicName string) string {
	parts := strings.Split(mosaicName, "_")
	if len(parts) >= 4 && len(parts[2]) == 4 {
		return parts[2] + "_" + parts[3]
	}
	return unknownDate
}

// MetadataKey is where the order JSON for orderID is stored below prefix.
func MetadataKey(prefix, orderID string) string {
	return path.Join(prefix, "metadata", orderID+".json")
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".tif", ".tiff":
		return "image/tiff"
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}
