package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/viper"

	"github.com/kdbartholomew/flowzero-orders-cli/pkg/api"
)

// resetViper clears viper config between tests for isolation
func resetViper() {
	viper.Reset()
}

// execute runs a fresh command tree with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetViper()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

type testEnv struct {
	ledgerPath string
	archiveDir string
	dir        string
}

// setupEnv points the CLI at baseURL with a temporary ledger and local archive.
func setupEnv(t *testing.T, baseURL string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		ledgerPath: filepath.Join(dir, "orders.json"),
		archiveDir: filepath.Join(dir, "archive"),
		dir:        dir,
	}

	t.Setenv("PL_API_KEY", "test-key")
	t.Setenv("PLANET_BASE_URL", baseURL)
	t.Setenv("PLANET_RATE_LIMIT", "1000")
	t.Setenv("PLANET_RATE_BURST", "10")
	t.Setenv("LEDGER_DRIVER", "file")
	t.Setenv("LEDGER_PATH", env.ledgerPath)
	t.Setenv("ARCHIVE_DRIVER", "local")
	t.Setenv("ARCHIVE_DIR", env.archiveDir)
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("MAX_MONTHS", "6")
	return env
}

func box(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}}
}

// writeAOI writes a one-feature GeoJSON file named name into dir.
func writeAOI(t *testing.T, dir, name string) string {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(box(-123.8, 39.1, -123.7, 39.2)))
	data, err := json.Marshal(fc)
	if err != nil {
		t.Fatalf("marshal aoi: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write aoi: %v", err)
	}
	return path
}

func scene(id string, acquired time.Time, cloud float64) api.SearchFeature {
	return api.SearchFeature{
		ID:         id,
		Geometry:   geojson.NewGeometry(box(-124, 39, -123, 40)),
		Properties: api.SceneProperties{Acquired: acquired, CloudCover: cloud, ItemType: api.ItemTypePSScene},
	}
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t.Add(18 * time.Hour)
}

// fakePlanet serves the subset of the Planet APIs the CLI calls.
type fakePlanet struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	scenes     []api.SearchFeature
	searches   int
	created    []api.CreateOrderRequest
	createFail int
	orders     map[string]*api.Order
	mosaics    []api.Mosaic
	assets     map[string]string
}

func newFakePlanet(t *testing.T) *fakePlanet {
	t.Helper()
	f := &fakePlanet{t: t, orders: map[string]*api.Order{}, assets: map[string]string{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakePlanet) URL() string { return f.srv.URL }

// addFinishedOrder registers a finished order delivering files.
func (f *fakePlanet) addFinishedOrder(id, state string, files ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order := &api.Order{ID: id, Name: "PSScope Order AOI_Navarro", State: state, LastMsg: "Manifest delivery completed"}
	for _, name := range files {
		f.assets[name] = "data:" + name
		order.Links.Results = append(order.Links.Results, api.OrderResult{
			Name:     id + "/PSScene/" + name,
			Location: f.srv.URL + "/download/" + name,
		})
	}
	f.orders[id] = order
}

func (f *fakePlanet) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if user, _, ok := r.BasicAuth(); !strings.HasPrefix(r.URL.Path, "/download/") && (!ok || user != "test-key") {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/data/v1/quick-search":
		f.searches++
		json.NewEncoder(w).Encode(api.SearchResponse{Features: f.scenes})

	case r.Method == http.MethodPost && r.URL.Path == "/compute/ops/orders/v2":
		var req api.CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("decode order request: %v", err)
		}
		f.created = append(f.created, req)
		if f.createFail > 0 && len(f.created) == f.createFail {
			http.Error(w, `{"general":[{"message":"quota exceeded"}]}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(api.CreateOrderResponse{ID: fmt.Sprintf("order-%d", len(f.created)), State: "queued"})

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/compute/ops/orders/v2/"):
		id := strings.TrimPrefix(r.URL.Path, "/compute/ops/orders/v2/")
		order, ok := f.orders[id]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(order)

	case r.Method == http.MethodGet && r.URL.Path == "/basemaps/v1/mosaics":
		mosaics := f.mosaics
		if name := r.URL.Query().Get("name__is"); name != "" {
			mosaics = nil
			for _, m := range f.mosaics {
				if m.Name == name {
					mosaics = append(mosaics, m)
				}
			}
		}
		json.NewEncoder(w).Encode(api.MosaicsResponse{Mosaics: mosaics})

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/download/"):
		body, ok := f.assets[strings.TrimPrefix(r.URL.Path, "/download/")]
		if !ok {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Write([]byte(body))

	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		http.Error(w, "unexpected", http.StatusNotFound)
	}
}
