package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kdbartholomew/flowzero-orders-cli/pkg/api"
)

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchSubmit_SubdividesAndTagsBatch(t *testing.T) {
	planet := newFakePlanet(t)
	planet.scenes = []api.SearchFeature{scene("20230103_181512_12_2402", day("2023-01-03"), 0)}
	env := setupEnv(t, planet.URL())
	writeAOI(t, env.dir, "11467000.geojson")
	writeAOI(t, env.dir, "11468000.geojson")
	input := writeManifest(t, env.dir, "gages.csv",
		"gage_id,start_date,end_date\n11467000,2023-01-01,2023-03-31\n11468000,2023-01-01,2023-01-31\n")

	out, err := execute(t, "batch-submit", "--input", input, "--geojson-dir", env.dir, "--max-months", "2", "--batch-id", "batch-1")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "3 submitted") {
		t.Errorf("expected 3 submitted windows, got: %s", out)
	}
	if !strings.Contains(out, "check-order-status --batch-id batch-1") {
		t.Errorf("expected follow-up hint, got: %s", out)
	}

	recs := readLedger(t, env.ledgerPath)
	if len(recs) != 3 {
		t.Fatalf("expected 3 ledger records, got %d", len(recs))
	}
	wantRanges := [][2]string{{"2023-01-01", "2023-02-28"}, {"2023-03-01", "2023-03-31"}, {"2023-01-01", "2023-01-31"}}
	wantGages := []string{"11467000", "11467000", "11468000"}
	for i, rec := range recs {
		if rec.BatchID != "batch-1" {
			t.Errorf("record %d: expected batch-1, got %q", i, rec.BatchID)
		}
		if rec.GageID != wantGages[i] {
			t.Errorf("record %d: expected gage %s, got %s", i, wantGages[i], rec.GageID)
		}
		if rec.StartDate != wantRanges[i][0] || rec.EndDate != wantRanges[i][1] {
			t.Errorf("record %d: expected %v, got %s..%s", i, wantRanges[i], rec.StartDate, rec.EndDate)
		}
	}
}

func TestBatchSubmit_DefaultsBatchIDAndMaxMonths(t *testing.T) {
	planet := newFakePlanet(t)
	planet.scenes = []api.SearchFeature{scene("20230103_181512_12_2402", day("2023-01-03"), 0)}
	env := setupEnv(t, planet.URL())
	writeAOI(t, env.dir, "11467000.geojson")
	input := writeManifest(t, env.dir, "gages.yaml",
		"- gage_id: \"11467000\"\n  start_date: \"2023-01-01\"\n  end_date: \"2023-12-31\"\n")

	if out, err := execute(t, "batch-submit", "--input", input, "--geojson-dir", env.dir); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}

	recs := readLedger(t, env.ledgerPath)
	if len(recs) != 2 {
		t.Fatalf("expected two 6-month windows, got %d", len(recs))
	}
	if _, err := uuid.Parse(recs[0].BatchID); err != nil {
		t.Errorf("expected a UUID batch ID, got %q", recs[0].BatchID)
	}
	if recs[0].BatchID != recs[1].BatchID {
		t.Error("all orders of a run must share the batch ID")
	}
}

func TestBatchSubmit_CustomFieldNames(t *testing.T) {
	planet := newFakePlanet(t)
	planet.scenes = []api.SearchFeature{scene("20230103_181512_12_2402", day("2023-01-03"), 0)}
	env := setupEnv(t, planet.URL())
	writeAOI(t, env.dir, "11467000.geojson")
	input := writeManifest(t, env.dir, "gages.csv", "site_no,from,to\n11467000,2023-01-01,2023-01-31\n")

	_, err := execute(t, "batch-submit", "--input", input, "--geojson-dir", env.dir,
		"--gage-field", "site_no", "--start-field", "from", "--end-field", "to")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recs := readLedger(t, env.ledgerPath); len(recs) != 1 || recs[0].GageID != "11467000" {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestBatchSubmit_InvalidInputSubmitsNothing(t *testing.T) {
	planet := newFakePlanet(t)
	planet.scenes = []api.SearchFeature{scene("20230103_181512_12_2402", day("2023-01-03"), 0)}
	env := setupEnv(t, planet.URL())
	writeAOI(t, env.dir, "11467000.geojson")

	tests := []struct {
		name     string
		manifest string
		file     string
		contains string
	}{
		{"missing field", "site,start_date,end_date\n11467000,2023-01-01,2023-01-31\n", "a.csv", "available columns"},
		{"missing geojson", "gage_id,start_date,end_date\n11467000,2023-01-01,2023-01-31\n99999999,2023-01-01,2023-01-31\n", "b.csv", "99999999"},
		{"bad row", "gage_id,start_date,end_date\n11467000,2023-01-01,2022-01-31\n", "c.csv", "line 2"},
		{"unsupported format", "gage_id\n", "d.txt", "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := writeManifest(t, env.dir, tt.file, tt.manifest)
			_, err := execute(t, "batch-submit", "--input", input, "--geojson-dir", env.dir)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("expected error to mention %q, got: %v", tt.contains, err)
			}
			if code := ExitCode(err); code != 2 {
				t.Errorf("expected exit code 2, got %d", code)
			}
		})
	}
	if planet.searches != 0 || len(planet.created) != 0 {
		t.Errorf("invalid input must not reach the provider: %d searches, %d orders", planet.searches, len(planet.created))
	}
}

func TestBatchSubmit_PartialFailureContinues(t *testing.T) {
	planet := newFakePlanet(t)
	planet.scenes = []api.SearchFeature{scene("20230103_181512_12_2402", day("2023-01-03"), 0)}
	planet.createFail = 2
	env := setupEnv(t, planet.URL())
	for _, g := range []string{"g1", "g2", "g3"} {
		writeAOI(t, env.dir, g+".geojson")
	}
	input := writeManifest(t, env.dir, "gages.csv",
		"gage_id,start_date,end_date\ng1,2023-01-01,2023-01-31\ng2,2023-01-01,2023-01-31\ng3,2023-01-01,2023-01-31\n")

	out, err := execute(t, "batch-submit", "--input", input, "--geojson-dir", env.dir)
	if err == nil {
		t.Fatal("expected a non-zero exit when a window fails")
	}
	if !strings.Contains(err.Error(), "1 of 3") {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "2 submitted") || !strings.Contains(out, "1 failed") {
		t.Errorf("unexpected summary: %s", out)
	}
	if recs := readLedger(t, env.ledgerPath); len(recs) != 2 {
		t.Errorf("expected 2 recorded orders, got %d", len(recs))
	}
}
