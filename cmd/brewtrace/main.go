// Command brewtrace runs the fermentation batch pipeline over a CSV export:
// cleanup stages, golden-profile alignment, changepoint detection, and the
// anomaly rule set, printing a per-batch summary.
//
// The CSV must already be schema-mapped to the core's input contract
// (timestamp, tank_id, batch_id, strain, style, gas_rate_lpm,
// dissolved_gas_ppm, pressure_kpa, temperature_c, valve_open, agitator_rpm).
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/brewtrace/brewtrace/internal/config"
	"github.com/brewtrace/brewtrace/internal/ferm"
	"github.com/brewtrace/brewtrace/internal/ferm/anomaly"
	"github.com/brewtrace/brewtrace/internal/ferm/changepoint"
	"github.com/brewtrace/brewtrace/internal/ferm/monitor"
	"github.com/brewtrace/brewtrace/internal/ferm/preprocess"
	"github.com/brewtrace/brewtrace/internal/ferm/profile"
	"github.com/brewtrace/brewtrace/internal/ferm/validate"
	"github.com/brewtrace/brewtrace/internal/storage/sqlite"
	"github.com/brewtrace/brewtrace/internal/version"
)

var (
	csvPath     = flag.String("csv", "", "Batch CSV file to process (required)")
	configPath  = flag.String("config", "", "Tuning config JSON (optional)")
	catalogPath = flag.String("catalog", "brewtrace_catalog.db", "Golden-profile catalog database")
	plotDir     = flag.String("plot-dir", "", "Write alignment diagnostic PNGs to this directory")
	workers     = flag.Int("workers", 4, "Concurrent batch workers")
	qualityMin  = flag.Float64("quality-floor", 0.3, "Alignment quality below this degrades phase handling")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *csvPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	log.Printf("starting %s", version.String())

	tuning := &config.TuningConfig{}
	if *configPath != "" {
		var err error
		tuning, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	catalog, store, err := openCatalog(*catalogPath, tuning)
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}
	defer store.Close()

	batches, err := loadBatches(*csvPath)
	if err != nil {
		log.Fatalf("load batches: %v", err)
	}
	log.Printf("loaded %d batches from %s", len(batches), *csvPath)

	validator := validate.DefaultValidator()
	for _, b := range batches {
		if rep := validator.Validate(b); !rep.OK() {
			for _, v := range rep.Violations {
				log.Printf("batch %s validation: %s", b.BatchID(), v.Message)
			}
		}
	}

	results := preprocess.ProcessBatches(batches, tuning.PipelineConfig(), catalog, *workers)

	cpCfg := tuning.ChangepointConfig()
	anomalyDetector, err := anomaly.NewDetector(anomaly.DefaultConfig())
	if err != nil {
		log.Fatalf("anomaly config: %v", err)
	}

	var plotter *monitor.AlignPlotter
	if *plotDir != "" {
		plotter, err = monitor.NewAlignPlotter(*plotDir)
		if err != nil {
			log.Fatalf("plot dir: %v", err)
		}
	}

	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
			log.Printf("batch %s: %v", r.BatchID, r.Err)
			continue
		}
		summarize(r, cpCfg, anomalyDetector, catalog, plotter, tuning)
	}

	if err := store.Save(catalog); err != nil {
		log.Fatalf("save catalog: %v", err)
	}
	if failures > 0 {
		log.Printf("%d of %d batches failed data quality checks", failures, len(results))
	}
}

func summarize(r preprocess.BatchResult, cpCfg changepoint.Config, det *anomaly.Detector,
	catalog *profile.Catalog, plotter *monitor.AlignPlotter, tuning *config.TuningConfig) {

	series := r.Output.Series
	res := r.Output.Alignment

	points, err := changepoint.Detect(series, cpCfg)
	if err != nil {
		log.Printf("batch %s changepoints: %v", r.BatchID, err)
		return
	}
	disagreements := changepoint.Label(points, res, series.Timestamps())

	quality := 0.0
	if res != nil {
		quality = res.QualityScore
	}
	tracker := ferm.NewPhaseTracker(quality, *qualityMin)
	if res != nil {
		for _, ph := range res.PhaseLabels {
			tracker.Observe(ph)
		}
	}
	anomalies := det.DetectAll(series, res, tracker)

	fmt.Printf("batch %-12s samples=%-5d", r.BatchID, series.Len())
	if res != nil {
		fmt.Printf(" profile=%-24s scale=%.2f quality=%.3f phase=%s",
			res.ProfileKey, res.TimeScale, res.QualityScore, tracker.Current())
	}
	fmt.Printf(" changepoints=%d anomalies=%d", len(points), len(anomalies))
	if disagreements > 0 {
		fmt.Printf(" label_disagreements=%d", disagreements)
	}
	if tracker.Degraded() {
		fmt.Printf(" DEGRADED")
	}
	fmt.Println()

	for _, cp := range points {
		fmt.Printf("  changepoint %s conf=%.2f %s->%s\n",
			cp.Timestamp.Format(time.RFC3339), cp.Confidence, cp.FromName, cp.ToName)
	}
	for _, a := range anomalies {
		fmt.Printf("  anomaly %s %s severity=%s value=%.3f\n",
			a.Timestamp.Format(time.RFC3339), a.Kind, a.Severity, a.Value)
	}

	if plotter != nil && res != nil {
		p := catalog.Get(res.ProfileKey.Strain, res.ProfileKey.Style)
		if p != nil {
			if path, err := plotter.Plot(series, p, res, tuning.AlignConfig()); err != nil {
				log.Printf("batch %s plot: %v", r.BatchID, err)
			} else {
				log.Printf("batch %s plot written to %s", r.BatchID, path)
			}
		}
	}
}

// openCatalog loads the persisted catalog, or seeds a fresh one on first
// run.
func openCatalog(path string, tuning *config.TuningConfig) (*profile.Catalog, *sqlite.CatalogStore, error) {
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := store.Load()
	if err != nil {
		catalog, err = profile.NewCatalog(tuning.SynthesisConfig())
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		if err := catalog.SeedDefaults(); err != nil {
			store.Close()
			return nil, nil, err
		}
		log.Printf("seeded new catalog with %d default profiles", catalog.Len())
	}
	return catalog, store, nil
}

// loadBatches parses the CSV into one BatchSeries per batch_id.
func loadBatches(path string) ([]ferm.BatchSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"timestamp", "tank_id", "batch_id"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("csv missing required column %q", required)
		}
	}

	byBatch := make(map[string][]ferm.SensorSample)
	var order []string
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		line++
		ts, err := time.Parse(time.RFC3339, rec[col["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad timestamp: %w", line, err)
		}
		s := ferm.SensorSample{
			Timestamp:    ts,
			TankID:       rec[col["tank_id"]],
			BatchID:      rec[col["batch_id"]],
			Strain:       field(rec, col, "strain"),
			Style:        field(rec, col, "style"),
			GasRate:      numField(rec, col, "gas_rate_lpm"),
			DissolvedGas: numField(rec, col, "dissolved_gas_ppm"),
			Pressure:     numField(rec, col, "pressure_kpa"),
			Temperature:  numField(rec, col, "temperature_c"),
			AgitatorRPM:  numField(rec, col, "agitator_rpm"),
			ValveOpen:    field(rec, col, "valve_open") == "true" || field(rec, col, "valve_open") == "1",
		}
		if _, seen := byBatch[s.BatchID]; !seen {
			order = append(order, s.BatchID)
		}
		byBatch[s.BatchID] = append(byBatch[s.BatchID], s)
	}

	out := make([]ferm.BatchSeries, 0, len(order))
	for _, id := range order {
		out = append(out, ferm.NewBatchSeries(byBatch[id]))
	}
	return out, nil
}

func field(rec []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// numField parses a numeric column, treating blanks and junk as missing.
func numField(rec []string, col map[string]int, name string) float64 {
	raw := field(rec, col, name)
	if raw == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
