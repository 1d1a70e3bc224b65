// Package main renders an interactive HTML chart comparing a fermentation
// batch against its golden profile after curve alignment. Debugging tool for
// inspecting offset/scale search results without the full pipeline output.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/brewtrace/brewtrace/internal/ferm"
	"github.com/brewtrace/brewtrace/internal/ferm/align"
	"github.com/brewtrace/brewtrace/internal/ferm/profile"
	"github.com/brewtrace/brewtrace/internal/storage/sqlite"
)

var (
	catalogPath = flag.String("catalog", "brewtrace_catalog.db", "Golden-profile catalog database")
	strain      = flag.String("strain", "default_strain", "Profile strain key")
	style       = flag.String("style", "default_style", "Profile style key")
	outPath     = flag.String("out", "alignment.html", "Output HTML file")
	samples     = flag.Int("samples", 200, "Golden-curve sample count")
)

func main() {
	flag.Parse()

	store, err := sqlite.Open(*catalogPath)
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}
	defer store.Close()

	catalog, err := store.Load()
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}
	p := catalog.Get(*strain, *style)
	if p == nil {
		log.Fatalf("no profile for %s/%s", *strain, *style)
	}

	var result *align.AlignmentResult
	var batch ferm.BatchSeries
	if flag.NArg() > 0 {
		batch, err = readBatchJSON(flag.Arg(0))
		if err != nil {
			log.Fatalf("read batch: %v", err)
		}
		result, err = align.Align(batch, p, align.DefaultConfig())
		if err != nil {
			log.Fatalf("align: %v", err)
		}
	}

	if err := render(p, batch, result, *outPath); err != nil {
		log.Fatalf("render chart: %v", err)
	}
	log.Printf("chart written to %s", *outPath)
}

// readBatchJSON loads a JSON array of sensor samples exported by upstream
// tooling.
func readBatchJSON(path string) (ferm.BatchSeries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ferm.BatchSeries{}, err
	}
	var samples []ferm.SensorSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return ferm.BatchSeries{}, fmt.Errorf("decode samples: %w", err)
	}
	if len(samples) == 0 {
		return ferm.BatchSeries{}, fmt.Errorf("no samples in %s", path)
	}
	return ferm.NewBatchSeries(samples), nil
}

func render(p *profile.GoldenProfile, batch ferm.BatchSeries, result *align.AlignmentResult, path string) error {
	line := charts.NewLine()
	subtitle := fmt.Sprintf("profile=%s", p.ProfileKey)
	if result != nil {
		subtitle = fmt.Sprintf("profile=%s offset=%.3f scale=%.2f quality=%.3f",
			result.ProfileKey, result.TimeOffset, result.TimeScale, result.QualityScore)
	}
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Fermentation Alignment", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Golden Profile Alignment", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "normalized position", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "activity", Type: "value"}),
	)

	xs := make([]string, *samples)
	golden := make([]opts.LineData, *samples)
	for i := 0; i < *samples; i++ {
		u := float64(i) / float64(*samples-1)
		xs[i] = fmt.Sprintf("%.3f", u)
		golden[i] = opts.LineData{Value: []interface{}{u, p.Evaluate(u)}}
	}
	line.SetXAxis(xs).AddSeries("golden", golden,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	if result != nil && batch.Len() > 1 {
		cfg := align.DefaultConfig()
		values := batch.Values(ferm.FieldGasRate)
		ts := batch.Timestamps()
		start := ts[0]
		lo, hi := values[0], values[0]
		for _, v := range values {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		span := hi - lo
		if span == 0 {
			span = 1
		}
		warped := make([]opts.LineData, 0, batch.Len())
		for i, v := range values {
			elapsed := ts[i].Sub(start).Seconds()
			u := result.TimeOffset + (elapsed/cfg.NominalDuration.Seconds())/result.TimeScale
			warped = append(warped, opts.LineData{Value: []interface{}{u, (v - lo) / span}})
		}
		line.AddSeries("batch (warped)", warped)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return line.Render(f)
}
