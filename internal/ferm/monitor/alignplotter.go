// Package monitor provides offline diagnostics for alignment quality: PNG
// plots of a batch's normalized gas curve against its golden profile, for
// tuning the search grid and reviewing low-quality alignments.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/brewtrace/brewtrace/internal/ferm"
	"github.com/brewtrace/brewtrace/internal/ferm/align"
	"github.com/brewtrace/brewtrace/internal/ferm/profile"
)

// AlignPlotter renders batch-vs-profile comparison plots into an output
// directory, one PNG per batch.
type AlignPlotter struct {
	outputDir string
	// ProfileSamples controls how densely the golden curve is sampled.
	ProfileSamples int
}

// NewAlignPlotter creates the output directory if needed.
func NewAlignPlotter(outputDir string) (*AlignPlotter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}
	return &AlignPlotter{outputDir: outputDir, ProfileSamples: 200}, nil
}

// Plot writes <batchID>_alignment.png showing the warped batch signal over
// the profile's expected curve, annotated with the fit parameters. The
// aligner config supplies the nominal duration needed to reproduce the warp.
func (ap *AlignPlotter) Plot(batch ferm.BatchSeries, p *profile.GoldenProfile, res *align.AlignmentResult, cfg align.Config) (string, error) {
	if batch.Len() == 0 {
		return "", fmt.Errorf("empty batch")
	}

	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("batch %s vs %s  scale=%.2f offset=%.2f q=%.3f",
		res.BatchID, res.ProfileKey, res.TimeScale, res.TimeOffset, res.QualityScore)
	pl.X.Label.Text = "profile position"
	pl.Y.Label.Text = "normalized gas rate"

	// Golden curve.
	curve := make(plotter.XYs, ap.ProfileSamples)
	for i := range curve {
		u := float64(i) / float64(ap.ProfileSamples-1)
		curve[i].X = u
		curve[i].Y = p.Evaluate(u)
	}
	curveLine, err := plotter.NewLine(curve)
	if err != nil {
		return "", fmt.Errorf("profile line: %w", err)
	}
	curveLine.Color = color.RGBA{R: 200, A: 255}

	// Warped batch signal, min/max normalized the same way the aligner
	// sees it.
	gas := batch.Values(ferm.FieldGasRate)
	lo, hi := gas[0], gas[0]
	for _, v := range gas {
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
	t0 := batch.Samples[0].Timestamp
	nominal := cfg.NominalDuration.Seconds()
	pts := make(plotter.XYs, 0, len(gas))
	for i, s := range batch.Samples {
		elapsed := s.Timestamp.Sub(t0).Seconds() / nominal
		u := res.TimeOffset + elapsed/res.TimeScale
		pts = append(pts, plotter.XY{X: u, Y: (gas[i] - lo) / span})
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return "", fmt.Errorf("batch scatter: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	scatter.GlyphStyle.Color = color.RGBA{B: 200, A: 255}

	pl.Add(plotter.NewGrid(), curveLine, scatter)
	pl.Legend.Add("golden profile", curveLine)
	pl.Legend.Add("batch", scatter)

	path := filepath.Join(ap.outputDir, fmt.Sprintf("%s_alignment.png", res.BatchID))
	if err := pl.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save plot: %w", err)
	}
	return path, nil
}
