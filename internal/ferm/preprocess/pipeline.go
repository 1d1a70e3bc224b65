package preprocess

import (
	"fmt"
	"sync"

	"github.com/brewtrace/brewtrace/internal/ferm"
	"github.com/brewtrace/brewtrace/internal/ferm/align"
	"github.com/brewtrace/brewtrace/internal/ferm/profile"
	"github.com/brewtrace/brewtrace/internal/monitoring"
)

// Output is what one batch produces after a full pipeline run: the cleaned
// series and, when the pipeline includes an align stage, the alignment.
type Output struct {
	Series    ferm.BatchSeries
	Alignment *align.AlignmentResult
}

// Pipeline runs an ordered sequence of stages over per-batch data. The
// stage order is fixed structurally: construction rejects any sequence that
// is not a prefix-respecting subsequence of
// missing → outlier → resample → normalize → align.
//
// A pipeline owns its stages' fitted per-tank parameters for the session's
// lifetime. It is not safe for concurrent use; run one pipeline per worker
// (see ProcessBatches).
type Pipeline struct {
	stages []Stage
}

// NewPipeline validates stage ordering and uniqueness. Ordering violations
// are ConfigurationErrors: fatal at construction, never at batch runtime.
func NewPipeline(stages ...Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, &ferm.ConfigurationError{Param: "stages", Reason: "pipeline needs at least one stage"}
	}
	prev := -1
	for _, st := range stages {
		pos, ok := stageOrder[st.Name()]
		if !ok {
			return nil, &ferm.ConfigurationError{
				Param:  "stages",
				Reason: fmt.Sprintf("unknown stage %q", st.Name()),
			}
		}
		if pos == prev {
			return nil, &ferm.ConfigurationError{
				Param:  "stages",
				Reason: fmt.Sprintf("stage %q appears twice", st.Name()),
			}
		}
		if pos < prev {
			return nil, &ferm.ConfigurationError{
				Param:  "stages",
				Reason: fmt.Sprintf("stage %q out of order", st.Name()),
			}
		}
		prev = pos
	}
	return &Pipeline{stages: stages}, nil
}

// Config bundles every stage's tuning for the default pipeline.
type Config struct {
	Missing   MissingConfig
	Outlier   OutlierConfig
	Resample  ResampleConfig
	Normalize NormalizeConfig
	Align     align.Config
}

// DefaultConfig returns the stock tuning for all five stages.
func DefaultConfig() Config {
	return Config{
		Missing:   DefaultMissingConfig(),
		Outlier:   DefaultOutlierConfig(),
		Resample:  DefaultResampleConfig(),
		Normalize: DefaultNormalizeConfig(),
		Align:     align.DefaultConfig(),
	}
}

// NewDefaultPipeline builds the canonical five-stage pipeline against an
// injected profile catalog.
func NewDefaultPipeline(cfg Config, catalog *profile.Catalog) (*Pipeline, error) {
	missing, err := NewMissingStage(cfg.Missing)
	if err != nil {
		return nil, err
	}
	outlier, err := NewOutlierStage(cfg.Outlier)
	if err != nil {
		return nil, err
	}
	resample, err := NewResampleStage(cfg.Resample)
	if err != nil {
		return nil, err
	}
	normalize, err := NewNormalizeStage(cfg.Normalize)
	if err != nil {
		return nil, err
	}
	alignStage, err := NewAlignStage(catalog, cfg.Align)
	if err != nil {
		return nil, err
	}
	return NewPipeline(missing, outlier, resample, normalize, alignStage)
}

// FitTransform runs the batch through every stage in order, fitting each
// stage before it transforms. Because stages execute strictly in pipeline
// order, Fit never sees data altered by a later stage.
func (p *Pipeline) FitTransform(raw ferm.BatchSeries, groupKey string) (Output, error) {
	if err := raw.Validate(); err != nil {
		return Output{}, err
	}
	current := raw
	for _, st := range p.stages {
		if err := st.Fit(current, groupKey); err != nil {
			return Output{}, fmt.Errorf("stage %s fit: %w", st.Name(), err)
		}
		next, err := st.Transform(current)
		if err != nil {
			return Output{}, fmt.Errorf("stage %s transform: %w", st.Name(), err)
		}
		current = next
	}
	out := Output{Series: current}
	if res := p.alignmentFor(raw.BatchID()); res != nil {
		out.Alignment = res
	}
	return out, nil
}

// alignmentFor finds the align stage's result for the batch, if the
// pipeline has one.
func (p *Pipeline) alignmentFor(batchID string) *align.AlignmentResult {
	for _, st := range p.stages {
		if as, ok := st.(*AlignStage); ok {
			return as.Result(batchID)
		}
	}
	return nil
}

// BatchResult pairs one batch's output with its error, for concurrent runs.
type BatchResult struct {
	BatchID string
	Output  Output
	Err     error
}

// ProcessBatches runs each batch end-to-end through its own pipeline
// instance across a bounded worker pool. Batches share only read access to
// the catalog; one batch's DataQualityError never aborts the others.
func ProcessBatches(batches []ferm.BatchSeries, cfg Config, catalog *profile.Catalog, workers int) []BatchResult {
	if workers < 1 {
		workers = 1
	}
	results := make([]BatchResult, len(batches))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				batch := batches[i]
				results[i].BatchID = batch.BatchID()
				pipe, err := NewDefaultPipeline(cfg, catalog)
				if err != nil {
					// Configuration problems fail every batch alike.
					results[i].Err = err
					continue
				}
				out, err := pipe.FitTransform(batch, batch.TankID())
				if err != nil {
					monitoring.Logf("batch %s failed: %v", batch.BatchID(), err)
					results[i].Err = err
					continue
				}
				results[i].Output = out
			}
		}()
	}
	for i := range batches {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
