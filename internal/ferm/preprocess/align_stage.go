package preprocess

import (
	"github.com/brewtrace/brewtrace/internal/ferm"
	"github.com/brewtrace/brewtrace/internal/ferm/align"
	"github.com/brewtrace/brewtrace/internal/ferm/profile"
)

// AlignStage is the pipeline adapter around the aligner: it selects (or
// lazily synthesizes) the golden profile for the batch's strain/style,
// computes the alignment, and retains the result for the pipeline to
// surface. The batch itself passes through unchanged; phase labels live on
// the AlignmentResult.
type AlignStage struct {
	catalog *profile.Catalog
	cfg     align.Config

	// selected profile per group, chosen during Fit.
	profiles map[string]*profile.GoldenProfile
	// results per batch ID from Transform.
	results map[string]*align.AlignmentResult
}

// NewAlignStage builds the stage against an injected catalog.
func NewAlignStage(catalog *profile.Catalog, cfg align.Config) (*AlignStage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		return nil, &ferm.ConfigurationError{Param: "align.catalog", Reason: "catalog is required"}
	}
	return &AlignStage{
		catalog:  catalog,
		cfg:      cfg,
		profiles: make(map[string]*profile.GoldenProfile),
		results:  make(map[string]*align.AlignmentResult),
	}, nil
}

func (s *AlignStage) Name() string    { return StageAlign }
func (s *AlignStage) Scope() FitScope { return ScopePerGroup }

// Fit resolves the golden profile for the batch's strain/style.
func (s *AlignStage) Fit(batch ferm.BatchSeries, groupKey string) error {
	p, err := s.catalog.GetOrCreate(batch.Strain(), batch.Style())
	if err != nil {
		return err
	}
	s.profiles[groupKey] = p
	return nil
}

// Transform aligns the batch against the profile fitted for its tank.
func (s *AlignStage) Transform(batch ferm.BatchSeries) (ferm.BatchSeries, error) {
	p, ok := s.profiles[batch.TankID()]
	if !ok {
		return ferm.BatchSeries{}, &ferm.DataQualityError{
			BatchID: batch.BatchID(),
			Reason:  "no golden profile fitted for tank " + batch.TankID(),
		}
	}
	res, err := align.Align(batch, p, s.cfg)
	if err != nil {
		return ferm.BatchSeries{}, err
	}
	s.results[batch.BatchID()] = res
	return batch.Clone(), nil
}

// Result returns the alignment computed for the batch, or nil.
func (s *AlignStage) Result(batchID string) *align.AlignmentResult {
	return s.results[batchID]
}
