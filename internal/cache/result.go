package cache

import "github.com/finchav/crfscout/internal/config"

// SampleScore is one sample clip's raw measurement, retained alongside the
// aggregate for richer reporting.
type SampleScore struct {
	Index         int
	Score         float64
	EncodedBytes  uint64
	SampleSeconds float64
	EncodeSeconds float64
}

// Result is the outcome of one (EncodeSpec, SamplePlan, QualitySpec) triple
// — a full sample-encode evaluation at a single CRF.
type Result struct {
	Metric                 config.QualityMetric
	MeanScore              float64
	PredictedEncodePercent float64
	PredictedEncodeSeconds float64
	PredictedEncodeSize    uint64
	Samples                []SampleScore
	FromCache              bool
}
