// Package reporter provides progress reporting interfaces and
// implementations for a CRF search: hardware/reference summaries at start,
// per-probe and per-sample progress while C6-C8 run, and the final accepted
// CRF.
package reporter

import "time"

// HardwareSummary contains host information, printed once at run start.
type HardwareSummary struct {
	Hostname string
	NumCPU   int
	OS       string
	Arch     string
}

// ReferenceSummary describes the probed input (C1's output).
type ReferenceSummary struct {
	Path         string
	Duration     time.Duration
	Width        uint32
	Height       uint32
	FrameRateFPS float64
	IsStillImage bool
}

// SearchConfigSummary describes the resolved search configuration a run is
// about to drive C8 with.
type SearchConfigSummary struct {
	Encoder           string
	Preset            string
	Metric            string
	QualityTarget     float64
	MaxEncodedPercent float64
	MinCRF            float64
	MaxCRF            float64
	CRFIncrement      float64
	SampleCount       int
	FullPass          bool
	Cached            bool
}

// ProbeStartedInfo announces a new CRF probe about to run through the
// sample-encode pipeline (C6).
type ProbeStartedInfo struct {
	CRF   float64
	Round int
}

// SampleProgress reports one sample's advance through cut/encode/score for
// the probe currently in flight.
type SampleProgress struct {
	CRF         float64
	SampleIndex int
	SampleCount int
	Stage       string  // "cut", "encode", "score", "cached"
	Fraction    float64 // overall progress within this one sample, [0,1]
	ETA         time.Duration
}

// ProbeResult reports one finished CRF probe's aggregate outcome.
type ProbeResult struct {
	CRF                    float64
	MeanScore              float64
	PredictedEncodePercent float64
	PredictedEncodeSeconds float64
	MeetsQuality           bool
	MeetsSizeCeiling       bool
	FromCache              bool
}

// SearchResult is the final accepted CRF and its measured outcome.
type SearchResult struct {
	CRF                    float64
	Metric                 string
	MeanScore              float64
	PredictedEncodePercent float64
	PredictedEncodeSeconds float64
	PredictedEncodeSize    uint64
	ProbesTried            int
}

// ReporterError contains error information surfaced to a run's operator.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}
