// Package crfsearch drives a sequence of CRF probes against the
// sample-encode orchestrator to locate the largest CRF (worst quality,
// smallest file) that still meets a configured quality floor and size
// ceiling.
package crfsearch

import (
	"context"
	"fmt"

	"github.com/finchav/crfscout/internal/cache"
	"github.com/finchav/crfscout/internal/config"
	"github.com/finchav/crfscout/internal/xerrors"
)

// maxRounds bounds the interpolate/iterate loop so a pathological score
// curve (one that never satisfies the two-consecutive-same-CRF or
// range-below-increment stop conditions) still terminates.
const maxRounds = 16

// Evaluator runs one CRF probe through the sample-encode pipeline and
// returns its aggregate result.
type Evaluator func(ctx context.Context, crf float64) (cache.Result, error)

// Outcome is everything a finished search produced.
type Outcome struct {
	CRF     float64
	Result  cache.Result
	Probes  []CrfProbe
}

// Search runs the probe-low/probe-high/bound/interpolate/iterate/validate/
// thorough state machine described for C8, against cfg's search bounds and
// quality floor, using evaluate to score each candidate CRF.
func Search(ctx context.Context, cfg *config.Config, evaluate Evaluator) (Outcome, error) {
	_, target := cfg.QualityFloor()
	st := newState(cfg.MinCRF, cfg.MaxCRF)

	meetsQuality := func(r cache.Result) bool { return r.MeanScore >= target }

	probe := func(crf float64) (CrfProbe, error) {
		crf = roundToIncrement(clamp(crf, st.minCRF, st.maxCRF), cfg.CRFIncrement)
		if existing, ok := st.probeAt(crf); ok {
			return existing, nil
		}
		result, err := evaluate(ctx, crf)
		if err != nil {
			return CrfProbe{}, err
		}
		st.round++
		st.lastCRF = crf
		p := CrfProbe{CRF: crf, Result: result}
		st.addProbe(crf, result)
		return p, nil
	}

	// Steps 1-2: probe-low / probe-high, widened to 20/80 when the
	// configured range is more than half the encoder family's default
	// width.
	lowFrac, highFrac := 0.25, 0.75
	if cfg.CutOnWidenedRange() {
		lowFrac, highFrac = 0.20, 0.80
	}

	width := cfg.MaxCRF - cfg.MinCRF
	low, err := probe(cfg.MinCRF + width*lowFrac)
	if err != nil {
		return Outcome{}, err
	}
	high, err := probe(cfg.MinCRF + width*highFrac)
	if err != nil {
		return Outcome{}, err
	}

	// Step 3: bound. Scores fall as CRF rises, so the probe that still
	// meets quality narrows the range on its own side.
	lowOK, highOK := meetsQuality(low.Result), meetsQuality(high.Result)
	switch {
	case lowOK && highOK:
		st.searchMin = high.CRF
	case !lowOK && !highOK:
		st.searchMax = low.CRF
	default:
		st.searchMin, st.searchMax = low.CRF, high.CRF
	}

	// Steps 4-5: interpolate/iterate until two consecutive probes land on
	// the same rounded CRF, the range collapses below crf_increment, or
	// maxRounds is hit as a pathological-curve backstop.
	var accepted *CrfProbe
	for round := 3; round <= maxRounds; round++ {
		if st.searchMax-st.searchMin < cfg.CRFIncrement {
			accepted = st.bestProbe(target)
			break
		}

		next := interpolateCRF(st.probes, target, cfg.CRFIncrement, round)
		var candidate float64
		if next != nil {
			candidate = *next
		} else {
			candidate = binarySearch(st.searchMin, st.searchMax, cfg.CRFIncrement)
		}
		candidate = clamp(candidate, st.searchMin, st.searchMax)

		if round > 3 && candidate == st.lastCRF {
			accepted = st.bestProbe(target)
			break
		}

		p, err := probe(candidate)
		if err != nil {
			return Outcome{}, err
		}

		if meetsQuality(p.Result) {
			st.searchMin = p.CRF
		} else {
			st.searchMax = p.CRF
		}

		accepted = st.bestProbe(target)
	}

	if accepted == nil {
		accepted = st.bestProbe(target)
	}
	if accepted == nil {
		return Outcome{}, xerrors.NewNoAcceptableCrfError(fmt.Sprintf(
			"no CRF in [%.2f, %.2f] scored >= %.2f across %d probe(s)",
			cfg.MinCRF, cfg.MaxCRF, target, len(st.probes)))
	}

	// Step 6: validate against the size ceiling, shifting toward a higher
	// (smaller-file) CRF until both constraints hold or the range is
	// exhausted.
	current := *accepted
	for current.Result.PredictedEncodePercent > cfg.MaxEncodedPercent {
		nextCRF := roundToIncrement(current.CRF+cfg.CRFIncrement, cfg.CRFIncrement)
		if nextCRF > cfg.MaxCRF || nextCRF == current.CRF {
			return Outcome{}, xerrors.NewNoAcceptableCrfError(fmt.Sprintf(
				"no CRF in [%.2f, %.2f] meets both the quality floor and max_encoded_percent=%.1f%%; last tried crf=%.2f scored %.2f at %.1f%% of budget",
				cfg.MinCRF, cfg.MaxCRF, cfg.MaxEncodedPercent, current.CRF, current.Result.MeanScore, current.Result.PredictedEncodePercent))
		}

		p, err := probe(nextCRF)
		if err != nil {
			return Outcome{}, err
		}
		if !meetsQuality(p.Result) {
			return Outcome{}, xerrors.NewNoAcceptableCrfError(fmt.Sprintf(
				"no CRF in [%.2f, %.2f] meets both the quality floor and max_encoded_percent=%.1f%%; shifting past crf=%.2f dropped the score to %.2f (floor %.2f)",
				cfg.MinCRF, cfg.MaxCRF, cfg.MaxEncodedPercent, p.CRF, p.Result.MeanScore, target))
		}
		current = p
	}

	// Step 7: thorough confirms the accepted CRF's next-worse neighbour has
	// been evaluated and genuinely fails one of the two constraints — never
	// returning an accepted CRF whose neighbour is unexamined.
	if cfg.Thorough {
		for {
			neighbourCRF := roundToIncrement(current.CRF+cfg.CRFIncrement, cfg.CRFIncrement)
			if neighbourCRF > cfg.MaxCRF || neighbourCRF == current.CRF {
				break
			}
			neighbour, err := probe(neighbourCRF)
			if err != nil {
				return Outcome{}, err
			}
			if !meetsQuality(neighbour.Result) || neighbour.Result.PredictedEncodePercent > cfg.MaxEncodedPercent {
				break
			}
			// The neighbour also satisfies both constraints and is a smaller
			// file at no quality cost; thorough mode prefers it and goes on
			// to examine its own neighbour.
			current = neighbour
		}
	}

	return Outcome{CRF: current.CRF, Result: current.Result, Probes: st.probes}, nil
}

// binarySearch returns the midpoint of [min, max] rounded to increment. The
// interpolate/iterate loop uses it whenever interpolateCRF returns nil: too
// few probes for that round's model, probe scores the model cannot fit, or a
// target outside the probed scores.
func binarySearch(min, max, increment float64) float64 {
	return roundToIncrement((min+max)/2, increment)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
