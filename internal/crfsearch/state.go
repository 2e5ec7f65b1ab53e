package crfsearch

import (
	"github.com/finchav/crfscout/internal/cache"
)

// CrfProbe is a (CRF, SampleResult) pair recorded during a search.
type CrfProbe struct {
	CRF    float64
	Result cache.Result
}

// state tracks a single search's progress: the probes taken so far and the
// active bracket the next probe narrows.
type state struct {
	probes []CrfProbe

	searchMin float64
	searchMax float64

	minCRF float64
	maxCRF float64

	round   int
	lastCRF float64
}

func newState(minCRF, maxCRF float64) *state {
	return &state{
		probes:    make([]CrfProbe, 0, 8),
		searchMin: minCRF,
		searchMax: maxCRF,
		minCRF:    minCRF,
		maxCRF:    maxCRF,
	}
}

func (s *state) addProbe(crf float64, result cache.Result) {
	s.probes = append(s.probes, CrfProbe{CRF: crf, Result: result})
}

// bestProbe returns the highest-CRF (smallest file) probe that still meets
// the quality floor, i.e. the qualifying probe whose score sits closest to
// target from above, preferring the higher CRF on an exact score tie per
// spec §4.8's tie-break. A probe scoring below target is never a candidate
// here regardless of how close it sits to target — substituting it would
// violate §8's mean_score >= min_quality invariant. Returns nil if no probe
// taken so far meets the floor.
func (s *state) bestProbe(target float64) *CrfProbe {
	var best *CrfProbe

	for i := range s.probes {
		p := &s.probes[i]
		if p.Result.MeanScore < target {
			continue
		}
		switch {
		case best == nil:
			best = p
		case p.Result.MeanScore < best.Result.MeanScore:
			best = p
		case p.Result.MeanScore == best.Result.MeanScore && p.CRF > best.CRF:
			best = p
		}
	}

	return best
}

// probeAt returns the probe recorded for crf, if any — used by the
// validate/thorough steps to avoid re-evaluating a CRF already probed.
func (s *state) probeAt(crf float64) (CrfProbe, bool) {
	for _, p := range s.probes {
		if p.CRF == crf {
			return p, true
		}
	}
	return CrfProbe{}, false
}
