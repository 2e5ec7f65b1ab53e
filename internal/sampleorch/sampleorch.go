// Package sampleorch drives one CRF's worth of sample clips through
// cut → encode → score, aggregating the per-sample results into a single
// cache.Result that the CRF search probes against.
package sampleorch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/finchav/crfscout/internal/cache"
	"github.com/finchav/crfscout/internal/config"
	"github.com/finchav/crfscout/internal/cutter"
	"github.com/finchav/crfscout/internal/encoderdriver"
	"github.com/finchav/crfscout/internal/probe"
	"github.com/finchav/crfscout/internal/sampleplan"
	"github.com/finchav/crfscout/internal/scorer"
	"github.com/finchav/crfscout/internal/xerrors"
)

// Pipeline runs sample evaluations for a reference, reusing one Cutter
// across every CRF probed during a search so clips are cut at most once.
type Pipeline struct {
	Cutter      *cutter.Cutter
	Cache       *cache.Store // nil disables caching
	Parallelism int          // concurrent sample slots; <1 treated as 1
}

// New returns a Pipeline that cuts into tempDir and caches through store
// (nil to disable caching).
func New(tempDir string, store *cache.Store, parallelism int) *Pipeline {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Pipeline{Cutter: cutter.New(tempDir), Cache: store, Parallelism: parallelism}
}

// ProgressFunc is invoked as each sample completes a stage, for C9 to fold
// into its aggregate ETA.
type ProgressFunc func(sampleIndex int, stage string, fraction float64)

// SampleEncode evaluates encodeSpec against ref's plan, scoring each sample
// clip with qualitySpec and reducing to a cache.Result. A cache hit for this
// exact (encodeSpec, plan, qualitySpec) triple short-circuits the whole
// pipeline, still invoking progress once per sample for UI continuity.
func (p *Pipeline) SampleEncode(
	ctx context.Context,
	ref *probe.Reference,
	encodeSpec encoderdriver.EncodeSpec,
	qualitySpec scorer.QualitySpec,
	plan *sampleplan.Plan,
	cfg *config.Config,
	progress ProgressFunc,
) (cache.Result, error) {
	key := computeKey(ref, encodeSpec, qualitySpec, plan, cfg)

	if p.Cache != nil {
		if hit, ok := p.Cache.Get(key); ok {
			if progress != nil {
				for _, s := range plan.Samples {
					progress(s.Index, "cached", 1.0)
				}
			}
			return hit, nil
		}
	}

	scores, err := p.runSamples(ctx, ref, encodeSpec, qualitySpec, plan, progress)
	if err != nil {
		return cache.Result{}, err
	}

	result := aggregate(qualitySpec.Metric, scores, ref)

	if p.Cache != nil {
		if err := p.Cache.Put(key, result); err != nil {
			// A persist failure degrades to "no caching this probe," never
			// to a failed search — the result we just computed is still good.
			_ = err
		}
	}

	return result, nil
}

// cutOutput is one sample's cut clip, handed from the cut stage to the
// encode stage.
type cutOutput struct {
	sample sampleplan.Sample
	path   string
}

// encodeOutput is one sample's encoded clip, handed from the encode stage
// to the score stage.
type encodeOutput struct {
	sample        sampleplan.Sample
	clipPath      string
	encodedPath   string
	encodedBytes  uint64
	encodeSeconds float64
}

// runSamples cuts, encodes, and scores every sample in plan through a
// three-stage pipeline of worker pools, each sized to p.Parallelism and
// connected by a same-sized buffered channel — so up to that many samples
// can have a cut, an encode, and a score in flight at once, with a slot's
// next cut overlapping another sample's encode, per spec §4.6's
// bounded-pipeline requirement.
func (p *Pipeline) runSamples(
	ctx context.Context,
	ref *probe.Reference,
	encodeSpec encoderdriver.EncodeSpec,
	qualitySpec scorer.QualitySpec,
	plan *sampleplan.Plan,
	progress ProgressFunc,
) ([]cache.SampleScore, error) {
	samples := plan.Samples
	scores := make([]cache.SampleScore, len(samples))

	slots := p.Parallelism
	if slots < 1 {
		slots = 1
	}
	if slots > len(samples) {
		slots = len(samples)
	}

	sampleCh := make(chan sampleplan.Sample, len(samples))
	for _, s := range samples {
		sampleCh <- s
	}
	close(sampleCh)

	cutOut := make(chan cutOutput, slots)
	encodeOut := make(chan encodeOutput, slots)

	group, gctx := errgroup.WithContext(ctx)

	runStage(group, slots, cutOut, func() error {
		for sample := range sampleCh {
			path, err := p.Cutter.Cut(gctx, ref.Path, sample)
			if err != nil {
				return err
			}
			if progress != nil {
				progress(sample.Index, "cut", 1.0)
			}
			select {
			case cutOut <- cutOutput{sample: sample, path: path}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	runStage(group, slots, encodeOut, func() error {
		for cut := range cutOut {
			encodedPath := cut.path + ".encoded" + encodedExt(encodeSpec.Encoder)
			_, wallSeconds, encodedBytes, err := encoderdriver.Encode(gctx, encodeSpec, cut.path, encodedPath, cut.sample.Duration.Seconds(),
				func(pr encoderdriver.Progress) {
					if progress != nil {
						progress(cut.sample.Index, "encode", float64(pr.Percent)/100)
					}
				})
			if err != nil {
				return err
			}
			select {
			case encodeOut <- encodeOutput{
				sample:        cut.sample,
				clipPath:      cut.path,
				encodedPath:   encodedPath,
				encodedBytes:  encodedBytes,
				encodeSeconds: wallSeconds,
			}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var mu sync.Mutex
	for i := 0; i < slots; i++ {
		group.Go(func() error {
			for enc := range encodeOut {
				result, err := scorer.Score(gctx, qualitySpec, enc.clipPath, enc.encodedPath, 0, 0)
				if err != nil {
					return err
				}
				if progress != nil {
					progress(enc.sample.Index, "score", 1.0)
				}
				mu.Lock()
				scores[enc.sample.Index] = cache.SampleScore{
					Index:         enc.sample.Index,
					Score:         result.Score,
					EncodedBytes:  enc.encodedBytes,
					SampleSeconds: enc.sample.Duration.Seconds(),
					EncodeSeconds: enc.encodeSeconds,
				}
				mu.Unlock()
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, xerrors.NewCancelledError()
		}
		return nil, err
	}

	return scores, nil
}

// runStage launches n copies of work as a stage in group, closing out once
// every copy has returned — whichever copy returns last closes the channel,
// so the next stage's range loop terminates cleanly instead of blocking
// forever on a stage that silently stopped producing.
func runStage[T any](group *errgroup.Group, n int, out chan T, work func() error) {
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		group.Go(func() error {
			defer wg.Done()
			return work()
		})
	}
	go func() {
		wg.Wait()
		close(out)
	}()
}

func encodedExt(e config.Encoder) string {
	switch e {
	case config.EncoderVP9:
		return ".webm"
	default:
		return ".mkv"
	}
}

// aggregate reduces per-sample scores into a cache.Result per spec §4.6's
// formulas: mean_score is the arithmetic mean of per-sample scores;
// predicted_encode_percent scales summed encoded bytes against the
// reference's estimated video-stream byte budget apportioned to the sampled
// seconds; predicted_encode_seconds extrapolates summed wall-clock encode
// time to the reference's full duration via the sampled-to-total seconds
// ratio.
func aggregate(metric config.QualityMetric, scores []cache.SampleScore, ref *probe.Reference) cache.Result {
	var sumScore, sumEncodedBytes, sumSampleSeconds, sumEncodeSeconds float64
	for _, s := range scores {
		sumScore += s.Score
		sumEncodedBytes += float64(s.EncodedBytes)
		sumSampleSeconds += s.SampleSeconds
		sumEncodeSeconds += s.EncodeSeconds
	}

	n := float64(len(scores))
	meanScore := 0.0
	if n > 0 {
		meanScore = sumScore / n
	}

	fullDuration := ref.DurationSeconds()
	videoByteBudget := estimateVideoStreamBytes(ref)

	var predictedPercent float64
	if sumSampleSeconds > 0 && videoByteBudget > 0 && fullDuration > 0 {
		referenceSampleBytes := videoByteBudget * (sumSampleSeconds / fullDuration)
		if referenceSampleBytes > 0 {
			predictedPercent = 100 * sumEncodedBytes / referenceSampleBytes
		}
	}

	var predictedSeconds float64
	if sumSampleSeconds > 0 {
		predictedSeconds = (sumEncodeSeconds / sumSampleSeconds) * fullDuration
	}

	predictedSize := uint64(videoByteBudget * predictedPercent / 100)

	return cache.Result{
		Metric:                 metric,
		MeanScore:              meanScore,
		PredictedEncodePercent: predictedPercent,
		PredictedEncodeSeconds: predictedSeconds,
		PredictedEncodeSize:    predictedSize,
		Samples:                scores,
	}
}

// estimateVideoStreamBytes apportions the reference's byte budget to its
// video stream using the known video bitrate when ffprobe reported one;
// otherwise it falls back to the whole file size, since the video stream is
// almost always the dominant share of a typical reference.
func estimateVideoStreamBytes(ref *probe.Reference) float64 {
	duration := ref.DurationSeconds()
	if ref.VideoBitrate != nil && duration > 0 {
		return float64(*ref.VideoBitrate) * duration / 8
	}
	return float64(ref.FileSizeBytes)
}

func computeKey(ref *probe.Reference, encodeSpec encoderdriver.EncodeSpec, qualitySpec scorer.QualitySpec, plan *sampleplan.Plan, cfg *config.Config) cache.Key {
	offsets := make([]int64, len(plan.Samples))
	durations := make([]int64, len(plan.Samples))
	for i, s := range plan.Samples {
		offsets[i] = s.Start.Milliseconds()
		durations[i] = s.Duration.Milliseconds()
	}

	return cache.Compute(cache.Identity{
		Encoder:          encodeSpec.Encoder,
		CRF:              encodeSpec.CRF,
		CRFIncrement:     cfg.CRFIncrement,
		Preset:           encodeSpec.Preset,
		PixFormat:        encodeSpec.PixFormat,
		Keyint:           encodeSpec.Keyint,
		SCD:              encodeSpec.SCD,
		VFilter:          encodeSpec.VFilter,
		EncFlags:         encodeSpec.Enc,
		EncInputFlags:    encodeSpec.EncInput,
		SVTParams:        encodeSpec.SVTParams,
		Metric:           qualitySpec.Metric,
		QualityModel:     qualitySpec.Model,
		QualityScale:     qualitySpec.Scale,
		QualityFPS:       qualitySpec.FPS,
		ReferenceVFilter: qualitySpec.ReferenceVFilter,
		QualityThreads:   qualitySpec.Threads,
		ReferencePath:    ref.Path,
		ReferenceSize:    ref.FileSizeBytes,
		SampleOffsetsMs:  offsets,
		SampleDurationMs: durations,
	})
}
