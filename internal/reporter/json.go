package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSONReporter emits NDJSON lifecycle events, plus a final single trailing
// object matching the documented result schema (§6's stdout_format=json).
type JSONReporter struct {
	writer io.Writer
	mu     sync.Mutex
	metric string
}

// NewJSONReporter creates a JSON reporter that writes to stdout.
func NewJSONReporter() *JSONReporter {
	return &JSONReporter{writer: os.Stdout}
}

// NewJSONReporterWithWriter creates a JSON reporter with a custom writer.
func NewJSONReporterWithWriter(w io.Writer) *JSONReporter {
	return &JSONReporter{writer: w}
}

func (r *JSONReporter) timestamp() int64 {
	return time.Now().Unix()
}

func (r *JSONReporter) write(v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(r.writer, string(data))
}

func (r *JSONReporter) Hardware(summary HardwareSummary) {
	r.write(map[string]interface{}{
		"type":      "hardware",
		"hostname":  summary.Hostname,
		"num_cpu":   summary.NumCPU,
		"os":        summary.OS,
		"arch":      summary.Arch,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) SearchStarted(ref ReferenceSummary, cfg SearchConfigSummary) {
	r.mu.Lock()
	r.metric = cfg.Metric
	r.mu.Unlock()

	r.write(map[string]interface{}{
		"type":                "search_started",
		"input_file":          ref.Path,
		"duration_seconds":    ref.Duration.Seconds(),
		"width":               ref.Width,
		"height":              ref.Height,
		"frame_rate_fps":      ref.FrameRateFPS,
		"is_still_image":      ref.IsStillImage,
		"encoder":             cfg.Encoder,
		"preset":              cfg.Preset,
		"metric":              cfg.Metric,
		"quality_target":      cfg.QualityTarget,
		"max_encoded_percent": cfg.MaxEncodedPercent,
		"min_crf":             cfg.MinCRF,
		"max_crf":             cfg.MaxCRF,
		"crf_increment":       cfg.CRFIncrement,
		"sample_count":        cfg.SampleCount,
		"full_pass":           cfg.FullPass,
		"cached":              cfg.Cached,
		"timestamp":           r.timestamp(),
	})
}

func (r *JSONReporter) ProbeStarted(info ProbeStartedInfo) {
	r.write(map[string]interface{}{
		"type":      "probe_started",
		"crf":       info.CRF,
		"round":     info.Round,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) SampleProgress(progress SampleProgress) {
	r.write(map[string]interface{}{
		"type":         "sample_progress",
		"crf":          progress.CRF,
		"sample_index": progress.SampleIndex,
		"sample_count": progress.SampleCount,
		"stage":        progress.Stage,
		"fraction":     progress.Fraction,
		"eta_seconds":  int64(progress.ETA.Seconds()),
		"timestamp":    r.timestamp(),
	})
}

func (r *JSONReporter) ProbeComplete(result ProbeResult) {
	event := map[string]interface{}{
		"type":                     "probe_complete",
		"crf":                      result.CRF,
		"predicted_encode_percent": result.PredictedEncodePercent,
		"predicted_encode_seconds": result.PredictedEncodeSeconds,
		"meets_quality":            result.MeetsQuality,
		"meets_size_ceiling":       result.MeetsSizeCeiling,
		"from_cache":               result.FromCache,
		"timestamp":                r.timestamp(),
	}
	r.attachScore(event, result.MeanScore)
	r.write(event)
}

func (r *JSONReporter) SearchComplete(result SearchResult) {
	event := map[string]interface{}{
		"crf":                      result.CRF,
		"predicted_encode_percent": result.PredictedEncodePercent,
		"predicted_encode_seconds": result.PredictedEncodeSeconds,
		"predicted_encode_size":    result.PredictedEncodeSize,
		"probes_tried":             result.ProbesTried,
	}
	r.attachScore(event, result.MeanScore)
	r.write(event)
}

// attachScore sets "vmaf" or "xpsnr" on event depending on the search's
// configured metric, matching the documented result schema where exactly one
// of the two is present.
func (r *JSONReporter) attachScore(event map[string]interface{}, score float64) {
	r.mu.Lock()
	metric := r.metric
	r.mu.Unlock()

	if metric == "xpsnr" {
		event["xpsnr"] = score
	} else {
		event["vmaf"] = score
	}
}

func (r *JSONReporter) Warning(message string) {
	r.write(map[string]interface{}{
		"type":      "warning",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) Error(err ReporterError) {
	r.write(map[string]interface{}{
		"type":       "error",
		"title":      err.Title,
		"message":    err.Message,
		"context":    err.Context,
		"suggestion": err.Suggestion,
		"timestamp":  r.timestamp(),
	})
}

func (r *JSONReporter) Verbose(message string) {
	r.write(map[string]interface{}{
		"type":      "verbose",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}
