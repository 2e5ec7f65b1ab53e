package reporter

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/finchav/crfscout/internal/util"
)

// TerminalReporter outputs human-friendly text to the terminal: a colourised
// section header per search phase and a live progress bar for the sample
// currently cutting/encoding/scoring.
type TerminalReporter struct {
	mu       sync.Mutex
	progress *progressbar.ProgressBar
	cyan     *color.Color
	green    *color.Color
	yellow   *color.Color
	red      *color.Color
	magenta  *color.Color
	bold     *color.Color
}

// NewTerminalReporter creates a new terminal reporter.
func NewTerminalReporter() *TerminalReporter {
	return &TerminalReporter{
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		magenta: color.New(color.FgMagenta),
		bold:    color.New(color.Bold),
	}
}

func (r *TerminalReporter) finishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
}

// printLabel prints a bold label with fixed-width padding followed by a
// value. Width is applied to the plain text before styling so columns align.
func (r *TerminalReporter) printLabel(width int, label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", width, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) Hardware(summary HardwareSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("HARDWARE")
	r.printLabel(10, "Hostname:", summary.Hostname)
	r.printLabel(10, "CPUs:", fmt.Sprintf("%d", summary.NumCPU))
	r.printLabel(10, "OS/Arch:", fmt.Sprintf("%s/%s", summary.OS, summary.Arch))
}

func (r *TerminalReporter) SearchStarted(ref ReferenceSummary, cfg SearchConfigSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("REFERENCE")
	r.printLabel(10, "File:", ref.Path)
	r.printLabel(10, "Duration:", util.FormatDurationFromSecs(int64(ref.Duration.Seconds())))
	r.printLabel(10, "Resolution:", fmt.Sprintf("%dx%d", ref.Width, ref.Height))
	r.printLabel(10, "Frame rate:", fmt.Sprintf("%.3f fps", ref.FrameRateFPS))

	fmt.Println()
	_, _ = r.cyan.Println("SEARCH")
	const w = 14
	r.printLabel(w, "Encoder:", cfg.Encoder)
	r.printLabel(w, "Preset:", cfg.Preset)
	r.printLabel(w, "Metric:", fmt.Sprintf("%s >= %.1f", cfg.Metric, cfg.QualityTarget))
	r.printLabel(w, "Size ceiling:", fmt.Sprintf("%.1f%%", cfg.MaxEncodedPercent))
	r.printLabel(w, "CRF range:", fmt.Sprintf("[%.0f, %.0f] step %.1f", cfg.MinCRF, cfg.MaxCRF, cfg.CRFIncrement))
	plan := fmt.Sprintf("%d samples", cfg.SampleCount)
	if cfg.FullPass {
		plan = "full pass"
	}
	r.printLabel(w, "Sample plan:", plan)
	if cfg.Cached {
		r.printLabel(w, "Cache:", r.green.Sprint("enabled"))
	}
}

func (r *TerminalReporter) ProbeStarted(info ProbeStartedInfo) {
	r.finishProgress()
	fmt.Println()
	_, _ = r.magenta.Printf("› probe %d: crf %.1f\n", info.Round, info.CRF)
}

func (r *TerminalReporter) SampleProgress(progress SampleProgress) {
	r.mu.Lock()
	if r.progress == nil {
		r.progress = progressbar.NewOptions64(
			100,
			progressbar.OptionSetDescription(""),
			progressbar.OptionSetWidth(40),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionSetElapsedTime(false),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	bar := r.progress
	r.mu.Unlock()

	overall := (float64(progress.SampleIndex) + progress.Fraction) / float64(progress.SampleCount)
	_ = bar.Set64(int64(overall * 100))

	eta := "-"
	if progress.ETA > 0 {
		eta = util.FormatDurationFromSecs(int64(progress.ETA.Seconds()))
	}
	bar.Describe(fmt.Sprintf("sample %d/%d %s, eta %s", progress.SampleIndex+1, progress.SampleCount, progress.Stage, eta))
}

func (r *TerminalReporter) ProbeComplete(result ProbeResult) {
	r.finishProgress()

	verdict := r.red.Sprint("reject")
	if result.MeetsQuality && result.MeetsSizeCeiling {
		verdict = r.green.Sprint("accept")
	}
	cacheNote := ""
	if result.FromCache {
		cacheNote = color.New(color.Faint).Sprint(" (cached)")
	}
	fmt.Printf("  crf %.1f: score %.2f, size %.1f%% -> %s%s\n",
		result.CRF, result.MeanScore, result.PredictedEncodePercent, verdict, cacheNote)
}

func (r *TerminalReporter) SearchComplete(result SearchResult) {
	r.finishProgress()

	fmt.Println()
	_, _ = r.cyan.Println("RESULT")
	r.printLabel(14, "CRF:", r.bold.Sprintf("%.1f", result.CRF))
	r.printLabel(14, "Score:", fmt.Sprintf("%s %.2f", result.Metric, result.MeanScore))
	r.printLabel(14, "Predicted size:", fmt.Sprintf("%.1f%% (%s)", result.PredictedEncodePercent, util.FormatBytesReadable(result.PredictedEncodeSize)))
	r.printLabel(14, "Predicted time:", util.FormatDurationFromSecs(int64(result.PredictedEncodeSeconds)))
	r.printLabel(14, "Probes tried:", fmt.Sprintf("%d", result.ProbesTried))
}

func (r *TerminalReporter) Warning(message string) {
	fmt.Println()
	_, _ = r.yellow.Printf("WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	_, _ = fmt.Fprintln(os.Stderr)
	_, _ = r.red.Fprintf(os.Stderr, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(os.Stderr, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) Verbose(message string) {
	fmt.Printf("  %s %s\n", color.New(color.Faint).Sprint("·"), message)
}
