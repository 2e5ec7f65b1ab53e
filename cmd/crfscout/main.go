// Package main provides the CLI entry point for crfscout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/finchav/crfscout/internal/config"
	"github.com/finchav/crfscout/internal/reporter"
	"github.com/finchav/crfscout/internal/telemetry"
	"github.com/finchav/crfscout/internal/xerrors"

	"github.com/finchav/crfscout"
)

const (
	appName    = "crfscout"
	appVersion = "0.1.0"
)

// Exit codes. 0 is success; the rest are distinguished per §6 so a caller
// can tell "no CRF satisfies the constraints" apart from "something broke"
// apart from "the user cancelled."
const (
	exitOK              = 0
	exitGenericFailure  = 1
	exitNoAcceptableCrf = 2
	exitCancelled       = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitGenericFailure
	}

	switch args[0] {
	case "crf-search":
		return runCRFSearch(args[1:])
	case "version", "--version", "-v":
		fmt.Printf("%s version %s\n", appName, appVersion)
		return exitOK
	case "help", "--help", "-h":
		printUsage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		return exitGenericFailure
	}
}

func printUsage() {
	fmt.Printf(`%s - CRF search for ffmpeg-driven video encoders

Usage:
  %s <command> [options]

Commands:
  crf-search   Find the largest CRF meeting a quality floor and size ceiling
  version      Print version information
  help         Show this help message

Run '%s crf-search --help' for crf-search options.
`, appName, appName, appName)
}

// crfSearchArgs holds the parsed arguments for the crf-search command,
// named after the options table in §6.
type crfSearchArgs struct {
	input string

	minCRF       float64
	maxCRF       float64
	crfIncrement float64

	minVMAF  string
	minXPSNR string

	maxEncodedPercent float64

	encoder   string
	preset    string
	pixFormat string
	keyint    string
	scd       bool
	svt       string
	enc       string
	encInput  string
	vfilter   string

	referenceVFilter string
	vmafModel        string
	vmafScale        string
	vmafFPS          string
	xpsnrFPS         string

	sampleEvery    string
	sampleDuration string
	minSamples     int
	samples        int

	tempDir  string
	keep     bool
	cache    bool
	thorough bool

	stdoutFormat string
	logDir       string
	verbose      bool
}

func runCRFSearch(args []string) int {
	fs := flag.NewFlagSet("crf-search", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Find the largest CRF meeting a quality floor and size ceiling.

Usage:
  %s crf-search [options] -i <PATH>

Required:
  -i, --input <PATH>        Reference video file

Search bounds:
  --min-crf <N>             Lower search bound (encoder-family default)
  --max-crf <N>             Upper search bound (encoder-family default)
  --crf-increment <N>       Search resolution (encoder-family default)

Quality floor (exactly one):
  --min-vmaf <N>            VMAF quality floor (default %.1f if neither is set)
  --min-xpsnr <N>           XPSNR quality floor

Size ceiling:
  --max-encoded-percent <N> Percent of video-stream byte budget. Default %.1f

Encode options:
  -e, --encoder <NAME>      libsvtav1, libaom-av1, libx264, libx265, libvpx-vp9. Default libsvtav1
  --preset <VALUE>          Encoder speed preset
  --pix-format <FMT>        Output pixel format
  --keyint <N>              Keyframe interval
  --svt <k=v,...>           svtav1-params / aom-params, comma-separated
  --enc <flag=val,...>      Extra output-side encoder flags, comma-separated
  --enc-input <flag=val,...> Extra input-side flags, comma-separated
  --vfilter <FILTER>        Extra -vf applied to the distorted sample

Quality scorer options:
  --reference-vfilter <F>   Extra filter applied to the reference before scoring
  --vmaf-model <NAME>       libvmaf model override
  --vmaf-scale <auto|none|WxH> Default auto
  --vmaf-fps <N>            VMAF analysis frame rate
  --xpsnr-fps <N>           XPSNR analysis frame rate

Sample plan options:
  --sample-every <DURATION> How often a sample is planted, e.g. 12m
  --sample-duration <DURATION> Length of each sample clip, e.g. 20s
  --min-samples <N>         Minimum sample count
  --samples <N>             Explicit sample count override

Lifecycle options:
  --temp-dir <PATH>         Directory a run's scratch directory is created under
  --keep                    Keep the temp directory on exit
  --cache=false             Disable the persistent result cache
  --thorough                Confirm the accepted CRF's neighbour before returning

Output:
  --stdout-format <text|json> Default text
  -l, --log-dir <PATH>      Write a run log file here in addition to stderr
  -v, --verbose             Enable debug-level logging
`, appName, config.DefaultMinVMAF, config.DefaultMaxEncodedPercent)
	}

	var a crfSearchArgs
	fs.StringVar(&a.input, "i", "", "Reference video file")
	fs.StringVar(&a.input, "input", "", "Reference video file")

	fs.Float64Var(&a.minCRF, "min-crf", -1, "Lower search bound")
	fs.Float64Var(&a.maxCRF, "max-crf", -1, "Upper search bound")
	fs.Float64Var(&a.crfIncrement, "crf-increment", -1, "Search resolution")

	fs.StringVar(&a.minVMAF, "min-vmaf", "", "VMAF quality floor")
	fs.StringVar(&a.minXPSNR, "min-xpsnr", "", "XPSNR quality floor")

	fs.Float64Var(&a.maxEncodedPercent, "max-encoded-percent", config.DefaultMaxEncodedPercent, "Size ceiling percent")

	fs.StringVar(&a.encoder, "e", "libsvtav1", "Encoder family")
	fs.StringVar(&a.encoder, "encoder", "libsvtav1", "Encoder family")
	fs.StringVar(&a.preset, "preset", "", "Encoder speed preset")
	fs.StringVar(&a.pixFormat, "pix-format", "", "Output pixel format")
	fs.StringVar(&a.keyint, "keyint", "", "Keyframe interval")
	fs.BoolVar(&a.scd, "scd", false, "Enable scene-change detection at keyframes")
	fs.StringVar(&a.svt, "svt", "", "svtav1-params/aom-params, comma-separated key=value")
	fs.StringVar(&a.enc, "enc", "", "Extra output-side encoder flags, comma-separated key=value")
	fs.StringVar(&a.encInput, "enc-input", "", "Extra input-side flags, comma-separated key=value")
	fs.StringVar(&a.vfilter, "vfilter", "", "Extra -vf applied to the distorted sample")

	fs.StringVar(&a.referenceVFilter, "reference-vfilter", "", "Extra filter applied to the reference before scoring")
	fs.StringVar(&a.vmafModel, "vmaf-model", "", "libvmaf model override")
	fs.StringVar(&a.vmafScale, "vmaf-scale", "", "auto, none, or WxH")
	fs.StringVar(&a.vmafFPS, "vmaf-fps", "", "VMAF analysis frame rate")
	fs.StringVar(&a.xpsnrFPS, "xpsnr-fps", "", "XPSNR analysis frame rate")

	fs.StringVar(&a.sampleEvery, "sample-every", "", "How often a sample is planted, e.g. 12m")
	fs.StringVar(&a.sampleDuration, "sample-duration", "", "Length of each sample clip, e.g. 20s")
	fs.IntVar(&a.minSamples, "min-samples", 0, "Minimum sample count")
	fs.IntVar(&a.samples, "samples", 0, "Explicit sample count override")

	fs.StringVar(&a.tempDir, "temp-dir", "", "Directory a run's scratch directory is created under")
	fs.BoolVar(&a.keep, "keep", false, "Keep the temp directory on exit")
	fs.BoolVar(&a.cache, "cache", true, "Enable the persistent result cache")
	fs.BoolVar(&a.thorough, "thorough", false, "Confirm the accepted CRF's neighbour before returning")

	fs.StringVar(&a.stdoutFormat, "stdout-format", "text", "text or json")
	fs.StringVar(&a.logDir, "l", "", "Write a run log file here in addition to stderr")
	fs.StringVar(&a.logDir, "log-dir", "", "Write a run log file here in addition to stderr")
	fs.BoolVar(&a.verbose, "v", false, "Enable debug-level logging")
	fs.BoolVar(&a.verbose, "verbose", false, "Enable debug-level logging")

	if err := fs.Parse(args); err != nil {
		return exitGenericFailure
	}

	if a.input == "" {
		fmt.Fprintln(os.Stderr, "input path is required (-i/--input)")
		return exitGenericFailure
	}

	input, err := filepath.Abs(a.input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid input path: %v\n", err)
		return exitGenericFailure
	}
	if _, err := os.Stat(input); err != nil {
		fmt.Fprintf(os.Stderr, "input path does not exist: %s\n", input)
		return exitGenericFailure
	}

	setupLogging(a)

	opts, err := buildOptions(a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return exitGenericFailure
	}

	searcher, err := crfscout.New(encoderFromFlag(a.encoder), opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return exitGenericFailure
	}

	rep := chooseReporter(a.stdoutFormat)
	searcher.SetReporter(rep)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	_, err = searcher.Search(ctx, input)
	if err != nil {
		switch {
		case xerrors.IsCancelled(err):
			return exitCancelled
		case xerrors.IsNoAcceptableCrf(err):
			return exitNoAcceptableCrf
		default:
			return exitGenericFailure
		}
	}
	return exitOK
}

// setupLogging configures the process-wide logger per AB_AV1_LOG / --verbose
// and optionally fans out to a run log file under --log-dir.
func setupLogging(a crfSearchArgs) {
	level := telemetry.LevelInfo
	if a.verbose {
		level = telemetry.LevelDebug
	}
	if envLevel, ok := parseLogLevel(os.Getenv("AB_AV1_LOG")); ok {
		level = envLevel
	}

	if a.logDir == "" {
		telemetry.Init(level, os.Stderr)
		return
	}

	file, err := telemetry.NewFileWriter(a.logDir)
	if err != nil {
		telemetry.Init(level, os.Stderr)
		telemetry.Warn("could not open run log file", "error", err)
		return
	}
	telemetry.Init(level, os.Stderr, file)
}

func parseLogLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return telemetry.LevelDebug, true
	case "info":
		return telemetry.LevelInfo, true
	case "warn", "warning":
		return telemetry.LevelWarn, true
	case "error":
		return telemetry.LevelError, true
	default:
		return 0, false
	}
}

func chooseReporter(format string) reporter.Reporter {
	if strings.EqualFold(format, "json") {
		return reporter.NewJSONReporter()
	}
	return reporter.NewTerminalReporter()
}

func encoderFromFlag(name string) config.Encoder {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "libaom-av1", "aom-av1", "aom":
		return config.EncoderAOMAV1
	case "libx264", "x264":
		return config.EncoderX264
	case "libx265", "x265":
		return config.EncoderX265
	case "libvpx-vp9", "vp9":
		return config.EncoderVP9
	default:
		return config.EncoderSVTAV1
	}
}

// buildOptions translates parsed flags, honouring AB_AV1_CACHE/AB_AV1_TEMP_DIR,
// into crfscout.Option values.
func buildOptions(a crfSearchArgs) ([]crfscout.Option, error) {
	var opts []crfscout.Option

	if a.minCRF >= 0 && a.maxCRF >= 0 {
		increment := a.crfIncrement
		if increment <= 0 {
			increment = encoderFromFlag(a.encoder).DefaultCRFIncrement()
		}
		opts = append(opts, crfscout.WithCRFRange(a.minCRF, a.maxCRF, increment))
	} else if a.crfIncrement > 0 {
		enc := encoderFromFlag(a.encoder)
		opts = append(opts, crfscout.WithCRFRange(enc.DefaultMinCRF(), enc.DefaultMaxCRF(), a.crfIncrement))
	}

	if a.minVMAF != "" && a.minXPSNR != "" {
		return nil, config.ErrQualityFloorConflict
	}
	if a.minVMAF != "" {
		v, err := strconv.ParseFloat(a.minVMAF, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --min-vmaf: %w", err)
		}
		opts = append(opts, crfscout.WithMinVMAF(v))
	}
	if a.minXPSNR != "" {
		v, err := strconv.ParseFloat(a.minXPSNR, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --min-xpsnr: %w", err)
		}
		opts = append(opts, crfscout.WithMinXPSNR(v))
	}

	opts = append(opts, crfscout.WithMaxEncodedPercent(a.maxEncodedPercent))

	if a.preset != "" {
		opts = append(opts, crfscout.WithPreset(a.preset))
	}
	if a.pixFormat != "" {
		opts = append(opts, crfscout.WithPixFormat(a.pixFormat))
	}
	if a.vfilter != "" {
		opts = append(opts, crfscout.WithVFilter(a.vfilter))
	}
	if a.svt != "" {
		opts = append(opts, crfscout.WithSVTParams(splitCommaPairs(a.svt)...))
	}
	if a.keyint != "" {
		opts = append(opts, crfscout.WithKeyint(a.keyint))
	}
	if a.scd {
		opts = append(opts, crfscout.WithSceneChangeDetection())
	}
	if a.enc != "" {
		opts = append(opts, crfscout.WithEnc(splitCommaPairs(a.enc)...))
	}
	if a.encInput != "" {
		opts = append(opts, crfscout.WithEncInput(splitCommaPairs(a.encInput)...))
	}

	if a.referenceVFilter != "" {
		opts = append(opts, crfscout.WithReferenceVFilter(a.referenceVFilter))
	}
	if a.vmafModel != "" {
		opts = append(opts, crfscout.WithVMAFModel(a.vmafModel))
	}
	if a.vmafScale != "" {
		opts = append(opts, crfscout.WithVMAFScale(a.vmafScale))
	}
	if a.vmafFPS != "" {
		opts = append(opts, crfscout.WithVMAFFPS(a.vmafFPS))
	}
	if a.xpsnrFPS != "" {
		opts = append(opts, crfscout.WithXPSNRFPS(a.xpsnrFPS))
	}

	if a.samples > 0 {
		opts = append(opts, crfscout.WithSamples(a.samples))
	}
	if a.sampleEvery != "" {
		d, err := parseDurationFlag(a.sampleEvery)
		if err != nil {
			return nil, fmt.Errorf("invalid --sample-every: %w", err)
		}
		opts = append(opts, crfscout.WithSampleEvery(d))
	}
	if a.sampleDuration != "" {
		d, err := parseDurationFlag(a.sampleDuration)
		if err != nil {
			return nil, fmt.Errorf("invalid --sample-duration: %w", err)
		}
		opts = append(opts, crfscout.WithSampleDuration(d))
	}
	if a.minSamples > 0 {
		opts = append(opts, crfscout.WithMinSamples(a.minSamples))
	}

	tempDir := a.tempDir
	if envDir := os.Getenv("AB_AV1_TEMP_DIR"); envDir != "" && tempDir == "" {
		tempDir = envDir
	}
	if tempDir != "" {
		opts = append(opts, crfscout.WithTempDir(tempDir))
	}
	if a.keep {
		opts = append(opts, crfscout.WithKeep())
	}
	if a.thorough {
		opts = append(opts, crfscout.WithThorough())
	}

	cacheEnabled := a.cache
	if envCache, ok := parseBoolFlag(os.Getenv("AB_AV1_CACHE")); ok {
		cacheEnabled = envCache
	}
	if !cacheEnabled {
		opts = append(opts, crfscout.WithoutCache())
	}

	return opts, nil
}

func splitCommaPairs(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDurationFlag(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

func parseBoolFlag(s string) (bool, bool) {
	if s == "" {
		return false, false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, false
	}
	return v, true
}
