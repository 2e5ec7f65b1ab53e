// Package probe extracts a Reference description from a media file via
// ffprobe: duration, dimensions, frame rate, and stream inventory.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"sync"

	"github.com/finchav/crfscout/internal/lifecycle"
	"github.com/finchav/crfscout/internal/xerrors"
)

// stillImageCodecs are video codec names ffprobe reports for single-frame
// containers; a reference matching one of these is treated as an image.
var stillImageCodecs = map[string]bool{
	"mjpeg": true, "png": true, "bmp": true, "gif": true, "webp": true, "tiff": true,
}

// StreamInventory counts each stream kind in the container.
type StreamInventory struct {
	Video      int
	Audio      int
	Subtitle   int
	Data       int
	Attachment int
}

// Reference describes an immutable source media file. Duration and frame
// rate are carried as rationals so repeated arithmetic across sample
// planning and search probes never accumulates float drift.
type Reference struct {
	Path          string
	Duration      *big.Rat // seconds
	Width         uint32
	Height        uint32
	FrameRate     *big.Rat // frames per second
	IsStillImage  bool
	Streams       StreamInventory
	ContainerExt  string
	FileSizeBytes uint64
	// VideoBitrate is the source video stream's bitrate in bits/second, when
	// ffprobe reports one, else the container's overall bit_rate. nil when
	// ffprobe reports neither.
	VideoBitrate *uint64
}

// DurationSeconds returns the reference duration as a float64, for call
// sites (progress rendering, sample-plan arithmetic against wall-clock
// timers) that don't need rational precision.
func (r *Reference) DurationSeconds() float64 {
	f, _ := r.Duration.Float64()
	return f
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecType     string `json:"codec_type"`
	CodecName     string `json:"codec_name"`
	Width         int64  `json:"width"`
	Height        int64  `json:"height"`
	NbFrames      string `json:"nb_frames"`
	RFrameRate    string `json:"r_frame_rate"`
	AvgFrameRate  string `json:"avg_frame_rate"`
	BitRate       string `json:"bit_rate"`
}

// Prober runs ffprobe and memoises the result per path for the lifetime of a
// run: one probe per distinct path, regardless of how many components ask.
type Prober struct {
	mu    sync.Mutex
	cache map[string]*Reference
}

// NewProber returns a Prober with an empty memoisation cache.
func NewProber() *Prober {
	return &Prober{cache: make(map[string]*Reference)}
}

// Probe returns the Reference for path, running ffprobe at most once per
// path for this Prober's lifetime.
func (p *Prober) Probe(ctx context.Context, path string) (*Reference, error) {
	p.mu.Lock()
	if ref, ok := p.cache[path]; ok {
		p.mu.Unlock()
		return ref, nil
	}
	p.mu.Unlock()

	ref, err := probeOnce(ctx, path)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[path] = ref
	p.mu.Unlock()
	return ref, nil
}

func probeOnce(ctx context.Context, path string) (*Reference, error) {
	cmd := lifecycle.Command(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, xerrors.NewProbeError(fmt.Sprintf("ffprobe failed on %s: %s", path, strings.TrimSpace(stderr.String())), err)
	}

	parsed, err := parseFFprobeOutput(output)
	if err != nil {
		return nil, xerrors.NewProbeError("could not parse ffprobe output", err)
	}

	return buildReference(parsed, path)
}

// parseFFprobeOutput unmarshals raw ffprobe JSON.
func parseFFprobeOutput(data []byte) (*ffprobeOutput, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// buildReference turns parsed ffprobe output into a Reference.
func buildReference(parsed *ffprobeOutput, path string) (*Reference, error) {
	var videoStream *ffprobeStream
	inventory := StreamInventory{}
	for i := range parsed.Streams {
		s := &parsed.Streams[i]
		switch s.CodecType {
		case "video":
			inventory.Video++
			if videoStream == nil {
				videoStream = s
			}
		case "audio":
			inventory.Audio++
		case "subtitle":
			inventory.Subtitle++
		case "data":
			inventory.Data++
		case "attachment":
			inventory.Attachment++
		}
	}

	if videoStream == nil {
		return nil, xerrors.NewProbeError(fmt.Sprintf("no video stream found in %s", path), nil)
	}
	if videoStream.Width <= 0 || videoStream.Height <= 0 {
		return nil, xerrors.NewProbeError(fmt.Sprintf("invalid dimensions in %s: %dx%d", path, videoStream.Width, videoStream.Height), nil)
	}

	frameRate, err := parseRationalRate(videoStream.RFrameRate, videoStream.AvgFrameRate)
	if err != nil {
		return nil, xerrors.NewProbeError(fmt.Sprintf("could not parse frame rate for %s", path), err)
	}

	isStill := stillImageCodecs[videoStream.CodecName]

	duration, err := parseDuration(parsed.Format.Duration, frameRate, isStill)
	if err != nil {
		return nil, xerrors.NewProbeError(fmt.Sprintf("could not determine duration for %s", path), err)
	}
	if duration.Sign() <= 0 {
		return nil, xerrors.NewProbeError(fmt.Sprintf("non-positive duration for %s", path), nil)
	}

	var fileSize uint64
	if parsed.Format.Size != "" {
		if r, ok := new(big.Rat).SetString(parsed.Format.Size); ok {
			f, _ := r.Float64()
			fileSize = uint64(f)
		}
	}

	videoBitrate := parseBitrate(videoStream.BitRate)
	if videoBitrate == nil {
		videoBitrate = parseBitrate(parsed.Format.BitRate)
	}

	return &Reference{
		Path:          path,
		Duration:      duration,
		Width:         uint32(videoStream.Width),
		Height:        uint32(videoStream.Height),
		FrameRate:     frameRate,
		IsStillImage:  isStill,
		Streams:       inventory,
		ContainerExt:  strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		FileSizeBytes: fileSize,
		VideoBitrate:  videoBitrate,
	}, nil
}

// parseRationalRate parses an ffprobe "num/den" frame-rate string, preferring
// r_frame_rate and falling back to avg_frame_rate.
func parseRationalRate(rFrameRate, avgFrameRate string) (*big.Rat, error) {
	for _, s := range []string{rFrameRate, avgFrameRate} {
		if s == "" || s == "0/0" {
			continue
		}
		r, ok := new(big.Rat).SetString(s)
		if ok && r.Sign() > 0 {
			return r, nil
		}
	}
	return nil, fmt.Errorf("no usable frame rate in %q / %q", rFrameRate, avgFrameRate)
}

// parseDuration converts ffprobe's decimal duration string into a rational
// number of seconds. A still image has no meaningful container duration; its
// duration is defined as exactly one frame.
func parseDuration(durationStr string, frameRate *big.Rat, isStill bool) (*big.Rat, error) {
	if isStill {
		return new(big.Rat).Inv(frameRate), nil
	}
	if durationStr == "" {
		return nil, fmt.Errorf("empty duration")
	}
	d, ok := new(big.Rat).SetString(durationStr)
	if !ok {
		return nil, fmt.Errorf("unparseable duration %q", durationStr)
	}
	return d, nil
}

func parseBitrate(s string) *uint64 {
	if s == "" {
		return nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil
	}
	f, _ := r.Float64()
	v := uint64(f)
	return &v
}
