package decode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cratedig/cratedig/logging"
)

// Sentinel errors for the two fatal per-track conditions. Everything else
// in the pipeline degrades to a stage default instead of failing.
var (
	// ErrNoAudio indicates a file that cannot be opened or contains zero
	// decodable frames
	ErrNoAudio = errors.New("no decodable audio")

	// ErrEmptyAudio indicates a stream that produced zero frames
	ErrEmptyAudio = errors.New("empty audio stream")
)

// Buffer is a mono PCM buffer at a fixed analysis sample rate. It is owned
// by the call that produced it and treated as immutable after creation.
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the buffer duration in seconds
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Config holds decoder configuration
type Config struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	ResampleQuality  string        `json:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout"`
}

// DefaultConfig returns the default decoder configuration: mono 22050 Hz
// output with high-quality soxr resampling
func DefaultConfig() *Config {
	return &Config{
		TargetSampleRate: 22050,
		ResampleQuality:  "high",
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		Timeout:          60 * time.Second,
	}
}

// Decoder loads audio files into mono analysis buffers. WAV files whose
// sample rate already matches the target are read natively; everything
// else goes through FFmpeg.
type Decoder struct {
	config *Config
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *Config) *Decoder {
	if config == nil {
		config = DefaultConfig()
	}
	return &Decoder{config: config}
}

// Decode loads at most maxDuration of audio from path as a mono buffer at
// the target sample rate. Limiting the decoded duration, not the analysis
// window, is the main latency lever: a multi-minute track decodes in well
// under a second when only the first 60 s are read.
func (d *Decoder) Decode(path string, maxDuration time.Duration) (*Buffer, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "decoder",
		"file":      path,
	})

	info, err := d.Probe(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAudio, err)
	}

	logger.Debug("probed audio file", logging.Fields{
		"sample_rate": info.SampleRate,
		"channels":    info.Channels,
		"duration":    info.Duration,
	})

	if isWAV(path) && info.SampleRate == d.config.TargetSampleRate {
		buf, err := d.decodeWAV(path, maxDuration)
		if err == nil {
			return buf, nil
		}
		// Malformed WAV headers happen; let FFmpeg have a try
		logger.Warn("native WAV decode failed, falling back to ffmpeg", logging.Fields{
			"error": err.Error(),
		})
	}

	return d.decodeFFmpeg(path, maxDuration)
}

// decodeFFmpeg decodes through FFmpeg to raw mono float64 PCM at the
// target rate, bounded by maxDuration
func (d *Decoder) decodeFFmpeg(path string, maxDuration time.Duration) (*Buffer, error) {
	args := []string{"-i", path}

	if maxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", maxDuration.Seconds()))
	}

	args = append(args,
		"-vn",
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	)

	if filter := d.resampleFilter(); filter != "" {
		args = append(args, "-af", filter)
	}

	args = append(args, "-v", "error", "pipe:1")

	cmd := exec.Command(d.config.FFmpegPath, args...)
	if d.config.Timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), d.config.Timeout)
		defer cancel()
		cmd = exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	}

	output, err := cmd.Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%w: ffmpeg: %v, stderr: %s", ErrNoAudio, err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("%w: ffmpeg: %v", ErrNoAudio, err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAudio, path)
	}

	return &Buffer{
		Samples:    samples,
		SampleRate: d.config.TargetSampleRate,
	}, nil
}

// resampleFilter maps the configured quality to a soxr precision
func (d *Decoder) resampleFilter() string {
	switch d.config.ResampleQuality {
	case "fast":
		return "aresample=resampler=soxr:precision=16"
	case "medium":
		return "aresample=resampler=soxr:precision=20"
	case "high":
		return "aresample=resampler=soxr:precision=28"
	default:
		return ""
	}
}

func isWAV(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".wav") || strings.HasSuffix(lower, ".wave")
}

// bytesToFloat64 converts raw little-endian float64 PCM to samples
func bytesToFloat64(data []byte) []float64 {
	if len(data)%8 != 0 {
		data = data[:len(data)-(len(data)%8)]
	}

	if len(data) == 0 {
		return nil
	}

	sampleCount := len(data) / 8
	samples := make([]float64, sampleCount)

	for i := 0; i < sampleCount; i++ {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}
