package analysis

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/cratedig/cratedig/decode"
	"github.com/cratedig/cratedig/dsp"
	"github.com/cratedig/cratedig/logging"
)

// Fixed analysis parameters. The filterbanks built from them are the only
// long-lived state and are read-only after construction, so one Analyzer
// is safe to share across concurrent tracks.
const (
	SampleRate = 22050 // analysis sample rate, Hz
	WindowSize = 2048  // STFT window
	HopSize    = 512   // STFT hop
	MelBands   = 128   // mel filterbank size

	// MaxAnalysisSeconds caps the decoded excerpt for tempo, key and
	// features. Energy streams the full file separately.
	MaxAnalysisSeconds = 60

	// KeyWindowSeconds restricts key detection to the opening of the
	// excerpt, where the key is assumed stable
	KeyWindowSeconds = 30.0
)

// Analyzer runs the full feature-extraction pipeline for single tracks:
// bounded decode, one shared power spectrogram, then tempo, key and
// features from that spectrogram, plus full-file streaming energy.
type Analyzer struct {
	decoder  *decode.Decoder
	stft     *dsp.STFT
	tempo    *TempoEstimator
	key      *KeyEstimator
	energy   *EnergyEstimator
	features *FeatureBuilder
	logger   logging.Logger
}

// NewAnalyzer creates an analyzer with default decoding configuration
func NewAnalyzer() *Analyzer {
	return NewAnalyzerWithConfig(decode.DefaultConfig())
}

// NewAnalyzerWithConfig creates an analyzer decoding through the given
// configuration. The target sample rate is forced to the analysis rate.
func NewAnalyzerWithConfig(cfg *decode.Config) *Analyzer {
	if cfg == nil {
		cfg = decode.DefaultConfig()
	}
	cfg.TargetSampleRate = SampleRate

	decoder := decode.NewDecoder(cfg)
	mel := dsp.NewMelBank(MelBands, WindowSize, SampleRate)
	chroma := dsp.NewChromaBank(WindowSize, SampleRate)

	return &Analyzer{
		decoder:  decoder,
		stft:     dsp.NewSTFT(),
		tempo:    NewTempoEstimator(mel),
		key:      NewKeyEstimator(chroma),
		energy:   NewEnergyEstimator(decoder),
		features: NewFeatureBuilder(mel, chroma),
		logger:   logging.GetGlobalLogger(),
	}
}

// Analyze runs the full pipeline for one track. It fails only when no
// audio can be decoded at all; every later stage substitutes its
// documented default on failure so one bad stage never takes down the
// whole result.
func (a *Analyzer) Analyze(path string) (*Result, error) {
	logger := a.logger.WithFields(logging.Fields{
		"component": "analyzer",
		"file":      path,
	})

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	start := time.Now()

	buffer, err := a.decoder.Decode(path, MaxAnalysisSeconds*time.Second)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	spec, err := a.stft.Compute(buffer.Samples, WindowSize, HopSize, buffer.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("spectrogram %s: %w", path, err)
	}

	result := &Result{
		FilePath: absPath,
		Filename: filepath.Base(path),
		Duration: buffer.Duration(),
	}

	if bpm, err := a.tempo.Estimate(spec); err != nil {
		logger.Warn("tempo estimation failed", logging.Fields{"error": err.Error()})
	} else {
		result.BPM = &bpm
	}

	result.Key = a.key.Estimate(spec, KeyWindowSeconds)

	if features, err := a.features.Build(spec); err != nil {
		logger.Warn("feature extraction failed", logging.Fields{"error": err.Error()})
	} else {
		result.Features = features
	}

	result.Energy = a.energy.Estimate(path)

	if info, err := a.decoder.Probe(path); err != nil {
		logger.Warn("probe failed", logging.Fields{"error": err.Error()})
		result.AudioInfo = AudioInfo{SampleRate: buffer.SampleRate}
	} else {
		result.Metadata = Metadata(info.Tags)
		result.AudioInfo = AudioInfo{
			Format:     info.Format,
			Bitrate:    info.Bitrate,
			SampleRate: info.SampleRate,
			Channels:   info.Channels,
			FileSizeMB: info.FileSizeMB,
		}
		// The buffer is capped; the probe knows the real track length
		if info.Duration > 0 {
			result.Duration = info.Duration
		}
	}

	logger.Debug("analysis complete", logging.Fields{
		"elapsed": time.Since(start).Seconds(),
		"key":     result.Key.Notation,
		"energy":  result.Energy.Level,
	})

	return result, nil
}
