package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/cratedig/cratedig/dsp"
)

// Tempo search range in BPM. Outside 60-200 the autocorrelation peak is
// almost always a half- or double-time alias.
const (
	minBPM = 60.0
	maxBPM = 200.0
)

// TempoEstimator derives an average tempo from the autocorrelation of the
// onset strength envelope. No beat phase or grid alignment is computed;
// the estimate covers the analyzed excerpt only.
type TempoEstimator struct {
	mel *dsp.MelBank
}

// NewTempoEstimator creates a tempo estimator using the shared mel filterbank
func NewTempoEstimator(mel *dsp.MelBank) *TempoEstimator {
	return &TempoEstimator{mel: mel}
}

// Estimate returns the tempo of a power spectrogram in BPM, rounded to one
// decimal place. Degenerate input (silence, too few frames) returns an
// error the caller maps to a null BPM.
func (te *TempoEstimator) Estimate(spec *dsp.Spectrogram) (float64, error) {
	if spec == nil || spec.TimeFrames < 2 {
		return 0, fmt.Errorf("spectrogram too short for tempo estimation")
	}

	flux := te.onsetEnvelope(spec.Power)
	if len(flux) == 0 {
		return 0, fmt.Errorf("empty onset envelope")
	}

	// Mean-center so the autocorrelation reflects periodicity, not offset
	mean := stat.Mean(flux, nil)
	for i := range flux {
		flux[i] -= mean
	}

	autocorr := autocorrelate(flux)

	fps := spec.FrameRate()
	// Ceil on the lower bound: truncating would admit a lag just above
	// maxBPM. Truncating lagMax keeps the other edge at >= minBPM.
	lagMin := int(math.Ceil(fps * 60.0 / maxBPM))
	lagMax := int(fps * 60.0 / minBPM)

	if lagMin < 1 {
		lagMin = 1
	}
	if lagMax > len(autocorr)-1 {
		lagMax = len(autocorr) - 1
	}
	if lagMin > lagMax {
		return 0, fmt.Errorf("envelope too short for tempo range: %d frames", len(flux))
	}

	bestLag := lagMin
	bestVal := math.Inf(-1)
	for lag := lagMin; lag <= lagMax; lag++ {
		if autocorr[lag] > bestVal {
			bestVal = autocorr[lag]
			bestLag = lag
		}
	}

	if bestVal <= 0 {
		return 0, fmt.Errorf("no periodicity in onset envelope")
	}

	bpm := fps * 60.0 / float64(bestLag)
	return math.Round(bpm*10) / 10, nil
}

// onsetEnvelope computes the spectral flux onset strength: half-wave
// rectified first difference of the log-mel spectrogram, averaged across
// mel bands
func (te *TempoEstimator) onsetEnvelope(power [][]float64) []float64 {
	melDB := make([][]float64, len(power))
	for t, frame := range power {
		mel := te.mel.Apply(frame)
		db := make([]float64, len(mel))
		for i, v := range mel {
			db[i] = dsp.PowerToDB(v)
		}
		melDB[t] = db
	}

	if len(melDB) < 2 {
		return nil
	}

	flux := make([]float64, len(melDB)-1)
	for t := 1; t < len(melDB); t++ {
		sum := 0.0
		for b := range melDB[t] {
			diff := melDB[t][b] - melDB[t-1][b]
			if diff > 0 {
				sum += diff
			}
		}
		if n := len(melDB[t]); n > 0 {
			flux[t-1] = sum / float64(n)
		}
	}

	return flux
}

// autocorrelate computes the autocorrelation for non-negative lags
func autocorrelate(signal []float64) []float64 {
	n := len(signal)
	autocorr := make([]float64, n)

	for lag := 0; lag < n; lag++ {
		sum := 0.0
		for i := 0; i < n-lag; i++ {
			sum += signal[i] * signal[i+lag]
		}
		autocorr[lag] = sum
	}

	return autocorr
}
