package analysis

import (
	"fmt"
	"math"

	"github.com/cratedig/cratedig/decode"
	"github.com/cratedig/cratedig/logging"
)

// Nine ascending RMS thresholds mapping to levels 1-10. The level is one
// plus the index of the first threshold the RMS is strictly below; an RMS
// at or above all of them is level 10. Calibrated on electronic music.
var energyThresholds = [9]float64{0.05, 0.08, 0.11, 0.14, 0.17, 0.20, 0.23, 0.26, 0.30}

var energyDescriptions = [11]string{
	"Unknown", // level 0 is never produced; keeps indexing direct
	"Very Low",
	"Low",
	"Low-Medium",
	"Medium",
	"Medium",
	"Medium-High",
	"High",
	"High",
	"Very High",
	"Peak Energy",
}

// EnergyEstimator computes full-track RMS energy by streaming the file in
// fixed-size blocks. Unlike tempo and key it always sees the whole track:
// a 7-minute progressive build would read as quiet if only the first
// minute counted.
type EnergyEstimator struct {
	decoder     *decode.Decoder
	blockFrames int
}

// NewEnergyEstimator creates an energy estimator streaming through the
// given decoder
func NewEnergyEstimator(decoder *decode.Decoder) *EnergyEstimator {
	return &EnergyEstimator{
		decoder:     decoder,
		blockFrames: decode.DefaultBlockFrames,
	}
}

// Estimate returns the track's energy, falling back to the mid-level
// default on any I/O or decode error. Energy is advisory metadata; it
// never aborts an analysis.
func (ee *EnergyEstimator) Estimate(path string) EnergyResult {
	result, err := ee.estimate(path)
	if err != nil {
		logging.Warn("energy estimation failed", logging.Fields{
			"component": "energy",
			"file":      path,
			"error":     err.Error(),
		})
		return DefaultEnergy()
	}
	return result
}

func (ee *EnergyEstimator) estimate(path string) (EnergyResult, error) {
	sumSquares := 0.0
	frames := 0

	err := ee.decoder.StreamBlocks(path, ee.blockFrames, func(block []float64) error {
		for _, s := range block {
			sumSquares += s * s
		}
		frames += len(block)
		return nil
	})
	if err != nil {
		return EnergyResult{}, err
	}

	if frames == 0 {
		return EnergyResult{}, fmt.Errorf("%w: %s", decode.ErrEmptyAudio, path)
	}

	rms := math.Sqrt(sumSquares / float64(frames))
	level := LevelForRMS(rms)

	return EnergyResult{
		Level:       level,
		RMS:         rms,
		Description: energyDescriptions[level],
	}, nil
}

// LevelForRMS maps an RMS value to the discrete 1-10 energy scale
func LevelForRMS(rms float64) int {
	for i, threshold := range energyThresholds {
		if rms < threshold {
			return i + 1
		}
	}
	return 10
}

// DefaultEnergy is the placeholder result when energy computation fails
func DefaultEnergy() EnergyResult {
	return EnergyResult{
		Level:       5,
		RMS:         0.0,
		Description: "Unknown",
	}
}
