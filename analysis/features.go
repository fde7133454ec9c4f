package analysis

import (
	"fmt"
	"math"

	"github.com/cratedig/cratedig/dsp"
)

// NumMFCC is the number of cepstral coefficients in the feature vector
const NumMFCC = 20

// FeatureBuilder computes the 32-dimensional similarity descriptor:
// 20 MFCC coefficients plus the 12-element chroma vector, both averaged
// over the full analyzed excerpt.
type FeatureBuilder struct {
	mfcc   *dsp.MFCC
	chroma *dsp.ChromaBank
}

// NewFeatureBuilder creates a feature builder on the shared filterbanks
func NewFeatureBuilder(mel *dsp.MelBank, chroma *dsp.ChromaBank) *FeatureBuilder {
	return &FeatureBuilder{
		mfcc:   dsp.NewMFCC(mel, NumMFCC),
		chroma: chroma,
	}
}

// Build computes the feature vector for a power spectrogram. The contract
// holds for any non-empty spectrogram, synthetic noise included: exactly
// 20 MFCC and 12 chroma values, all finite.
func (fb *FeatureBuilder) Build(spec *dsp.Spectrogram) (*Features, error) {
	if spec == nil || spec.TimeFrames == 0 {
		return nil, fmt.Errorf("empty spectrogram")
	}

	mfcc, err := fb.mfcc.Compute(spec.Power)
	if err != nil {
		return nil, fmt.Errorf("mfcc: %w", err)
	}

	chroma := fb.chroma.Vector(spec.Power, 0)

	for _, v := range mfcc {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite mfcc coefficient")
		}
	}
	for _, v := range chroma {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite chroma value")
		}
	}

	return &Features{
		MFCC:   mfcc,
		Chroma: chroma,
	}, nil
}
