package dsp

import (
	"fmt"
	"math"
)

// MFCC computes Mel-Frequency Cepstral Coefficients: power spectrum
// projected through the mel filterbank, log-compressed, then a DCT-II
// across mel bands keeping the first numCoeffs coefficients.
type MFCC struct {
	numCoeffs int
	mel       *MelBank
	dctMatrix [][]float64
}

// NewMFCC creates an MFCC computer on top of an existing mel filterbank
func NewMFCC(mel *MelBank, numCoeffs int) *MFCC {
	m := &MFCC{
		numCoeffs: numCoeffs,
		mel:       mel,
	}
	m.createDCTMatrix()
	return m
}

// createDCTMatrix builds the orthonormal DCT-II matrix [coeff][band]
func (m *MFCC) createDCTMatrix() {
	numBands := m.mel.NumBands()
	m.dctMatrix = make([][]float64, m.numCoeffs)

	for k := 0; k < m.numCoeffs; k++ {
		m.dctMatrix[k] = make([]float64, numBands)

		for n := 0; n < numBands; n++ {
			m.dctMatrix[k][n] = math.Cos(math.Pi * float64(k) * (float64(n) + 0.5) / float64(numBands))

			if k == 0 {
				m.dctMatrix[k][n] *= math.Sqrt(1.0 / float64(numBands))
			} else {
				m.dctMatrix[k][n] *= math.Sqrt(2.0 / float64(numBands))
			}
		}
	}
}

// ComputeFrame calculates the MFCC coefficients for one power spectrum frame
func (m *MFCC) ComputeFrame(powerFrame []float64) []float64 {
	melFrame := m.mel.Apply(powerFrame)

	logMel := make([]float64, len(melFrame))
	for i, v := range melFrame {
		logMel[i] = PowerToDB(v)
	}

	coeffs := make([]float64, m.numCoeffs)
	for k := 0; k < m.numCoeffs; k++ {
		sum := 0.0
		for n := 0; n < len(logMel) && n < len(m.dctMatrix[k]); n++ {
			sum += logMel[n] * m.dctMatrix[k][n]
		}
		coeffs[k] = sum
	}

	return coeffs
}

// Compute calculates MFCC coefficients averaged over all frames of a power
// spectrogram. Always returns exactly numCoeffs finite values for a
// non-empty spectrogram, whatever the frame count.
func (m *MFCC) Compute(power [][]float64) ([]float64, error) {
	if len(power) == 0 {
		return nil, fmt.Errorf("empty spectrogram")
	}

	avg := make([]float64, m.numCoeffs)
	for _, frame := range power {
		coeffs := m.ComputeFrame(frame)
		for k := range avg {
			avg[k] += coeffs[k]
		}
	}

	for k := range avg {
		avg[k] /= float64(len(power))
	}

	return avg, nil
}
