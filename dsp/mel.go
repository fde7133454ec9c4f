package dsp

import (
	"math"
)

// HzToMel converts frequency in Hz to mel scale
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// PowerToDB converts a power value to decibels with a floor that keeps
// silence from producing -Inf
func PowerToDB(power float64) float64 {
	return 10.0 * math.Log10(power+1e-10)
}

// MelBank is a triangular mel filterbank over linear FFT bins.
// Built once per (sampleRate, fftSize, numBands) and shared read-only
// across analyses; no synchronization is needed for concurrent readers.
type MelBank struct {
	weights  [][]float64 // [band][bin], values in [0,1]
	numBands int
	fftSize  int
}

// NewMelBank creates a mel filterbank with numBands triangular filters
// spaced evenly in mel between 0 Hz and Nyquist. Each triangle peaks at 1
// and falls to 0 at the center bins of its neighbors.
func NewMelBank(numBands, fftSize, sampleRate int) *MelBank {
	if numBands <= 0 || fftSize <= 0 {
		return &MelBank{numBands: 0, fftSize: fftSize}
	}

	lowMel := HzToMel(0)
	highMel := HzToMel(float64(sampleRate) / 2.0)

	// Equally spaced points in mel space, converted back to bin indices
	melPoints := make([]float64, numBands+2)
	melStep := (highMel - lowMel) / float64(numBands+1)
	for i := range melPoints {
		melPoints[i] = lowMel + float64(i)*melStep
	}

	binPoints := make([]int, len(melPoints))
	for i, mel := range melPoints {
		hz := MelToHz(mel)
		binPoints[i] = int(math.Floor((float64(fftSize)+1.0)*hz/float64(sampleRate) + 0.5))
		binPoints[i] = min(binPoints[i], fftSize/2)
	}

	weights := make([][]float64, numBands)
	for i := range weights {
		weights[i] = make([]float64, fftSize/2+1)
	}

	for m := 1; m <= numBands; m++ {
		leftBin := binPoints[m-1]
		centerBin := binPoints[m]
		rightBin := binPoints[m+1]

		// Rising edge
		for k := leftBin; k < centerBin && k < len(weights[m-1]); k++ {
			if centerBin != leftBin {
				weights[m-1][k] = float64(k-leftBin) / float64(centerBin-leftBin)
			}
		}

		// Falling edge
		for k := centerBin; k < rightBin && k < len(weights[m-1]); k++ {
			if rightBin != centerBin {
				weights[m-1][k] = float64(rightBin-k) / float64(rightBin-centerBin)
			}
		}
	}

	return &MelBank{
		weights:  weights,
		numBands: numBands,
		fftSize:  fftSize,
	}
}

// NumBands returns the number of mel bands
func (mb *MelBank) NumBands() int {
	return mb.numBands
}

// Apply projects a single power spectrum frame onto the mel bands
func (mb *MelBank) Apply(powerFrame []float64) []float64 {
	melFrame := make([]float64, mb.numBands)

	for i, filter := range mb.weights {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerFrame); j++ {
			sum += powerFrame[j] * filter[j]
		}
		melFrame[i] = sum
	}

	return melFrame
}

// ApplyFrames projects every frame of a power spectrogram onto the mel bands
func (mb *MelBank) ApplyFrames(power [][]float64) [][]float64 {
	melFrames := make([][]float64, len(power))
	for t, frame := range power {
		melFrames[t] = mb.Apply(frame)
	}
	return melFrames
}

// Weights returns the filterbank weight matrix (for inspection)
func (mb *MelBank) Weights() [][]float64 {
	return mb.weights
}
