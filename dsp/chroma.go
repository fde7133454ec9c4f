package dsp

import (
	"math"
)

// Piano range covered by the pitch-class mapping. Bins outside it carry
// no usable pitch information for key detection.
const (
	chromaMinHz = 27.5   // A0
	chromaMaxHz = 4186.0 // C8
)

// ChromaBank maps linear FFT bins onto the 12 pitch classes (0=C .. 11=B).
// Like MelBank it is built once per (sampleRate, fftSize) and shared
// read-only across analyses.
//
// Each in-range bin is assigned the pitch class of its nearest MIDI note.
// A pitch class accumulates the *average* power of its member bins, not the
// sum: high pitch classes own proportionally more FFT bins under linear
// frequency spacing and summing would let them dominate the chroma vector.
type ChromaBank struct {
	classForBin []int // pitch class per FFT bin, -1 when out of range
	binCount    [12]int
}

// NewChromaBank creates a pitch-class mapping for the given FFT geometry.
// Bin 0 (DC) is always excluded.
func NewChromaBank(fftSize, sampleRate int) *ChromaBank {
	numBins := fftSize/2 + 1
	cb := &ChromaBank{
		classForBin: make([]int, numBins),
	}

	binHz := float64(sampleRate) / float64(fftSize)

	for i := 0; i < numBins; i++ {
		cb.classForBin[i] = -1
		if i == 0 {
			continue
		}

		freq := float64(i) * binHz
		if freq < chromaMinHz || freq > chromaMaxHz {
			continue
		}

		midi := int(math.Round(69.0 + 12.0*math.Log2(freq/440.0)))
		pc := ((midi % 12) + 12) % 12
		cb.classForBin[i] = pc
		cb.binCount[pc]++
	}

	return cb
}

// Apply maps a single power spectrum frame onto the 12 pitch classes
func (cb *ChromaBank) Apply(powerFrame []float64) []float64 {
	chroma := make([]float64, 12)

	n := min(len(powerFrame), len(cb.classForBin))
	for i := 0; i < n; i++ {
		pc := cb.classForBin[i]
		if pc >= 0 {
			chroma[pc] += powerFrame[i]
		}
	}

	for pc := range chroma {
		if cb.binCount[pc] > 0 {
			chroma[pc] /= float64(cb.binCount[pc])
		}
	}

	return chroma
}

// Vector computes the time-averaged chroma vector over the first maxFrames
// frames of a power spectrogram (all frames when maxFrames <= 0)
func (cb *ChromaBank) Vector(power [][]float64, maxFrames int) []float64 {
	chroma := make([]float64, 12)

	frames := len(power)
	if maxFrames > 0 && maxFrames < frames {
		frames = maxFrames
	}
	if frames == 0 {
		return chroma
	}

	for t := 0; t < frames; t++ {
		frame := cb.Apply(power[t])
		for pc := range chroma {
			chroma[pc] += frame[pc]
		}
	}

	for pc := range chroma {
		chroma[pc] /= float64(frames)
	}

	return chroma
}
