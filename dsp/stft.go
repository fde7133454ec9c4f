package dsp

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"
)

// Spectrogram holds a power spectrogram: squared FFT magnitudes of
// Hann-windowed frames. Power is frames-major: Power[t][f].
// It is computed once per analysis and shared read-only by the tempo,
// key and feature stages.
type Spectrogram struct {
	Power      [][]float64 // Time x Frequency power matrix, all values >= 0
	TimeFrames int         // Number of time frames
	FreqBins   int         // Number of frequency bins (windowSize/2 + 1)
	SampleRate int         // Sample rate of the analyzed signal
	WindowSize int         // FFT window size
	HopSize    int         // Hop size between frames
}

// FrameRate returns the number of spectrogram frames per second
func (s *Spectrogram) FrameRate() float64 {
	return float64(s.SampleRate) / float64(s.HopSize)
}

// STFT computes power spectrograms with centered framing
type STFT struct {
	fft *FFT
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// Compute computes the power spectrogram of a signal.
//
// The signal is zero-padded by windowSize/2 on both ends so the first and
// last frames are centered on the first and last samples. A signal shorter
// than windowSize still yields at least one full frame.
func (s *STFT) Compute(signal []float64, windowSize, hopSize, sampleRate int) (*Spectrogram, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}

	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	// Centered framing: half a window of zeros on each end
	padded := make([]float64, len(signal)+windowSize)
	copy(padded[windowSize/2:], signal)

	// Guarantee one full frame for very short signals
	if len(padded) < windowSize {
		grown := make([]float64, windowSize)
		copy(grown, padded)
		padded = grown
	}

	numFrames := (len(padded)-windowSize)/hopSize + 1
	freqBins := windowSize/2 + 1

	power := make([][]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		power[i] = make([]float64, freqBins)
	}

	window := NewHannWindow(windowSize)

	type frameJob struct {
		frameIdx int
		startIdx int
	}

	jobs := make(chan frameJob, numFrames)

	numWorkers := optimalWorkerCount(numFrames)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frameBuffer := make([]float64, windowSize)

			for job := range jobs {
				copy(frameBuffer, padded[job.startIdx:job.startIdx+windowSize])

				if err := window.ApplyInPlace(frameBuffer); err != nil {
					continue
				}

				fftResult := s.fft.Compute(frameBuffer)

				// Positive frequencies only, squared magnitude
				for i := 0; i < freqBins; i++ {
					mag := cmplx.Abs(fftResult[i])
					power[job.frameIdx][i] = mag * mag
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for frameIdx := 0; frameIdx < numFrames; frameIdx++ {
			jobs <- frameJob{
				frameIdx: frameIdx,
				startIdx: frameIdx * hopSize,
			}
		}
	}()

	wg.Wait()

	return &Spectrogram{
		Power:      power,
		TimeFrames: numFrames,
		FreqBins:   freqBins,
		SampleRate: sampleRate,
		WindowSize: windowSize,
		HopSize:    hopSize,
	}, nil
}

// optimalWorkerCount sizes the frame worker pool to the workload
func optimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
