package analysis

import (
	"math"
)

// LoopRegion is a bar-quantized loop inside a track, in seconds
type LoopRegion struct {
	In  float64 `json:"in"`
	Out float64 `json:"out"`
}

// SecondsPerBar returns the duration of one 4/4 bar at the given tempo
func SecondsPerBar(bpm float64) float64 {
	if bpm <= 0 {
		return 0
	}
	return 4.0 * 60.0 / bpm
}

// SnapLoopToBars builds a loop of the given number of 4/4 bars starting at
// the normalized position pos (0..1) in a track of the given duration.
// The loop-out point is clamped to the end of the track.
func SnapLoopToBars(bpm, duration, pos float64, bars int) LoopRegion {
	if duration <= 0 || bars <= 0 || bpm <= 0 {
		return LoopRegion{}
	}

	pos = math.Max(0, math.Min(1, pos))

	in := pos * duration
	out := in + float64(bars)*SecondsPerBar(bpm)
	out = math.Min(out, duration)

	return LoopRegion{In: in, Out: out}
}

// Normalized returns the loop bounds as 0..1 positions within the track
func (l LoopRegion) Normalized(duration float64) (in, out float64) {
	if duration <= 0 {
		return 0, 0
	}
	return l.In / duration, l.Out / duration
}

// WaveformPreview downsamples a PCM buffer by striding every
// len/numPoints samples, yielding approximately numPoints values (slightly
// more when the stride does not divide the length), peak-normalized to
// [-1, 1]. Display collaborators consume this; the analysis pipeline
// itself never does.
func WaveformPreview(samples []float64, numPoints int) []float64 {
	if len(samples) == 0 || numPoints <= 0 {
		return []float64{}
	}

	step := len(samples) / numPoints
	if step < 1 {
		step = 1
	}

	preview := make([]float64, 0, numPoints)
	for i := 0; i < len(samples); i += step {
		preview = append(preview, samples[i])
	}

	peak := 0.0
	for _, v := range preview {
		peak = math.Max(peak, math.Abs(v))
	}
	for i := range preview {
		preview[i] /= peak + 1e-8
	}

	return preview
}
