package analysis

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/cratedig/cratedig/dsp"
)

// Krumhansl-Schmuckler key profiles: the empirical fit of each pitch class
// within a major or minor key, index 0 = tonic.
var (
	krumhanslMajor = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	krumhanslMinor = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Camelot wheel, indexed by pitch class
var (
	camelotMajor = [12]string{"8B", "3B", "10B", "5B", "12B", "7B", "2B", "9B", "4B", "11B", "6B", "1B"}
	camelotMinor = [12]string{"5A", "12A", "7A", "2A", "9A", "4A", "11A", "6A", "1A", "8A", "3A", "10A"}
)

// Open Key numbers, indexed by pitch class; suffix m = major, d = minor
var openKeyNumbers = [12]int{1, 8, 3, 10, 5, 12, 7, 2, 9, 4, 11, 6}

// KeyEstimator detects the musical key of a track from its chroma profile
// using Krumhansl-Schmuckler profile correlation.
//
// Tonic selection deliberately uses the raw chroma argmax rather than the
// rotation that maximized the profile correlation. The two can disagree;
// the correlation only decides major versus minor. This reproduces the
// behavior DJ users have calibrated against and is kept as-is.
type KeyEstimator struct {
	chroma *dsp.ChromaBank
}

// NewKeyEstimator creates a key estimator using the shared pitch-class bank
func NewKeyEstimator(chroma *dsp.ChromaBank) *KeyEstimator {
	return &KeyEstimator{chroma: chroma}
}

// Estimate detects the key from the first maxSeconds of a power
// spectrogram. Key is assumed stable over that window; 30 s is plenty.
func (ke *KeyEstimator) Estimate(spec *dsp.Spectrogram, maxSeconds float64) KeyResult {
	if spec == nil || spec.TimeFrames == 0 {
		return UnknownKey()
	}

	maxFrames := 0
	if maxSeconds > 0 {
		maxFrames = int(maxSeconds * spec.FrameRate())
	}

	return ke.FromChroma(ke.chroma.Vector(spec.Power, maxFrames))
}

// FromChroma detects the key from a 12-element chroma vector
func (ke *KeyEstimator) FromChroma(chromaVec []float64) KeyResult {
	if len(chromaVec) != 12 {
		return UnknownKey()
	}

	total := 0.0
	for _, v := range chromaVec {
		total += v
	}
	if total <= 0 {
		return UnknownKey()
	}

	normalized := make([]float64, 12)
	for i, v := range chromaVec {
		normalized[i] = v / (total + 1e-8)
	}

	majorProfile := normalizeProfile(krumhanslMajor)
	minorProfile := normalizeProfile(krumhanslMinor)

	// Score all 12 rotations against both profile families; the winning
	// family decides the mode
	bestMajor, bestMinor := -1.0, -1.0
	rotated := make([]float64, 12)
	for rot := 0; rot < 12; rot++ {
		for i := 0; i < 12; i++ {
			rotated[i] = normalized[(i+rot)%12]
		}
		if score := floats.Dot(rotated, majorProfile); score > bestMajor {
			bestMajor = score
		}
		if score := floats.Dot(rotated, minorProfile); score > bestMinor {
			bestMinor = score
		}
	}

	isMajor := bestMajor >= bestMinor

	// Tonic from raw chroma energy, not the best-correlated rotation
	tonic := floats.MaxIdx(chromaVec)

	return KeyResult{
		Notation:   notation(tonic, isMajor),
		Camelot:    Camelot(tonic, isMajor),
		OpenKey:    OpenKey(tonic, isMajor),
		Confidence: "medium",
	}
}

// UnknownKey is the fallback result when key detection fails
func UnknownKey() KeyResult {
	return KeyResult{
		Notation:   "Unknown",
		Camelot:    "N/A",
		OpenKey:    "N/A",
		Confidence: "none",
	}
}

func normalizeProfile(profile [12]float64) []float64 {
	total := 0.0
	for _, v := range profile {
		total += v
	}

	normalized := make([]float64, 12)
	for i, v := range profile {
		normalized[i] = v / total
	}
	return normalized
}

func notation(pitchClass int, isMajor bool) string {
	mode := "Minor"
	if isMajor {
		mode = "Major"
	}
	return fmt.Sprintf("%s %s", noteNames[pitchClass], mode)
}

// Camelot returns the Camelot wheel position for a pitch class and mode
func Camelot(pitchClass int, isMajor bool) string {
	if isMajor {
		return camelotMajor[pitchClass]
	}
	return camelotMinor[pitchClass]
}

// OpenKey returns the Open Key notation for a pitch class and mode
func OpenKey(pitchClass int, isMajor bool) string {
	suffix := "d"
	if isMajor {
		suffix = "m"
	}
	return fmt.Sprintf("%d%s", openKeyNumbers[pitchClass], suffix)
}

// CamelotOrder maps a Camelot string to its position on the wheel for
// sorting: 1A, 1B, 2A ... 12B. Unrecognized strings sort last.
func CamelotOrder(camelot string) int {
	const unknown = 1 << 30

	if len(camelot) < 2 {
		return unknown
	}

	letter := camelot[len(camelot)-1]
	if letter != 'A' && letter != 'B' {
		return unknown
	}

	number, err := strconv.Atoi(camelot[:len(camelot)-1])
	if err != nil || number < 1 || number > 12 {
		return unknown
	}

	order := (number - 1) * 2
	if letter == 'B' {
		order++
	}
	return order
}

// CamelotLess reports whether a sorts before b on the Camelot wheel
func CamelotLess(a, b string) bool {
	return CamelotOrder(a) < CamelotOrder(b)
}
