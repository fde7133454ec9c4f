package analysis

// KeyResult holds a detected musical key in the three notations DJ
// software uses. Notation and Camelot are always populated, falling back
// to sentinel strings when detection fails.
type KeyResult struct {
	Notation   string `json:"notation"`   // e.g. "C Major"
	Camelot    string `json:"camelot"`    // e.g. "8B"
	OpenKey    string `json:"open_key"`   // e.g. "1m"
	Confidence string `json:"confidence"` // "medium", or "none" on failure
}

// EnergyResult holds the perceptual energy of a full track
type EnergyResult struct {
	Level       int     `json:"level"` // 1-10
	RMS         float64 `json:"rms"`
	Description string  `json:"description"`
}

// Features is the 32-dimensional similarity descriptor: 20 MFCC plus
// 12 chroma values
type Features struct {
	MFCC   []float64 `json:"mfcc"`
	Chroma []float64 `json:"chroma"`
}

// Vector returns the concatenated 32-float feature vector, or nil when the
// features are malformed
func (f *Features) Vector() []float64 {
	if f == nil || len(f.MFCC) != NumMFCC || len(f.Chroma) != 12 {
		return nil
	}
	vec := make([]float64, 0, NumMFCC+12)
	vec = append(vec, f.MFCC...)
	vec = append(vec, f.Chroma...)
	return vec
}

// Metadata holds the textual tags of a track
type Metadata struct {
	Artist  string `json:"artist"`
	Title   string `json:"title"`
	Album   string `json:"album"`
	Genre   string `json:"genre"`
	Year    string `json:"year"`
	Comment string `json:"comment"`
}

// AudioInfo holds the technical file properties
type AudioInfo struct {
	Format     string  `json:"format"`
	Bitrate    int     `json:"bitrate"` // kbps
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	FileSizeMB float64 `json:"file_size_mb"`
}

// Result is the complete analysis of one track. It is created once per
// Analyze call, never mutated afterwards, and round-trips through JSON
// with full fidelity (missing BPM stays null).
type Result struct {
	FilePath  string       `json:"file_path"`
	Filename  string       `json:"filename"`
	BPM       *float64     `json:"bpm"`
	Key       KeyResult    `json:"key"`
	Energy    EnergyResult `json:"energy"`
	Metadata  Metadata     `json:"metadata"`
	AudioInfo AudioInfo    `json:"audio_info"`
	Duration  float64      `json:"duration"` // seconds
	Features  *Features    `json:"features"`
}

// FeatureVector returns the track's 32-float similarity vector, or nil
// when no usable features were computed
func (r *Result) FeatureVector() []float64 {
	return r.Features.Vector()
}
