package analysis

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestResultJSONRoundTrip(t *testing.T) {
	bpm := 128.0
	original := &Result{
		FilePath: "/music/track.mp3",
		Filename: "track.mp3",
		BPM:      &bpm,
		Key: KeyResult{
			Notation:   "A Minor",
			Camelot:    "8A",
			OpenKey:    "4d",
			Confidence: "medium",
		},
		Energy: EnergyResult{Level: 7, RMS: 0.24, Description: "High"},
		Metadata: Metadata{
			Artist: "Test Artist",
			Title:  "Test Track",
			Genre:  "Techno",
			Year:   "2024",
		},
		AudioInfo: AudioInfo{
			Format:     "MP3",
			Bitrate:    320,
			SampleRate: 44100,
			Channels:   2,
			FileSizeMB: 9.54,
		},
		Duration: 372.5,
		Features: &Features{
			MFCC:   make([]float64, NumMFCC),
			Chroma: make([]float64, 12),
		},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.FilePath != original.FilePath || decoded.Filename != original.Filename {
		t.Errorf("paths differ: %+v", decoded)
	}
	if decoded.BPM == nil || *decoded.BPM != 128.0 {
		t.Errorf("BPM = %v, want 128.0", decoded.BPM)
	}
	if decoded.Key != original.Key {
		t.Errorf("Key = %+v, want %+v", decoded.Key, original.Key)
	}
	if decoded.Energy != original.Energy {
		t.Errorf("Energy = %+v, want %+v", decoded.Energy, original.Energy)
	}
	if decoded.Metadata != original.Metadata {
		t.Errorf("Metadata = %+v, want %+v", decoded.Metadata, original.Metadata)
	}
	if decoded.AudioInfo != original.AudioInfo {
		t.Errorf("AudioInfo = %+v, want %+v", decoded.AudioInfo, original.AudioInfo)
	}
	if decoded.Duration != original.Duration {
		t.Errorf("Duration = %v, want %v", decoded.Duration, original.Duration)
	}
	if len(decoded.FeatureVector()) != 32 {
		t.Errorf("feature vector has %d elements, want 32", len(decoded.FeatureVector()))
	}
}

func TestResultJSONNullBPM(t *testing.T) {
	result := &Result{
		FilePath: "/music/ambient.wav",
		Filename: "ambient.wav",
		Key:      UnknownKey(),
		Energy:   DefaultEnergy(),
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if !strings.Contains(string(data), `"bpm":null`) {
		t.Errorf("missing BPM must serialize as null: %s", data)
	}

	var decoded Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.BPM != nil {
		t.Errorf("BPM = %v, want nil", decoded.BPM)
	}
	if decoded.FeatureVector() != nil {
		t.Error("feature vector must be nil when no features were computed")
	}
}

func TestResultJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(&Result{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	for _, field := range []string{
		`"file_path"`, `"filename"`, `"bpm"`, `"key"`, `"energy"`,
		`"metadata"`, `"audio_info"`, `"duration"`, `"features"`,
	} {
		if !strings.Contains(string(data), field) {
			t.Errorf("serialized result missing %s: %s", field, data)
		}
	}
}
