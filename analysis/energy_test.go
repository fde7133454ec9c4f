package analysis

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cratedig/cratedig/decode"
)

func TestLevelForRMS(t *testing.T) {
	tests := []struct {
		rms  float64
		want int
	}{
		{0.0, 1},
		{0.04, 1},
		{0.05, 2},
		{0.07, 2},
		{0.10, 3},
		{0.13, 4},
		{0.16, 5},
		{0.19, 6},
		{0.22, 7},
		{0.25, 8},
		{0.29, 9},
		{0.30, 10},
		{0.35, 10},
		{1.0, 10},
	}

	for _, tt := range tests {
		if got := LevelForRMS(tt.rms); got != tt.want {
			t.Errorf("LevelForRMS(%v) = %d, want %d", tt.rms, got, tt.want)
		}
	}
}

func TestEnergyDescriptions(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{1, "Very Low"},
		{4, "Medium"},
		{5, "Medium"},
		{7, "High"},
		{10, "Peak Energy"},
	}

	for _, tt := range tests {
		if got := energyDescriptions[tt.level]; got != tt.want {
			t.Errorf("description[%d] = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestDefaultEnergy(t *testing.T) {
	e := DefaultEnergy()
	if e.Level != 5 || e.RMS != 0.0 || e.Description != "Unknown" {
		t.Errorf("unexpected default energy: %+v", e)
	}
}

func TestEnergyEstimateMissingFile(t *testing.T) {
	ee := NewEnergyEstimator(decode.NewDecoder(decode.DefaultConfig()))

	got := ee.Estimate(filepath.Join(t.TempDir(), "missing.wav"))
	if got != DefaultEnergy() {
		t.Errorf("got %+v, want default energy for missing file", got)
	}
}

// writeTestWAV writes a mono 16-bit WAV with a constant amplitude sine;
// RMS of a full-scale sine is amplitude/sqrt(2)
func writeTestWAV(t *testing.T, path string, amplitude float64, sampleRate, numSamples int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, numSamples),
	}
	for i := range buf.Data {
		v := amplitude * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))
		buf.Data[i] = int(v * 32767)
	}

	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

func TestEnergyEstimateWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeTestWAV(t, path, 0.2, 22050, 22050)

	ee := NewEnergyEstimator(decode.NewDecoder(decode.DefaultConfig()))
	got := ee.Estimate(path)

	// sine at amplitude 0.2 has RMS 0.1414, which is level 5
	if math.Abs(got.RMS-0.2/math.Sqrt2) > 0.01 {
		t.Errorf("RMS = %v, want ~%v", got.RMS, 0.2/math.Sqrt2)
	}
	if got.Level != 5 {
		t.Errorf("Level = %d, want 5", got.Level)
	}
	if got.Description != "Medium" {
		t.Errorf("Description = %q, want Medium", got.Description)
	}
}
