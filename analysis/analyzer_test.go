package analysis

import (
	"math"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}
}

func TestAnalyzeWAV(t *testing.T) {
	requireFFmpeg(t)

	path := filepath.Join(t.TempDir(), "tone.wav")
	writeTestWAV(t, path, 0.3, 22050, 2*22050)

	result, err := NewAnalyzer().Analyze(path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.Filename != "tone.wav" {
		t.Errorf("Filename = %q, want tone.wav", result.Filename)
	}
	if !filepath.IsAbs(result.FilePath) {
		t.Errorf("FilePath = %q, want absolute", result.FilePath)
	}
	if math.Abs(result.Duration-2.0) > 0.1 {
		t.Errorf("Duration = %v, want ~2.0", result.Duration)
	}

	// a steady 440 Hz tone is an A; tempo may legitimately fail on it
	if !strings.HasPrefix(result.Key.Notation, "A") {
		t.Errorf("Key = %q, want A major or minor", result.Key.Notation)
	}
	if result.Key.Camelot == "N/A" {
		t.Errorf("Camelot = %q, want a wheel position", result.Key.Camelot)
	}

	if result.Features == nil {
		t.Fatal("no features computed")
	}
	if len(result.FeatureVector()) != 32 {
		t.Errorf("feature vector has %d elements, want 32", len(result.FeatureVector()))
	}

	// sine at 0.3 has RMS ~0.212, level 7
	if result.Energy.Level != 7 {
		t.Errorf("Energy.Level = %d, want 7", result.Energy.Level)
	}

	if result.AudioInfo.SampleRate != 22050 {
		t.Errorf("AudioInfo.SampleRate = %d, want 22050", result.AudioInfo.SampleRate)
	}
	if result.AudioInfo.Format != "WAV" {
		t.Errorf("AudioInfo.Format = %q, want WAV", result.AudioInfo.Format)
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	if _, err := NewAnalyzer().Analyze(filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Error("expected error for missing file")
	}
}
