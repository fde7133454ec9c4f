package decode

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV writes an n-channel 16-bit WAV; every channel carries the same
// constant value so the mono downmix is exactly that value
func writeWAV(t *testing.T, path string, sampleRate, channels, frames int, value float64) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, frames*channels),
	}
	for i := range buf.Data {
		buf.Data[i] = int(value * 32768)
	}

	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

func TestDecodeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 22050, 1, 22050, 0.25)

	d := NewDecoder(DefaultConfig())
	buf, err := d.decodeWAV(path, 0)
	if err != nil {
		t.Fatalf("decodeWAV failed: %v", err)
	}

	if buf.SampleRate != 22050 {
		t.Errorf("SampleRate = %d, want 22050", buf.SampleRate)
	}
	if len(buf.Samples) != 22050 {
		t.Errorf("got %d samples, want 22050", len(buf.Samples))
	}
	if math.Abs(buf.Duration()-1.0) > 1e-9 {
		t.Errorf("Duration = %v, want 1.0", buf.Duration())
	}
	for i, s := range buf.Samples {
		if math.Abs(s-0.25) > 1e-3 {
			t.Fatalf("sample %d = %v, want ~0.25", i, s)
		}
	}
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeWAV(t, path, 22050, 2, 4410, 0.5)

	d := NewDecoder(DefaultConfig())
	buf, err := d.decodeWAV(path, 0)
	if err != nil {
		t.Fatalf("decodeWAV failed: %v", err)
	}

	// stereo frames collapse to mono, frame count preserved
	if len(buf.Samples) != 4410 {
		t.Errorf("got %d samples, want 4410", len(buf.Samples))
	}
	for i, s := range buf.Samples {
		if math.Abs(s-0.5) > 1e-3 {
			t.Fatalf("sample %d = %v, want ~0.5", i, s)
		}
	}
}

func TestDecodeWAVMaxDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.wav")
	writeWAV(t, path, 22050, 1, 44100, 0.1)

	d := NewDecoder(DefaultConfig())
	buf, err := d.decodeWAV(path, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("decodeWAV failed: %v", err)
	}

	if len(buf.Samples) != 11025 {
		t.Errorf("got %d samples, want truncated to 11025", len(buf.Samples))
	}
}

func TestDecodeWAVInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.wav")
	if err := os.WriteFile(path, []byte("not a wav at all"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	d := NewDecoder(DefaultConfig())
	if _, err := d.decodeWAV(path, 0); err == nil {
		t.Error("expected error for invalid wav")
	}
}

func TestStreamWAVBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 22050, 1, 100000, 0.3)

	d := NewDecoder(DefaultConfig())

	totalFrames := 0
	blocks := 0
	err := d.streamWAVBlocks(path, 30000, func(block []float64) error {
		totalFrames += len(block)
		blocks++
		if len(block) > 30000 {
			t.Errorf("block of %d frames exceeds requested size", len(block))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("streamWAVBlocks failed: %v", err)
	}

	if totalFrames != 100000 {
		t.Errorf("streamed %d frames, want 100000", totalFrames)
	}
	if blocks < 4 {
		t.Errorf("got %d blocks, want at least 4", blocks)
	}
}

func TestStreamWAVBlocksCallbackError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 22050, 1, 100000, 0.3)

	d := NewDecoder(DefaultConfig())

	calls := 0
	err := d.streamWAVBlocks(path, 30000, func(block []float64) error {
		calls++
		return os.ErrClosed
	})
	if err == nil {
		t.Fatal("expected callback error to propagate")
	}
	if calls != 1 {
		t.Errorf("callback ran %d times after error, want 1", calls)
	}
}

func TestDownmix(t *testing.T) {
	scale := pcmScale(16)

	mono := downmix([]int{16384, -16384, 0, 32767}, 1, scale)
	want := []float64{0.5, -0.5, 0, 32767.0 / 32768.0}
	for i := range mono {
		if math.Abs(mono[i]-want[i]) > 1e-9 {
			t.Errorf("mono[%d] = %v, want %v", i, mono[i], want[i])
		}
	}

	stereo := downmix([]int{16384, 0, -8192, 8192}, 2, scale)
	if len(stereo) != 2 {
		t.Fatalf("got %d frames, want 2", len(stereo))
	}
	if math.Abs(stereo[0]-0.25) > 1e-9 {
		t.Errorf("stereo[0] = %v, want 0.25", stereo[0])
	}
	if math.Abs(stereo[1]) > 1e-9 {
		t.Errorf("stereo[1] = %v, want 0", stereo[1])
	}
}

func TestPCMScale(t *testing.T) {
	if got := pcmScale(16); got != 1.0/32768.0 {
		t.Errorf("pcmScale(16) = %v", got)
	}
	if got := pcmScale(24); got != 1.0/8388608.0 {
		t.Errorf("pcmScale(24) = %v", got)
	}
	// unknown depth defaults to 16-bit scaling
	if got := pcmScale(0); got != 1.0/32768.0 {
		t.Errorf("pcmScale(0) = %v", got)
	}
}

func TestIsWAV(t *testing.T) {
	for _, path := range []string{"a.wav", "A.WAV", "b.wave"} {
		if !isWAV(path) {
			t.Errorf("isWAV(%q) = false", path)
		}
	}
	for _, path := range []string{"a.mp3", "wav.mp3", "a.wav.flac"} {
		if isWAV(path) {
			t.Errorf("isWAV(%q) = true", path)
		}
	}
}

func TestBytesToFloat64(t *testing.T) {
	// little-endian float64 1.5 followed by -2.0
	data := make([]byte, 16)
	putFloat64LE(data[0:8], 1.5)
	putFloat64LE(data[8:16], -2.0)

	samples := bytesToFloat64(data)
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if samples[0] != 1.5 || samples[1] != -2.0 {
		t.Errorf("samples = %v, want [1.5 -2]", samples)
	}

	// trailing partial sample is dropped
	if got := bytesToFloat64(data[:12]); len(got) != 1 {
		t.Errorf("got %d samples for truncated input, want 1", len(got))
	}
}

func putFloat64LE(b []byte, v float64) {
	bits := math.Float64bits(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(bits >> (8 * i))
	}
}
