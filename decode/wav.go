package decode

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// decodeWAV reads a WAV file natively with go-audio, bounded by
// maxDuration. Only used when the file's sample rate already matches the
// analysis rate, so no resampling is involved.
func (d *Decoder) decodeWAV(path string, maxDuration time.Duration) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file: %s", path)
	}

	channels := int(dec.NumChans)
	sampleRate := int(dec.SampleRate)
	scale := pcmScale(int(dec.BitDepth))

	maxFrames := -1
	if maxDuration > 0 {
		maxFrames = int(maxDuration.Seconds() * float64(sampleRate))
	}

	const blockFrames = 65536
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:   make([]int, blockFrames*channels),
	}

	var samples []float64
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return nil, fmt.Errorf("read wav pcm: %w", err)
		}
		if n == 0 {
			break
		}

		samples = append(samples, downmix(buf.Data[:n], channels, scale)...)

		if maxFrames > 0 && len(samples) >= maxFrames {
			samples = samples[:maxFrames]
			break
		}
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAudio, path)
	}

	return &Buffer{
		Samples:    samples,
		SampleRate: sampleRate,
	}, nil
}

// streamWAVBlocks iterates a WAV file in mono blocks of blockFrames frames
// without materializing more than one block
func (d *Decoder) streamWAVBlocks(path string, blockFrames int, fn func(block []float64) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return fmt.Errorf("invalid wav file: %s", path)
	}

	channels := int(dec.NumChans)
	scale := pcmScale(int(dec.BitDepth))

	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: channels, SampleRate: int(dec.SampleRate)},
		Data:   make([]int, blockFrames*channels),
	}

	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return fmt.Errorf("read wav pcm: %w", err)
		}
		if n == 0 {
			return nil
		}

		if err := fn(downmix(buf.Data[:n], channels, scale)); err != nil {
			return err
		}
	}
}

// downmix averages interleaved integer PCM channels into normalized mono
func downmix(data []int, channels int, scale float64) []float64 {
	if channels < 1 {
		channels = 1
	}

	frames := len(data) / channels
	mono := make([]float64, frames)

	for i := 0; i < frames; i++ {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			sum += float64(data[i*channels+ch])
		}
		mono[i] = sum / float64(channels) * scale
	}

	return mono
}

// pcmScale returns the factor that maps integer PCM to [-1, 1]
func pcmScale(bitDepth int) float64 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return 1.0 / float64(int64(1)<<(bitDepth-1))
}
