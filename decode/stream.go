package decode

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// DefaultBlockFrames is the block size used for full-file streaming reads
const DefaultBlockFrames = 65536

// StreamBlocks reads the entire file in mono blocks of blockFrames frames,
// calling fn for each block. Memory stays bounded by one block regardless
// of file length; this is the code path behind full-track energy, which
// must see the whole file while tempo and key only need an excerpt.
//
// WAV files stream natively; other formats stream through FFmpeg at their
// native sample rate (RMS is rate-independent, so no resampling).
func (d *Decoder) StreamBlocks(path string, blockFrames int, fn func(block []float64) error) error {
	if blockFrames <= 0 {
		blockFrames = DefaultBlockFrames
	}

	if isWAV(path) {
		delivered := false
		var fnErr error
		err := d.streamWAVBlocks(path, blockFrames, func(block []float64) error {
			if err := fn(block); err != nil {
				fnErr = err
				return err
			}
			delivered = true
			return nil
		})
		if err == nil {
			return nil
		}
		// FFmpeg only gets a try when nothing has been delivered and the
		// failure is the WAV decode's own, not the callback's. Re-streaming
		// after delivery would feed fn the same frames twice.
		if fnErr != nil || delivered {
			return err
		}
	}

	return d.streamFFmpegBlocks(path, blockFrames, fn)
}

// streamFFmpegBlocks pipes mono float64 PCM out of FFmpeg and hands it to
// fn one block at a time
func (d *Decoder) streamFFmpegBlocks(path string, blockFrames int, fn func(block []float64) error) error {
	args := []string{
		"-i", path,
		"-vn",
		"-f", "f64le",
		"-ac", "1",
		"-v", "error",
		"pipe:1",
	}

	cmd := exec.Command(d.config.FFmpegPath, args...)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: ffmpeg start: %v", ErrNoAudio, err)
	}

	raw := make([]byte, blockFrames*8)
	streamed := false

	for {
		n, readErr := io.ReadFull(stdout, raw)
		if n > 0 {
			block := bytesToFloat64(raw[:n])
			if len(block) > 0 {
				streamed = true
				if err := fn(block); err != nil {
					_ = cmd.Process.Kill()
					_ = cmd.Wait()
					return err
				}
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return fmt.Errorf("ffmpeg read: %w", readErr)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%w: ffmpeg: %v, stderr: %s", ErrNoAudio, err, stderr.String())
	}

	if !streamed {
		return fmt.Errorf("%w: %s", ErrEmptyAudio, path)
	}

	return nil
}
