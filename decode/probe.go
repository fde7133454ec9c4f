package decode

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Info holds the technical properties of an audio file, read from the
// container header without decoding any audio
type Info struct {
	Format     string  `json:"format"`       // Container format, e.g. "MP3"
	Bitrate    int     `json:"bitrate"`      // kbps
	SampleRate int     `json:"sample_rate"`  // Hz
	Channels   int     `json:"channels"`     //
	Duration   float64 `json:"duration"`     // seconds
	FileSizeMB float64 `json:"file_size_mb"` //
	Tags       Tags    `json:"tags"`
}

// Tags holds the common textual metadata tags
type Tags struct {
	Artist  string `json:"artist"`
	Title   string `json:"title"`
	Album   string `json:"album"`
	Genre   string `json:"genre"`
	Year    string `json:"year"`
	Comment string `json:"comment"`
}

// Probe reads header metadata via ffprobe: sample rate, channel count,
// duration, bitrate and tags. No audio is decoded.
func (d *Decoder) Probe(path string) (*Info, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		"-select_streams", "a:0",
		path,
	}

	cmd := exec.Command(d.config.FFprobePath, args...)
	if d.config.Timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), d.config.Timeout)
		defer cancel()
		cmd = exec.CommandContext(ctx, d.config.FFprobePath, args...)
	}

	output, err := cmd.Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	info, err := parseProbeOutput(output)
	if err != nil {
		return nil, err
	}

	info.Format = formatFromPath(path)
	info.FileSizeMB = round2(float64(stat.Size()) / (1024.0 * 1024.0))

	return info, nil
}

// parseProbeOutput parses ffprobe JSON into an Info
func parseProbeOutput(jsonData []byte) (*Info, error) {
	var probe struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
			Duration   string `json:"duration"`
			BitRate    string `json:"bit_rate"`
		} `json:"streams"`
		Format struct {
			Duration string            `json:"duration"`
			BitRate  string            `json:"bit_rate"`
			Tags     map[string]string `json:"tags"`
		} `json:"format"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil {
		sampleRate = 44100
	}

	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	}

	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate, _ = strconv.Atoi(probe.Format.BitRate)
	}

	return &Info{
		Bitrate:    bitrate / 1000,
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Duration:   duration,
		Tags:       parseTags(probe.Format.Tags),
	}, nil
}

// parseTags extracts the common tags; ffprobe key casing varies by format
func parseTags(raw map[string]string) Tags {
	return Tags{
		Artist:  tagValue(raw, "artist"),
		Title:   tagValue(raw, "title"),
		Album:   tagValue(raw, "album"),
		Genre:   tagValue(raw, "genre"),
		Year:    tagValue(raw, "date", "year"),
		Comment: tagValue(raw, "comment"),
	}
}

func tagValue(raw map[string]string, names ...string) string {
	for _, name := range names {
		for k, v := range raw {
			if strings.EqualFold(k, name) {
				return v
			}
		}
	}
	return ""
}

// formatFromPath derives the display format from the file extension
func formatFromPath(path string) string {
	ext := filepath.Ext(path)
	return strings.ToUpper(strings.TrimPrefix(ext, "."))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
