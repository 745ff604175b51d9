package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

func (p *probeResult) videoStream() *probeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "video" {
			return &p.Streams[i]
		}
	}
	return nil
}

func readFFprobeProps(ffprobe, path string, timeout time.Duration) (streamProps, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return streamProps{}, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseFFprobeJSON(output)
}

func parseFFprobeJSON(data []byte) (streamProps, error) {
	var probe probeResult
	if err := json.Unmarshal(data, &probe); err != nil {
		return streamProps{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	vs := probe.videoStream()
	if vs == nil {
		return streamProps{}, errNoVideoTrack
	}

	p := streamProps{width: vs.Width, height: vs.Height}

	// Prefer r_frame_rate (real frame rate) over avg_frame_rate
	p.fps = parseFrameRate(vs.RFrameRate)
	if p.fps <= 0 {
		p.fps = parseFrameRate(vs.AvgFrameRate)
	}

	if n, err := strconv.ParseInt(strings.TrimSpace(vs.NbFrames), 10, 64); err == nil && n > 0 {
		p.frameCount = float64(n)
		return p, nil
	}

	// No frame count in the container: estimate from duration
	duration := parseSeconds(vs.Duration)
	if duration <= 0 {
		duration = parseSeconds(probe.Format.Duration)
	}
	if duration > 0 && p.fps > 0 {
		p.frameCount = float64(int64(duration * p.fps))
	}
	return p, nil
}

// parseFrameRate handles fractional formats like "24000/1001" or "23.976"
func parseFrameRate(fpsStr string) float64 {
	fpsStr = strings.TrimSpace(fpsStr)
	if fpsStr == "" || fpsStr == "0/0" {
		return 0
	}
	if num, den, ok := strings.Cut(fpsStr, "/"); ok {
		n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err1 == nil && err2 == nil && d > 0 {
			return n / d
		}
		return 0
	}
	fps, _ := strconv.ParseFloat(fpsStr, 64)
	return fps
}

func parseSeconds(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
