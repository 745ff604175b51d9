// Package media reads video metadata and first frames through a decoding handle.
//
// A Capture is opened per request and must be released on every exit path.
// The default handle reads container metadata with mp4ff for ISO-BMFF files and
// with ffprobe for everything else, and decodes frames with ffmpeg as raw bgr24.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Property identifies a numeric stream property of an opened capture
type Property int

const (
	PropFrameWidth Property = iota
	PropFrameHeight
	PropFPS
	PropFrameCount
)

// Frame is one decoded picture with 3 bytes per pixel in blue-green-red order
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// Valid reports whether Pix holds exactly Width*Height BGR pixels
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*3
}

// Capture is a decoding handle on a media file
type Capture interface {
	IsOpened() bool
	Get(prop Property) float64
	// Read decodes the next frame; ok is false when no frame is available
	Read() (frame Frame, ok bool)
	Release()
}

// Opener creates a Capture for a path. It always returns a handle, even when
// the file cannot be opened; callers check IsOpened and must still Release it.
type Opener func(path string) Capture

// streamProps is the metadata a capture needs from its container
type streamProps struct {
	width      int
	height     int
	fps        float64
	frameCount float64
}

// FFmpegCapture is the default Capture
type FFmpegCapture struct {
	path     string
	ffmpeg   string
	timeout  time.Duration
	props    streamProps
	opened   bool
	frames   int
	released bool
	mu       sync.Mutex
}

// CaptureOptions configures the default opener
type CaptureOptions struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
	Logger      hclog.Logger
}

// DefaultProbeTimeout bounds each metadata or frame subprocess
const DefaultProbeTimeout = 30 * time.Second

// NewOpener returns an Opener backed by mp4ff, ffprobe and ffmpeg
func NewOpener(opts CaptureOptions) Opener {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultProbeTimeout
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	return func(path string) Capture {
		c := &FFmpegCapture{path: path, ffmpeg: opts.FFmpegPath, timeout: opts.Timeout}

		props, err := readMP4Props(path)
		if err != nil {
			opts.Logger.Trace("mp4 metadata unavailable, trying ffprobe", "path", path, "error", err)
			props, err = readFFprobeProps(opts.FFprobePath, path, opts.Timeout)
		}
		if err != nil {
			opts.Logger.Debug("capture not opened", "path", path, "error", err)
			return c
		}
		opts.Logger.Trace("capture opened", "path", path, "stream", props.String())
		c.props = props
		c.opened = true
		return c
	}
}

// IsOpened reports whether the container exposed a video stream
func (c *FFmpegCapture) IsOpened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened && !c.released
}

// Get returns a stream property, or 0 when the capture is not opened
func (c *FFmpegCapture) Get(prop Property) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opened {
		return 0
	}
	switch prop {
	case PropFrameWidth:
		return float64(c.props.width)
	case PropFrameHeight:
		return float64(c.props.height)
	case PropFPS:
		return c.props.fps
	case PropFrameCount:
		return c.props.frameCount
	}
	return 0
}

// Read decodes the next frame. Only the first frame is supported; later reads report no frame.
func (c *FFmpegCapture) Read() (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opened || c.released || c.frames > 0 {
		return Frame{}, false
	}
	c.frames++

	w, h := c.props.width, c.props.height
	if w <= 0 || h <= 0 {
		return Frame{}, false
	}

	timeout := c.timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.ffmpeg, firstFrameArgs(c.path)...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return Frame{}, false
	}

	f := Frame{Width: w, Height: h, Pix: stdout.Bytes()}
	if !f.Valid() {
		return Frame{}, false
	}
	return f, true
}

// Release marks the handle closed. Safe to call more than once.
func (c *FFmpegCapture) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
}

// firstFrameArgs decodes a single frame as raw bgr24 on stdout
func firstFrameArgs(path string) []string {
	return []string{
		"-hide_banner",
		"-v", "error",
		"-noautorotate",
		"-i", path,
		"-map", "0:v:0",
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"pipe:1",
	}
}

func (p streamProps) String() string {
	return fmt.Sprintf("%dx%d fps=%s frames=%s", p.width, p.height,
		strconv.FormatFloat(p.fps, 'f', 3, 64), strconv.FormatFloat(p.frameCount, 'f', 0, 64))
}
