package media

import (
	"fmt"
	"image"
)

// VideoInfo is the probed size and length of a video
type VideoInfo struct {
	Width    int
	Height   int
	Duration float64 // seconds; 0 means progress cannot be computed
}

func (v VideoInfo) String() string {
	return fmt.Sprintf("%dx%d %.2fs", v.Width, v.Height, v.Duration)
}

// Prober reads VideoInfo and first frames through handles from its Opener
type Prober struct {
	open Opener
}

// NewProber creates a Prober. A nil opener uses NewOpener with default options.
func NewProber(open Opener) *Prober {
	if open == nil {
		open = NewOpener(CaptureOptions{})
	}
	return &Prober{open: open}
}

// Probe returns the video's width, height and duration, or false when the file cannot be opened.
// Values are taken as the container reports them; a corrupt file may yield zeros.
func (p *Prober) Probe(path string) (info VideoInfo, ok bool) {
	c := p.open(path)
	if c == nil {
		return VideoInfo{}, false
	}
	defer c.Release()

	if !c.IsOpened() {
		return VideoInfo{}, false
	}

	info.Width = nonNegative(int(c.Get(PropFrameWidth)))
	info.Height = nonNegative(int(c.Get(PropFrameHeight)))

	fps := c.Get(PropFPS)
	frames := c.Get(PropFrameCount)
	if fps > 0 && frames > 0 {
		info.Duration = frames / fps
	}
	return info, true
}

// ExtractFirstFrame decodes the first frame and returns it in RGB order, or false on failure
func (p *Prober) ExtractFirstFrame(path string) (image.Image, bool) {
	c := p.open(path)
	if c == nil {
		return nil, false
	}
	defer c.Release()

	frame, ok := c.Read()
	if !ok || !frame.Valid() {
		return nil, false
	}
	return BGRToRGBA(frame), true
}

// BGRToRGBA converts a blue-green-red frame to an opaque RGBA image
func BGRToRGBA(f Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for src, dst := 0, 0; src+2 < len(f.Pix) && dst+3 < len(img.Pix); src, dst = src+3, dst+4 {
		img.Pix[dst] = f.Pix[src+2]
		img.Pix[dst+1] = f.Pix[src+1]
		img.Pix[dst+2] = f.Pix[src]
		img.Pix[dst+3] = 0xff
	}
	return img
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
