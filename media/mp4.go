package media

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
)

var (
	errNotISOBMFF   = errors.New("not an ISO-BMFF file")
	errNoMoov       = errors.New("no moov box")
	errNoVideoTrack = errors.New("no video track")
	errIncomplete   = errors.New("video track lacks size or timing")
)

// top-level box types that can open an mp4/mov file
var leadingBoxes = map[string]bool{
	"ftyp": true,
	"moov": true,
	"mdat": true,
	"free": true,
	"skip": true,
	"wide": true,
}

// readMP4Props reads the first video track's metadata straight from the moov box.
// Fragmented files carry no sample table in moov and are left to ffprobe.
func readMP4Props(path string) (streamProps, error) {
	f, err := os.Open(path)
	if err != nil {
		return streamProps{}, err
	}
	defer f.Close()

	var header [8]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return streamProps{}, errNotISOBMFF
	}
	if !leadingBoxes[string(header[4:8])] {
		return streamProps{}, errNotISOBMFF
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return streamProps{}, err
	}

	parsed, err := mp4.DecodeFile(f, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return streamProps{}, fmt.Errorf("decode mp4: %w", err)
	}
	if parsed.Moov == nil {
		return streamProps{}, errNoMoov
	}
	return videoTrackProps(parsed.Moov)
}

func videoTrackProps(moov *mp4.MoovBox) (streamProps, error) {
	for _, trak := range moov.Traks {
		if trak == nil || trak.Mdia == nil || trak.Mdia.Hdlr == nil {
			continue
		}
		if trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}

		var p streamProps
		p.width, p.height = codedSize(trak)

		count := sampleCount(trak.Mdia)
		p.frameCount = float64(count)

		if mdhd := trak.Mdia.Mdhd; mdhd != nil && mdhd.Timescale > 0 && mdhd.Duration > 0 && count > 0 {
			p.fps = float64(count) * float64(mdhd.Timescale) / float64(mdhd.Duration)
		}

		if p.width <= 0 || p.height <= 0 || p.fps <= 0 {
			return streamProps{}, errIncomplete
		}
		return p, nil
	}
	return streamProps{}, errNoVideoTrack
}

// codedSize is the decoded frame size from the sample entry. tkhd carries the
// display size, which differs for anamorphic video, so it is only a fallback.
func codedSize(trak *mp4.TrakBox) (int, int) {
	if mdia := trak.Mdia; mdia.Minf != nil && mdia.Minf.Stbl != nil && mdia.Minf.Stbl.Stsd != nil {
		for _, child := range mdia.Minf.Stbl.Stsd.Children {
			if entry, ok := child.(*mp4.VisualSampleEntryBox); ok && entry.Width > 0 && entry.Height > 0 {
				return int(entry.Width), int(entry.Height)
			}
		}
	}
	if trak.Tkhd != nil {
		// 16.16 fixed point
		return int(uint32(trak.Tkhd.Width) >> 16), int(uint32(trak.Tkhd.Height) >> 16)
	}
	return 0, 0
}

func sampleCount(mdia *mp4.MdiaBox) uint64 {
	if mdia.Minf == nil || mdia.Minf.Stbl == nil {
		return 0
	}
	stbl := mdia.Minf.Stbl
	if stbl.Stsz != nil && stbl.Stsz.SampleNumber > 0 {
		return uint64(stbl.Stsz.SampleNumber)
	}
	var n uint64
	if stbl.Stts != nil {
		for _, c := range stbl.Stts.SampleCount {
			n += uint64(c)
		}
	}
	return n
}
