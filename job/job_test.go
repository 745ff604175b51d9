package job

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidshrink/config"
	"vidshrink/encoder"
	"vidshrink/media"
)

type fakeCompressor struct {
	ok       bool
	write    []byte
	cancel   bool
	progress []float64
	jobs     []encoder.Job
}

func (f *fakeCompressor) Compress(j encoder.Job, onProgress encoder.ProgressFunc, cancel *encoder.Signal) bool {
	f.jobs = append(f.jobs, j)
	if f.write != nil {
		_ = os.WriteFile(j.OutputPath, f.write, 0o644)
	}
	for _, p := range f.progress {
		if onProgress != nil {
			onProgress(p)
		}
	}
	if f.cancel {
		cancel.Set()
	}
	return f.ok
}

type fakeProber struct {
	infos  map[string]media.VideoInfo
	frames map[string]image.Image
}

func (f *fakeProber) Probe(path string) (media.VideoInfo, bool) {
	info, ok := f.infos[path]
	return info, ok
}

func (f *fakeProber) ExtractFirstFrame(path string) (image.Image, bool) {
	img, ok := f.frames[path]
	return img, ok
}

func writeInput(t *testing.T, size int) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "holiday.mov")
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o644))
	return p
}

func newRunner(t *testing.T, c Compressor, p Prober) (*Runner, string) {
	t.Helper()
	tmp := t.TempDir()
	return NewRunner(c, p, tmp, hclog.NewNullLogger()), tmp
}

func tempEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestPrepare(t *testing.T) {
	input := writeInput(t, 4096)
	prober := &fakeProber{infos: map[string]media.VideoInfo{
		input: {Width: 1280, Height: 720, Duration: 30},
	}}
	r, _ := newRunner(t, &fakeCompressor{}, prober)

	plan, err := r.Prepare(input)
	require.NoError(t, err)

	assert.True(t, plan.Probed)
	assert.Equal(t, int64(4096), plan.InputSize)
	assert.Equal(t, 720, plan.Info.Height)

	var heights []int
	for _, res := range plan.Resolutions {
		heights = append(heights, res.Height)
	}
	assert.Equal(t, []int{480, 360, 240, 144}, heights)

	def, ok := plan.Default()
	assert.True(t, ok)
	assert.Equal(t, 480, def.Height)
}

func TestPrepare_Unprobeable(t *testing.T) {
	r, _ := newRunner(t, &fakeCompressor{}, &fakeProber{})

	plan, err := r.Prepare(writeInput(t, 10))
	require.NoError(t, err)
	assert.False(t, plan.Probed)
	assert.Zero(t, plan.Info.Duration)
	assert.Equal(t, len(config.AllResolutions()), len(plan.Resolutions))

	def, ok := plan.Default()
	assert.True(t, ok)
	assert.Equal(t, 2160, def.Height)
}

func TestPrepare_Errors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		r, _ := newRunner(t, &fakeCompressor{}, &fakeProber{})
		_, err := r.Prepare(filepath.Join(t.TempDir(), "absent.mp4"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("directory", func(t *testing.T) {
		r, _ := newRunner(t, &fakeCompressor{}, &fakeProber{})
		_, err := r.Prepare(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("already smallest", func(t *testing.T) {
		input := writeInput(t, 10)
		r, _ := newRunner(t, &fakeCompressor{}, &fakeProber{infos: map[string]media.VideoInfo{
			input: {Width: 256, Height: 144},
		}})
		plan, err := r.Prepare(input)
		assert.ErrorIs(t, err, ErrNoResolutions)
		_, ok := plan.Default()
		assert.False(t, ok)
	})
}

func TestRun_Done(t *testing.T) {
	input := writeInput(t, 1000)
	comp := &fakeCompressor{ok: true, write: make([]byte, 250), progress: []float64{0.5, 1}}
	prober := &fakeProber{infos: map[string]media.VideoInfo{input: {Width: 1920, Height: 1080, Duration: 12}}}
	r, tmpDir := newRunner(t, comp, prober)

	plan, err := r.Prepare(input)
	require.NoError(t, err)
	res, _ := config.LookupResolution("720p")

	var got []float64
	out := r.Run(plan, res, func(f float64) { got = append(got, f) }, encoder.NewSignal())

	assert.Equal(t, StatusDone, out.Status)
	assert.Equal(t, []float64{0.5, 1}, got)
	assert.Equal(t, int64(1000), out.InputSize)
	assert.Equal(t, int64(250), out.OutputSize)
	assert.InDelta(t, 0.25, out.Ratio(), 1e-9)
	assert.NotEmpty(t, out.JobID)
	assert.Equal(t, tmpDir, filepath.Dir(out.TempPath))
	assert.Equal(t, ".mp4", filepath.Ext(out.TempPath))
	assert.FileExists(t, out.TempPath)

	require.Len(t, comp.jobs, 1)
	assert.Equal(t, 720, comp.jobs[0].TargetHeight)
	assert.Equal(t, 12.0, comp.jobs[0].TotalDuration)
	assert.Equal(t, out.TempPath, comp.jobs[0].OutputPath)

	require.NoError(t, Discard(&out))
	assert.Empty(t, out.TempPath)
	assert.Empty(t, tempEntries(t, tmpDir))
	assert.NoError(t, Discard(&out))
}

func TestRun_FailedRemovesTemp(t *testing.T) {
	input := writeInput(t, 10)
	comp := &fakeCompressor{ok: false, write: []byte("partial")}
	r, tmpDir := newRunner(t, comp, &fakeProber{})

	out := r.Run(Plan{Input: input, InputSize: 10}, config.Resolution{Label: "480p", Height: 480}, nil, encoder.NewSignal())

	assert.Equal(t, StatusFailed, out.Status)
	assert.Error(t, out.Err)
	assert.Empty(t, out.TempPath)
	assert.Empty(t, tempEntries(t, tmpDir))
	assert.Contains(t, out.Summary(), "failed")
}

func TestRun_CancelledRemovesTemp(t *testing.T) {
	input := writeInput(t, 10)
	comp := &fakeCompressor{ok: false, cancel: true, write: []byte("partial")}
	r, tmpDir := newRunner(t, comp, &fakeProber{})

	out := r.Run(Plan{Input: input}, config.Resolution{Label: "480p", Height: 480}, nil, encoder.NewSignal())

	assert.Equal(t, StatusCancelled, out.Status)
	assert.NoError(t, out.Err)
	assert.Empty(t, tempEntries(t, tmpDir))
	assert.Equal(t, "compression cancelled", out.Summary())
}

func TestRun_BadTempDir(t *testing.T) {
	comp := &fakeCompressor{ok: true}
	r := NewRunner(comp, &fakeProber{}, filepath.Join(t.TempDir(), "missing"), nil)

	out := r.Run(Plan{Input: "in.mp4"}, config.Resolution{Height: 480}, nil, nil)

	assert.Equal(t, StatusFailed, out.Status)
	assert.Error(t, out.Err)
	assert.Empty(t, comp.jobs)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "done", StatusDone.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "cancelled", StatusCancelled.String())
	assert.Equal(t, "unknown", Status(42).String())
}

func TestOutcomeRatio_Unknown(t *testing.T) {
	assert.Zero(t, Outcome{OutputSize: 10}.Ratio())
	assert.Zero(t, Outcome{InputSize: 10}.Ratio())
}

func TestDefaultSaveName(t *testing.T) {
	res4k, err := config.LookupResolution("4k")
	require.NoError(t, err)

	tests := []struct {
		input string
		res   config.Resolution
		want  string
	}{
		{"/videos/holiday.mov", config.Resolution{Label: "720p", Height: 720}, "compressed_720p_holiday.mp4"},
		{"clip.final.mkv", config.Resolution{Label: "480p", Height: 480}, "compressed_480p_clip.final.mp4"},
		{"noext", config.Resolution{Label: "144p", Height: 144}, "compressed_144p_noext.mp4"},
		{"big.mp4", res4k, "compressed_2160p_big.mp4"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, DefaultSaveName(tc.input, tc.res), tc.input)
	}

	assert.Equal(t,
		filepath.Join("/videos", "compressed_720p_holiday.mp4"),
		DefaultSavePath("/videos/holiday.mov", config.Resolution{Label: "720p", Height: 720}),
	)
}

func TestSave(t *testing.T) {
	src := filepath.Join(t.TempDir(), "vidshrink-1.mp4")
	require.NoError(t, os.WriteFile(src, []byte("encoded"), 0o640))
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, mtime, mtime))

	dest := filepath.Join(t.TempDir(), "nested", "dir", "out.mkv")
	written, err := Save(src, dest)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(filepath.Dir(dest), "out.mp4"), written)
	data, err := os.ReadFile(written)
	require.NoError(t, err)
	assert.Equal(t, "encoded", string(data))

	st, err := os.Stat(written)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), st.Mode().Perm())
	assert.True(t, st.ModTime().Equal(mtime))

	assert.FileExists(t, src)
}

func TestSave_Errors(t *testing.T) {
	_, err := Save("", "out.mp4")
	assert.ErrorIs(t, err, ErrNothingToSave)

	_, err = Save(filepath.Join(t.TempDir(), "gone.mp4"), filepath.Join(t.TempDir(), "out.mp4"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPlayCommand(t *testing.T) {
	name, args := playCommand("linux", "/tmp/a.mp4")
	assert.Equal(t, "xdg-open", name)
	assert.Equal(t, []string{"/tmp/a.mp4"}, args)

	name, args = playCommand("darwin", "/tmp/a.mp4")
	assert.Equal(t, "open", name)
	assert.Equal(t, []string{"/tmp/a.mp4"}, args)

	name, args = playCommand("windows", `C:\a.mp4`)
	assert.Equal(t, "cmd", name)
	assert.Equal(t, []string{"/c", "start", "", `C:\a.mp4`}, args)
}

func TestPlay(t *testing.T) {
	orig := startCommand
	t.Cleanup(func() { startCommand = orig })

	var gotName string
	var gotArgs []string
	startCommand = func(name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	}

	p := writeInput(t, 1)
	require.NoError(t, Play(p))
	assert.NotEmpty(t, gotName)
	assert.Contains(t, gotArgs, p)

	startCommand = func(string, ...string) error { return errors.New("no player") }
	assert.Error(t, Play(p))

	assert.ErrorIs(t, Play(filepath.Join(t.TempDir(), "absent.mp4")), os.ErrNotExist)
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPreviews(t *testing.T) {
	prober := &fakeProber{frames: map[string]image.Image{
		"in.mp4":  solid(1920, 1080, color.RGBA{R: 200, A: 255}),
		"out.mp4": solid(320, 180, color.RGBA{B: 200, A: 255}),
	}}
	r, _ := newRunner(t, &fakeCompressor{}, prober)
	dir := t.TempDir()

	paths, err := r.Previews(context.Background(), "in.mp4", "out.mp4", dir, "png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "input.png"), paths.Input)
	assert.Equal(t, filepath.Join(dir, "output.png"), paths.Output)

	in, err := imaging.Open(paths.Input)
	require.NoError(t, err)
	assert.Equal(t, media.PreviewWidth, in.Bounds().Dx())
	assert.LessOrEqual(t, in.Bounds().Dy(), media.PreviewHeight)

	out, err := imaging.Open(paths.Output)
	require.NoError(t, err)
	assert.Equal(t, 320, out.Bounds().Dx())
	assert.Equal(t, 180, out.Bounds().Dy())
}

func TestPreviews_InputOnly(t *testing.T) {
	prober := &fakeProber{frames: map[string]image.Image{"in.mp4": solid(10, 10, color.White)}}
	r, _ := newRunner(t, &fakeCompressor{}, prober)

	paths, err := r.Previews(context.Background(), "in.mp4", "", t.TempDir(), ".jpg")
	require.NoError(t, err)
	assert.FileExists(t, paths.Input)
	assert.Empty(t, paths.Output)
}

func TestPreviews_NoFrame(t *testing.T) {
	prober := &fakeProber{frames: map[string]image.Image{"in.mp4": solid(10, 10, color.White)}}
	r, _ := newRunner(t, &fakeCompressor{}, prober)

	_, err := r.Previews(context.Background(), "in.mp4", "broken.mp4", t.TempDir(), ".png")
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestPreviews_CancelledContext(t *testing.T) {
	prober := &fakeProber{frames: map[string]image.Image{"in.mp4": solid(10, 10, color.White)}}
	r, _ := newRunner(t, &fakeCompressor{}, prober)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Previews(ctx, "in.mp4", "", t.TempDir(), ".png")
	assert.ErrorIs(t, err, context.Canceled)
}
