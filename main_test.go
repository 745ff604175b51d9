package main

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidshrink/config"
	"vidshrink/encoder"
	"vidshrink/job"
	"vidshrink/media"
	"vidshrink/tui"
)

func TestPreviewExt(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"png", ".png"},
		{"", ".png"},
		{"PNG", ".png"},
		{"jpg", ".jpg"},
		{"jpeg", ".jpg"},
		{".webp", ".webp"},
	}
	for _, tc := range tests {
		got, err := previewExt(tc.format)
		require.NoError(t, err, tc.format)
		assert.Equal(t, tc.want, got, tc.format)
	}

	_, err := previewExt("gif")
	assert.ErrorIs(t, err, errPreviewFormat)
}

func TestChooseResolution(t *testing.T) {
	plan := job.Plan{
		Info:        media.VideoInfo{Width: 1920, Height: 1080},
		Resolutions: config.Available(1080),
	}

	res, err := chooseResolution(plan, config.Resolution{})
	require.NoError(t, err)
	assert.Equal(t, 720, res.Height)

	want, err := config.LookupResolution("360")
	require.NoError(t, err)
	res, err = chooseResolution(plan, want)
	require.NoError(t, err)
	assert.Equal(t, "360p", res.Label)

	up, err := config.LookupResolution("4k")
	require.NoError(t, err)
	_, err = chooseResolution(plan, up)
	assert.Error(t, err)

	_, err = chooseResolution(job.Plan{}, config.Resolution{})
	assert.ErrorIs(t, err, job.ErrNoResolutions)
}

func stubPlay(t *testing.T, err error) *[]string {
	t.Helper()
	var played []string
	orig := play
	play = func(path string) error {
		played = append(played, path)
		return err
	}
	t.Cleanup(func() { play = orig })
	return &played
}

func TestFinishInteractive_PlaysSavedFile(t *testing.T) {
	played := stubPlay(t, nil)
	m := tui.Model{State: tui.StateDone, SavedPath: "/videos/compressed_480p_clip.mp4"}

	code := finishInteractive(m, nil, "/videos/clip.mp4", options{play: true}, ".png")

	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"/videos/compressed_480p_clip.mp4"}, *played)
}

func TestFinishInteractive_PlayFlagOff(t *testing.T) {
	played := stubPlay(t, nil)
	m := tui.Model{State: tui.StateDone, SavedPath: "/videos/out.mp4"}

	assert.Equal(t, 0, finishInteractive(m, nil, "/videos/clip.mp4", options{}, ".png"))
	assert.Empty(t, *played)
}

func TestFinishInteractive_NothingSaved(t *testing.T) {
	played := stubPlay(t, nil)

	code := finishInteractive(tui.Model{State: tui.StateCancelled}, nil, "clip.mp4", options{play: true}, ".png")

	assert.Equal(t, 1, code)
	assert.Empty(t, *played)
}

func TestFinishInteractive_PlayErrorIsNotFatal(t *testing.T) {
	played := stubPlay(t, errors.New("no player"))
	m := tui.Model{State: tui.StateDone, SavedPath: "out.mp4"}

	assert.Equal(t, 0, finishInteractive(m, nil, "clip.mp4", options{play: true}, ".png"))
	assert.Len(t, *played, 1)
}

func TestWatchSignals_Interrupt(t *testing.T) {
	sigs := make(chan os.Signal, 1)
	sigs <- os.Interrupt
	cancel := encoder.NewSignal()

	watchSignals(sigs, make(chan struct{}), cancel, hclog.NewNullLogger())
	assert.True(t, cancel.IsSet())
}

func TestWatchSignals_ReturnsWhenDone(t *testing.T) {
	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	cancel := encoder.NewSignal()

	returned := make(chan struct{})
	go func() {
		watchSignals(sigs, done, cancel, hclog.NewNullLogger())
		close(returned)
	}()
	close(done)

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("watchSignals still blocked after done closed")
	}
	assert.False(t, cancel.IsSet())
}
