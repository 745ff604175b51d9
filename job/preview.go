package job

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"vidshrink/media"
)

// ErrNoFrame is returned when a preview frame cannot be decoded
var ErrNoFrame = errors.New("no frame decoded")

// PreviewPaths are the files written by Previews; Output is empty when no output was given
type PreviewPaths struct {
	Input  string
	Output string
}

// Previews writes first-frame thumbnails of input and output into dir, fitted to
// the preview box. ext selects the image format (".png", ".jpg", ".webp").
// Both frames are extracted concurrently; an empty output skips its preview.
func (r *Runner) Previews(ctx context.Context, input, output, dir, ext string) (PreviewPaths, error) {
	if ext == "" {
		ext = ".png"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	var paths PreviewPaths
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := r.preview(ctx, input, filepath.Join(dir, "input"+ext))
		paths.Input = p
		return err
	})
	if output != "" {
		g.Go(func() error {
			p, err := r.preview(ctx, output, filepath.Join(dir, "output"+ext))
			paths.Output = p
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return PreviewPaths{}, err
	}
	return paths, nil
}

func (r *Runner) preview(ctx context.Context, video, dest string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img, ok := r.prober.ExtractFirstFrame(video)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoFrame, video)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := media.SavePreview(media.Fit(img, media.PreviewWidth, media.PreviewHeight), dest); err != nil {
		return "", err
	}
	r.logger.Debug("wrote preview", "video", video, "path", dest)
	return dest, nil
}
