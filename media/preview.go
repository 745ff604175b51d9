package media

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Preview box used for thumbnails
const (
	PreviewWidth  = 550
	PreviewHeight = 380
)

// Fit scales img down to fit inside w x h, keeping the aspect ratio. Smaller images are returned as is.
func Fit(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() <= w && b.Dy() <= h {
		return img
	}
	return imaging.Fit(img, w, h, imaging.Lanczos)
}

// SavePreview writes img to path, choosing the encoder from the extension.
// .webp is lossy WebP; every other extension goes through imaging (png, jpg, gif, bmp, tif).
func SavePreview(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create preview dir: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create preview: %w", err)
		}
		if err := webp.Encode(f, img, &webp.Options{Quality: 85}); err != nil {
			f.Close()
			return fmt.Errorf("encode webp: %w", err)
		}
		return f.Close()
	}

	if err := imaging.Save(img, path, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("save preview: %w", err)
	}
	return nil
}
