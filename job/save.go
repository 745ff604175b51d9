package job

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"vidshrink/config"
)

// ErrNothingToSave is returned when an outcome has no temp output
var ErrNothingToSave = errors.New("no compressed output to save")

// DefaultSaveName is compressed_<tag>_<input base>.mp4, e.g. compressed_720p_holiday.mp4
func DefaultSaveName(input string, res config.Resolution) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return fmt.Sprintf("compressed_%s_%s%s", res.Tag(), base, config.DefaultExtension)
}

// DefaultSavePath places DefaultSaveName next to the input
func DefaultSavePath(input string, res config.Resolution) string {
	return filepath.Join(filepath.Dir(input), DefaultSaveName(input, res))
}

// Save copies the compressed temp file to dest and returns the path written.
// The container is always mp4, so any other extension on dest is replaced.
// Parent directories are created; mode and modification time are preserved.
func Save(tempPath, dest string) (string, error) {
	if tempPath == "" {
		return "", ErrNothingToSave
	}
	if ext := filepath.Ext(dest); !strings.EqualFold(ext, config.DefaultExtension) {
		dest = strings.TrimSuffix(dest, ext) + config.DefaultExtension
	}

	src, err := os.Open(tempPath)
	if err != nil {
		return "", fmt.Errorf("open compressed output: %w", err)
	}
	defer src.Close()

	st, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("stat compressed output: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create destination dir: %w", err)
	}

	dst, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, st.Mode().Perm())
	if err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("copy to %s: %w", dest, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", dest, err)
	}

	if err := os.Chmod(dest, st.Mode().Perm()); err != nil {
		return "", fmt.Errorf("chmod %s: %w", dest, err)
	}
	if err := os.Chtimes(dest, st.ModTime(), st.ModTime()); err != nil {
		return "", fmt.Errorf("chtimes %s: %w", dest, err)
	}
	return dest, nil
}

// Discard removes the outcome's temp output. Safe to call more than once.
func Discard(o *Outcome) error {
	if o == nil || o.TempPath == "" {
		return nil
	}
	err := os.Remove(o.TempPath)
	o.TempPath = ""
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove temp output: %w", err)
	}
	return nil
}

var startCommand = func(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// Play opens path in the system's default media player without waiting for it
func Play(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	name, args := playCommand(runtime.GOOS, path)
	if err := startCommand(name, args...); err != nil {
		return fmt.Errorf("launch %s: %w", name, err)
	}
	return nil
}

func playCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	default:
		return "xdg-open", []string{path}
	}
}
