package encoder

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// FallbackBinary is resolved through PATH when no bundled ffmpeg is found
const FallbackBinary = "ffmpeg"

// Binary source reported by Locate
const (
	SourceOverride = "override"
	SourceBundled  = "bundled"
	SourcePath     = "path"
)

// Locate picks the ffmpeg executable: the override when it exists as a file or
// on PATH, then a binary bundled next to this executable (./ffmpeg or
// ./bin/ffmpeg), then the bare name for PATH lookup at exec time. It never
// fails; the last resort is FallbackBinary.
func Locate(override string) (path, source string) {
	exeDir := ""
	if exe, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exe)
	}
	return locateIn(override, exeDir, runtime.GOOS)
}

func locateIn(override, exeDir, goos string) (string, string) {
	if override != "" {
		if isFile(override) {
			return override, SourceOverride
		}
		if p, err := exec.LookPath(override); err == nil {
			return p, SourceOverride
		}
	}

	name := FallbackBinary
	if goos == "windows" {
		name += ".exe"
	}
	if exeDir != "" {
		for _, candidate := range []string{
			filepath.Join(exeDir, name),
			filepath.Join(exeDir, "bin", name),
		} {
			if isFile(candidate) {
				return candidate, SourceBundled
			}
		}
	}
	return FallbackBinary, SourcePath
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
