package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Common errors.
var (
	ErrUnknownResolution = errors.New("unknown resolution")
	ErrInvalidLogLevel   = errors.New("invalid log level")
	ErrInvalidTempDir    = errors.New("temp dir is not a directory")
)

// Encoder holds the fixed encoding settings passed to ffmpeg
type Encoder struct {
	// VideoCodec is the ffmpeg video encoder name
	VideoCodec string
	// CRF is the Constant Rate Factor (0-51 for x264, lower = better quality)
	CRF int
	// Preset trades encoding speed against compression efficiency
	Preset string
	// AudioCodec is the ffmpeg audio encoder name
	AudioCodec string
	// Extension is the output container extension, including the dot
	Extension string
}

// Default encoder values. The container and codecs are not user-selectable.
const (
	DefaultVideoCodec = "libx264"
	DefaultCRF        = 23
	DefaultPreset     = "medium"
	DefaultAudioCodec = "aac"
	DefaultExtension  = ".mp4"
	DefaultLogLevel   = "info"
)

// DefaultEncoder returns the one supported encoder configuration
func DefaultEncoder() Encoder {
	return Encoder{
		VideoCodec: DefaultVideoCodec,
		CRF:        DefaultCRF,
		Preset:     DefaultPreset,
		AudioCodec: DefaultAudioCodec,
		Extension:  DefaultExtension,
	}
}

// Resolution is a named target output height
type Resolution struct {
	Label  string
	Height int
}

// Tag returns the first word of the label ("2160p (4K)" -> "2160p")
func (r Resolution) Tag() string {
	if i := strings.IndexByte(r.Label, ' '); i > 0 {
		return r.Label[:i]
	}
	return r.Label
}

func (r Resolution) String() string {
	return r.Label
}

var resolutions = []Resolution{
	{Label: "144p", Height: 144},
	{Label: "240p", Height: 240},
	{Label: "360p", Height: 360},
	{Label: "480p", Height: 480},
	{Label: "720p", Height: 720},
	{Label: "1080p", Height: 1080},
	{Label: "1440p", Height: 1440},
	{Label: "2160p (4K)", Height: 2160},
}

// AllResolutions returns every known resolution, lowest first
func AllResolutions() []Resolution {
	out := make([]Resolution, len(resolutions))
	copy(out, resolutions)
	return out
}

// Available returns the resolutions strictly lower than sourceHeight, highest first.
// A sourceHeight <= 0 means the source could not be probed and every resolution is offered.
func Available(sourceHeight int) []Resolution {
	var out []Resolution
	for _, r := range resolutions {
		if sourceHeight <= 0 || r.Height < sourceHeight {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Height > out[j].Height })
	return out
}

// LookupResolution finds a resolution by label ("720p", "2160p (4K)", "4k") or bare height ("720")
func LookupResolution(s string) (Resolution, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return Resolution{}, fmt.Errorf("%w: empty", ErrUnknownResolution)
	}
	if key == "4k" {
		key = "2160p"
	}
	for _, r := range resolutions {
		if strings.ToLower(r.Label) == key || strings.ToLower(r.Tag()) == key {
			return r, nil
		}
	}
	if h, err := strconv.Atoi(key); err == nil {
		for _, r := range resolutions {
			if r.Height == h {
				return r, nil
			}
		}
	}
	return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownResolution, s)
}

// Config holds the runtime settings read from the environment
type Config struct {
	// FFmpegPath overrides encoder discovery when set
	FFmpegPath string
	// FFprobePath is the probe binary used for non-MP4 containers
	FFprobePath string
	// LogLevel is an hclog level name
	LogLevel string
	// TempDir receives in-progress encodes; empty means os.TempDir()
	TempDir string
	// Encoder is fixed; see DefaultEncoder
	Encoder Encoder
}

// Load reads the configuration from VIDSHRINK_* environment variables
func Load() (*Config, error) {
	cfg := &Config{
		FFmpegPath:  os.Getenv("VIDSHRINK_FFMPEG"),
		FFprobePath: getEnv("VIDSHRINK_FFPROBE", "ffprobe"),
		LogLevel:    getEnv("VIDSHRINK_LOG_LEVEL", DefaultLogLevel),
		TempDir:     os.Getenv("VIDSHRINK_TEMP_DIR"),
		Encoder:     DefaultEncoder(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and normalizes values.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}

	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}

	if c.TempDir != "" {
		info, err := os.Stat(c.TempDir)
		if err != nil {
			return fmt.Errorf("temp dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrInvalidTempDir, c.TempDir)
		}
	}

	if c.Encoder == (Encoder{}) {
		c.Encoder = DefaultEncoder()
	}
	return nil
}

// Level returns the parsed hclog level
func (c *Config) Level() hclog.Level {
	return hclog.LevelFromString(c.LogLevel)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
