package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hashicorp/go-hclog"

	"vidshrink/config"
	"vidshrink/encoder"
	"vidshrink/job"
	"vidshrink/logging"
	"vidshrink/media"
	"vidshrink/tui"
)

// options are the parsed command-line flags
type options struct {
	height       string
	output       string
	headless     bool
	thumbsDir    string
	thumbsFormat string
	play         bool
	verbose      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.height, "height", "", "Target resolution: label (720p, 4k) or height (720). Default: highest below the source")
	listResolutions := flag.Bool("list-resolutions", false, "List all target resolutions and exit")
	flag.StringVar(&opts.output, "o", "", "Save the result to this path (default: compressed_<res>_<name>.mp4 next to the input)")
	flag.BoolVar(&opts.headless, "headless", false, "Run without the interactive UI")
	flag.StringVar(&opts.thumbsDir, "thumbs", "", "Write first-frame previews of input and output to this directory")
	flag.StringVar(&opts.thumbsFormat, "thumbs-format", "png", "Preview image format: png, jpg, webp")
	flag.BoolVar(&opts.play, "play", false, "Open the saved result in the system media player")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging (same as VIDSHRINK_LOG_LEVEL=debug)")

	flag.Usage = func() {
		fmt.Println("Usage: vidshrink [options] <input-file>")
		fmt.Println()
		fmt.Println("Downscales a video with ffmpeg (H.264/AAC in MP4).")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  VIDSHRINK_FFMPEG      ffmpeg binary (default: bundled, then PATH)")
		fmt.Println("  VIDSHRINK_FFPROBE     ffprobe binary (default: ffprobe)")
		fmt.Println("  VIDSHRINK_LOG_LEVEL   trace, debug, info, warn, error (default: info)")
		fmt.Println("  VIDSHRINK_TEMP_DIR    directory for in-progress encodes")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  vidshrink holiday.mov                          # Pick a resolution interactively")
		fmt.Println("  vidshrink -headless -height 720p holiday.mov   # Compress to 720p without the UI")
		fmt.Println("  vidshrink -headless -thumbs previews clip.mkv  # Also write preview images")
	}

	flag.Parse()

	if *listResolutions {
		fmt.Println("Available resolutions:")
		for _, r := range config.AllResolutions() {
			fmt.Printf("  %-12s %d lines\n", r.Label, r.Height)
		}
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}
	input := args[0]

	if _, err := os.Stat(input); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: Input file not found: %s\n", input)
		os.Exit(1)
	}

	ext, err := previewExt(opts.thumbsFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if opts.verbose && cfg.Level() > hclog.Debug {
		cfg.LogLevel = "debug"
	}

	var target config.Resolution
	if opts.height != "" {
		target, err = config.LookupResolution(opts.height)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintln(os.Stderr, "Run with -list-resolutions to see the choices")
			os.Exit(1)
		}
	}

	// The TUI owns the terminal, so its logs go to the viewport instead of stderr.
	var logs *logging.RingBuffer
	var logOut io.Writer = os.Stderr
	if !opts.headless {
		logs = logging.NewRingBuffer(logging.DefaultMaxLines)
		logOut = logs
	}
	logger := logging.New("vidshrink", cfg.Level(), logOut)

	runner := newRunner(cfg, logger)

	if opts.headless {
		os.Exit(runHeadless(runner, input, target, opts, ext, logger))
	}

	model := tui.NewModel(runner, tui.Options{
		Input:  input,
		Dest:   opts.output,
		Height: target.Height,
		Logs:   logs,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	m, ok := final.(tui.Model)
	if !ok {
		os.Exit(1)
	}
	os.Exit(finishInteractive(m, runner, input, opts, ext))
}

// play opens a saved file in the system player
var play = job.Play

// finishInteractive runs the post-save flags once the TUI has released the
// terminal and returns the process exit code
func finishInteractive(m tui.Model, runner *job.Runner, input string, opts options, ext string) int {
	if m.SavedPath != "" {
		fmt.Println("Saved", m.SavedPath)
		if opts.thumbsDir != "" {
			writePreviews(runner, input, m.SavedPath, opts.thumbsDir, ext)
		}
		if opts.play {
			if err := play(m.SavedPath); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
		}
	}
	if m.State != tui.StateDone {
		return 1
	}
	return 0
}

func newRunner(cfg *config.Config, logger hclog.Logger) *job.Runner {
	ffmpegPath, _ := encoder.Locate(cfg.FFmpegPath)
	prober := media.NewProber(media.NewOpener(media.CaptureOptions{
		FFmpegPath:  ffmpegPath,
		FFprobePath: cfg.FFprobePath,
		Logger:      logger.Named("media"),
	}))
	engine := encoder.New(cfg.Encoder, cfg.FFmpegPath, logger.Named("encoder"))
	return job.NewRunner(engine, prober, cfg.TempDir, logger.Named("job"))
}

func writePreviews(runner *job.Runner, input, output, dir, ext string) {
	paths, err := runner.Previews(context.Background(), input, output, dir, ext)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: previews: %v\n", err)
		return
	}
	fmt.Println("Preview", paths.Input)
	if paths.Output != "" {
		fmt.Println("Preview", paths.Output)
	}
}

var errPreviewFormat = errors.New("unsupported preview format")

// previewExt maps a -thumbs-format value to a file extension
func previewExt(format string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "png", "":
		return ".png", nil
	case "jpg", "jpeg":
		return ".jpg", nil
	case "webp":
		return ".webp", nil
	}
	return "", fmt.Errorf("%w: %q (use png, jpg or webp)", errPreviewFormat, format)
}
