// Package job owns the lifecycle around one compression: probing the input,
// allocating and cleaning up the temporary output, and saving the result.
package job

import (
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"

	"vidshrink/config"
	"vidshrink/encoder"
	"vidshrink/media"
)

// ErrNoResolutions is returned by Prepare when the source is already at the smallest size
var ErrNoResolutions = errors.New("no lower resolution available")

// Compressor runs one encode; *encoder.Engine satisfies it
type Compressor interface {
	Compress(job encoder.Job, onProgress encoder.ProgressFunc, cancel *encoder.Signal) bool
}

// Prober reads metadata and first frames; *media.Prober satisfies it
type Prober interface {
	Probe(path string) (media.VideoInfo, bool)
	ExtractFirstFrame(path string) (image.Image, bool)
}

// Status is the terminal state of a Run
type Status int

const (
	StatusDone Status = iota
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Plan is the probed input and the resolutions it may be compressed to
type Plan struct {
	Input       string
	InputSize   int64
	Info        media.VideoInfo
	Probed      bool                // false when metadata could not be read
	Resolutions []config.Resolution // highest first
}

// Default returns the preselected resolution
func (p Plan) Default() (config.Resolution, bool) {
	if len(p.Resolutions) == 0 {
		return config.Resolution{}, false
	}
	return p.Resolutions[0], true
}

// Outcome reports a finished Run. TempPath is only set when Status is StatusDone.
type Outcome struct {
	Status     Status
	JobID      string
	Input      string
	Resolution config.Resolution
	TempPath   string
	InputSize  int64
	OutputSize int64
	Output     media.VideoInfo
	Elapsed    time.Duration
	Err        error
}

// Ratio is OutputSize/InputSize, or 0 when either is unknown
func (o Outcome) Ratio() float64 {
	if o.InputSize <= 0 || o.OutputSize <= 0 {
		return 0
	}
	return float64(o.OutputSize) / float64(o.InputSize)
}

// Summary is a one-line human description of the outcome
func (o Outcome) Summary() string {
	switch o.Status {
	case StatusDone:
		return fmt.Sprintf("%s -> %s (%.0f%% of original) in %s",
			humanize.IBytes(uint64(o.InputSize)),
			humanize.IBytes(uint64(o.OutputSize)),
			o.Ratio()*100,
			o.Elapsed.Round(time.Second),
		)
	case StatusCancelled:
		return "compression cancelled"
	default:
		if o.Err != nil {
			return "compression failed: " + o.Err.Error()
		}
		return "compression failed"
	}
}

// Runner ties the prober and the engine to temp-file handling
type Runner struct {
	engine  Compressor
	prober  Prober
	tempDir string
	logger  hclog.Logger
}

// NewRunner creates a Runner. An empty tempDir uses the OS default.
func NewRunner(engine Compressor, prober Prober, tempDir string, logger hclog.Logger) *Runner {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Runner{
		engine:  engine,
		prober:  prober,
		tempDir: tempDir,
		logger:  logger,
	}
}

// Prepare probes input and lists the resolutions below its height.
// An unreadable container is not an error: every resolution is offered and
// the encode runs without progress.
func (r *Runner) Prepare(input string) (Plan, error) {
	st, err := os.Stat(input)
	if err != nil {
		return Plan{}, fmt.Errorf("stat input: %w", err)
	}
	if st.IsDir() {
		return Plan{}, fmt.Errorf("input %s is a directory", input)
	}

	info, ok := r.prober.Probe(input)
	if ok {
		r.logger.Debug("probed input", "input", input, "info", info.String())
	} else {
		r.logger.Warn("could not read video metadata, offering all resolutions", "input", input)
	}

	plan := Plan{
		Input:       input,
		InputSize:   st.Size(),
		Info:        info,
		Probed:      ok,
		Resolutions: config.Available(info.Height),
	}
	if len(plan.Resolutions) == 0 {
		return plan, fmt.Errorf("%w: source is %dp", ErrNoResolutions, info.Height)
	}
	return plan, nil
}

// Run compresses plan.Input to res into a fresh temp file.
// On failure or cancellation the temp file is removed before returning.
// A set signal after a failed encode reports StatusCancelled.
func (r *Runner) Run(plan Plan, res config.Resolution, onProgress encoder.ProgressFunc, cancel *encoder.Signal) Outcome {
	out := Outcome{
		Input:      plan.Input,
		Resolution: res,
		InputSize:  plan.InputSize,
	}

	tmp, err := os.CreateTemp(r.tempDir, "vidshrink-*"+config.DefaultExtension)
	if err != nil {
		out.Status = StatusFailed
		out.Err = fmt.Errorf("create temp output: %w", err)
		return out
	}
	tmpPath := tmp.Name()
	tmp.Close()

	j := encoder.NewJob(plan.Input, tmpPath, res.Height, plan.Info.Duration)
	out.JobID = j.ID
	log := r.logger.With("job", j.ID)
	log.Info("compressing", "input", plan.Input, "resolution", res.Label, "temp", tmpPath)

	start := time.Now()
	ok := r.engine.Compress(j, onProgress, cancel)
	out.Elapsed = time.Since(start)

	if !ok {
		removeTemp(log, tmpPath)
		if cancel.IsSet() {
			out.Status = StatusCancelled
			log.Info("compression cancelled", "elapsed", out.Elapsed)
			return out
		}
		out.Status = StatusFailed
		out.Err = errors.New("encoder reported failure")
		log.Warn("compression failed", "elapsed", out.Elapsed)
		return out
	}

	out.Status = StatusDone
	out.TempPath = tmpPath
	if st, err := os.Stat(tmpPath); err == nil {
		out.OutputSize = st.Size()
	}
	if info, ok := r.prober.Probe(tmpPath); ok {
		out.Output = info
	}
	log.Info("compression finished",
		"elapsed", out.Elapsed,
		"input_size", humanize.IBytes(uint64(out.InputSize)),
		"output_size", humanize.IBytes(uint64(out.OutputSize)),
	)
	return out
}

func removeTemp(log hclog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to remove temp output", "path", path, "error", err)
	}
}
