package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/schollz/progressbar/v3"

	"vidshrink/config"
	"vidshrink/encoder"
	"vidshrink/job"
)

// progressSteps is the resolution of the headless bar
const progressSteps = 1000

// runHeadless compresses without the TUI and returns the process exit code
func runHeadless(runner *job.Runner, input string, target config.Resolution, opts options, ext string, logger hclog.Logger) int {
	plan, err := runner.Prepare(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	res, err := chooseResolution(plan, target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if plan.Probed {
		fmt.Printf("%s: %s -> %s\n", input, plan.Info, res.Label)
	} else {
		fmt.Printf("%s: unknown size -> %s (no progress available)\n", input, res.Label)
	}

	cancel := encoder.NewSignal()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	done := make(chan struct{})
	defer close(done)
	go watchSignals(sigs, done, cancel, logger)

	bar := newBar(plan.Info.Duration > 0)
	out := runner.Run(plan, res, func(f float64) {
		_ = bar.Set(int(f * progressSteps))
	}, cancel)
	_ = bar.Finish()
	fmt.Println()

	if out.Status != job.StatusDone {
		fmt.Fprintln(os.Stderr, out.Summary())
		return 1
	}
	fmt.Println(out.Summary())

	dest := opts.output
	if dest == "" {
		dest = job.DefaultSavePath(input, res)
	}
	saved, err := job.Save(out.TempPath, dest)
	_ = job.Discard(&out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println("Saved", saved)

	if opts.thumbsDir != "" {
		writePreviews(runner, input, saved, opts.thumbsDir, ext)
	}
	if opts.play {
		if err := play(saved); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return 0
}

// watchSignals sets cancel on the first signal and returns early once done is closed
func watchSignals(sigs <-chan os.Signal, done <-chan struct{}, cancel *encoder.Signal, logger hclog.Logger) {
	select {
	case <-sigs:
		logger.Info("interrupt received, cancelling")
		cancel.Set()
	case <-done:
	}
}

// chooseResolution validates an explicit target against the plan, or takes the plan's default
func chooseResolution(plan job.Plan, target config.Resolution) (config.Resolution, error) {
	if target.Height == 0 {
		res, ok := plan.Default()
		if !ok {
			return config.Resolution{}, job.ErrNoResolutions
		}
		return res, nil
	}
	for _, r := range plan.Resolutions {
		if r.Height == target.Height {
			return r, nil
		}
	}
	return config.Resolution{}, fmt.Errorf("%s is not below the source height %dp", target.Label, plan.Info.Height)
}

func newBar(determinate bool) *progressbar.ProgressBar {
	if !determinate {
		return progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Compressing"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetWriter(os.Stderr),
		)
	}
	return progressbar.NewOptions(progressSteps,
		progressbar.OptionSetDescription("Compressing"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
}
