package encoder

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"vidshrink/config"
)

// DefaultPollInterval bounds how long a silent encoder delays a cancellation check
const DefaultPollInterval = 100 * time.Millisecond

// maxScannerBuffer caps a single diagnostic line (ffmpeg metadata dumps can exceed 64KB)
const maxScannerBuffer = 1024 * 1024

// Job describes one encode. It lives for a single Compress call.
type Job struct {
	ID            string
	InputPath     string
	OutputPath    string
	TargetHeight  int
	TotalDuration float64 // seconds; 0 disables progress reporting
}

// NewJob creates a Job with a fresh ID for log correlation
func NewJob(inputPath, outputPath string, targetHeight int, totalDuration float64) Job {
	return Job{
		ID:            uuid.NewString(),
		InputPath:     inputPath,
		OutputPath:    outputPath,
		TargetHeight:  targetHeight,
		TotalDuration: totalDuration,
	}
}

// Engine runs ffmpeg to downscale a video
type Engine struct {
	Config       config.Encoder
	PollInterval time.Duration

	logger  hclog.Logger
	locate  func() (string, string)
	command func(name string, args ...string) *exec.Cmd
}

// New creates an Engine. ffmpegPath is an optional override for binary discovery.
func New(cfg config.Encoder, ffmpegPath string, logger hclog.Logger) *Engine {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Engine{
		Config:       cfg,
		PollInterval: DefaultPollInterval,
		logger:       logger,
		locate:       func() (string, string) { return Locate(ffmpegPath) },
		command:      exec.Command,
	}
}

// buildArgs constructs the ffmpeg command arguments
func (e *Engine) buildArgs(job Job) []string {
	return []string{
		"-y",
		"-i", job.InputPath,
		"-vf", fmt.Sprintf("scale=-2:%d", job.TargetHeight),
		"-c:v", e.Config.VideoCodec,
		"-crf", strconv.Itoa(e.Config.CRF),
		"-preset", e.Config.Preset,
		"-c:a", e.Config.AudioCodec,
		job.OutputPath,
	}
}

// Compress encodes job.InputPath into job.OutputPath scaled to job.TargetHeight.
//
// onProgress is called on the calling goroutine, in output order, with the
// fraction of TotalDuration ffmpeg has reached. cancel is checked once per
// diagnostic line and once per PollInterval while ffmpeg is quiet; when set,
// ffmpeg is killed and Compress returns false. The output file is left as is
// on failure and must be removed by the caller.
//
// Every failure collapses to false; details go to the logger.
func (e *Engine) Compress(job Job, onProgress ProgressFunc, cancel *Signal) (ok bool) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	log := e.logger.With("job", job.ID)

	if _, err := os.Stat(job.InputPath); err != nil {
		log.Error("input file not found", "input", job.InputPath, "error", err)
		return false
	}

	binary, source := e.locate()
	log.Debug("using ffmpeg", "path", binary, "source", source)

	args := e.buildArgs(job)
	proc := &process{cmd: e.command(binary, args...)}
	defer proc.release()

	defer func() {
		if r := recover(); r != nil {
			log.Error("compression aborted", "panic", r)
			ok = false
		}
	}()

	proc.cmd.Stdout = io.Discard
	stderr, err := proc.cmd.StderrPipe()
	if err != nil {
		log.Error("failed to get stderr pipe", "error", err)
		return false
	}

	log.Info("starting encode",
		"input", job.InputPath,
		"output", job.OutputPath,
		"height", job.TargetHeight,
		"duration", job.TotalDuration,
	)
	log.Debug("command", "args", binary+" "+strings.Join(args, " "))

	if err := proc.start(); err != nil {
		log.Error("failed to start ffmpeg", "path", binary, "error", err)
		return false
	}
	log.Debug("ffmpeg started", "pid", proc.cmd.Process.Pid)

	lines := make(chan string, 64)
	done := make(chan struct{})
	defer close(done)
	go readLines(stderr, lines, done, log)

	interval := e.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// exited stays nil until stderr closes; the child may outlive its stderr
	var exited <-chan struct{}

loop:
	for {
		if cancel.IsSet() {
			log.Info("compression cancelled")
			proc.kill()
			return false
		}

		select {
		case line, open := <-lines:
			if !open {
				lines = nil
				exited = proc.reap()
				continue
			}
			e.handleLine(log, job, line, onProgress)
		case <-exited:
			break loop
		case <-ticker.C:
		}
	}

	waitErr := proc.wait()

	if cancel.IsSet() {
		log.Info("compression cancelled")
		return false
	}

	if waitErr != nil {
		log.Error("ffmpeg exited with error", "exit_code", proc.exitCode(), "error", waitErr)
		return false
	}

	log.Info("encode completed", "output", job.OutputPath)
	return true
}

func (e *Engine) handleLine(log hclog.Logger, job Job, line string, onProgress ProgressFunc) {
	token, ok := MatchElapsed(line)
	if !ok {
		log.Debug("ffmpeg", "line", line)
		return
	}
	log.Trace("ffmpeg", "line", line)

	if onProgress == nil || job.TotalDuration <= 0 {
		return
	}
	elapsed, err := ParseElapsedStrict(token)
	if err != nil {
		log.Debug("unparseable time token, using 0", "token", token)
	}
	onProgress(Fraction(elapsed, job.TotalDuration))
}

// readLines forwards non-empty diagnostic lines until EOF or until done is closed
func readLines(r io.Reader, lines chan<- string, done <-chan struct{}, log hclog.Logger) {
	defer close(lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScannerBuffer)
	scanner.Split(scanLines)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case lines <- line:
		case <-done:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-done:
		default:
			log.Debug("stderr reader stopped", "error", err)
		}
	}
}

// process owns a child for the lifetime of one Compress call.
// release kills and reaps it if it is still running, so no exit path orphans it.
type process struct {
	cmd     *exec.Cmd
	started bool
	exited  chan struct{} // closed once cmd.Wait returns
	err     error
}

func (p *process) start() error {
	if err := p.cmd.Start(); err != nil {
		return err
	}
	p.started = true
	return nil
}

// reap waits for the child in the background. Call it only after stderr is drained.
func (p *process) reap() <-chan struct{} {
	if p.exited != nil {
		return p.exited
	}
	p.exited = make(chan struct{})
	if !p.started {
		close(p.exited)
		return p.exited
	}
	go func() {
		p.err = p.cmd.Wait()
		close(p.exited)
	}()
	return p.exited
}

func (p *process) hasExited() bool {
	if p.exited == nil {
		return false
	}
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

func (p *process) kill() {
	if p.started && !p.hasExited() && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

func (p *process) wait() error {
	<-p.reap()
	return p.err
}

func (p *process) exitCode() int {
	if !p.hasExited() || p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

func (p *process) release() {
	if p.started && !p.hasExited() {
		p.kill()
		_ = p.wait()
	}
}
