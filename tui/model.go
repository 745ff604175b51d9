package tui

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"vidshrink/config"
	"vidshrink/encoder"
	"vidshrink/job"
	"vidshrink/logging"
)

// State represents the current application state
type State int

const (
	StateProbing State = iota
	StateReady
	StateEncoding
	StateDone
	StateFailed
	StateCancelled
	StateError
)

// PlanMsg is sent once the input has been probed
type PlanMsg struct {
	Plan job.Plan
}

// PlanErrorMsg is sent when the input cannot be compressed at all
type PlanErrorMsg struct {
	Err error
}

// FinishedMsg carries the result of a compression run
type FinishedMsg struct {
	Outcome job.Outcome
}

type SavedMsg struct {
	Path string
	Err  error
}

type PlayedMsg struct {
	Err error
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// tracker is the hand-off point between the engine goroutine and the UI
type tracker struct {
	mu       sync.Mutex
	fraction float64
	updates  int
}

func (t *tracker) set(f float64) {
	t.mu.Lock()
	t.fraction = f
	t.updates++
	t.mu.Unlock()
}

func (t *tracker) get() (float64, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fraction, t.updates
}

func (t *tracker) reset() {
	t.mu.Lock()
	t.fraction, t.updates = 0, 0
	t.mu.Unlock()
}

// Options configures a Model
type Options struct {
	Input  string
	Dest   string // save destination; empty means the default name next to the input
	Height int    // preselected target height; 0 picks the highest available
	Logs   *logging.RingBuffer
}

// Model is the Bubble Tea model for the TUI
type Model struct {
	Runner      *job.Runner
	Opts        Options
	State       State
	Plan        job.Plan
	Selected    int
	Progress    progress.Model
	LogViewport viewport.Model
	ShowLogs    bool
	Width       int
	Height      int
	StartTime   time.Time

	Fraction     float64
	HasProgress  bool
	Outcome      job.Outcome
	SavedPath    string
	Notice       string
	ErrorMessage string
	Quitting     bool

	cancel  *encoder.Signal
	tracker *tracker
}

// NewModel creates a new TUI model
func NewModel(runner *job.Runner, opts Options) Model {
	prog := progress.New(
		progress.WithGradient("#7C3AED", "#10B981"),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	vp := viewport.New(80, 12)
	vp.SetContent("")

	return Model{
		Runner:      runner,
		Opts:        opts,
		State:       StateProbing,
		Progress:    prog,
		LogViewport: vp,
		cancel:      encoder.NewSignal(),
		tracker:     &tracker{},
	}
}

// Init initializes the Bubble Tea program
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		m.prepare(),
	)
}

func (m Model) prepare() tea.Cmd {
	runner, input := m.Runner, m.Opts.Input
	return func() tea.Msg {
		plan, err := runner.Prepare(input)
		if err != nil {
			return PlanErrorMsg{Err: err}
		}
		return PlanMsg{Plan: plan}
	}
}

// run compresses to res on a worker goroutine; progress flows through the tracker
func (m Model) run(res config.Resolution) tea.Cmd {
	runner, plan, t, sig := m.Runner, m.Plan, m.tracker, m.cancel
	return func() tea.Msg {
		return FinishedMsg{Outcome: runner.Run(plan, res, t.set, sig)}
	}
}

func saveCmd(tempPath, dest string) tea.Cmd {
	return func() tea.Msg {
		path, err := job.Save(tempPath, dest)
		return SavedMsg{Path: path, Err: err}
	}
}

func playCmd(path string) tea.Cmd {
	return func() tea.Msg {
		return PlayedMsg{Err: job.Play(path)}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// SelectedResolution is the resolution under the picker cursor
func (m Model) SelectedResolution() (config.Resolution, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Plan.Resolutions) {
		return config.Resolution{}, false
	}
	return m.Plan.Resolutions[m.Selected], true
}

func (m Model) destination() string {
	if m.Opts.Dest != "" {
		return m.Opts.Dest
	}
	return job.DefaultSavePath(m.Opts.Input, m.Outcome.Resolution)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 20
		m.LogViewport.Width = msg.Width - 4

		logHeight := msg.Height - 20
		if logHeight < 0 {
			logHeight = 0
		}
		m.LogViewport.Height = logHeight

	case PlanMsg:
		m.Plan = msg.Plan
		m.State = StateReady
		m.Selected = 0
		for i, r := range m.Plan.Resolutions {
			if r.Height == m.Opts.Height {
				m.Selected = i
				break
			}
		}

	case PlanErrorMsg:
		m.State = StateError
		m.ErrorMessage = msg.Err.Error()
		return m, nil

	case TickMsg:
		if m.State == StateEncoding {
			m.Fraction, m.HasProgress = m.snapshot()
			m.refreshLogs()
			cmds = append(cmds, tickCmd())
		}

	case FinishedMsg:
		m.Outcome = msg.Outcome
		m.refreshLogs()
		switch msg.Outcome.Status {
		case job.StatusDone:
			m.State = StateDone
			m.Fraction, m.HasProgress = 1, true
		case job.StatusCancelled:
			m.State = StateCancelled
		default:
			m.State = StateFailed
			m.ErrorMessage = msg.Outcome.Summary()
		}
		if m.Quitting {
			_ = job.Discard(&m.Outcome)
			return m, tea.Quit
		}
		return m, nil

	case SavedMsg:
		if msg.Err != nil {
			m.Notice = "Save failed: " + msg.Err.Error()
		} else {
			m.SavedPath = msg.Path
			m.Notice = "Saved to " + msg.Path
			_ = job.Discard(&m.Outcome)
		}
		return m, nil

	case PlayedMsg:
		if msg.Err != nil {
			m.Notice = "Could not open player: " + msg.Err.Error()
		}
		return m, nil

	case error:
		m.State = StateError
		m.ErrorMessage = msg.Error()
		return m, nil
	}

	if m.ShowLogs {
		var cmd tea.Cmd
		m.LogViewport, cmd = m.LogViewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.State == StateEncoding {
			// wait for the engine to stop so the temp file is removed
			m.cancel.Set()
			m.Quitting = true
			return m, nil
		}
		_ = job.Discard(&m.Outcome)
		return m, tea.Quit

	case "l":
		m.ShowLogs = !m.ShowLogs
		if m.ShowLogs {
			m.refreshLogs()
		}
		return m, nil
	}

	switch m.State {
	case StateReady:
		switch msg.String() {
		case "up", "left":
			if m.Selected > 0 {
				m.Selected--
			}
		case "down", "right":
			if m.Selected < len(m.Plan.Resolutions)-1 {
				m.Selected++
			}
		case "enter":
			res, ok := m.SelectedResolution()
			if !ok {
				return m, nil
			}
			m.cancel.Reset()
			m.tracker.reset()
			m.State = StateEncoding
			m.StartTime = time.Now()
			m.Fraction, m.HasProgress = 0, false
			m.Notice = ""
			return m, tea.Batch(m.run(res), tickCmd())
		}

	case StateEncoding:
		if msg.String() == "c" {
			m.cancel.Set()
			m.Notice = "Cancelling..."
		}

	case StateDone:
		switch msg.String() {
		case "s":
			if m.Outcome.TempPath == "" {
				return m, nil
			}
			return m, saveCmd(m.Outcome.TempPath, m.destination())
		case "o":
			path := m.SavedPath
			if path == "" {
				path = m.Outcome.TempPath
			}
			if path == "" {
				return m, nil
			}
			return m, playCmd(path)
		}

	case StateFailed, StateCancelled:
		if msg.String() == "enter" || msg.String() == "r" {
			m.State = StateReady
			m.Notice = ""
		}
	}

	if m.ShowLogs {
		var cmd tea.Cmd
		m.LogViewport, cmd = m.LogViewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) snapshot() (float64, bool) {
	f, n := m.tracker.get()
	return f, n > 0
}

func (m *Model) refreshLogs() {
	if m.Opts.Logs == nil {
		return
	}
	lines := m.Opts.Logs.Lines()
	if len(lines) > 0 {
		m.LogViewport.SetContent(strings.Join(lines, "\n"))
		m.LogViewport.GotoBottom()
	}
}
