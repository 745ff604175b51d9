// Package logging builds the hclog loggers used across vidshrink.
package logging

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// New returns a named leveled logger writing to w (stderr when w is nil).
func New(name string, level hclog.Level, w io.Writer) hclog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  level,
		Output: w,
	})
}

// DefaultMaxLines is how many lines a RingBuffer keeps when created with n <= 0.
const DefaultMaxLines = 100

// RingBuffer is an io.Writer that keeps the last N complete lines written to it.
type RingBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial []byte
}

// NewRingBuffer creates a RingBuffer holding at most n lines.
func NewRingBuffer(n int) *RingBuffer {
	if n <= 0 {
		n = DefaultMaxLines
	}
	return &RingBuffer{max: n}
}

func (b *RingBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := append(b.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		b.push(strings.TrimRight(string(data[:i]), "\r"))
		data = data[i+1:]
	}
	b.partial = append([]byte(nil), data...)
	return len(p), nil
}

func (b *RingBuffer) push(line string) {
	if line == "" {
		return
	}
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *RingBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}
