package encoder

import (
	"bytes"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedTime is returned by ParseElapsedStrict for tokens that are not HH:MM:SS.ff
var ErrMalformedTime = errors.New("malformed elapsed time")

// ProgressFunc receives a completion fraction in [0, 1]
type ProgressFunc func(fraction float64)

var timeRe = regexp.MustCompile(`time=(\d{2}:\d{2}:\d{2}\.\d+)`)

// MatchElapsed extracts the elapsed-time token from an ffmpeg status line
func MatchElapsed(line string) (string, bool) {
	m := timeRe.FindStringSubmatch(line)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// ParseElapsedStrict converts "HH:MM:SS.ff" to seconds
func ParseElapsedStrict(token string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(token), ":")
	if len(parts) != 3 {
		return 0, ErrMalformedTime
	}

	hours, err1 := strconv.Atoi(parts[0])
	mins, err2 := strconv.Atoi(parts[1])
	secs, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, ErrMalformedTime
	}
	if hours < 0 || mins < 0 || secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, ErrMalformedTime
	}

	return float64(hours)*3600 + float64(mins)*60 + secs, nil
}

// ParseElapsed is ParseElapsedStrict with 0 for malformed tokens.
// A garbled status line must not abort an otherwise healthy encode.
func ParseElapsed(token string) float64 {
	secs, err := ParseElapsedStrict(token)
	if err != nil {
		return 0
	}
	return secs
}

// Fraction returns elapsed/total clamped to [0, 1]; 0 when total is unknown
func Fraction(elapsed, total float64) float64 {
	if total <= 0 || math.IsNaN(elapsed) || math.IsNaN(total) {
		return 0
	}
	f := elapsed / total
	if f < 0 || math.IsNaN(f) {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// scanLines is a bufio.SplitFunc that ends a line at '\r' or '\n'.
// ffmpeg redraws its status line with carriage returns, so '\n' alone would
// only deliver progress once the encode finished. "\r\n" yields an empty token
// which readers skip.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
