package logging

import (
	"fmt"
	"strings"
	"sync"
)

// Recorder keeps formatted log lines in memory. Tests use it to assert that a
// component logged something.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *Recorder) add(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
}

func (r *Recorder) Debug(format string, args ...any) { r.add("DEBUG", format, args...) }
func (r *Recorder) Info(format string, args ...any)  { r.add("INFO", format, args...) }
func (r *Recorder) Warn(format string, args ...any)  { r.add("WARN", format, args...) }
func (r *Recorder) Error(format string, args ...any) { r.add("ERROR", format, args...) }

// Lines returns a copy of every recorded line.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Contains reports whether any recorded line contains substr.
func (r *Recorder) Contains(substr string) bool {
	for _, line := range r.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
