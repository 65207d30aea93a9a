package log

import (
	"fmt"
	"sync"
)

// Recorder is a Logger that keeps formatted lines in memory. Tests in other
// packages install it as Default to assert on logged failures.
type Recorder struct {
	mu    sync.Mutex
	Lines []string
}

func (r *Recorder) add(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lines = append(r.Lines, level+" "+fmt.Sprintf(format, args...))
}

func (r *Recorder) Debugf(format string, args ...any) { r.add("DEBUG", format, args...) }
func (r *Recorder) Infof(format string, args ...any)  { r.add("INFO", format, args...) }
func (r *Recorder) Warnf(format string, args ...any)  { r.add("WARN", format, args...) }
func (r *Recorder) Errorf(format string, args ...any) { r.add("ERROR", format, args...) }
