// Package timing measures frame and stage durations.
package timing

import (
	"fmt"
	"time"

	"github.com/gogpu/framegraph/internal/logging"
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// Timer averages repeated Start/Stop samples.
type Timer struct {
	name    string
	now     Clock
	total   time.Duration
	samples int
	started time.Time
}

// NewTimer creates a Timer on the wall clock.
func NewTimer(name string) *Timer {
	return NewTimerWithClock(name, time.Now)
}

// NewTimerWithClock creates a Timer reading the given clock.
func NewTimerWithClock(name string, now Clock) *Timer {
	return &Timer{name: name, now: now, started: now()}
}

// Start begins a sample.
func (t *Timer) Start() { t.started = t.now() }

// Stop ends the sample begun by the last Start and adds it to the total.
func (t *Timer) Stop() time.Duration {
	d := t.now().Sub(t.started)
	t.total += d
	t.samples++
	return d
}

// Samples returns the number of recorded samples.
func (t *Timer) Samples() int { return t.samples }

// Average returns the mean sample duration, or zero without samples.
func (t *Timer) Average() time.Duration {
	if t.samples == 0 {
		return 0
	}
	return t.total / time.Duration(t.samples)
}

// Reset discards all samples.
func (t *Timer) Reset() {
	t.total, t.samples = 0, 0
}

// String formats the average in milliseconds.
func (t *Timer) String() string {
	return fmt.Sprintf("%s: %.3f ms", t.name, Milliseconds(t.Average()))
}

// Log writes the average to the framegraph logger.
func (t *Timer) Log() {
	logging.L().Info("timing: average", "timer", t.name,
		"ms", Milliseconds(t.Average()), "samples", t.samples)
}

// Stopwatch times one operation.
type Stopwatch struct {
	name    string
	now     Clock
	started time.Time
}

// NewStopwatch starts a stopwatch on the wall clock.
func NewStopwatch(name string) *Stopwatch {
	return NewStopwatchWithClock(name, time.Now)
}

// NewStopwatchWithClock starts a stopwatch reading the given clock.
func NewStopwatchWithClock(name string, now Clock) *Stopwatch {
	return &Stopwatch{name: name, now: now, started: now()}
}

// Stop logs the elapsed time with message and returns it.
func (s *Stopwatch) Stop(message string) time.Duration {
	d := s.now().Sub(s.started)
	logging.L().Info("timing: "+message, "stopwatch", s.name, "ms", Milliseconds(d))
	return d
}

// FrameRate counts frames and reports the rate once per interval.
type FrameRate struct {
	now      Clock
	interval time.Duration
	since    time.Time
	frames   int
	last     float64
}

// NewFrameRate reports once per second on the wall clock.
func NewFrameRate() *FrameRate {
	return NewFrameRateWithClock(time.Second, time.Now)
}

// NewFrameRateWithClock reports once per interval on the given clock.
func NewFrameRateWithClock(interval time.Duration, now Clock) *FrameRate {
	return &FrameRate{now: now, interval: interval, since: now()}
}

// Tick counts a frame. When an interval has passed it returns the frames
// per second over it and true.
func (f *FrameRate) Tick() (float64, bool) {
	f.frames++
	elapsed := f.now().Sub(f.since)
	if elapsed < f.interval {
		return 0, false
	}
	f.last = float64(f.frames) / elapsed.Seconds()
	f.frames = 0
	f.since = f.since.Add(elapsed)
	return f.last, true
}

// Last returns the most recent reported rate.
func (f *FrameRate) Last() float64 { return f.last }

// Milliseconds converts d to fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
