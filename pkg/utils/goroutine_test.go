package utils

import (
	"fmt"
	"testing"
	"time"
)

type recordingT struct {
	errors []string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Logf(string, ...interface{}) {}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

// TestGoroutineLeakDetector tests the leak detector itself
func TestGoroutineLeakDetector(t *testing.T) {
	t.Run("NoLeak", func(t *testing.T) {
		detector := NewGoroutineLeakDetector(t)
		detector.Start()

		ch := make(chan struct{})
		go func() {
			ch <- struct{}{}
		}()
		<-ch

		detector.Check()
	})

	t.Run("DetectsLeak", func(t *testing.T) {
		rec := &recordingT{}
		detector := NewGoroutineLeakDetector(rec).SetStabilizeDelay(20 * time.Millisecond)
		detector.Start()

		stop := make(chan struct{})
		go func() {
			<-stop
		}()
		defer close(stop)

		detector.Check()

		if len(rec.errors) == 0 {
			t.Error("Expected leak detector to report a leak but it didn't")
		}
	})
}
