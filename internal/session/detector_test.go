package session

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDetectorSilenceAfterSpeechEndsSegment(t *testing.T) {
	detector := NewDetector(30 * time.Millisecond)

	done := make(chan struct{}, 1)
	detector.OnSegmentEnd(func() {
		done <- struct{}{}
	})

	detector.OnSpeech()
	detector.OnSilence()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected segment end callback to fire")
	}
}

func TestDetectorIgnoresSilenceWithoutSpeech(t *testing.T) {
	detector := NewDetector(10 * time.Millisecond)

	var fired atomic.Int32
	detector.OnSegmentEnd(func() { fired.Add(1) })

	detector.OnSilence()
	time.Sleep(40 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("expected no callback without speech, got %d", fired.Load())
	}
}

func TestDetectorSpeechResetsTimer(t *testing.T) {
	detector := NewDetector(80 * time.Millisecond)

	var fired atomic.Int32
	detector.OnSegmentEnd(func() {
		fired.Add(1)
	})

	detector.OnSpeech()
	detector.OnSilence()
	time.Sleep(20 * time.Millisecond)
	detector.OnSpeech()

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("expected 0 callbacks after speech reset, got %d", fired.Load())
	}
}

func TestDetectorArmsOncePerSilence(t *testing.T) {
	detector := NewDetector(40 * time.Millisecond)

	var fired atomic.Int32
	detector.OnSegmentEnd(func() { fired.Add(1) })

	detector.OnSpeech()
	start := time.Now()
	for time.Since(start) < 30*time.Millisecond {
		detector.OnSilence()
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)

	if fired.Load() != 1 {
		t.Fatalf("expected exactly 1 callback, got %d", fired.Load())
	}

	detector.OnSilence()
	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("expected silence after a finished segment to be ignored, got %d", fired.Load())
	}
}

func TestDetectorReset(t *testing.T) {
	detector := NewDetector(20 * time.Millisecond)

	var fired atomic.Int32
	detector.OnSegmentEnd(func() { fired.Add(1) })

	detector.OnSpeech()
	detector.OnSilence()
	detector.Reset()

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("expected reset to cancel the timer, got %d", fired.Load())
	}
}

func TestDetectorSupportsConfigurableTimeout(t *testing.T) {
	short := NewDetector(10 * time.Millisecond)
	long := NewDetector(80 * time.Millisecond)

	shortDone := make(chan struct{}, 1)
	longDone := make(chan struct{}, 1)

	short.OnSegmentEnd(func() { shortDone <- struct{}{} })
	long.OnSegmentEnd(func() { longDone <- struct{}{} })

	for _, d := range []*Detector{short, long} {
		d.OnSpeech()
		d.OnSilence()
	}

	select {
	case <-shortDone:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected short detector callback")
	}

	select {
	case <-longDone:
		t.Fatal("long timeout should not fire yet")
	case <-time.After(20 * time.Millisecond):
	}

	select {
	case <-longDone:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected long detector callback")
	}
}
