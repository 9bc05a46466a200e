package session

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/sjawhar/ghost-recorder/internal/audio"
	"github.com/sjawhar/ghost-recorder/internal/envelope"
)

const commandTimeout = 5 * time.Second

type CaptureOptions struct {
	// Threshold is the RMS level at or above which a block counts as speech.
	Threshold float64
	MIMEType  string
	Paused    func() bool
}

// Capture turns a stream of microphone blocks into utterance clips. Blocks
// are recorded from the first speech block until the detector reports
// trailing silence; the clip is then exported and the encoder cleared.
type Capture struct {
	worker   *audio.Worker
	clips    ClipHandler
	detector *Detector
	counter  *envelope.StateCounter
	opts     CaptureOptions

	// sendMu keeps an export and its clear adjacent in the command queue.
	sendMu sync.Mutex

	mu       sync.Mutex
	speaking bool
	live     io.Writer
	pending  []int
	barriers []chan struct{}
}

func NewCapture(worker *audio.Worker, clips ClipHandler, detector *Detector, counter *envelope.StateCounter, opts CaptureOptions) *Capture {
	if detector == nil {
		detector = NewDetector(0)
	}
	if counter == nil {
		counter = &envelope.StateCounter{}
	}
	if opts.MIMEType == "" {
		opts.MIMEType = "audio/wav"
	}

	c := &Capture{
		worker:   worker,
		clips:    clips,
		detector: detector,
		counter:  counter,
		opts:     opts,
	}
	detector.OnSegmentEnd(c.endSegment)
	return c
}

// Init configures the encoder for the capture format.
func (c *Capture) Init(ctx context.Context, cfg audio.Config) error {
	return c.worker.Send(ctx, audio.Command{Kind: audio.CommandInit, Config: cfg})
}

// SetLive tees raw PCM16 to w, or stops teeing when w is nil.
func (c *Capture) SetLive(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live = w
}

// Sink returns the block callback for audio.Mic.Stream.
func (c *Capture) Sink(ctx context.Context) func(blocks [][]float32) error {
	return func(blocks [][]float32) error {
		return c.process(ctx, blocks)
	}
}

func (c *Capture) process(ctx context.Context, blocks [][]float32) error {
	if c.opts.Paused != nil && c.opts.Paused() {
		return nil
	}

	c.mu.Lock()
	live := c.live
	c.mu.Unlock()
	if live != nil {
		if _, err := live.Write(audio.InterleavePCM16(blocks)); err != nil {
			log.Printf("live transcription write: %v", err)
		}
	}

	voiced := isVoiced(blocks, c.opts.Threshold)
	err := c.record(ctx, blocks, voiced)

	if voiced {
		c.detector.OnSpeech()
	} else {
		c.detector.OnSilence()
	}

	if errors.Is(err, audio.ErrWorkerStopped) {
		return err
	}
	return nil
}

// record enqueues blocks if an utterance is in progress. speaking is read
// under sendMu so a block can never land between an export and its clear.
func (c *Capture) record(ctx context.Context, blocks [][]float32, voiced bool) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	if voiced && !c.speaking {
		c.speaking = true
		c.counter.Incr()
	}
	speaking := c.speaking
	c.mu.Unlock()

	if !speaking {
		return nil
	}
	return c.worker.Send(ctx, audio.Command{Kind: audio.CommandRecord, Buffer: blocks})
}

func (c *Capture) endSegment() {
	c.mu.Lock()
	if !c.speaking {
		c.mu.Unlock()
		return
	}
	c.speaking = false
	c.pending = append(c.pending, c.counter.Count())
	c.mu.Unlock()

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := c.worker.Send(ctx, audio.Command{Kind: audio.CommandExportWAV, Type: c.opts.MIMEType}); err != nil {
		log.Printf("export clip: %v", err)
		c.dropLastPending()
		return
	}
	if err := c.worker.Send(ctx, audio.Command{Kind: audio.CommandClear}); err != nil {
		log.Printf("clear encoder: %v", err)
	}
}

// Cancel drops the utterance in progress and resets the utterance counter.
func (c *Capture) Cancel() {
	c.mu.Lock()
	c.speaking = false
	c.mu.Unlock()

	c.detector.Reset()
	c.counter.Reset()

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := c.worker.Send(ctx, audio.Command{Kind: audio.CommandClear}); err != nil {
		log.Printf("clear encoder: %v", err)
	}
}

// Flush exports the utterance in progress, if any.
func (c *Capture) Flush() {
	c.detector.Reset()
	c.endSegment()
}

// Drain flushes the utterance in progress and waits until every clip
// exported before the call has been handed to the clip handler.
func (c *Capture) Drain(ctx context.Context) error {
	c.Flush()

	done := make(chan struct{})
	c.sendMu.Lock()
	c.mu.Lock()
	c.barriers = append(c.barriers, done)
	c.mu.Unlock()
	err := c.worker.Send(ctx, audio.Command{Kind: audio.CommandGetBuffer})
	c.sendMu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Speaking reports whether an utterance is being recorded.
func (c *Capture) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Run hands exported clips to the clip handler until the worker stops.
func (c *Capture) Run(ctx context.Context) {
	for res := range c.worker.Results() {
		switch res.Command {
		case audio.CommandExportWAV:
			state := c.popPending()
			if res.Err != nil {
				log.Printf("export clip %d: %v", state, res.Err)
				continue
			}
			if _, err := c.clips.HandleClip(ctx, state, *res.Blob); err != nil {
				log.Printf("handle clip %d: %v", state, err)
			}
		case audio.CommandGetBuffer:
			c.releaseBarrier()
		default:
			if res.Err != nil {
				log.Printf("encoder %s: %v", res.Command, res.Err)
			}
		}
	}
}

func (c *Capture) releaseBarrier() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.barriers) == 0 {
		return
	}
	close(c.barriers[0])
	c.barriers = c.barriers[1:]
}

func (c *Capture) popPending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return c.counter.Count()
	}
	state := c.pending[0]
	c.pending = c.pending[1:]
	return state
}

// dropLastPending forgets the state queued by an export that never reached
// the worker. Earlier exports are still owed their results.
func (c *Capture) dropLastPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.pending); n > 0 {
		c.pending = c.pending[:n-1]
	}
}

func isVoiced(blocks [][]float32, threshold float64) bool {
	for _, block := range blocks {
		if audio.RMS(block) >= threshold && len(block) > 0 {
			return true
		}
	}
	return false
}
