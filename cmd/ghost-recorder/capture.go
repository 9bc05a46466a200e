package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sjawhar/ghost-recorder/internal/audio"
	"github.com/sjawhar/ghost-recorder/internal/config"
	"github.com/sjawhar/ghost-recorder/internal/envelope"
	"github.com/sjawhar/ghost-recorder/internal/session"
	"github.com/sjawhar/ghost-recorder/internal/transcribe"
)

// capturePipeline owns the microphone side: mic stream, encoder worker,
// utterance capture and the optional live transcription socket.
type capturePipeline struct {
	mic     *audio.Mic
	worker  *audio.Worker
	capture *session.Capture
	live    *transcribe.LiveStream

	streamCancel context.CancelFunc
	streamDone   chan struct{}
	runDone      chan struct{}
}

// startCapture opens the microphone and wires it to manager. It returns nil
// when no microphone can be used; the server then runs API/UI only.
func startCapture(ctx context.Context, cfg *config.Config, manager *session.Manager, state *recorderState) *capturePipeline {
	if err := audio.Initialize(); err != nil {
		state.Warn(fmt.Sprintf("audio init failed, running API/UI only: %v", err))
		return nil
	}

	mic, rate, err := openMic(cfg)
	if err != nil {
		state.Warn(fmt.Sprintf("microphone unavailable, running API/UI only: %v", err))
		_ = audio.Terminate()
		return nil
	}
	if err := mic.Start(); err != nil {
		state.Warn(fmt.Sprintf("microphone start failed at %d Hz, running API/UI only: %v", rate, err))
		_ = mic.Close()
		_ = audio.Terminate()
		return nil
	}
	log.Printf("microphone started at %d Hz", rate)

	p := &capturePipeline{
		mic:        mic,
		worker:     audio.NewWorker(audio.NewEncoder(cfg.EncoderOptions()...), 0),
		streamDone: make(chan struct{}),
		runDone:    make(chan struct{}),
	}

	// The worker outlives ctx so the final utterance can still be exported
	// during shutdown.
	go func() { _ = p.worker.Run(context.Background()) }()

	p.capture = session.NewCapture(p.worker, manager, session.NewDetector(cfg.ParsedSilenceTimeout()), &envelope.StateCounter{}, session.CaptureOptions{
		Threshold: cfg.VADThreshold,
		MIMEType:  cfg.ExportMIMEType,
		Paused:    state.IsPaused,
	})
	if err := p.capture.Init(ctx, audio.Config{SampleRate: rate, NumChannels: cfg.MicChannels}); err != nil {
		log.Printf("encoder init failed: %v", err)
	}
	state.SetCapture(p.capture)

	go func() {
		defer close(p.runDone)
		p.capture.Run(context.Background())
	}()

	if cfg.DeepgramAPIKey != "" {
		handler := &transcribe.LiveHandler{
			OnSegments: manager.HandleSegments,
			OnInterim:  manager.HandleInterim,
		}
		live, err := transcribe.DialLive(ctx, transcribe.LiveOptions{
			APIKey:     cfg.DeepgramAPIKey,
			Model:      cfg.LiveModel,
			Language:   cfg.Language,
			SampleRate: rate,
			Channels:   cfg.MicChannels,
		}, handler)
		if err != nil {
			state.Warn(fmt.Sprintf("live transcription unavailable: %v", err))
		} else {
			p.live = live
			p.capture.SetLive(live)
		}
	}

	streamCtx, streamCancel := context.WithCancel(ctx)
	p.streamCancel = streamCancel
	go func() {
		defer close(p.streamDone)
		streamMicWithRetry(streamCtx, mic, p.capture.Sink(streamCtx), time.Sleep, log.Printf)
	}()

	return p
}

func openMic(cfg *config.Config) (*audio.Mic, int, error) {
	var lastErr error
	for _, rate := range cfg.SampleRateCandidates() {
		mic, err := audio.NewMic(rate, cfg.MicChannels, cfg.FramesPerBuffer)
		if err != nil {
			log.Printf("warning: microphone open failed at %d Hz: %v", rate, err)
			lastErr = err
			continue
		}
		return mic, rate, nil
	}
	return nil, 0, fmt.Errorf("no usable sample rate: %w", lastErr)
}

// stop ends mic streaming, exports any utterance in progress and releases
// the audio device.
func (p *capturePipeline) stop(ctx context.Context) {
	p.streamCancel()
	if err := p.mic.Stop(); err != nil {
		log.Printf("warning: microphone stop failed: %v", err)
	}
	select {
	case <-p.streamDone:
	case <-ctx.Done():
	}

	p.capture.SetLive(nil)
	if err := p.capture.Drain(ctx); err != nil {
		log.Printf("warning: final clip not exported: %v", err)
	}
	p.worker.Close()
	select {
	case <-p.runDone:
	case <-ctx.Done():
	}

	if p.live != nil {
		p.live.Stop()
	}
	_ = p.mic.Close()
	_ = audio.Terminate()
}

type micStreamer interface {
	Stream(ctx context.Context, sink func(blocks [][]float32) error) error
}

func streamMicWithRetry(
	ctx context.Context,
	streamer micStreamer,
	sink func(blocks [][]float32) error,
	wait func(time.Duration),
	logf func(string, ...any),
) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := streamer.Stream(ctx, sink)
		if err == nil || ctx.Err() != nil {
			return
		}

		if strings.Contains(strings.ToLower(err.Error()), "overflow") {
			logf("warning: mic input overflow, restarting stream")
			wait(250 * time.Millisecond)
			continue
		}

		logf("mic stream error: %v", err)
		return
	}
}
