package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sjawhar/ghost-recorder/internal/assistant"
	"github.com/sjawhar/ghost-recorder/internal/audio"
	"github.com/sjawhar/ghost-recorder/internal/config"
	"github.com/sjawhar/ghost-recorder/internal/gdrive"
	"github.com/sjawhar/ghost-recorder/internal/server"
	"github.com/sjawhar/ghost-recorder/internal/session"
	"github.com/sjawhar/ghost-recorder/internal/storage"
	"github.com/sjawhar/ghost-recorder/internal/transcribe"
)

//go:embed static/*
var staticFiles embed.FS

const driveSyncInterval = 5 * time.Minute

type recorderState struct {
	mu       sync.RWMutex
	paused   bool
	capture  *session.Capture
	warnings []string
}

func (r *recorderState) Pause() {
	r.mu.Lock()
	r.paused = true
	capture := r.capture
	r.mu.Unlock()

	if capture != nil {
		capture.Cancel()
	}
}

func (r *recorderState) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = false
}

func (r *recorderState) IsPaused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

func (r *recorderState) SetCapture(c *session.Capture) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capture = c
}

func (r *recorderState) Warn(msg string) {
	log.Printf("warning: %s", msg)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, msg)
}

func (r *recorderState) Warnings() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.warnings...)
}

func main() {
	configPath := flag.String("config", envOrDefault(config.EnvPrefix+"CONFIG", "config.yaml"), "path to YAML config file")
	flag.Parse()

	log.Println("ghost-recorder: starting")

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	recState := &recorderState{}
	for _, w := range warnings {
		recState.Warn(w)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("static assets init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := server.NewHub()
	transcriptLog := storage.NewTranscriptLog(cfg.TranscriptDir)
	deps := session.Deps{
		Store:    store,
		Archiver: audio.NewArchiver(cfg.AudioDir, cfg.ArchiveFormat),
		Log:      transcriptLog,
		Hub:      hub,
	}

	if cfg.OpenAIAPIKey != "" {
		deps.Transcriber = transcribe.NewWhisper(cfg.OpenAIAPIKey, cfg.TranscriptionModel, cfg.Language)
	}
	if responder, err := newResponder(&cfg); err != nil {
		recState.Warn("assistant replies disabled: " + err.Error())
	} else {
		deps.Responder = responder
	}

	var syncer *gdrive.Syncer
	if cfg.GDriveFolderID != "" {
		syncer, err = gdrive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if err != nil {
			recState.Warn("gdrive sync disabled: " + err.Error())
			syncer = nil
		} else {
			deps.Uploader = syncer
		}
	}

	manager := session.NewManager(deps)

	handler, err := server.Handler(assets, hub, store, server.ControlHooks{
		Pause:    recState.Pause,
		Resume:   recState.Resume,
		IsPaused: recState.IsPaused,
		OnStatusChanged: func(paused bool) {
			hub.BroadcastStatusChanged(paused)
		},
		Warnings:     recState.Warnings,
		HandleUpload: manager.HandleUpload,
		NewEncoder: func() *audio.Encoder {
			return audio.NewEncoder(cfg.EncoderOptions()...)
		},
	})
	if err != nil {
		log.Fatalf("build http handler failed: %v", err)
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	if syncer != nil {
		go syncTranscripts(ctx, syncer, transcriptLog)
	}

	var pipeline *capturePipeline
	if cfg.CaptureEnabled {
		pipeline = startCapture(ctx, &cfg, manager, recState)
	}

	log.Printf("ghost-recorder: web UI on http://%s", displayAddr(cfg.ListenAddr))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("ghost-recorder: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if pipeline != nil {
		pipeline.stop(shutdownCtx)
	}
	cancel()
	manager.Wait()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}
}

func newResponder(cfg *config.Config) (*assistant.Responder, error) {
	provider, model, err := assistant.ParseModel(cfg.AssistantModel)
	if err != nil {
		return nil, err
	}
	apiKey := cfg.AssistantAPIKey(provider)
	if apiKey == "" {
		return nil, errors.New("no API key for provider " + provider)
	}
	client, err := assistant.NewClient(provider, apiKey, model)
	if err != nil {
		return nil, err
	}
	return assistant.NewResponder(client, cfg.AssistantPrompt), nil
}

type transcriptSyncer interface {
	SyncTranscript(ctx context.Context, localPath, date string) error
}

func syncTranscripts(ctx context.Context, syncer transcriptSyncer, transcripts *storage.TranscriptLog) {
	ticker := time.NewTicker(driveSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncTranscriptDay(ctx, syncer, transcripts, time.Now())
		}
	}
}

func syncTranscriptDay(ctx context.Context, syncer transcriptSyncer, transcripts *storage.TranscriptLog, day time.Time) {
	path := transcripts.PathFor(day)
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := syncer.SyncTranscript(ctx, path, day.Format("2006-01-02")); err != nil {
		log.Printf("gdrive sync error: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	return addr
}
