package session

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/ghost-recorder/internal/audio"
	"github.com/sjawhar/ghost-recorder/internal/envelope"
	"github.com/sjawhar/ghost-recorder/internal/storage"
	"github.com/sjawhar/ghost-recorder/internal/transcribe"
)

const processTimeout = 2 * time.Minute

// Deps wires the Manager. Store and Archiver are required; every other
// stage is skipped when nil.
type Deps struct {
	Store       Store
	Archiver    Archiver
	Transcriber Transcriber
	Responder   Responder
	Log         TranscriptLog
	Uploader    Uploader
	Hub         EventBroadcaster
}

// Manager takes exported clips through archive, transcription, reply and
// upload. Everything after the archive step runs in the background.
type Manager struct {
	store       Store
	archiver    Archiver
	transcriber Transcriber
	responder   Responder
	log         TranscriptLog
	uploader    Uploader
	hub         EventBroadcaster

	newID func() string
	now   func() time.Time
	wg    sync.WaitGroup
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		store:       deps.Store,
		archiver:    deps.Archiver,
		transcriber: deps.Transcriber,
		responder:   deps.Responder,
		log:         deps.Log,
		uploader:    deps.Uploader,
		hub:         deps.Hub,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// HandleClip archives and records blob, then starts background processing.
// The returned recording reflects the state before transcription.
func (m *Manager) HandleClip(_ context.Context, state int, blob audio.Blob) (storage.Recording, error) {
	if len(blob.Data) == 0 {
		return storage.Recording{}, ErrEmptyClip
	}
	info, err := audio.Inspect(blob.Data)
	if err != nil {
		return storage.Recording{}, fmt.Errorf("%w: %v", ErrInvalidClip, err)
	}
	if info.Frames == 0 {
		return storage.Recording{}, ErrEmptyClip
	}
	if blob.Type == "" {
		blob.Type = "audio/wav"
	}

	id := m.newID()
	path, err := m.archiver.Save(id, blob)
	if err != nil {
		return storage.Recording{}, fmt.Errorf("archive clip: %w", err)
	}

	rec := storage.Recording{
		ID:               id,
		State:            state,
		MIMEType:         blob.Type,
		SampleRate:       info.SampleRate,
		NumChannels:      info.NumChannels,
		Frames:           info.Frames,
		DurationMS:       info.Duration.Milliseconds(),
		AudioPath:        path,
		TranscriptStatus: storage.StatusPending,
		CreatedAt:        m.now().UTC(),
	}
	if err := m.store.CreateRecording(rec); err != nil {
		return storage.Recording{}, fmt.Errorf("create recording: %w", err)
	}
	if m.hub != nil {
		m.hub.BroadcastRecordingSaved(rec)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()
		m.process(ctx, rec, blob.Data)
	}()

	return rec, nil
}

// HandleUpload decodes an upload envelope and handles its clip.
func (m *Manager) HandleUpload(ctx context.Context, up envelope.Upload, mimeType string) (storage.Recording, error) {
	data, err := up.Decode()
	if err != nil {
		return storage.Recording{}, err
	}
	return m.HandleClip(ctx, up.State, audio.Blob{Type: mimeType, Data: data})
}

// HandleSegments persists and broadcasts finished live transcript segments.
func (m *Manager) HandleSegments(segments []transcribe.Segment) {
	for _, seg := range segments {
		if err := m.store.AppendSegment(seg); err != nil {
			log.Printf("append live segment: %v", err)
			continue
		}
		if m.log != nil {
			if err := m.log.Append(seg); err != nil {
				log.Printf("transcript log: %v", err)
			}
		}
		if m.hub != nil {
			m.hub.BroadcastLiveTranscript(seg)
		}
	}
}

func (m *Manager) HandleInterim(seg transcribe.Segment) {
	if m.hub != nil {
		m.hub.BroadcastLiveTranscriptInterim(seg)
	}
}

// Wait blocks until all background clip processing has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) process(ctx context.Context, rec storage.Recording, data []byte) {
	defer m.upload(ctx, rec)

	if m.transcriber == nil {
		m.setTranscript(rec.ID, "", storage.StatusSkipped)
		return
	}

	m.setTranscript(rec.ID, "", storage.StatusRunning)
	text, err := m.transcriber.Transcribe(ctx, rec.ID+".wav", data)
	if err != nil {
		log.Printf("transcribe %s: %v", rec.ID, err)
		m.setTranscript(rec.ID, "", storage.StatusFailed)
		return
	}
	m.setTranscript(rec.ID, text, storage.StatusCompleted)

	reply := m.reply(ctx, rec.ID, text)

	if m.log != nil && strings.TrimSpace(text) != "" {
		if err := m.log.AppendExchange(rec.CreatedAt.Local(), rec.ID, text, reply); err != nil {
			log.Printf("transcript log: %v", err)
		}
	}
}

func (m *Manager) reply(ctx context.Context, id, transcript string) string {
	if m.responder == nil {
		return ""
	}

	reply, err := m.responder.Reply(ctx, transcript)
	if err != nil {
		log.Printf("reply %s: %v", id, err)
		return ""
	}
	if reply == "" {
		return ""
	}

	if err := m.store.UpdateReply(id, reply); err != nil {
		log.Printf("store reply %s: %v", id, err)
	}
	if m.hub != nil {
		resp, err := envelope.NewSpeakResponse(reply, id)
		if err != nil {
			log.Printf("build reply %s: %v", id, err)
			return reply
		}
		m.hub.BroadcastReply(id, resp)
	}
	return reply
}

func (m *Manager) setTranscript(id, text, status string) {
	if err := m.store.UpdateTranscript(id, text, status); err != nil {
		log.Printf("update transcript %s: %v", id, err)
	}
	if m.hub != nil && status != storage.StatusRunning {
		m.hub.BroadcastTranscriptReady(id, text, status)
	}
}

func (m *Manager) upload(ctx context.Context, rec storage.Recording) {
	if m.uploader == nil || rec.AudioPath == "" {
		return
	}
	mimeType := rec.MIMEType
	if filepath.Ext(rec.AudioPath) == ".mp3" {
		mimeType = "audio/mpeg"
	}
	if err := m.uploader.Upload(ctx, rec.AudioPath, filepath.Base(rec.AudioPath), mimeType); err != nil {
		log.Printf("drive upload %s: %v", rec.ID, err)
	}
}
