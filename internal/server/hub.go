package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/sjawhar/ghost-recorder/internal/envelope"
	"github.com/sjawhar/ghost-recorder/internal/storage"
	"github.com/sjawhar/ghost-recorder/internal/transcribe"
)

// Hub fans events out to every connected /ws client. Slow clients drop
// messages instead of blocking the broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastLiveTranscript(seg transcribe.Segment) {
	h.broadcastEvent(liveTranscriptEvent(seg, false))
}

func (h *Hub) BroadcastLiveTranscriptInterim(seg transcribe.Segment) {
	h.broadcastEvent(liveTranscriptEvent(seg, true))
}

func (h *Hub) BroadcastRecordingSaved(rec storage.Recording) {
	h.broadcastEvent(RecordingSavedEvent{
		Event:     newEvent("recording_saved", rec.CreatedAt),
		Recording: rec,
	})
}

func (h *Hub) BroadcastTranscriptReady(recordingID, transcript, status string) {
	h.broadcastEvent(TranscriptReadyEvent{
		Event:       newEvent("transcript_ready", time.Now().UTC()),
		RecordingID: recordingID,
		Transcript:  transcript,
		Status:      status,
	})
}

func (h *Hub) BroadcastReply(recordingID string, resp envelope.Response) {
	h.broadcastEvent(ReplyEvent{
		Event:       newEvent("reply", time.Now().UTC()),
		RecordingID: recordingID,
		Response:    resp,
	})
}

func (h *Hub) BroadcastStatusChanged(paused bool) {
	h.broadcastEvent(StatusChangedEvent{
		Event:  newEvent("status_changed", time.Now().UTC()),
		Paused: paused,
	})
}

func liveTranscriptEvent(seg transcribe.Segment, interim bool) LiveTranscriptEvent {
	return LiveTranscriptEvent{
		Event:       newEvent("live_transcript", seg.Timestamp),
		RecordingID: seg.RecordingID,
		Speaker:     seg.Speaker,
		Text:        seg.Text,
		StartTime:   seg.StartTime,
		EndTime:     seg.EndTime,
		Interim:     interim,
	}
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
