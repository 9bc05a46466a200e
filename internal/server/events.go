package server

import (
	"time"

	"github.com/sjawhar/ghost-recorder/internal/envelope"
	"github.com/sjawhar/ghost-recorder/internal/storage"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type LiveTranscriptEvent struct {
	Event
	RecordingID string  `json:"recording_id,omitempty"`
	Speaker     int     `json:"speaker"`
	Text        string  `json:"text"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Interim     bool    `json:"interim"`
}

type RecordingSavedEvent struct {
	Event
	Recording storage.Recording `json:"recording"`
}

type TranscriptReadyEvent struct {
	Event
	RecordingID string `json:"recording_id"`
	Transcript  string `json:"transcript"`
	Status      string `json:"status"`
}

// ReplyEvent carries the assistant's answer in the same envelope a remote
// backend would return.
type ReplyEvent struct {
	Event
	RecordingID string            `json:"recording_id"`
	Response    envelope.Response `json:"response"`
}

type StatusChangedEvent struct {
	Event
	Paused bool `json:"paused"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
