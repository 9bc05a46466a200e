package session

import (
	"context"
	"time"

	"github.com/sjawhar/ghost-recorder/internal/audio"
	"github.com/sjawhar/ghost-recorder/internal/envelope"
	"github.com/sjawhar/ghost-recorder/internal/storage"
	"github.com/sjawhar/ghost-recorder/internal/transcribe"
)

type Store interface {
	CreateRecording(rec storage.Recording) error
	UpdateTranscript(id, transcript, status string) error
	UpdateReply(id, reply string) error
	AppendSegment(seg transcribe.Segment) error
}

type Archiver interface {
	Save(id string, blob audio.Blob) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, name string, data []byte) (string, error)
}

type Responder interface {
	Reply(ctx context.Context, transcript string) (string, error)
}

type TranscriptLog interface {
	Append(seg transcribe.Segment) error
	AppendExchange(at time.Time, recordingID, transcript, reply string) error
}

type Uploader interface {
	Upload(ctx context.Context, localPath, name, mimeType string) error
}

type EventBroadcaster interface {
	BroadcastRecordingSaved(rec storage.Recording)
	BroadcastLiveTranscript(seg transcribe.Segment)
	BroadcastLiveTranscriptInterim(seg transcribe.Segment)
	BroadcastTranscriptReady(recordingID, transcript, status string)
	BroadcastReply(recordingID string, resp envelope.Response)
}

// ClipHandler receives exported clips tagged with their utterance number.
type ClipHandler interface {
	HandleClip(ctx context.Context, state int, blob audio.Blob) (storage.Recording, error)
}
