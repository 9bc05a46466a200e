package transcribe

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

var ErrLiveConnect = errors.New("deepgram connect failed")

// LiveHandler receives Deepgram live callbacks. Final words accumulate until
// speech_final or an utterance end, then go out as speaker segments.
type LiveHandler struct {
	OnSegments func([]Segment)
	OnInterim  func(Segment)

	mu    sync.Mutex
	words []Word
}

func (h *LiveHandler) Message(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]

	sentence := strings.TrimSpace(alt.Transcript)
	if sentence == "" {
		return nil
	}

	words := make([]Word, 0, len(alt.Words))
	for _, word := range alt.Words {
		words = append(words, Word{
			Speaker:        word.Speaker,
			PunctuatedWord: word.PunctuatedWord,
			Start:          word.Start,
			End:            word.End,
		})
	}

	if !mr.IsFinal {
		if h.OnInterim != nil {
			seg := Segment{Speaker: -1, Text: sentence, Timestamp: time.Now().UTC()}
			if len(words) > 0 {
				if words[0].Speaker != nil {
					seg.Speaker = *words[0].Speaker
				}
				seg.StartTime = words[0].Start
				seg.EndTime = words[len(words)-1].End
			}
			h.OnInterim(seg)
		}
		return nil
	}

	h.mu.Lock()
	h.words = append(h.words, words...)
	h.mu.Unlock()

	if mr.SpeechFinal {
		h.Flush()
	}
	return nil
}

// Flush emits whatever final words are buffered.
func (h *LiveHandler) Flush() {
	h.mu.Lock()
	words := h.words
	h.words = nil
	h.mu.Unlock()

	segments := GroupWordsBySpeaker(words)
	if len(segments) == 0 {
		return
	}
	now := time.Now().UTC()
	for i := range segments {
		segments[i].Timestamp = now
	}
	if h.OnSegments != nil {
		h.OnSegments(segments)
	}
}

// Pending reports how many final words are waiting for the end of the utterance.
func (h *LiveHandler) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.words)
}

func (h *LiveHandler) UtteranceEnd(*api.UtteranceEndResponse) error {
	h.Flush()
	return nil
}

func (h *LiveHandler) Open(*api.OpenResponse) error {
	log.Println("connected to Deepgram")
	return nil
}

func (h *LiveHandler) Metadata(*api.MetadataResponse) error { return nil }

func (h *LiveHandler) SpeechStarted(*api.SpeechStartedResponse) error { return nil }

func (h *LiveHandler) Close(*api.CloseResponse) error {
	h.Flush()
	log.Println("disconnected from Deepgram")
	return nil
}

func (h *LiveHandler) Error(er *api.ErrorResponse) error {
	log.Printf("deepgram error %s: %s", er.ErrCode, er.Description)
	return nil
}

func (h *LiveHandler) UnhandledEvent([]byte) error { return nil }

type LiveOptions struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	Channels   int
}

// LiveStream is an open Deepgram socket accepting linear16 PCM writes.
type LiveStream struct {
	w    io.Writer
	stop func()
}

func (s *LiveStream) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *LiveStream) Stop() {
	if s.stop != nil {
		s.stop()
	}
}

var initOnce sync.Once

// DialLive opens a diarized live transcription stream feeding handler.
func DialLive(ctx context.Context, opts LiveOptions, handler *LiveHandler) (*LiveStream, error) {
	initOnce.Do(func() {
		client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
	})

	channels := opts.Channels
	if channels <= 0 {
		channels = 1
	}
	cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          opts.Model,
		Language:       opts.Language,
		Diarize:        true,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		Encoding:       "linear16",
		SampleRate:     opts.SampleRate,
		Channels:       channels,
	}

	dg, err := client.NewWSUsingCallback(ctx, opts.APIKey, cOptions, tOptions, handler)
	if err != nil {
		return nil, err
	}
	if ok := dg.Connect(); !ok {
		return nil, ErrLiveConnect
	}
	return &LiveStream{w: dg, stop: dg.Stop}, nil
}
