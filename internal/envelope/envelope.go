// Package envelope holds the JSON shapes exchanged with the assistant
// backend: clip uploads going out and directive-carrying responses coming back.
package envelope

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/sjawhar/ghost-recorder/internal/audio"
)

const ContentTypeJSON = "application/json"

var ErrEmptyUpload = errors.New("upload carries no audio")

// Upload is a recorded clip tagged with the utterance counter at the time it
// was exported.
type Upload struct {
	State int    `json:"state"`
	Data  string `json:"data"`
}

func NewUpload(state int, blob audio.Blob) Upload {
	return Upload{State: state, Data: base64.StdEncoding.EncodeToString(blob.Data)}
}

// Decode returns the raw clip bytes. A data URL prefix is tolerated.
func (u Upload) Decode() ([]byte, error) {
	payload := u.Data
	if i := strings.Index(payload, ","); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+1:]
	}
	if payload == "" {
		return nil, ErrEmptyUpload
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode upload data: %w", err)
	}
	return data, nil
}

// StateCounter numbers utterances. It is bumped when listening starts and
// reset when the user cancels.
type StateCounter struct {
	mu    sync.Mutex
	state int
}

func (c *StateCounter) Incr() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state++
	return c.state
}

func (c *StateCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = 0
}

func (c *StateCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Response is a backend reply. Body holds JSON when the Content-Type header
// says so, otherwise an opaque string.
type Response struct {
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

func (r Response) IsJSON() bool {
	return r.Headers["Content-Type"] == ContentTypeJSON
}

// Directive is one instruction from messageBody.directives.
type Directive struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Payload   string `json:"payload"`
}

// Directives extracts messageBody.directives from a JSON body. Non-JSON
// responses carry none.
func (r Response) Directives() ([]Directive, error) {
	if !r.IsJSON() {
		return nil, nil
	}
	if !gjson.Valid(r.Body) {
		return nil, errors.New("response body is not valid json")
	}

	items := gjson.Get(r.Body, "messageBody.directives").Array()
	directives := make([]Directive, 0, len(items))
	for _, item := range items {
		directives = append(directives, Directive{
			Namespace: item.Get("namespace").String(),
			Name:      item.Get("name").String(),
			Payload:   item.Get("payload").Raw,
		})
	}
	return directives, nil
}

// SpeakContentID returns the attachment id a speak directive refers to,
// without its cid: scheme.
func (d Directive) SpeakContentID() string {
	if d.Name != "speak" {
		return ""
	}
	return strings.TrimPrefix(gjson.Get(d.Payload, "audioContent").String(), "cid:")
}

// Text returns the spoken text of a speak directive, if any.
func (d Directive) Text() string {
	return gjson.Get(d.Payload, "text").String()
}

// StreamURLs collects the MP3 URLs of an AudioPlayer.play directive.
func (d Directive) StreamURLs() []string {
	if d.Namespace != "AudioPlayer" || d.Name != "play" {
		return nil
	}
	var urls []string
	for _, stream := range gjson.Get(d.Payload, "audioItem.streams").Array() {
		field := stream.Get("streamMp3Urls")
		if field.IsArray() {
			for _, u := range field.Array() {
				urls = append(urls, u.String())
			}
			continue
		}
		if field.String() != "" {
			urls = append(urls, field.String())
		}
	}
	return urls
}

// NewSpeakResponse builds a JSON response with one SpeechSynthesizer.speak
// directive. contentID may be empty when there is no audio attachment.
func NewSpeakResponse(text, contentID string) (Response, error) {
	body := `{"messageBody":{"directives":[{}]}}`
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		body, err = sjson.Set(body, path, value)
	}

	set("messageBody.directives.0.namespace", "SpeechSynthesizer")
	set("messageBody.directives.0.name", "speak")
	set("messageBody.directives.0.payload.text", text)
	if contentID != "" {
		set("messageBody.directives.0.payload.audioContent", "cid:"+contentID)
	}
	if err != nil {
		return Response{}, fmt.Errorf("build speak response: %w", err)
	}

	return Response{
		Headers: map[string]string{"Content-Type": ContentTypeJSON},
		Body:    body,
	}, nil
}
