package server

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/ghost-recorder/internal/audio"
)

const encoderReadLimit = 32 << 20

// encoderMessage is one command from a browser recorder.
type encoderMessage struct {
	Command string       `json:"command"`
	Config  audio.Config `json:"config"`
	Buffer  [][]float32  `json:"buffer,omitempty"`
	Type    string       `json:"type,omitempty"`
}

// encoderReply answers exportWAV and getBuffer, or reports a failed command.
// Data is base64 in JSON.
type encoderReply struct {
	Command string      `json:"command"`
	Type    string      `json:"type,omitempty"`
	Data    []byte      `json:"data,omitempty"`
	Buffers [][]float32 `json:"buffers,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// registerEncoderRoute exposes one encoder worker per websocket connection.
// The socket lives as long as the recording session does. Closing it stops
// the worker at once: commands still queued, including a final exportWAV,
// are dropped without a reply. Clients wait for the export reply before
// closing.
func registerEncoderRoute(mux *http.ServeMux, newEncoder func() *audio.Encoder) {
	mux.HandleFunc("GET /ws/encoder", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("encoder ws upgrade error: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()
		conn.SetReadLimit(encoderReadLimit)

		enc := audio.NewEncoder()
		if newEncoder != nil {
			enc = newEncoder()
		}
		worker := audio.NewWorker(enc, 0)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() { _ = worker.Run(ctx) }()

		written := make(chan struct{})
		go func() {
			defer close(written)
			for res := range worker.Results() {
				if err := conn.WriteJSON(toEncoderReply(res)); err != nil {
					cancel()
					return
				}
			}
		}()

		for {
			var msg encoderMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("encoder ws read: %v", err)
				}
				break
			}
			cmd := audio.Command{
				Kind:   audio.CommandKind(msg.Command),
				Config: msg.Config,
				Buffer: msg.Buffer,
				Type:   msg.Type,
			}
			if err := worker.Send(ctx, cmd); err != nil {
				break
			}
		}

		if n := worker.Pending(); n > 0 {
			log.Printf("encoder ws closed with %d queued commands dropped", n)
		}
		worker.Close()
		<-written
	})
}

func toEncoderReply(res audio.Result) encoderReply {
	reply := encoderReply{Command: string(res.Command)}
	if res.Err != nil {
		reply.Error = res.Err.Error()
		return reply
	}
	if res.Blob != nil {
		reply.Type = res.Blob.Type
		reply.Data = res.Blob.Data
	}
	reply.Buffers = res.Buffers
	return reply
}
