package server

import (
	"context"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/sjawhar/ghost-recorder/internal/audio"
	"github.com/sjawhar/ghost-recorder/internal/envelope"
	"github.com/sjawhar/ghost-recorder/internal/storage"
)

// ControlHooks connects HTTP controls to the running capture pipeline.
// Any hook may be nil.
type ControlHooks struct {
	Pause           func()
	Resume          func()
	IsPaused        func() bool
	OnStatusChanged func(paused bool)
	Warnings        func() []string
	HandleUpload    func(ctx context.Context, up envelope.Upload, mimeType string) (storage.Recording, error)
	NewEncoder      func() *audio.Encoder
}

func Handler(staticFS fs.FS, hub *Hub, store RecordingStore, controls ControlHooks) (http.Handler, error) {
	mux := http.NewServeMux()

	registerEventsRoute(mux, hub)
	registerEncoderRoute(mux, controls.NewEncoder)
	registerAPIRoutes(mux, store, controls)

	fileServer := http.FileServer(http.FS(staticFS))
	mux.HandleFunc("/", serveSPA(staticFS, fileServer))

	return mux, nil
}

// serveSPA serves static assets and answers client-side routes with the
// index document itself, so they never bounce through FileServer redirects.
func serveSPA(staticFS fs.FS, fileServer http.Handler) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/ws") {
			http.NotFound(w, r)
			return
		}

		cleanPath := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if cleanPath == "." || cleanPath == "" || !strings.Contains(cleanPath, ".") {
			http.ServeFileFS(w, r, staticFS, "index.html")
			return
		}

		r.URL.Path = "/" + cleanPath
		fileServer.ServeHTTP(w, r)
	}
}
