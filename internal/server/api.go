package server

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sjawhar/ghost-recorder/internal/envelope"
	"github.com/sjawhar/ghost-recorder/internal/session"
	"github.com/sjawhar/ghost-recorder/internal/storage"
	"github.com/sjawhar/ghost-recorder/internal/transcribe"
)

const maxUploadBytes = 32 << 20

var recordingIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type RecordingStore interface {
	GetRecordingsByDate(date string) ([]storage.Recording, error)
	GetRecording(id string) (storage.Recording, error)
	GetSegmentsByDate(date string) ([]transcribe.Segment, error)
	GetDates() ([]string, error)
}

func registerAPIRoutes(mux *http.ServeMux, store RecordingStore, controls ControlHooks) {
	mux.HandleFunc("GET /api/recordings", func(w http.ResponseWriter, r *http.Request) {
		recordings, err := store.GetRecordingsByDate(dateParam(r))
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list recordings: %v", err))
			return
		}
		if recordings == nil {
			recordings = []storage.Recording{}
		}
		writeJSON(w, http.StatusOK, recordings)
	})

	mux.HandleFunc("GET /api/recordings/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !validRecordingID(id) {
			writeJSONError(w, http.StatusForbidden, "invalid recording id")
			return
		}

		rec, err := store.GetRecording(id)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get recording: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, rec)
	})

	mux.HandleFunc("GET /api/recordings/{id}/audio", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !validRecordingID(id) {
			writeJSONError(w, http.StatusForbidden, "invalid recording id")
			return
		}

		rec, err := store.GetRecording(id)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "recording not found")
			return
		}
		if rec.AudioPath == "" {
			writeJSONError(w, http.StatusNotFound, "audio not available")
			return
		}

		cleanPath := filepath.Clean(rec.AudioPath)
		if cleanPath == "." || strings.Contains(cleanPath, "..") {
			writeJSONError(w, http.StatusForbidden, "invalid audio path")
			return
		}

		f, err := os.Open(cleanPath)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "audio file not found")
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat audio: %v", err))
			return
		}

		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("Content-Type", contentTypeForAudio(cleanPath))
		http.ServeContent(w, r, filepath.Base(cleanPath), info.ModTime(), f)
	})

	mux.HandleFunc("GET /api/segments", func(w http.ResponseWriter, r *http.Request) {
		segments, err := store.GetSegmentsByDate(dateParam(r))
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list segments: %v", err))
			return
		}
		if segments == nil {
			segments = []transcribe.Segment{}
		}
		writeJSON(w, http.StatusOK, segments)
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, http.StatusOK, dates)
	})

	mux.HandleFunc("POST /api/uploads", func(w http.ResponseWriter, r *http.Request) {
		if controls.HandleUpload == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "uploads are disabled")
			return
		}

		var up envelope.Upload
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&up); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode upload: %v", err))
			return
		}

		mimeType := r.URL.Query().Get("type")
		if mimeType == "" {
			mimeType = "audio/wav"
		}

		rec, err := controls.HandleUpload(r.Context(), up, mimeType)
		if err != nil {
			status := http.StatusInternalServerError
			if badUpload(err) {
				status = http.StatusBadRequest
			}
			writeJSONError(w, status, err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, rec)
	})

	mux.HandleFunc("POST /api/pause", func(w http.ResponseWriter, r *http.Request) {
		if controls.Pause != nil {
			controls.Pause()
		}
		if controls.OnStatusChanged != nil {
			controls.OnStatusChanged(true)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/resume", func(w http.ResponseWriter, r *http.Request) {
		if controls.Resume != nil {
			controls.Resume()
		}
		if controls.OnStatusChanged != nil {
			controls.OnStatusChanged(false)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		paused := false
		if controls.IsPaused != nil {
			paused = controls.IsPaused()
		}
		var warnings []string
		if controls.Warnings != nil {
			warnings = controls.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"paused": paused, "warnings": warnings})
	})
}

func dateParam(r *http.Request) string {
	if date := r.URL.Query().Get("date"); date != "" {
		return date
	}
	return time.Now().UTC().Format("2006-01-02")
}

func badUpload(err error) bool {
	var corrupt base64.CorruptInputError
	return errors.Is(err, envelope.ErrEmptyUpload) ||
		errors.Is(err, session.ErrEmptyClip) ||
		errors.Is(err, session.ErrInvalidClip) ||
		errors.As(err, &corrupt)
}

func validRecordingID(id string) bool {
	return recordingIDPattern.MatchString(id)
}

func contentTypeForAudio(path string) string {
	switch filepath.Ext(path) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
