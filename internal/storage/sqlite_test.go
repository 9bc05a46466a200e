package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sjawhar/ghost-recorder/internal/transcribe"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func testRecording(id string, createdAt time.Time) Recording {
	return Recording{
		ID:          id,
		State:       2,
		MIMEType:    "audio/wav",
		SampleRate:  16000,
		NumChannels: 1,
		Frames:      16000,
		DurationMS:  1000,
		AudioPath:   "data/audio/" + id + ".wav",
		CreatedAt:   createdAt,
	}
}

func TestSQLitePragmas(t *testing.T) {
	store := newTestSQLiteStore(t)

	var mode string
	if err := store.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode failed: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected journal_mode wal, got %q", mode)
	}

	var timeout int
	if err := store.DB().QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("PRAGMA busy_timeout failed: %v", err)
	}
	if timeout < 5000 {
		t.Fatalf("expected busy_timeout >= 5000, got %d", timeout)
	}
}

func TestSQLiteRecordingCRUD(t *testing.T) {
	store := newTestSQLiteStore(t)

	createdAt := time.Date(2026, 2, 26, 10, 0, 0, 0, time.UTC)
	rec := testRecording("rec-1", createdAt)
	if err := store.CreateRecording(rec); err != nil {
		t.Fatalf("CreateRecording failed: %v", err)
	}

	got, err := store.GetRecording("rec-1")
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}
	if got.TranscriptStatus != StatusPending {
		t.Fatalf("expected default transcript status pending, got %q", got.TranscriptStatus)
	}
	if got.State != 2 || got.SampleRate != 16000 || got.Frames != 16000 || got.DurationMS != 1000 {
		t.Fatalf("unexpected recording %+v", got)
	}
	if !got.CreatedAt.Equal(createdAt) {
		t.Fatalf("expected created_at %v, got %v", createdAt, got.CreatedAt)
	}

	if err := store.UpdateTranscript("rec-1", "what's the weather", StatusCompleted); err != nil {
		t.Fatalf("UpdateTranscript failed: %v", err)
	}
	if err := store.UpdateReply("rec-1", "Sunny."); err != nil {
		t.Fatalf("UpdateReply failed: %v", err)
	}

	got, err = store.GetRecording("rec-1")
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}
	if got.Transcript != "what's the weather" || got.TranscriptStatus != StatusCompleted {
		t.Fatalf("unexpected transcript %q/%q", got.Transcript, got.TranscriptStatus)
	}
	if got.Reply != "Sunny." || got.AudioPath != "data/audio/rec-1.wav" {
		t.Fatalf("unexpected reply/audio %q/%q", got.Reply, got.AudioPath)
	}

	byDate, err := store.GetRecordingsByDate("2026-02-26")
	if err != nil {
		t.Fatalf("GetRecordingsByDate failed: %v", err)
	}
	if len(byDate) != 1 || byDate[0].ID != "rec-1" {
		t.Fatalf("expected rec-1 for date, got %#v", byDate)
	}

	dates, err := store.GetDates()
	if err != nil {
		t.Fatalf("GetDates failed: %v", err)
	}
	if len(dates) != 1 || dates[0] != "2026-02-26" {
		t.Fatalf("expected dates [2026-02-26], got %#v", dates)
	}
}

func TestSQLiteMissingRecording(t *testing.T) {
	store := newTestSQLiteStore(t)

	if _, err := store.GetRecording("nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if err := store.UpdateTranscript("nope", "", StatusFailed); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows from UpdateTranscript, got %v", err)
	}
	if err := store.UpdateReply("nope", "x"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows from UpdateReply, got %v", err)
	}
	if err := store.CreateRecording(Recording{}); err == nil {
		t.Fatal("expected error for empty recording id")
	}
}

func TestSQLiteRecordingsOrderedNewestFirst(t *testing.T) {
	store := newTestSQLiteStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := store.CreateRecording(testRecording(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("CreateRecording(%s) failed: %v", id, err)
		}
	}
	if err := store.CreateRecording(testRecording("other-day", base.Add(24*time.Hour))); err != nil {
		t.Fatalf("CreateRecording failed: %v", err)
	}

	got, err := store.GetRecordingsByDate("2026-03-01")
	if err != nil {
		t.Fatalf("GetRecordingsByDate failed: %v", err)
	}
	if len(got) != 3 || got[0].ID != "c" || got[2].ID != "a" {
		t.Fatalf("unexpected order %#v", got)
	}

	dates, err := store.GetDates()
	if err != nil {
		t.Fatalf("GetDates failed: %v", err)
	}
	if len(dates) != 2 || dates[0] != "2026-03-02" {
		t.Fatalf("expected newest date first, got %v", dates)
	}
}

func TestSQLiteSegments(t *testing.T) {
	store := newTestSQLiteStore(t)
	ts := time.Date(2026, 2, 27, 8, 0, 0, 0, time.UTC)

	if err := store.CreateRecording(testRecording("rec-9", ts)); err != nil {
		t.Fatalf("CreateRecording failed: %v", err)
	}
	if err := store.AppendSegment(transcribe.Segment{Speaker: 0, Text: " live words ", Timestamp: ts}); err != nil {
		t.Fatalf("AppendSegment failed: %v", err)
	}
	if err := store.AppendSegment(transcribe.Segment{RecordingID: "rec-9", Speaker: 1, Text: "attached", Timestamp: ts.Add(time.Second)}); err != nil {
		t.Fatalf("AppendSegment failed: %v", err)
	}

	segments, err := store.GetSegmentsByDate("2026-02-27")
	if err != nil {
		t.Fatalf("GetSegmentsByDate failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "live words" || segments[0].RecordingID != "" {
		t.Fatalf("unexpected first segment %+v", segments[0])
	}
	if segments[1].RecordingID != "rec-9" {
		t.Fatalf("expected attached segment, got %+v", segments[1])
	}
}

func TestSQLiteConcurrentAccess(t *testing.T) {
	store := newTestSQLiteStore(t)
	startedAt := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			id := fmt.Sprintf("rec-%d", idx)
			_ = store.CreateRecording(testRecording(id, startedAt.Add(time.Duration(idx)*time.Millisecond)))
			_ = store.AppendSegment(transcribe.Segment{
				Speaker:   idx % 3,
				Text:      fmt.Sprintf("segment-%d", idx),
				Timestamp: startedAt,
			})
			_, _ = store.GetRecording(id)
		}(i)
	}
	wg.Wait()

	recordings, err := store.GetRecordingsByDate(startedAt.Format("2006-01-02"))
	if err != nil {
		t.Fatalf("GetRecordingsByDate failed: %v", err)
	}
	if len(recordings) != 20 {
		t.Fatalf("expected 20 recordings, got %d", len(recordings))
	}
}
