package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sjawhar/ghost-recorder/internal/transcribe"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Recording is one exported clip and what became of it.
type Recording struct {
	ID               string    `json:"id"`
	State            int       `json:"state"`
	MIMEType         string    `json:"mime_type"`
	SampleRate       int       `json:"sample_rate"`
	NumChannels      int       `json:"num_channels"`
	Frames           int       `json:"frames"`
	DurationMS       int64     `json:"duration_ms"`
	AudioPath        string    `json:"audio_path"`
	Transcript       string    `json:"transcript"`
	TranscriptStatus string    `json:"transcript_status"`
	Reply            string    `json:"reply"`
	CreatedAt        time.Time `json:"created_at"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "ghost-recorder.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			state INTEGER NOT NULL DEFAULT 0,
			mime_type TEXT NOT NULL,
			sample_rate INTEGER NOT NULL,
			num_channels INTEGER NOT NULL,
			frames INTEGER NOT NULL DEFAULT 0,
			duration INTEGER NOT NULL DEFAULT 0,
			audio_path TEXT NOT NULL DEFAULT '',
			transcript TEXT NOT NULL DEFAULT '',
			transcript_status TEXT NOT NULL DEFAULT 'pending',
			reply TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create recordings table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS segments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recording_id TEXT REFERENCES recordings(id) ON DELETE CASCADE,
			speaker INTEGER NOT NULL,
			text TEXT NOT NULL,
			start_time REAL NOT NULL,
			end_time REAL NOT NULL,
			timestamp TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create segments table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_recordings_created_at ON recordings(created_at)"); err != nil {
		return fmt.Errorf("create recordings index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_segments_timestamp ON segments(timestamp)"); err != nil {
		return fmt.Errorf("create segments index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateRecording(rec Recording) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("recording id is required")
	}
	if rec.TranscriptStatus == "" {
		rec.TranscriptStatus = StatusPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(
		`INSERT INTO recordings(id, state, mime_type, sample_rate, num_channels, frames, duration, audio_path, transcript, transcript_status, reply, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.State,
		rec.MIMEType,
		rec.SampleRate,
		rec.NumChannels,
		rec.Frames,
		rec.DurationMS,
		rec.AudioPath,
		rec.Transcript,
		rec.TranscriptStatus,
		rec.Reply,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create recording %s: %w", rec.ID, err)
	}
	return nil
}

const recordingColumns = `id, state, mime_type, sample_rate, num_channels, frames, duration, audio_path, transcript, transcript_status, reply, created_at`

// GetRecording wraps sql.ErrNoRows when id is unknown.
func (s *SQLiteStore) GetRecording(id string) (Recording, error) {
	row := s.db.QueryRow(`SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)

	rec, err := scanRecording(row)
	if err != nil {
		return Recording{}, fmt.Errorf("query recording %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteStore) GetRecordingsByDate(date string) ([]Recording, error) {
	rows, err := s.db.Query(
		`SELECT `+recordingColumns+`
		 FROM recordings
		 WHERE substr(created_at, 1, 10) = ?
		 ORDER BY created_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query recordings by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	recordings := make([]Recording, 0, 16)
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		recordings = append(recordings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recording rows: %w", err)
	}
	return recordings, nil
}

// GetDates lists days with recordings or live segments, newest first.
func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT date FROM (
			SELECT substr(created_at, 1, 10) AS date FROM recordings
			UNION
			SELECT substr(timestamp, 1, 10) AS date FROM segments
		) ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

func (s *SQLiteStore) UpdateTranscript(id, transcript, status string) error {
	res, err := s.db.Exec(
		`UPDATE recordings SET transcript = ?, transcript_status = ? WHERE id = ?`,
		transcript,
		status,
		id,
	)
	if err != nil {
		return fmt.Errorf("update transcript for recording %s: %w", id, err)
	}
	return expectRow(res, "update transcript")
}

func (s *SQLiteStore) UpdateReply(id, reply string) error {
	res, err := s.db.Exec(`UPDATE recordings SET reply = ? WHERE id = ?`, reply, id)
	if err != nil {
		return fmt.Errorf("update reply for recording %s: %w", id, err)
	}
	return expectRow(res, "update reply")
}

// AppendSegment stores a live transcript segment. An empty RecordingID
// leaves the segment unattached.
func (s *SQLiteStore) AppendSegment(seg transcribe.Segment) error {
	var recordingID sql.NullString
	if seg.RecordingID != "" {
		recordingID = sql.NullString{String: seg.RecordingID, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO segments(recording_id, speaker, text, start_time, end_time, timestamp) VALUES(?, ?, ?, ?, ?, ?)`,
		recordingID,
		seg.Speaker,
		strings.TrimSpace(seg.Text),
		seg.StartTime,
		seg.EndTime,
		seg.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append segment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSegmentsByDate(date string) ([]transcribe.Segment, error) {
	rows, err := s.db.Query(
		`SELECT COALESCE(recording_id, ''), speaker, text, start_time, end_time, timestamp
		 FROM segments
		 WHERE substr(timestamp, 1, 10) = ?
		 ORDER BY id ASC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query segments for %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	segments := make([]transcribe.Segment, 0, 32)
	for rows.Next() {
		var seg transcribe.Segment
		var ts string
		if err := rows.Scan(&seg.RecordingID, &seg.Speaker, &seg.Text, &seg.StartTime, &seg.EndTime, &ts); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}

		parsedTS, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse segment timestamp: %w", err)
		}
		seg.Timestamp = parsedTS

		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segment rows: %w", err)
	}

	return segments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (Recording, error) {
	var rec Recording
	var createdAt string
	if err := row.Scan(
		&rec.ID, &rec.State, &rec.MIMEType, &rec.SampleRate, &rec.NumChannels, &rec.Frames,
		&rec.DurationMS, &rec.AudioPath, &rec.Transcript, &rec.TranscriptStatus, &rec.Reply, &createdAt,
	); err != nil {
		return Recording{}, err
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Recording{}, fmt.Errorf("parse created_at: %w", err)
	}
	rec.CreatedAt = parsed
	return rec, nil
}

func expectRow(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
