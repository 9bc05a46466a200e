package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/ghost-recorder/internal/transcribe"
)

// TranscriptLog appends markdown lines to one file per local day.
type TranscriptLog struct {
	dir string
	mu  sync.Mutex
}

func NewTranscriptLog(dir string) *TranscriptLog {
	return &TranscriptLog{dir: dir}
}

func (l *TranscriptLog) Append(seg transcribe.Segment) error {
	return l.write(seg.Timestamp, seg.FormatMarkdown())
}

// AppendExchange records a clip's transcript and the assistant reply to it.
func (l *TranscriptLog) AppendExchange(at time.Time, recordingID, transcript, reply string) error {
	line := fmt.Sprintf("**[%s] %s:** %s", at.Format("15:04:05"), recordingID, strings.TrimSpace(transcript))
	if reply = strings.TrimSpace(reply); reply != "" {
		line += "\n> " + strings.ReplaceAll(reply, "\n", "\n> ")
	}
	return l.write(at, line)
}

func (l *TranscriptLog) PathFor(day time.Time) string {
	return filepath.Join(l.dir, day.Format("2006-01-02")+".md")
}

func (l *TranscriptLog) write(at time.Time, line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", l.dir, err)
	}

	path := l.PathFor(at)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
