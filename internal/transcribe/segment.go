package transcribe

import (
	"fmt"
	"strings"
	"time"
)

type Word struct {
	Speaker        *int
	PunctuatedWord string
	Start          float64
	End            float64
}

// Segment is a run of consecutive words from one speaker. RecordingID is set
// when the segment belongs to an archived clip rather than the live stream.
type Segment struct {
	RecordingID string    `json:"recording_id,omitempty"`
	Speaker     int       `json:"speaker"`
	Text        string    `json:"text"`
	StartTime   float64   `json:"start_time"`
	EndTime     float64   `json:"end_time"`
	Timestamp   time.Time `json:"timestamp"`
}

func GroupWordsBySpeaker(words []Word) []Segment {
	var segments []Segment
	for _, w := range words {
		speaker := -1
		if w.Speaker != nil {
			speaker = *w.Speaker
		}

		if n := len(segments); n > 0 && segments[n-1].Speaker == speaker {
			segments[n-1].Text += " " + w.PunctuatedWord
			segments[n-1].EndTime = w.End
			continue
		}
		segments = append(segments, Segment{
			Speaker:   speaker,
			Text:      w.PunctuatedWord,
			StartTime: w.Start,
			EndTime:   w.End,
			Timestamp: time.Now(),
		})
	}
	return segments
}

func (s Segment) FormatMarkdown() string {
	ts := s.Timestamp.Format("15:04:05")
	if s.Speaker < 0 {
		return fmt.Sprintf("**[%s]** %s", ts, strings.TrimSpace(s.Text))
	}
	return fmt.Sprintf("**[%s] Speaker %d:** %s", ts, s.Speaker, strings.TrimSpace(s.Text))
}
