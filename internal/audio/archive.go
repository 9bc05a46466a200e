package audio

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	FormatWAV = "wav"
	FormatMP3 = "mp3"
)

// ClipInfo describes a WAV clip as read back by a standard decoder.
type ClipInfo struct {
	SampleRate  int
	NumChannels int
	BitDepth    int
	Frames      int
	Duration    time.Duration
}

// Inspect parses a WAV blob. Duration is derived from the frame count, since
// the header byte rate of legacy mono clips is twice the real one.
func Inspect(data []byte) (ClipInfo, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return ClipInfo{}, errors.New("not a valid wav file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return ClipInfo{}, fmt.Errorf("locate wav data chunk: %w", err)
	}

	info := ClipInfo{
		SampleRate:  int(dec.SampleRate),
		NumChannels: int(dec.NumChans),
		BitDepth:    int(dec.BitDepth),
	}
	frameSize := info.NumChannels * info.BitDepth / 8
	if frameSize <= 0 || info.SampleRate <= 0 {
		return ClipInfo{}, fmt.Errorf("unsupported wav format: %d channels, %d bits, %d Hz", info.NumChannels, info.BitDepth, info.SampleRate)
	}
	info.Frames = int(dec.PCMLen()) / frameSize
	info.Duration = time.Duration(info.Frames) * time.Second / time.Duration(info.SampleRate)
	return info, nil
}

// Archiver persists exported clips under a directory, optionally transcoding
// them to MP3.
type Archiver struct {
	dir    string
	format string

	transcode func(wavPath, id string) (string, error)
}

func NewArchiver(dir, format string) *Archiver {
	if dir == "" {
		dir = filepath.Join("data", "audio")
	}
	if format == "" {
		format = FormatWAV
	}
	a := &Archiver{dir: dir, format: format}
	a.transcode = a.defaultTranscode
	return a
}

// Save writes blob as <id>.wav and returns the path of the archived file,
// which is the MP3 when transcoding is enabled and succeeds.
func (a *Archiver) Save(id string, blob Blob) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio directory: %w", err)
	}

	wavPath := filepath.Join(a.dir, id+".wav")
	if err := writeCanonicalWAV(wavPath, blob.Data); err != nil {
		return "", fmt.Errorf("write wav clip: %w", err)
	}

	if a.format != FormatMP3 {
		return wavPath, nil
	}

	mp3Path, err := a.transcode(wavPath, id)
	if err != nil {
		log.Printf("mp3 transcode %s, keeping wav: %v", id, err)
		return wavPath, nil
	}
	_ = os.Remove(wavPath)
	return mp3Path, nil
}

// writeCanonicalWAV stores data re-encoded with a header whose byte rate
// matches the sample format, so players report the right duration for
// legacy-header clips. Clips without samples are written as received.
func writeCanonicalWAV(path string, data []byte) error {
	dec := wav.NewDecoder(bytes.NewReader(data))
	pcm, err := dec.FullPCMBuffer()
	if err != nil || len(pcm.Data) == 0 {
		return os.WriteFile(path, data, 0o644)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := wav.NewEncoder(f, int(dec.SampleRate), int(dec.BitDepth), int(dec.NumChans), 1)
	err = enc.Write(&goaudio.IntBuffer{
		Data: pcm.Data,
		Format: &goaudio.Format{
			NumChannels: int(dec.NumChans),
			SampleRate:  int(dec.SampleRate),
		},
		SourceBitDepth: int(dec.BitDepth),
	})
	if cerr := enc.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (a *Archiver) defaultTranscode(wavPath, id string) (string, error) {
	mp3Path := filepath.Join(a.dir, id+".mp3")

	if err := exec.Command("ffmpeg", "-y", "-i", wavPath, mp3Path).Run(); err == nil {
		return mp3Path, nil
	}
	if err := exec.Command("lame", "--quiet", wavPath, mp3Path).Run(); err == nil {
		return mp3Path, nil
	}
	return "", fmt.Errorf("no mp3 encoder available for %s", wavPath)
}
