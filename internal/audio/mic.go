package audio

import (
	"context"

	"github.com/gordonklaus/portaudio"
)

// Initialize must be called once before opening a Mic.
func Initialize() error { return portaudio.Initialize() }

// Terminate releases PortAudio.
func Terminate() error { return portaudio.Terminate() }

// Mic wraps a non-interleaved float32 PortAudio capture stream.
type Mic struct {
	stream *portaudio.Stream
	buf    [][]float32
}

// NewMic opens the default input device with one buffer of framesPerBuffer
// samples per channel.
func NewMic(sampleRate, channels, framesPerBuffer int) (*Mic, error) {
	buf := make([][]float32, channels)
	for ch := range buf {
		buf[ch] = make([]float32, framesPerBuffer)
	}
	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, err
	}
	return &Mic{stream: stream, buf: buf}, nil
}

func (m *Mic) Start() error { return m.stream.Start() }
func (m *Mic) Stop() error  { return m.stream.Stop() }
func (m *Mic) Close() error { return m.stream.Close() }

// Stream reads blocks and hands a copy of each to sink until ctx is done or
// a read or sink call fails.
func (m *Mic) Stream(ctx context.Context, sink func(blocks [][]float32) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := m.stream.Read(); err != nil {
			return err
		}
		if err := sink(copyBlocks(m.buf)); err != nil {
			return err
		}
	}
}
