package audio

import "fmt"

// Config is fixed for a recording session.
type Config struct {
	SampleRate  int `json:"sampleRate"`
	NumChannels int `json:"numChannels"`
}

// Validate checks the rate and channel count, wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate %d: %w", c.SampleRate, ErrInvalidConfig)
	}
	if c.NumChannels != 1 && c.NumChannels != 2 {
		return fmt.Errorf("%d channels: %w", c.NumChannels, ErrInvalidConfig)
	}
	return nil
}

// Blob is an encoded clip tagged with its media type.
type Blob struct {
	Type string
	Data []byte
}

// Option tunes how an Encoder renders exports.
type Option func(*Encoder)

// WithCanonicalByteRate writes sampleRate*blockAlign into the header instead
// of the legacy sampleRate*4.
func WithCanonicalByteRate() Option {
	return func(e *Encoder) { e.byteRate = ByteRateCanonical }
}

// WithRejectEmpty makes exports fail with ErrEmptyBufferExport when nothing
// has been recorded. By default they yield a header-only WAV.
func WithRejectEmpty() Option {
	return func(e *Encoder) { e.rejectEmpty = true }
}

// WithDownsample resamples every channel to targetRate before encoding.
// A zero rate leaves the export path untouched.
func WithDownsample(targetRate int) Option {
	return func(e *Encoder) { e.targetRate = targetRate }
}

// Encoder accumulates per-channel float blocks for one session and renders
// them as WAV on demand. It is not safe for concurrent use; Worker gives it a
// single owner.
type Encoder struct {
	cfg         Config
	initialized bool

	buffers [][][]float32
	length  int

	byteRate    ByteRateMode
	rejectEmpty bool
	targetRate  int
}

// NewEncoder returns an encoder that must be initialized before recording.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init starts a session with cfg, discarding anything recorded before.
func (e *Encoder) Init(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg
	e.initialized = true
	e.resetBuffers()
	return nil
}

// Config returns the session config and whether Init has run.
func (e *Encoder) Config() (Config, bool) {
	return e.cfg, e.initialized
}

// RecordedLength is the number of samples recorded per channel since the last Clear.
func (e *Encoder) RecordedLength() int {
	return e.length
}

// Record appends one block per channel. Blocks are copied.
func (e *Encoder) Record(blocks [][]float32) error {
	if !e.initialized {
		return fmt.Errorf("record: %w", ErrUninitializedSession)
	}
	if len(blocks) != e.cfg.NumChannels {
		return fmt.Errorf("record %d channels, session has %d: %w", len(blocks), e.cfg.NumChannels, ErrChannelCountMismatch)
	}
	n := len(blocks[0])
	for ch, block := range blocks[1:] {
		if len(block) != n {
			return fmt.Errorf("record channel %d has %d samples, channel 0 has %d: %w", ch+1, len(block), n, ErrChannelLengthMismatch)
		}
	}

	for ch, block := range blocks {
		e.buffers[ch] = append(e.buffers[ch], append([]float32(nil), block...))
	}
	e.length += n
	return nil
}

// GetBuffer returns each channel's samples merged into one slice.
func (e *Encoder) GetBuffer() ([][]float32, error) {
	if err := e.exportable("get buffer"); err != nil {
		return nil, err
	}
	return e.merged(), nil
}

// ExportWAV merges, interleaves and encodes everything recorded so far. The
// session is left as is; call Clear to start a new segment.
func (e *Encoder) ExportWAV(mimeType string) (Blob, error) {
	if err := e.exportable("export wav"); err != nil {
		return Blob{}, err
	}

	channels := e.merged()
	rate := e.cfg.SampleRate
	if e.targetRate > 0 && e.targetRate != rate {
		for ch := range channels {
			resampled, err := Downsample(channels[ch], rate, e.targetRate)
			if err != nil {
				return Blob{}, fmt.Errorf("export wav: %w", err)
			}
			channels[ch] = resampled
		}
		rate = e.targetRate
	}

	samples := channels[0]
	if e.cfg.NumChannels == 2 {
		interleaved, err := Interleave(channels[0], channels[1])
		if err != nil {
			return Blob{}, fmt.Errorf("export wav: %w", err)
		}
		samples = interleaved
	}

	format := WAVFormat{SampleRate: rate, NumChannels: e.cfg.NumChannels, ByteRate: e.byteRate}
	return Blob{Type: mimeType, Data: format.Encode(samples)}, nil
}

// Clear drops recorded samples and keeps the config.
func (e *Encoder) Clear() {
	e.resetBuffers()
}

func (e *Encoder) exportable(op string) error {
	if !e.initialized {
		return fmt.Errorf("%s: %w", op, ErrUninitializedSession)
	}
	if e.length == 0 && e.rejectEmpty {
		return fmt.Errorf("%s: %w", op, ErrEmptyBufferExport)
	}
	return nil
}

func (e *Encoder) merged() [][]float32 {
	out := make([][]float32, e.cfg.NumChannels)
	for ch := range out {
		out[ch] = MergeBuffers(e.buffers[ch], e.length)
	}
	return out
}

func (e *Encoder) resetBuffers() {
	e.length = 0
	e.buffers = make([][][]float32, e.cfg.NumChannels)
}
