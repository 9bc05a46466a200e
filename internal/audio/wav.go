package audio

import "encoding/binary"

const (
	wavHeaderSize = 44
	pcmFormatTag  = 1
	pcmBitDepth   = 16
	fmtChunkSize  = 16
)

// ByteRateMode selects how the fmt chunk byte-rate field is computed.
type ByteRateMode int

const (
	// ByteRateLegacy writes sampleRate*4 whatever the channel count. Browser
	// recorders have always produced this, so it is the default.
	ByteRateLegacy ByteRateMode = iota
	// ByteRateCanonical writes sampleRate*blockAlign.
	ByteRateCanonical
)

// WAVFormat describes the 16-bit PCM container written by Encode.
type WAVFormat struct {
	SampleRate  int
	NumChannels int
	ByteRate    ByteRateMode
}

func (f WAVFormat) blockAlign() int {
	return f.NumChannels * bytesPerSample
}

func (f WAVFormat) byteRate() int {
	if f.ByteRate == ByteRateCanonical {
		return f.SampleRate * f.blockAlign()
	}
	return f.SampleRate * 4
}

// Encode serializes interleaved samples into a RIFF/WAVE buffer of exactly
// 44 + 2*len(samples) bytes.
func (f WAVFormat) Encode(samples []float32) []byte {
	dataSize := len(samples) * bytesPerSample
	buf := make([]byte, wavHeaderSize+dataSize)
	f.putHeader(buf, dataSize)
	FloatToPCM16(buf[wavHeaderSize:], samples)
	return buf
}

func (f WAVFormat) putHeader(buf []byte, dataSize int) {
	le := binary.LittleEndian

	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], fmtChunkSize)
	le.PutUint16(buf[20:22], pcmFormatTag)
	le.PutUint16(buf[22:24], uint16(f.NumChannels))
	le.PutUint32(buf[24:28], uint32(f.SampleRate))
	le.PutUint32(buf[28:32], uint32(f.byteRate()))
	le.PutUint16(buf[32:34], uint16(f.blockAlign()))
	le.PutUint16(buf[34:36], pcmBitDepth)

	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], uint32(dataSize))
}

// EncodeWAV encodes interleaved samples with the legacy byte-rate field.
func EncodeWAV(samples []float32, sampleRate, numChannels int) []byte {
	return WAVFormat{SampleRate: sampleRate, NumChannels: numChannels}.Encode(samples)
}
