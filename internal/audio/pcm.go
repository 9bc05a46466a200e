package audio

import (
	"encoding/binary"
	"math"
)

const bytesPerSample = 2

// PCM16 quantizes a float sample in [-1, 1] to signed 16-bit. Out of range
// values are clamped and NaN maps to silence.
func PCM16(sample float32) int16 {
	s := float64(sample)
	if math.IsNaN(s) {
		return 0
	}
	s = math.Max(-1, math.Min(1, s))
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7FFF)
}

// FloatToPCM16 writes samples as little-endian int16 into dst, which must
// hold at least 2*len(samples) bytes.
func FloatToPCM16(dst []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*bytesPerSample:], uint16(PCM16(s)))
	}
}

// InterleavePCM16 renders one record call (a block per channel) as
// interleaved little-endian PCM16 bytes.
func InterleavePCM16(blocks [][]float32) []byte {
	if len(blocks) == 0 {
		return nil
	}
	frames := len(blocks[0])
	out := make([]byte, frames*len(blocks)*bytesPerSample)
	pos := 0
	for i := 0; i < frames; i++ {
		for _, block := range blocks {
			var s float32
			if i < len(block) {
				s = block[i]
			}
			binary.LittleEndian.PutUint16(out[pos:], uint16(PCM16(s)))
			pos += bytesPerSample
		}
	}
	return out
}

// RMS returns the root mean square level of a block.
func RMS(block []float32) float64 {
	if len(block) == 0 {
		return 0
	}
	var sum float64
	for _, s := range block {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(block)))
}
