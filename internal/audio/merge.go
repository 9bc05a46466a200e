package audio

import "fmt"

// MergeBuffers packs blocks end to end into a single slice of exactly totalLength samples.
func MergeBuffers(blocks [][]float32, totalLength int) []float32 {
	if totalLength < 0 {
		totalLength = 0
	}
	out := make([]float32, totalLength)
	offset := 0
	for _, block := range blocks {
		if offset >= totalLength {
			break
		}
		offset += copy(out[offset:], block)
	}
	return out
}

// Interleave produces L,R,L,R... from two equal-length channels.
func Interleave(left, right []float32) ([]float32, error) {
	if len(left) != len(right) {
		return nil, fmt.Errorf("interleave %d and %d samples: %w", len(left), len(right), ErrChannelLengthMismatch)
	}

	out := make([]float32, len(left)*2)
	for i := range left {
		out[2*i] = left[i]
		out[2*i+1] = right[i]
	}
	return out, nil
}
