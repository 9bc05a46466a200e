package audio

import (
	"fmt"
	"math"
)

// Downsample resamples buf from sampleRate to targetRate by averaging the
// input samples that fall into each output slot. Equal rates return buf as is.
func Downsample(buf []float32, sampleRate, targetRate int) ([]float32, error) {
	if sampleRate <= 0 || targetRate <= 0 {
		return nil, fmt.Errorf("downsample %d Hz to %d Hz: %w", sampleRate, targetRate, ErrInvalidDownsampleRate)
	}
	if targetRate == sampleRate {
		return buf, nil
	}
	if targetRate > sampleRate {
		return nil, fmt.Errorf("target %d Hz above source %d Hz: %w", targetRate, sampleRate, ErrInvalidDownsampleRate)
	}

	ratio := float64(sampleRate) / float64(targetRate)
	out := make([]float32, int(math.Round(float64(len(buf))/ratio)))

	start := 0
	for j := range out {
		next := int(math.Round(float64(j+1) * ratio))
		var sum float64
		count := 0
		for i := start; i < next && i < len(buf); i++ {
			sum += float64(buf[i])
			count++
		}
		if count > 0 {
			out[j] = float32(sum / float64(count))
		}
		start = next
	}
	return out, nil
}
