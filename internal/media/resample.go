package media

import "math"

// Resample converts samples from srcRate to dstRate using linear
// interpolation with a windowed-sinc anti-aliasing filter. Input is
// returned unchanged when the rates already match.
func Resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	return toInt16(resampleFloat(toFloat(samples), srcRate, dstRate))
}

func resampleFloat(samples []float32, srcRate, dstRate int) []float32 {
	cutoff := float64(min(srcRate, dstRate)) / 2.0

	if srcRate > dstRate {
		samples = lowPass(samples, cutoff, float64(srcRate), 31)
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(math.Round(float64(len(samples)) / ratio))
	out := make([]float32, outLen)
	for i := range outLen {
		pos := float64(i) * ratio
		idx := int(pos)
		out[i] = interpolate(samples, idx, float32(pos-float64(idx)))
	}

	if dstRate > srcRate {
		out = lowPass(out, cutoff, float64(dstRate), 31)
	}
	return out
}

func lowPass(samples []float32, cutoff, sampleRate float64, taps int) []float32 {
	kernel := sincKernel(cutoff, sampleRate, taps)
	half := taps / 2
	out := make([]float32, len(samples))
	for i := range samples {
		jStart := max(0, half-i)
		jEnd := min(taps, len(samples)-i+half)
		var sum float32
		for j := jStart; j < jEnd; j++ {
			sum += samples[i+j-half] * kernel[j]
		}
		out[i] = sum
	}
	return out
}

// sincKernel returns a Blackman-windowed sinc kernel normalized to unity
// gain at DC.
func sincKernel(cutoff, sampleRate float64, taps int) []float32 {
	fc := cutoff / sampleRate
	half := taps / 2
	kernel := make([]float32, taps)
	var sum float64
	for i := range taps {
		n := float64(i - half)
		sinc := 1.0
		if n != 0 {
			x := 2.0 * math.Pi * fc * n
			sinc = math.Sin(x) / x
		}
		w := 0.42 - 0.5*math.Cos(2.0*math.Pi*float64(i)/float64(taps-1)) +
			0.08*math.Cos(4.0*math.Pi*float64(i)/float64(taps-1))
		kernel[i] = float32(sinc * w)
		sum += sinc * w
	}
	scale := float32(1.0 / sum)
	for i := range kernel {
		kernel[i] *= scale
	}
	return kernel
}

func interpolate(samples []float32, idx int, frac float32) float32 {
	if idx+1 >= len(samples) {
		return samples[len(samples)-1]
	}
	return samples[idx]*(1-frac) + samples[idx+1]*frac
}
