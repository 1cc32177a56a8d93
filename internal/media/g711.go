package media

// G.711 mu-law, the PCMU payload carried on the WebRTC audio track.

const (
	ulawBias = 0x84
	ulawClip = 32635
	// UlawSilence is the mu-law code for a zero sample.
	UlawSilence = 0xFF
)

var ulawTable [256]int16

func init() {
	for i := range 256 {
		ulawTable[i] = decodeUlawSample(byte(i))
	}
}

func decodeUlawSample(b byte) int16 {
	b = ^b
	sign := int16(1)
	if b&0x80 != 0 {
		sign = -1
		b &= 0x7F
	}
	exponent := int16((b >> 4) & 0x07)
	mantissa := int16(b & 0x0F)
	sample := (mantissa<<3 + ulawBias) << exponent
	sample -= ulawBias
	return sign * sample
}

func encodeUlawSample(s int16) byte {
	v := int32(s)
	sign := byte(0)
	if v < 0 {
		sign = 0x80
		v = -v
	}
	if v > ulawClip {
		v = ulawClip
	}
	v += ulawBias

	exponent := byte(7)
	for mask := int32(0x4000); v&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((v >> (exponent + 3)) & 0x0F)
	return ^(sign | exponent<<4 | mantissa)
}

// DecodeUlaw expands mu-law bytes to 16-bit samples.
func DecodeUlaw(data []byte) []int16 {
	out := make([]int16, len(data))
	for i, b := range data {
		out[i] = ulawTable[b]
	}
	return out
}

// EncodeUlaw compresses 16-bit samples to mu-law bytes.
func EncodeUlaw(samples []int16) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = encodeUlawSample(s)
	}
	return out
}
