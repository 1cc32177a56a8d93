package media

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrUnsupportedWAV = errors.New("unsupported wav")

type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

// WriteWAV writes mono PCM16 samples as a canonical 44-byte-header WAV.
func WriteWAV(out io.Writer, samples []int16, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedWAV, sampleRate)
	}
	dataSize := uint32(len(samples) * 2)
	h := wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 2),
		BlockAlign:    2,
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataSize,
	}
	w := bufio.NewWriter(out)
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, samples); err != nil {
		return err
	}
	return w.Flush()
}

func WriteWAVFile(path string, samples []int16, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DecodeWAV reads 16-bit PCM WAV data. Multi-channel audio is averaged down
// to mono.
func DecodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnsupportedWAV)
	}

	var (
		haveFmt    bool
		format     uint16
		channels   int
		sampleRate int
		bits       uint16
		pcm        []byte
	)
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8
		if size < 0 || off+size > len(data) {
			return nil, 0, fmt.Errorf("%w: chunk %q overruns file", ErrUnsupportedWAV, id)
		}
		chunk := data[off : off+size]
		switch id {
		case "fmt ":
			if len(chunk) < 16 {
				return nil, 0, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedWAV)
			}
			format = binary.LittleEndian.Uint16(chunk[0:2])
			channels = int(binary.LittleEndian.Uint16(chunk[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(chunk[4:8]))
			bits = binary.LittleEndian.Uint16(chunk[14:16])
			haveFmt = true
		case "data":
			pcm = chunk
		}
		// Chunks are word aligned.
		off += size + size%2
	}

	switch {
	case !haveFmt:
		return nil, 0, fmt.Errorf("%w: fmt chunk missing", ErrUnsupportedWAV)
	case len(pcm) == 0:
		return nil, 0, fmt.Errorf("%w: data chunk missing", ErrUnsupportedWAV)
	case format != 1:
		return nil, 0, fmt.Errorf("%w: audio format %d", ErrUnsupportedWAV, format)
	case bits != 16:
		return nil, 0, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedWAV, bits)
	case channels == 0 || sampleRate <= 0:
		return nil, 0, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedWAV, channels, sampleRate)
	}

	interleaved := DecodePCM16(pcm)
	if channels == 1 {
		return interleaved, sampleRate, nil
	}
	frames := len(interleaved) / channels
	mono := make([]int16, frames)
	for i := range frames {
		sum := 0
		for ch := range channels {
			sum += int(interleaved[i*channels+ch])
		}
		mono[i] = int16(sum / channels)
	}
	return mono, sampleRate, nil
}

func LoadWAV(path string) ([]int16, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	return DecodeWAV(data)
}
