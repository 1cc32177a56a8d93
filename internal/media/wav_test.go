package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"
)

func TestWAVRoundTrip(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}
	var buf bytes.Buffer
	if err := WriteWAV(&buf, samples, 16000); err != nil {
		t.Fatalf("WriteWAV() error = %v", err)
	}
	if buf.Len() != 44+len(samples)*2 {
		t.Fatalf("len = %d, want %d", buf.Len(), 44+len(samples)*2)
	}
	got, rate, err := DecodeWAV(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if rate != 16000 {
		t.Fatalf("rate = %d, want 16000", rate)
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("samples[%d] = %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	// Frame 1: L=1000, R=-1000 => 0. Frame 2: L=3000, R=1000 => 2000.
	stereo := []int16{1000, -1000, 3000, 1000}
	var b bytes.Buffer
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+len(stereo)*2))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	for _, v := range []any{uint32(16), uint16(1), uint16(2), uint32(24000), uint32(24000 * 4), uint16(4), uint16(16)} {
		_ = binary.Write(&b, binary.LittleEndian, v)
	}
	// An odd-sized chunk before data exercises word alignment.
	b.WriteString("LIST")
	_ = binary.Write(&b, binary.LittleEndian, uint32(3))
	b.Write([]byte{1, 2, 3, 0})
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(len(stereo)*2))
	_ = binary.Write(&b, binary.LittleEndian, stereo)

	got, rate, err := DecodeWAV(b.Bytes())
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if rate != 24000 {
		t.Fatalf("rate = %d, want 24000", rate)
	}
	if len(got) != 2 || got[0] != 0 || got[1] != 2000 {
		t.Fatalf("downmix = %v, want [0 2000]", got)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("not a wav file")); !errors.Is(err, ErrUnsupportedWAV) {
		t.Fatalf("DecodeWAV() error = %v, want ErrUnsupportedWAV", err)
	}
}

func TestWAVFileAndClipMicrophone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	clip := []int16{100, 200, 300}
	if err := WriteWAVFile(path, clip, 8000); err != nil {
		t.Fatalf("WriteWAVFile() error = %v", err)
	}
	mic, err := NewWAVMicrophone(path)
	if err != nil {
		t.Fatalf("NewWAVMicrophone() error = %v", err)
	}
	capture, err := mic.Open(8000)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer capture.Close()

	frame := make([]int16, 2)
	if err := capture.ReadFrame(frame); err != nil || frame[0] != 0 || frame[1] != 0 {
		t.Fatalf("disabled frame = %v, %v, want silence", frame, err)
	}

	capture.SetEnabled(true)
	_ = capture.ReadFrame(frame)
	if frame[0] != 100 || frame[1] != 200 {
		t.Fatalf("frame = %v, want clip start", frame)
	}
	_ = capture.ReadFrame(frame)
	if frame[0] != 300 || frame[1] != 0 {
		t.Fatalf("frame = %v, want clip tail then silence", frame)
	}

	// Re-enabling restarts the clip.
	capture.SetEnabled(false)
	capture.SetEnabled(true)
	_ = capture.ReadFrame(frame)
	if frame[0] != 100 {
		t.Fatalf("frame = %v, want clip restarted", frame)
	}

	capture.Close()
	if err := capture.ReadFrame(frame); !errors.Is(err, ErrClosed) {
		t.Fatalf("ReadFrame() after Close error = %v, want ErrClosed", err)
	}
}

func TestRecordingSpeaker(t *testing.T) {
	r := NewRecordingSpeaker(8000)
	r.Play([]int16{1, 2, 3}, 8000)
	r.SetMuted(true)
	r.Play([]int16{4, 5}, 8000)
	r.SetMuted(false)

	got, rate := r.Samples()
	if rate != 8000 || len(got) != 3 || got[2] != 3 {
		t.Fatalf("Samples() = %v @ %d, want 3 samples at 8000", got, rate)
	}
}
