package audio

import (
	"bytes"
	"fmt"
	"io"
	"math"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV parses WAV bytes into a mono Waveform. Stereo input is downmixed
// by channel averaging; samples are normalized to [-1, 1].
func DecodeWAV(data []byte) (Waveform, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: decode wav: %v", ErrInvalidInput, err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return Waveform{}, fmt.Errorf("%w: wav contains no samples", ErrInvalidInput)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	scale := 1.0
	if d.BitDepth > 0 {
		scale = 1.0 / float64(int64(1)<<(d.BitDepth-1))
	}

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c]) * scale
		}
		samples[i] = sum / float64(channels)
	}

	w := Waveform{Samples: samples, SampleRate: buf.Format.SampleRate}
	if err := w.Validate(); err != nil {
		return Waveform{}, err
	}
	return w, nil
}

// EncodeWAV renders the waveform as 16-bit PCM WAV bytes. Samples outside
// [-1, 1] are clipped at the codec boundary; the mixer's limiter keeps the
// signal below ceiling before this point.
func EncodeWAV(w Waveform) ([]byte, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	data := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		v := math.Round(s * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		data[i] = int(v)
	}

	var out seekBuffer
	e := wav.NewEncoder(&out, w.SampleRate, 16, 1, 1)
	buf := &gaudio.IntBuffer{
		Data:           data,
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: w.SampleRate},
		SourceBitDepth: 16,
	}
	if err := e.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := e.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}
	return out.Bytes(), nil
}

// seekBuffer is an in-memory io.WriteSeeker for the wav encoder, which
// seeks back to patch RIFF chunk sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.buf) {
		grown := make([]byte, need)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek: negative position %d", abs)
	}
	b.pos = int(abs)
	return abs, nil
}

func (b *seekBuffer) Bytes() []byte { return b.buf }
