// Package transcode converts synthesized clips (WAV, MP3 or raw PCM) into
// the 16-bit mono PCM format clients play back.
package transcode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio/wav"
)

// Transcode decodes data according to enc and returns PCM in dst. src is
// only consulted for audio.EncodingPCM. An empty clip yields empty output.
func Transcode(data []byte, enc audio.Encoding, src, dst audio.Format) ([]byte, error) {
	if err := dst.Validate(); err != nil {
		return nil, fmt.Errorf("target format: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	pcm, from, err := decode(data, enc, src)
	if err != nil {
		return nil, err
	}

	samples := toMono(pcm, from.Channels)
	samples = Resample(samples, from.SampleRate, dst.SampleRate)
	return fromMono(samples, dst.Channels), nil
}

func decode(data []byte, enc audio.Encoding, src audio.Format) ([]byte, audio.Format, error) {
	switch enc {
	case audio.EncodingWAV:
		h, pcm, err := wav.DecodeBytes(data)
		if err != nil {
			return nil, audio.Format{}, fmt.Errorf("decode wav: %w", err)
		}
		return pcm, h.Format(), nil

	case audio.EncodingMP3:
		d, err := mp3.NewDecoder(bytes.NewReader(data))
		if err != nil {
			return nil, audio.Format{}, fmt.Errorf("decode mp3: %w", err)
		}
		pcm, err := io.ReadAll(d)
		if err != nil {
			return nil, audio.Format{}, fmt.Errorf("decode mp3: %w", err)
		}
		// go-mp3 always emits 16-bit stereo
		return pcm, audio.Format{SampleRate: d.SampleRate(), Channels: 2, BitsPerSample: 16}, nil

	case audio.EncodingPCM, "":
		if wav.IsWAV(data) {
			return decode(data, audio.EncodingWAV, src)
		}
		if err := src.Validate(); err != nil {
			return nil, audio.Format{}, fmt.Errorf("source format: %w", err)
		}
		return data, src, nil

	default:
		return nil, audio.Format{}, fmt.Errorf("unsupported encoding %q", enc)
	}
}

// toMono averages interleaved channels into one int16 stream.
func toMono(pcm []byte, channels int) []int16 {
	if channels < 1 {
		channels = 1
	}
	frames := len(pcm) / (2 * channels)
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 2
			sum += int32(int16(binary.LittleEndian.Uint16(pcm[off:])))
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}

func fromMono(samples []int16, channels int) []byte {
	if channels < 1 {
		channels = 1
	}
	out := make([]byte, len(samples)*2*channels)
	for i, s := range samples {
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(out[(i*channels+ch)*2:], uint16(s))
		}
	}
	return out
}

// Resample converts mono samples between rates by linear interpolation.
func Resample(in []int16, from, to int) []int16 {
	if from == to || len(in) == 0 || from <= 0 || to <= 0 {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]int16, n)
	step := float64(from) / float64(to)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = in[last]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(float64(in[j])*(1-frac) + float64(in[j+1])*frac)
	}
	return out
}
