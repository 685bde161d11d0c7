// Package wav reads and writes 16-bit PCM RIFF/WAVE data.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio"
)

// Header describes the fmt and data chunks of a WAV stream.
type Header struct {
	SampleRate    uint32
	NumChannels   uint16
	BitsPerSample uint16
	DataSize      uint32
}

// Format converts the header to an audio.Format.
func (h Header) Format() audio.Format {
	return audio.Format{
		SampleRate:    int(h.SampleRate),
		Channels:      int(h.NumChannels),
		BitsPerSample: int(h.BitsPerSample),
	}
}

// IsWAV reports whether data starts with a RIFF/WAVE signature.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// Decode reads a WAV stream and returns its header and PCM payload.
// Streaming encoders often write 0 or 0xFFFFFFFF as the data size; in that
// case everything up to EOF is taken as audio.
func Decode(r io.Reader) (Header, []byte, error) {
	var h Header

	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return h, nil, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" {
		return h, nil, fmt.Errorf("not a valid RIFF stream")
	}
	if string(riff[8:12]) != "WAVE" {
		return h, nil, fmt.Errorf("not a valid WAVE stream")
	}

	haveFmt := false
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return h, nil, fmt.Errorf("failed to read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return h, nil, fmt.Errorf("fmt chunk too small: %d bytes", size)
			}
			var fmtData [16]byte
			if _, err := io.ReadFull(r, fmtData[:]); err != nil {
				return h, nil, fmt.Errorf("failed to read fmt data: %w", err)
			}
			if tag := binary.LittleEndian.Uint16(fmtData[0:2]); tag != 1 && tag != 0xFFFE {
				return h, nil, fmt.Errorf("only PCM format is supported, got format %d", tag)
			}
			h.NumChannels = binary.LittleEndian.Uint16(fmtData[2:4])
			h.SampleRate = binary.LittleEndian.Uint32(fmtData[4:8])
			h.BitsPerSample = binary.LittleEndian.Uint16(fmtData[14:16])
			if err := skip(r, int64(size-16)+int64(size%2)); err != nil {
				return h, nil, fmt.Errorf("failed to skip fmt data: %w", err)
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return h, nil, fmt.Errorf("data chunk before fmt chunk")
			}
			if err := h.Format().Validate(); err != nil {
				return h, nil, err
			}
			var pcm []byte
			var err error
			if size == 0 || size == 0xFFFFFFFF {
				pcm, err = io.ReadAll(r)
			} else {
				pcm = make([]byte, size)
				var n int
				n, err = io.ReadFull(r, pcm)
				if errors.Is(err, io.ErrUnexpectedEOF) {
					// truncated stream, keep what arrived
					pcm, err = pcm[:n], nil
				}
			}
			if err != nil {
				return h, nil, fmt.Errorf("failed to read audio data: %w", err)
			}
			pcm = pcm[:len(pcm)&^1]
			h.DataSize = uint32(len(pcm))
			return h, pcm, nil

		default:
			if err := skip(r, int64(size)+int64(size%2)); err != nil {
				return h, nil, fmt.Errorf("failed to skip chunk %q: %w", id, err)
			}
		}
	}
}

// DecodeBytes is Decode over an in-memory clip.
func DecodeBytes(data []byte) (Header, []byte, error) {
	return Decode(bytes.NewReader(data))
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, n)
	return err
}
