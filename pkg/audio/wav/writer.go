package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio"
)

// Encode writes pcm as a canonical 44-byte-header WAV stream.
func Encode(w io.Writer, f audio.Format, pcm []byte) error {
	if err := f.Validate(); err != nil {
		return err
	}

	dataSize := uint32(len(pcm))
	byteRate := uint32(f.SampleRate * f.BytesPerFrame())
	blockAlign := uint16(f.BytesPerFrame())

	var hdr [44]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36+dataSize)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1)
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], byteRate)
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], uint16(f.BitsPerSample))
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataSize)

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	return nil
}

// EncodeBytes returns pcm wrapped in a WAV header.
func EncodeBytes(f audio.Format, pcm []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	if err := Encode(&buf, f, pcm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
