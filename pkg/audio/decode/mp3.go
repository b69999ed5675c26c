// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 files to float32 PCM clips
package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3 decodes MPEG-1/2 layer III audio
type MP3 struct{}

// Decode converts MP3 bytes to a PCM clip
func (MP3) Decode(data []byte) (*audio.PCM, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	// go-mp3 always emits 16-bit little-endian stereo
	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	numSamples := len(raw) / 2
	samples := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = audio.SampleFromInt16(sample16)
	}

	return &audio.PCM{
		Samples:    samples,
		SampleRate: decoder.SampleRate(),
		Channels:   2,
		Format: audio.Format{
			SampleRate: decoder.SampleRate(),
			Channels:   2,
			BitDepth:   16,
		},
	}, nil
}
