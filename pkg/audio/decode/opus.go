// ABOUTME: Ogg Opus audio decoder
// ABOUTME: Decodes .opus files through libopusfile streams
package decode

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

// Opus always decodes at 48kHz regardless of the input rate
const opusSampleRate = 48000

// Opus decodes Ogg-encapsulated Opus files
type Opus struct{}

// Decode converts Ogg Opus bytes to a PCM clip
func (Opus) Decode(data []byte) (*audio.PCM, error) {
	channels, err := opusChannels(data)
	if err != nil {
		return nil, err
	}

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open opus stream: %w", err)
	}
	defer stream.Close()

	// 120ms is the largest Opus frame
	chunk := make([]float32, 5760*channels)
	var samples []float32
	for {
		n, err := stream.ReadFloat32(chunk)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("opus decode failed: %w", err)
		}
		if n == 0 {
			break
		}
		samples = append(samples, chunk[:n*channels]...)
	}

	return &audio.PCM{
		Samples:    samples,
		SampleRate: opusSampleRate,
		Channels:   channels,
		Format: audio.Format{
			SampleRate: opusSampleRate,
			Channels:   channels,
			BitDepth:   16,
		},
	}, nil
}

// opusChannels reads the channel count from the OpusHead identification header
func opusChannels(data []byte) (int, error) {
	idx := bytes.Index(data, []byte("OpusHead"))
	if idx < 0 || idx+9 >= len(data) {
		return 0, ErrMissingOpusHead
	}
	channels := int(data[idx+9])
	if channels == 0 {
		return 0, fmt.Errorf("%w: zero channels", ErrMissingOpusHead)
	}
	return channels, nil
}
