// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC files frame by frame into float32 PCM clips
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLAC decodes Free Lossless Audio Codec files
type FLAC struct{}

// Decode converts FLAC bytes to a PCM clip
func (FLAC) Decode(data []byte) (*audio.PCM, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC stream: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	sampleRate := int(info.SampleRate)
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)

	samples := make([]float32, 0, int(info.NSamples)*channels)
	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("flac frame decode failed: %w", err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, audio.SampleFromInt(frame.Subframes[ch].Samples[i], bitDepth))
			}
		}
	}

	return &audio.PCM{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
		Format: audio.Format{
			SampleRate: sampleRate,
			Channels:   channels,
			BitDepth:   bitDepth,
		},
	}, nil
}
