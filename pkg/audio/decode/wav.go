// ABOUTME: WAV audio decoder
// ABOUTME: Decodes RIFF/WAVE files via go-audio/wav
package decode

import (
	"bytes"
	"fmt"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

// WAV decodes integer PCM WAVE files
type WAV struct{}

// Decode converts WAV bytes to a PCM clip
func (WAV) Decode(data []byte) (*audio.PCM, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav decode error: %w", err)
	}

	bitDepth := int(d.BitDepth)
	return intBufferToPCM(buf, bitDepth), nil
}

// intBufferToPCM scales a go-audio integer buffer into a float clip
func intBufferToPCM(buf *goaudio.IntBuffer, bitDepth int) *audio.PCM {
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = audio.SampleFromInt(int32(v), bitDepth)
	}

	return &audio.PCM{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Format: audio.Format{
			SampleRate: buf.Format.SampleRate,
			Channels:   buf.Format.NumChannels,
			BitDepth:   bitDepth,
		},
	}
}
