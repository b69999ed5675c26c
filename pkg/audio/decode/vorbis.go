// ABOUTME: Ogg Vorbis audio decoder
// ABOUTME: Decodes Ogg Vorbis files via jfreymuth/oggvorbis
package decode

import (
	"bytes"
	"fmt"

	"github.com/jfreymuth/oggvorbis"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

// Vorbis decodes Ogg Vorbis files
type Vorbis struct{}

// Decode converts Ogg Vorbis bytes to a PCM clip
func (Vorbis) Decode(data []byte) (*audio.PCM, error) {
	samples, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("vorbis decode error: %w", err)
	}

	return &audio.PCM{
		Samples:    samples,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Format: audio.Format{
			SampleRate: format.SampleRate,
			Channels:   format.Channels,
			BitDepth:   32,
		},
	}, nil
}
