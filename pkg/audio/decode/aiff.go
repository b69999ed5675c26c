// ABOUTME: AIFF audio decoder
// ABOUTME: Decodes AIFF/AIFC files via go-audio/aiff
package decode

import (
	"bytes"
	"fmt"

	"github.com/go-audio/aiff"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

// AIFF decodes Audio Interchange File Format files
type AIFF struct{}

// Decode converts AIFF bytes to a PCM clip
func (AIFF) Decode(data []byte) (*audio.PCM, error) {
	d := aiff.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, ErrInvalidAIFF
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("aiff decode error: %w", err)
	}

	return intBufferToPCM(buf, int(d.BitDepth)), nil
}
