// ABOUTME: Decoder interface and format registry
// ABOUTME: Sniffs container magic bytes and dispatches to the matching decoder
package decode

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

// Decoder decodes a complete encoded file into a PCM clip
type Decoder interface {
	Decode(data []byte) (*audio.PCM, error)
}

// Format names understood by the registry
const (
	FormatMP3    = "mp3"
	FormatFLAC   = "flac"
	FormatWAV    = "wav"
	FormatAIFF   = "aiff"
	FormatVorbis = "vorbis"
	FormatOpus   = "opus"
)

// Registry maps sniffed formats to decoders
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Decoder
}

// NewRegistry creates a registry with every built-in decoder registered
func NewRegistry() *Registry {
	r := &Registry{
		codecs: make(map[string]Decoder),
	}
	r.Register(FormatMP3, MP3{})
	r.Register(FormatFLAC, FLAC{})
	r.Register(FormatWAV, WAV{})
	r.Register(FormatAIFF, AIFF{})
	r.Register(FormatVorbis, Vorbis{})
	r.Register(FormatOpus, Opus{})
	return r
}

// Register adds or replaces the decoder for a format
func (r *Registry) Register(format string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[format] = d
}

// Get returns the decoder for a format
func (r *Registry) Get(format string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.codecs[format]
	return d, ok
}

// Decode sniffs the format and decodes data
func (r *Registry) Decode(data []byte) (*audio.PCM, error) {
	format, err := Sniff(data)
	if err != nil {
		return nil, err
	}

	d, ok := r.Get(format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}

	pcm, err := d.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", format, err)
	}
	if pcm.Frames() == 0 {
		return nil, fmt.Errorf("%s: %w", format, ErrNoAudioFrames)
	}

	pcm.Format.Codec = format
	return pcm, nil
}

// Sniff identifies the container format from leading bytes
func Sniff(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyInput
	}

	switch {
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FormatFLAC, nil
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV, nil
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("FORM")) &&
		(bytes.Equal(data[8:12], []byte("AIFF")) || bytes.Equal(data[8:12], []byte("AIFC"))):
		return FormatAIFF, nil
	case bytes.HasPrefix(data, []byte("OggS")):
		// The codec identification packet lives in the first page
		head := data
		if len(head) > 512 {
			head = head[:512]
		}
		if bytes.Contains(head, []byte("OpusHead")) {
			return FormatOpus, nil
		}
		if bytes.Contains(head, []byte("\x01vorbis")) {
			return FormatVorbis, nil
		}
		return "", fmt.Errorf("%w: ogg stream with unknown codec", ErrUnsupported)
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3, nil
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG audio frame sync
		return FormatMP3, nil
	}

	return "", ErrNotAudio
}
