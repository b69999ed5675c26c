// ABOUTME: Playable remote streams decoded over HTTP or through ffmpeg
// ABOUTME: Playback pumps decoded audio to an optional sink and records the newest samples
package remote

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"sync"

	"github.com/hajimehoshi/go-mp3"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-scope/pkg/source"
)

// windowSeconds is how much recent audio a stream keeps for polling
const windowSeconds = 1

// decoder yields interleaved float32 samples from an encoded stream
type decoder interface {
	Read(dst []float32) (int, error)
	Close() error
}

// Stream is a decoded remote stream implementing source.Element
type Stream struct {
	url        string
	dec        decoder
	sampleRate int
	channels   int
	window     *audio.Window

	mu      sync.Mutex
	playing bool
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
}

func newStream(streamURL string, dec decoder, sampleRate, channels int) *Stream {
	return &Stream{
		url:        streamURL,
		dec:        dec,
		sampleRate: sampleRate,
		channels:   channels,
		window:     audio.NewWindow(sampleRate * channels * windowSeconds),
	}
}

// Open starts decoding streamURL, through ffmpeg for HLS playlists and go-mp3 otherwise
func Open(ctx context.Context, client *http.Client, streamURL string) (*Stream, error) {
	if IsHLS(streamURL) {
		return openFFmpeg(ctx, streamURL)
	}
	return openHTTPMP3(ctx, client, streamURL)
}

// IsHLS reports whether the URL points at an HLS playlist
func IsHLS(streamURL string) bool {
	u, err := url.Parse(streamURL)
	if err != nil {
		return strings.HasSuffix(streamURL, ".m3u8")
	}
	return strings.HasSuffix(u.Path, ".m3u8")
}

// SampleRate returns the decoded sample rate
func (s *Stream) SampleRate() int { return s.sampleRate }

// Channels returns the decoded channel count
func (s *Stream) Channels() int { return s.channels }

// Latest fills dst with the newest decoded samples
func (s *Stream) Latest(dst []float32) int { return s.window.Latest(dst) }

// Play starts decoding from the current position. Playing an already
// playing stream does nothing. With a nil sink decoding is paced in real time.
func (s *Stream) Play(sink source.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("stream closed")
	}
	if s.playing {
		return nil
	}

	var w output.Writer
	if sink != nil {
		w = sink
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.playing = true

	go func() {
		defer close(s.done)
		err := output.Pump(ctx, s.dec, w, s.sampleRate, s.channels, s.window.Write)
		if err != nil && ctx.Err() == nil {
			log.Printf("Stream %s ended with error: %v", s.url, err)
		} else if err == nil {
			log.Printf("Stream %s finished", s.url)
		}
	}()

	log.Printf("Playing stream: %s", s.url)
	return nil
}

// Done is closed when playback ends, or nil before Play
func (s *Stream) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Close stops playback and releases the decoder
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	err := s.dec.Close()
	if done != nil {
		<-done
	}
	return err
}

// httpMP3 decodes an MP3 response body
type httpMP3 struct {
	body    io.ReadCloser
	decoder *mp3.Decoder
	buf     []byte
}

func openHTTPMP3(ctx context.Context, client *http.Client, streamURL string) (*Stream, error) {
	if client == nil {
		client = http.DefaultClient
	}
	client = streamingClient(client)

	// The body outlives the resolve call; Close ends it
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTTP stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	dec, err := mp3.NewDecoder(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to decode MP3 stream: %w", err)
	}

	log.Printf("Streaming MP3 from HTTP: %s (sample rate: %d Hz)", streamURL, dec.SampleRate())

	// go-mp3 always outputs 16-bit stereo
	return newStream(streamURL, &httpMP3{body: resp.Body, decoder: dec}, dec.SampleRate(), 2), nil
}

// streamingClient returns client without its Timeout, which would also cut
// off the body of an endless stream
func streamingClient(client *http.Client) *http.Client {
	if client.Timeout == 0 {
		return client
	}
	c := *client
	c.Timeout = 0
	return &c
}

func (h *httpMP3) Read(dst []float32) (int, error) {
	need := len(dst) * 2
	if cap(h.buf) < need {
		h.buf = make([]byte, need)
	}
	buf := h.buf[:need]

	n, err := h.decoder.Read(buf)
	samples := n / 2
	for i := 0; i < samples; i++ {
		dst[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}
	return samples, err
}

func (h *httpMP3) Close() error {
	return h.body.Close()
}

// ffmpegPCM decodes any ffmpeg-readable URL to 16-bit PCM
type ffmpegPCM struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	buf    []byte
}

const (
	ffmpegSampleRate = 48000
	ffmpegChannels   = 2
)

func openFFmpeg(ctx context.Context, streamURL string) (*Stream, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w (install with: brew install ffmpeg)", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command("ffmpeg",
		"-loglevel", "error",
		"-i", streamURL,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", ffmpegSampleRate),
		"-ac", fmt.Sprintf("%d", ffmpegChannels),
		"-")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get ffmpeg stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	log.Printf("Streaming via ffmpeg: %s (sample rate: %d Hz, channels: %d)", streamURL, ffmpegSampleRate, ffmpegChannels)

	dec := &ffmpegPCM{cmd: cmd, stdout: stdout, reader: bufio.NewReader(stdout)}
	return newStream(streamURL, dec, ffmpegSampleRate, ffmpegChannels), nil
}

func (f *ffmpegPCM) Read(dst []float32) (int, error) {
	need := len(dst) * 2
	if cap(f.buf) < need {
		f.buf = make([]byte, need)
	}
	buf := f.buf[:need]

	n, err := io.ReadFull(f.reader, buf)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	samples := n / 2
	for i := 0; i < samples; i++ {
		dst[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}
	return samples, err
}

func (f *ffmpegPCM) Close() error {
	if f.stdout != nil {
		f.stdout.Close()
	}
	if f.cmd != nil && f.cmd.Process != nil {
		_ = f.cmd.Process.Kill()
		_ = f.cmd.Wait()
	}
	return nil
}
