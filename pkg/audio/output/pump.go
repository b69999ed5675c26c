// ABOUTME: Pump copies a sample reader into an output in real time
// ABOUTME: Paces on the wall clock when no output device is attached
package output

import (
	"context"
	"errors"
	"io"
	"time"
)

// ChunkDuration is the amount of audio moved per pump iteration
const ChunkDuration = 20 * time.Millisecond

// Reader produces interleaved float32 samples
type Reader interface {
	Read(dst []float32) (int, error)
}

// Pump moves samples from r to w until r is drained or ctx is cancelled.
// tap, if set, sees every chunk before it is written.
// With a nil writer the pump sleeps one chunk duration per chunk so taps
// observe audio at playback speed.
func Pump(ctx context.Context, r Reader, w Writer, sampleRate, channels int, tap func([]float32)) error {
	if sampleRate <= 0 || channels <= 0 {
		return errors.New("pump requires a positive sample rate and channel count")
	}

	frames := int(ChunkDuration * time.Duration(sampleRate) / time.Second)
	if frames < 1 {
		frames = 1
	}
	chunk := make([]float32, frames*channels)

	var ticker *time.Ticker
	if w == nil {
		ticker = time.NewTicker(ChunkDuration)
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.Read(chunk)
		if n > 0 {
			samples := chunk[:n]
			if tap != nil {
				tap(samples)
			}
			if w != nil {
				if werr := w.Write(samples); werr != nil {
					return werr
				}
			} else {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
				}
			}
		}

		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
