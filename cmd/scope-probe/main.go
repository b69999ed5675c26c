// ABOUTME: Probe app to watch a running scope's frame feed
// ABOUTME: Finds a scope via mDNS or -addr and reports frame rate and feed latency
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/client"
	"github.com/Resonate-Protocol/resonate-scope/internal/discovery"
)

var (
	addr     = flag.String("addr", "", "Scope address host:port (default: browse mDNS)")
	volume   = flag.Float64("volume", -1, "Send a volume command (0-1) after connecting")
	duration = flag.Duration("duration", 0, "Stop after this long (default: until interrupted)")
	browse   = flag.Duration("browse", 3*time.Second, "mDNS browse timeout")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, *duration)
		defer stop()
	}

	target := client.Config{Addr: *addr}
	if target.Addr == "" {
		scopes, err := discovery.Browse(ctx, *browse)
		if err != nil {
			log.Fatalf("Browse failed: %v", err)
		}
		if len(scopes) == 0 {
			log.Fatalf("No scope found after %v", *browse)
		}
		target.Addr = scopes[0].Addr()
		target.Path = scopes[0].Path
	}

	c := client.NewClient(target)
	if err := c.Connect(ctx); err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer c.Close()

	hello := c.Hello()
	fmt.Printf("Connected to %q (session %s)\n", hello.Name, hello.SessionID)
	if src := hello.Source; src != nil {
		fmt.Printf("Source: %s %dHz x%d", src.Kind, src.SampleRate, src.Channels)
		if src.Title != "" {
			fmt.Printf(" - %s", src.Title)
		}
		fmt.Println()
	}

	if *volume >= 0 {
		if err := c.SetVolume(*volume); err != nil {
			log.Printf("Volume command failed: %v", err)
		}
	}

	report := time.NewTicker(time.Second)
	defer report.Stop()

	var frames int
	var latency time.Duration
	var lastTick uint64
	var skipped uint64

	for {
		select {
		case <-ctx.Done():
			fmt.Printf("Probe finished, %d frames dropped by client, %d skipped upstream\n", c.Dropped(), skipped)
			return
		case <-c.Done():
			log.Printf("Scope closed the feed")
			os.Exit(1)
		case f, ok := <-c.Frames:
			if !ok {
				continue
			}
			frames++
			latency += time.Since(time.UnixMilli(f.SentMs))
			if lastTick != 0 && f.Tick > lastTick+1 {
				skipped += f.Tick - lastTick - 1
			}
			lastTick = f.Tick
		case <-report.C:
			avg := time.Duration(0)
			if frames > 0 {
				avg = latency / time.Duration(frames)
			}
			log.Printf("%d frames/s, avg latency %v, tick %d", frames, avg.Round(time.Microsecond), lastTick)
			frames = 0
			latency = 0
		}
	}
}
