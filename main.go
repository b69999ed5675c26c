// ABOUTME: Entry point for resonate-scope
// ABOUTME: Parses CLI flags, opens one audio source, and serves the analysed frame feed
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Resonate-Protocol/resonate-scope/internal/artwork"
	"github.com/Resonate-Protocol/resonate-scope/internal/config"
	"github.com/Resonate-Protocol/resonate-scope/internal/discovery"
	"github.com/Resonate-Protocol/resonate-scope/internal/meter"
	"github.com/Resonate-Protocol/resonate-scope/internal/ui"
	"github.com/Resonate-Protocol/resonate-scope/internal/version"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/capture"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-scope/pkg/frame"
	"github.com/Resonate-Protocol/resonate-scope/pkg/library"
	"github.com/Resonate-Protocol/resonate-scope/pkg/remote"
	"github.com/Resonate-Protocol/resonate-scope/pkg/render"
	"github.com/Resonate-Protocol/resonate-scope/pkg/source"
	"github.com/Resonate-Protocol/resonate-scope/pkg/visualizer"
)

var (
	configPath = flag.String("config", "", "YAML config file")
	addr       = flag.String("addr", config.DefaultAddr, "Listen address for the frame feed and metrics")
	name       = flag.String("name", "", "Friendly name (default: hostname-scope)")
	libraryDir = flag.String("library", "", "Sound library directory or base URL")
	track      = flag.String("track", "", "Library track name or index")
	userFile   = flag.String("file", "", "Local audio file to visualize")
	useMic     = flag.Bool("mic", false, "Visualize the microphone")
	streamURL  = flag.String("stream", "", "SoundCloud track or playlist URL")
	clientID   = flag.String("client-id", "", "SoundCloud client id")
	volume     = flag.Float64("volume", 0.5, "Initial volume (0-1)")
	bufferSize = flag.Int("buffer-size", 2048, "Analysis window in samples (power of two)")
	feedback   = flag.Bool("feedback", false, "Echo the microphone to the speakers")
	outputName = flag.String("output", "malgo", "Audio output backend: malgo or oto")
	logFile    = flag.String("log-file", "resonate-scope.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	noMDNS     = flag.Bool("no-mdns", false, "Do not advertise the frame feed via mDNS")
	noAudio    = flag.Bool("no-audio", false, "Analyse without audible output")
)

func main() {
	flag.Parse()

	file, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := file.Apply(visualizer.DefaultConfig())
	listenAddr := file.ListenAddr()
	advertise := file.AdvertiseMDNS()
	logPath := *logFile
	if file.Log.File != "" {
		logPath = file.Log.File
	}
	scopeName := file.Name

	// Flags given on the command line win over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			listenAddr = *addr
		case "name":
			scopeName = *name
		case "library":
			cfg.LibraryRoot = *libraryDir
		case "client-id":
			cfg.ClientID = *clientID
		case "volume":
			cfg.Volume = *volume
		case "buffer-size":
			cfg.BufferSize = *bufferSize
		case "feedback":
			cfg.Feedback = *feedback
		case "log-file":
			logPath = *logFile
		case "no-mdns":
			advertise = !*noMDNS
		}
	})

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	if scopeName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		scopeName = fmt.Sprintf("%s-scope", hostname)
	}

	log.Printf("Starting %s %s by %s: %s", version.Product, version.Version, version.Manufacturer, scopeName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := newFetcher(cfg.LibraryRoot)

	req, info, err := buildRequest(ctx, fetcher)
	if err != nil {
		log.Fatalf("Invalid source: %v", err)
	}
	if p, ok := req.Param.(source.UserFileParam); ok {
		if c, ok := p.Reader.(io.Closer); ok {
			defer c.Close()
		}
	}

	// Audio output
	var out visualizer.Output
	if !*noAudio {
		switch *outputName {
		case "malgo":
			out = output.NewMalgo()
		case "oto":
			out = output.NewOto()
		default:
			log.Fatalf("Unknown output backend %q", *outputName)
		}
		defer out.Close()
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics, err := frame.NewMetrics(registry)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	// Analysis and render feed
	m := meter.New(meter.DefaultConfig())
	var level atomic.Pointer[meter.Level]
	analyse := func(window []float32, delta time.Duration, now time.Time) any {
		data := m.Analyse(window, delta, now)
		if l, ok := data.(meter.Level); ok {
			level.Store(&l)
		}
		return data
	}

	// The hub is created once the session ID is known; frames only flow after Open
	var hub *render.Hub
	session, err := visualizer.NewSession(cfg, visualizer.Dependencies{
		Fetcher:  fetcher,
		Decoder:  decode.NewRegistry(),
		Capturer: capture.NewMalgo(capture.Config{Feedback: cfg.Feedback}),
		Resolver: remote.NewSoundCloud(remote.Config{}),
		Output:   out,
		Analyse:  analyse,
		Renderer: frame.RendererFunc(func(data any, start time.Time) {
			hub.Draw(data, start)
		}),
		Metrics: metrics,
	})
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	hub = render.NewHub(render.Config{
		Name:      scopeName,
		SessionID: session.ID(),
		Control: func(cmd render.ControlCommand) {
			if cmd.Command == "volume" {
				session.SetVolume(cmd.Volume)
			}
		},
	})

	// HTTP: frame feed, metrics, cover art
	mux := http.NewServeMux()
	mux.Handle(discovery.DefaultPath, hub)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
	if info.ArtworkURL != "" {
		cover := info.ArtworkURL
		info.ArtworkURL = "/cover"
		mux.HandleFunc("/cover", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, cover)
		})
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", listenAddr, err)
	}
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()
	log.Printf("Serving frames on ws://%s%s", ln.Addr(), discovery.DefaultPath)

	if advertise {
		disc := discovery.NewManager(discovery.Config{
			ServiceName: scopeName,
			Port:        listenPort(ln),
			SessionID:   session.ID(),
		})
		if err := disc.Advertise(); err != nil {
			log.Printf("mDNS advertisement failed: %v", err)
		}
		defer disc.Stop()
	}

	// TUI setup
	var tuiProg *tea.Program
	var volumeCtrl *ui.VolumeControl

	if useTUI {
		volumeCtrl = ui.NewVolumeControl()
		tuiProg = ui.Run(volumeCtrl, ui.Options{
			Volume:     int(cfg.Volume * 100),
			ToggleKey:  cfg.HUDToggleKey,
			HUDVisible: cfg.HUDDisplayed,
		})
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	updateTUI := func(msg tea.Msg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	label := req.String()
	if info.Title != "" {
		label = info.Title
	}
	updateTUI(ui.StatusMsg{Source: label, Kind: req.Kind.String(), Status: source.Loading.String()})

	if err := session.Open(ctx, req); err != nil {
		detail := err.Error()
		if h := session.Handle(); h != nil && h.Status() == source.Failed {
			detail = h.ErrorDetail()
		}
		if kind, ok := source.KindOf(err); ok {
			log.Printf("Failed to open %s (%s): %v", req, kind, err)
		} else {
			log.Printf("Failed to open %s: %v", req, err)
		}
		if tuiProg == nil {
			os.Exit(1)
		}
		updateTUI(ui.StatusMsg{Status: source.Failed.String(), Detail: detail})
	} else {
		h := session.Handle()
		info.Kind = h.Kind().String()
		info.SampleRate = h.Node().SampleRate()
		info.Channels = h.Node().Channels()
		hub.SetSource(&info)
		updateTUI(ui.StatusMsg{Status: source.Ready.String()})
	}

	if volumeCtrl != nil {
		go handleVolumeControl(session, volumeCtrl)
		go statsUpdateLoop(ctx, session, hub, &level, updateTUI)
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var quit <-chan ui.QuitMsg
	if volumeCtrl != nil {
		quit = volumeCtrl.Quit
	}

	select {
	case <-quit:
		log.Printf("Received quit signal from TUI")
	case <-sigChan:
		log.Printf("Shutdown signal received")
	case <-session.Done():
		log.Printf("Frame loop stopped: %v", session.Err())
	}

	cancel()

	if err := session.Close(); err != nil {
		log.Printf("Error closing session: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	}
	_ = hub.Close()

	if tuiProg != nil {
		tuiProg.Quit()
	}

	log.Printf("Scope stopped")
}

// newFetcher reads the library over HTTP for URLs and from disk otherwise
func newFetcher(root string) source.Fetcher {
	if strings.HasPrefix(root, "http://") || strings.HasPrefix(root, "https://") {
		return &source.HTTPFetcher{BaseURL: root}
	}
	return &source.DirFetcher{Root: root}
}

// buildRequest turns the source flags into an acquisition request.
// Library tracks also resolve title and cover art.
func buildRequest(ctx context.Context, fetcher source.Fetcher) (source.Request, render.SourceInfo, error) {
	var info render.SourceInfo

	chosen := 0
	for _, set := range []bool{*track != "", *userFile != "", *useMic, *streamURL != ""} {
		if set {
			chosen++
		}
	}
	if chosen > 1 {
		return source.Request{}, info, errors.New("choose one of -track, -file, -mic, -stream")
	}

	switch {
	case *useMic:
		return source.NewMicrophoneRequest(), info, nil
	case *streamURL != "":
		return source.NewStreamRequest(*streamURL), info, nil
	case *userFile != "":
		fh, err := os.Open(*userFile)
		if err != nil {
			return source.Request{}, info, fmt.Errorf("failed to open %s: %w", *userFile, err)
		}
		info.Title = filepath.Base(*userFile)
		return source.NewUserFileRequest(info.Title, fh), info, nil
	default:
		lib, err := library.Load(ctx, fetcher, library.DefaultManifest)
		if err != nil {
			return source.Request{}, info, err
		}
		key := *track
		if key == "" {
			key = "0"
		}
		t, err := lib.Find(key)
		if err != nil {
			return source.Request{}, info, err
		}
		info.Title = t.Name
		info.Artist = t.Artist

		if covers, err := artwork.NewCache("", fetcher); err != nil {
			log.Printf("Cover cache unavailable: %v", err)
		} else if p, err := covers.Cover(ctx, t.CoverPath()); err != nil {
			log.Printf("No cover for %s: %v", t, err)
		} else {
			info.ArtworkURL = p
		}

		return source.NewLibraryRequest(t.Path()), info, nil
	}
}

// listenPort returns the bound port of ln
func listenPort(ln net.Listener) int {
	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}

// handleVolumeControl processes volume changes from TUI
func handleVolumeControl(session *visualizer.Session, volumeCtrl *ui.VolumeControl) {
	for {
		select {
		case vol := <-volumeCtrl.Changes:
			log.Printf("Volume change: %d%%", vol.Volume)
			session.SetVolume(float64(vol.Volume) / 100)
		case <-session.Done():
			return
		}
	}
}

// statsUpdateLoop periodically updates TUI with frame statistics
func statsUpdateLoop(ctx context.Context, session *visualizer.Session, hub *render.Hub, level *atomic.Pointer[meter.Level], updateTUI func(tea.Msg)) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := session.Stats()
			msg := ui.StatsMsg{
				FPS:     stats.FPS,
				Ticks:   stats.Ticks,
				Delta:   stats.LastDelta,
				Clients: hub.Clients(),
			}
			if l := level.Load(); l != nil {
				msg.RMS = l.RMS
				msg.Peak = l.Peak
				msg.Beats = int(l.Beats)
			}
			updateTUI(msg)
		}
	}
}
