package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lanewatch-data/lanewatch/internal/annotate"
	"github.com/lanewatch-data/lanewatch/internal/config"
	"github.com/lanewatch-data/lanewatch/internal/fps"
	"github.com/lanewatch-data/lanewatch/internal/lanes"
	"github.com/lanewatch-data/lanewatch/internal/monitoring"
	"github.com/lanewatch-data/lanewatch/internal/pipeline"
	"github.com/lanewatch-data/lanewatch/internal/sink"
	"github.com/lanewatch-data/lanewatch/internal/stats"
	"github.com/lanewatch-data/lanewatch/internal/timeutil"
	"github.com/lanewatch-data/lanewatch/internal/track"
	"github.com/lanewatch-data/lanewatch/internal/video"
)

var (
	configPath = flag.String("config", "", "Path to config JSON (defaults apply when empty)")
	lanesPath  = flag.String("lanes", "", "Lane geometry file (overrides config)")
	listen     = flag.String("listen", "", "HTTP listen address (overrides config)")
	sourceDir  = flag.String("source", "", "Directory of frame images to replay")
	detections = flag.String("detections", "", "Detection script (JSONL) replayed instead of the live detector")
	devMode    = flag.Bool("dev", false, "Run with a synthetic frame source")
	trace      = flag.Bool("trace", false, "Log one line per processed frame")
)

func main() {
	flag.Parse()
	monitoring.EnableTrace(*trace)

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	lanesFile := cfg.GetLanesPath()
	if *lanesPath != "" {
		lanesFile = *lanesPath
	}
	laneSet, err := lanes.Load(lanesFile)
	if err != nil {
		log.Fatalf("failed to load lane geometry: %v", err)
	}
	log.Printf("loaded %d lanes from %s", laneSet.Len(), lanesFile)

	clock := timeutil.RealClock{}

	source, err := buildSource(cfg, clock)
	if err != nil {
		log.Fatalf("failed to create frame source: %v", err)
	}
	defer source.Close()

	tracker, err := buildTracker(cfg)
	if err != nil {
		log.Fatalf("failed to create detector: %v", err)
	}

	aggregator := stats.NewAggregator(cfg.GetRetention(), clock)

	var store *stats.Store
	if path := cfg.GetEventDB(); path != "" {
		store, err = stats.NewStore(path)
		if err != nil {
			log.Fatalf("failed to open event database: %v", err)
		}
		defer store.Close()
	}

	lifecycle := track.NewManager(track.Config{
		MinActiveFrames:  cfg.GetMinActiveFrames(),
		VoteWindow:       cfg.GetVoteWindow(),
		TrackBuffer:      cfg.GetTrackBuffer(),
		FrameWidth:       float64(cfg.GetFrameWidth()),
		FrameHeight:      float64(cfg.GetFrameHeight()),
		EdgeTolerancePx:  cfg.GetEdgeTolerancePx(),
		MaxHistoryLength: 2 * cfg.GetVoteWindow(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, web, err := buildSinks(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to create sinks: %v", err)
	}

	pipe, err := pipeline.New(pipeline.Config{
		Source:          source,
		Tracker:         tracker,
		Assigner:        lanes.NewAssigner(laneSet),
		Lifecycle:       lifecycle,
		Aggregator:      aggregator,
		Store:           store,
		Annotator:       annotate.New(laneSet.Lanes()),
		FPS:             fps.NewCounter(cfg.GetFPSWindow(), clock),
		Sinks:           sinks,
		DetectorTimeout: cfg.GetDetectorTimeout(),
		Clock:           clock,
	})
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	var wg sync.WaitGroup

	if web != nil {
		addr := cfg.GetWebListen()
		if *listen != "" {
			addr = *listen
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWebServer(ctx, addr, web)
		}()
	}

	runErr := pipe.Run(ctx)
	stop()
	wg.Wait()

	if runErr != nil {
		log.Printf("pipeline failed: %v", runErr)
		os.Exit(1)
	}
	log.Printf("shutdown complete, %d frames processed", pipe.Frames())
}

// buildSource selects the frame source from flags: a replay directory, or
// a synthetic stream in dev mode.
func buildSource(cfg *config.AppConfig, clock timeutil.Clock) (video.FrameSource, error) {
	if *sourceDir != "" {
		return video.NewImageDirSource(*sourceDir, clock)
	}
	if *devMode {
		return video.NewSyntheticSource(cfg.GetFrameWidth(), cfg.GetFrameHeight(), 0, 33*time.Millisecond, clock), nil
	}
	return nil, errors.New("either -source or -dev is required")
}

// buildTracker selects the detector: a scripted replay when -detections
// is given, the HTTP inference sidecar otherwise.
func buildTracker(cfg *config.AppConfig) (video.DetectionTracker, error) {
	if *detections != "" {
		return video.LoadScriptedTracker(*detections)
	}
	if *devMode {
		return video.NewScriptedTracker(nil), nil
	}
	return video.NewHTTPTracker(cfg.GetDetectorEndpoint(), 90), nil
}

// buildSinks assembles the enabled sinks. The web sink is returned
// separately so the HTTP server can mount its handlers.
func buildSinks(ctx context.Context, cfg *config.AppConfig) ([]sink.Sink, *sink.Web, error) {
	var sinks []sink.Sink

	if cfg.GetDisplayEnabled() {
		sinks = append(sinks, sink.NewDisplay(5*time.Second))
	}

	if cfg.GetFrameLogEnabled() {
		frameLog, err := sink.NewFrameLog(cfg.GetFrameLogDir(), cfg.GetCameraID(), cfg.GetFrameLogQuality())
		if err != nil {
			return nil, nil, err
		}
		log.Printf("recording frames to %s", frameLog.Path())
		sinks = append(sinks, pipeline.NewAsyncSink(frameLog, 64, pipeline.Block))
	}

	var web *sink.Web
	if cfg.GetWebEnabled() {
		web = sink.NewWeb(cfg.GetWebQuality())
		sinks = append(sinks, pipeline.NewAsyncSink(web, 4, pipeline.DropOldest))
	}

	if cfg.GetBusEnabled() {
		bus, err := sink.NewBus(cfg.GetBusAddress(), cfg.GetBusPort(), cfg.GetCameraID(), cfg.GetBusInterval())
		if err != nil {
			return nil, nil, err
		}
		bus.Start(ctx)
		sinks = append(sinks, bus)
	}

	return sinks, web, nil
}

// runWebServer serves the web sink's handlers until the context is
// cancelled, then shuts down with a grace period.
func runWebServer(ctx context.Context, addr string, web *sink.Web) {
	mux := http.NewServeMux()
	web.Register(mux)

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Printf("serving HTTP on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}
