package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jkang1643/Exbabel-sub010/internal/caption"
	"github.com/jkang1643/Exbabel-sub010/internal/config"
	"github.com/jkang1643/Exbabel-sub010/internal/observability"
	"github.com/jkang1643/Exbabel-sub010/internal/segmenter"
	"github.com/jkang1643/Exbabel-sub010/internal/transport"
)

// maxFrameBytes bounds one line of a replay trace
const maxFrameBytes = 1 << 20

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.WithCorrelationID("")

	logger.Info().
		Str("port", cfg.Port).
		Str("lang", cfg.Lang).
		Str("source_lang", cfg.SourceLang).
		Str("captions_url", cfg.CaptionsURL).
		Str("replay_file", cfg.ReplayFile).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Caption client starting")

	opts := cfg.EngineOptions()
	opts.Segmenter = segmenter.New(cfg.Lang)
	opts.Logger = &logger
	engine, err := caption.New(opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create caption engine")
	}
	subscribe(engine, newRenderer(os.Stdout), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, engine, logger); err != nil {
		logger.Fatal().Err(err).Msg("Caption client failed")
	}
	logger.Info().Msg("Caption client exited gracefully")
}

// subscribe wires the renderer and log output to the engine's listeners
func subscribe(engine *caption.Engine, r *renderer, logger zerolog.Logger) {
	engine.OnState(r.render)
	engine.OnStatus(func(ev caption.StatusEvent) {
		logger.Info().
			Str("status", string(ev.Status)).
			Str("type", ev.Type).
			Str("message", ev.Message).
			Msg("Status changed")
	})
	engine.OnTTS(func(ev caption.TTSEvent) {
		logger.Debug().Str("type", ev.Kind).Int("bytes", len(ev.Raw)).Msg("TTS event")
	})
	engine.OnWarn(func(w caption.Warning) {
		logger.Debug().Str("kind", w.Kind).Msg("Engine warning delivered")
	})
}

func run(ctx context.Context, cfg *config.Config, engine *caption.Engine, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	var supervisor *transport.Supervisor
	if cfg.ReplayFile == "" {
		supervisor = transport.New(engine, transport.Options{
			Reconnect: cfg.ReconnectEnabled,
			Backoff:   cfg.ReconnectConfig(),
			Logger:    &logger,
		})
	}

	server := newServer(cfg, supervisor, logger)
	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		// The server only lives as long as the caption source.
		defer cancel()
		if supervisor == nil {
			return replayFile(gctx, cfg.ReplayFile, engine, os.Stdout)
		}
		return supervise(gctx, cfg.CaptionsURL, supervisor)
	})

	return g.Wait()
}

func newServer(cfg *config.Config, supervisor *transport.Supervisor, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	checks := map[string]observability.HealthCheckFunc{}
	if supervisor != nil {
		checks["transport"] = supervisor.Healthy
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// supervise keeps the transport connected until ctx ends or the supervisor
// gives up
func supervise(ctx context.Context, url string, supervisor *transport.Supervisor) error {
	if err := supervisor.Connect(ctx, url); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return supervisor.Disconnect()
	case <-supervisor.Done():
		if supervisor.Status() == caption.StatusError {
			return fmt.Errorf("transport stopped with status %s", supervisor.Status())
		}
		return nil
	}
}

// replayFile feeds a JSON-lines trace to the engine, then writes the final
// view model to out
func replayFile(ctx context.Context, path string, engine *caption.Engine, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	if err := replay(ctx, f, engine); err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(engine.GetState())
}

func replay(ctx context.Context, r io.Reader, engine *caption.Engine) error {
	engine.SetStatus(caption.StatusConnected, nil)
	defer engine.SetStatus(caption.StatusClosed, nil)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// Malformed lines are counted by the engine and skipped.
		_ = engine.IngestJSON(line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read replay file: %w", err)
	}
	return nil
}
