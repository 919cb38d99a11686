package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anant5441/medvoice/internal/analysis"
	"github.com/anant5441/medvoice/internal/bus"
	"github.com/anant5441/medvoice/internal/capture"
	"github.com/anant5441/medvoice/internal/config"
	"github.com/anant5441/medvoice/internal/gateway"
	"github.com/anant5441/medvoice/internal/journal"
	"github.com/anant5441/medvoice/internal/natsserver"
	"github.com/anant5441/medvoice/internal/stt"
)

type service interface {
	Start() error
	Close()
	Healthy() bool
}

// Runtime assembles the single-binary deployment: embedded bus, journal,
// stage services, and the HTTP gateway.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()

	store, err := journal.Open(ctx, r.cfg.Journal, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = store.Close() }()

	services, err := r.startServices(ctx, busClient)
	if err != nil {
		return err
	}
	defer func() {
		for _, svc := range services {
			svc.Close()
		}
	}()

	captureWindow := time.Duration(r.cfg.Capture.MaxWaitMS+r.cfg.Capture.PhraseLimitMS) * time.Millisecond
	gw := gateway.NewService(gateway.NewBusPipeline(busClient, captureWindow), store, r.logger)

	mux := http.NewServeMux()
	gw.Register(mux)
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) startServices(ctx context.Context, busClient *bus.Client) ([]service, error) {
	var services []service
	start := func(name string, svc service) error {
		if err := svc.Start(); err != nil {
			for _, started := range services {
				started.Close()
			}
			return fmt.Errorf("failed to start %s service: %w", name, err)
		}
		services = append(services, svc)
		return nil
	}

	if r.cfg.Capture.Enabled {
		backend, err := capture.NewBackend(r.cfg.Capture)
		if err != nil {
			return nil, fmt.Errorf("failed to create capture backend: %w", err)
		}
		if err := start("capture", capture.NewService(ctx, r.cfg.Capture, busClient, backend, r.logger)); err != nil {
			return nil, err
		}
	}

	if r.cfg.STT.Enabled {
		recognizer, err := newRecognizer(r.cfg.STT)
		if err != nil {
			return nil, fmt.Errorf("failed to create recognizer: %w", err)
		}
		if err := start("stt", stt.NewService(ctx, r.cfg.STT, busClient, recognizer, r.logger)); err != nil {
			return nil, err
		}
	}

	if r.cfg.Analysis.Enabled {
		if err := start("analysis", analysis.NewService(ctx, r.cfg.Analysis, busClient, newGenerator(r.cfg.Analysis), r.logger)); err != nil {
			return nil, err
		}
	}

	return services, nil
}

func newRecognizer(cfg config.STTConfig) (stt.Recognizer, error) {
	switch cfg.Mode {
	case "mock":
		return stt.NewMockRecognizer(), nil
	case "exec":
		return stt.NewExecRecognizer(cfg)
	default:
		return nil, fmt.Errorf("unknown stt mode %q", cfg.Mode)
	}
}

func newGenerator(cfg config.AnalysisConfig) analysis.Generator {
	switch cfg.Mode {
	case "gemini":
		return analysis.NewGeminiGenerator(cfg)
	case "ollama":
		return analysis.NewOllamaGenerator(cfg)
	default:
		return analysis.NewMockGenerator()
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
