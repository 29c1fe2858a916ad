package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"github.com/lexiqai/speech-bench/internal/config"
	"github.com/lexiqai/speech-bench/internal/function"
	"github.com/lexiqai/speech-bench/internal/observability"
	"github.com/lexiqai/speech-bench/internal/resilience"
	"github.com/lexiqai/speech-bench/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("route", cfg.Route).
		Str("instance", config.GetEnv("WEBSITE_INSTANCE_ID", "local")).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Speech function starting")

	// The synthesizer is built once and reused by every invocation. A failure
	// here is not fatal: the handler answers with a fixed error instead.
	azure, synthesizer := newSynthesizer(logger)
	handler := function.NewHandler(synthesizer)

	checks := []observability.DependencyCheck{
		{Name: "synthesizer", Check: func(ctx context.Context) (bool, error) {
			if !handler.Ready() {
				return false, errors.New("speech synthesizer not initialized")
			}
			return true, nil
		}},
		{Name: "azure_speech", Check: func(ctx context.Context) (bool, error) {
			if azure == nil {
				return false, errors.New("speech synthesizer not initialized")
			}
			if err := azure.Ping(ctx); err != nil {
				return false, err
			}
			return true, nil
		}},
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Route, handler)
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks...))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// No WriteTimeout: the synthesis call is bounded by SPEECH_TIMEOUT or the Functions host.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.GRPCHealthPort != "" {
		healthServer := observability.NewHealthServer(30*time.Second, checks...)
		go func() {
			addr := fmt.Sprintf(":%s", cfg.GRPCHealthPort)
			logger.Info().Str("addr", addr).Msg("gRPC health server listening")
			if err := healthServer.Serve(ctx, addr); err != nil {
				logger.Error().Err(err).Msg("gRPC health server stopped")
			}
		}()
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s%s", cfg.Port, cfg.Route)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if breaker, ok := synthesizer.(*tts.BreakerSynthesizer); ok {
		state, requests, failures, failureRate := breaker.Breaker().GetStats()
		logger.Info().
			Str("service", breaker.Breaker().Name()).
			Str("state", state.String()).
			Int64("requests", requests).
			Int64("failures", failures).
			Float64("failure_rate_pct", failureRate).
			Msg("Circuit breaker stats")
	}

	if azure != nil {
		logger.Info().Int64("audio_bytes_discarded", azure.DiscardedBytes()).Msg("Server exited gracefully")
		return
	}
	logger.Info().Msg("Server exited gracefully")
}

// newSynthesizer loads the speech settings and returns the Azure client and the
// synthesizer the handler uses, which may wrap it in a circuit breaker. Both are
// nil when the settings are invalid or construction fails.
func newSynthesizer(logger zerolog.Logger) (*tts.AzureSynthesizer, tts.Synthesizer) {
	cfg, err := config.LoadSpeechFromEnv()
	if err != nil {
		logger.Error().Err(err).Msg("CRITICAL: failed to initialize speech synthesizer")
		return nil, nil
	}

	endpoint := mo.None[string]()
	if cfg.Endpoint != "" {
		endpoint = mo.Some(cfg.Endpoint)
	}

	azure, err := tts.NewAzureSynthesizer(tts.AzureConfig{
		SubscriptionKey: cfg.Key,
		Region:          cfg.Region,
		VoiceName:       cfg.Voice,
		OutputFormat:    cfg.OutputFormat,
		Endpoint:        endpoint,
		Timeout:         cfg.Timeout,
	})
	if err != nil {
		logger.Error().Err(err).Msg("CRITICAL: failed to initialize speech synthesizer")
		return nil, nil
	}

	logger.Info().
		Str("region", cfg.Region).
		Str("voice", azure.VoiceName()).
		Dur("speech_timeout", cfg.Timeout).
		Bool("circuit_breaker", cfg.CircuitBreakerEnabled()).
		Msg("Speech synthesizer initialized")

	if !cfg.CircuitBreakerEnabled() {
		return azure, azure
	}

	cb := resilience.NewCircuitBreaker(
		"azure_speech",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	).OnStateChange(func(name string, from, to resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(to))
		if to == resilience.StateOpen {
			observability.IncrementCircuitBreakerTrips(name)
		}
		logger.Warn().Str("service", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
	})

	return azure, tts.WithCircuitBreaker(azure, cb)
}
