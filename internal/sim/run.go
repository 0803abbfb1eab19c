package sim

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Run starts the world and the HTTP server, then blocks until the configured
// duration elapses, a signal arrives, or the workload fails verification.
func Run(cfg Config) {
	SetupLogging(cfg.Server.LogLevel)

	rootCtx := context.Background()
	var cancel context.CancelFunc
	if cfg.Workload.Duration > 0 {
		rootCtx, cancel = context.WithTimeout(rootCtx, cfg.Workload.Duration)
	} else {
		rootCtx, cancel = context.WithCancel(rootCtx)
	}
	defer cancel()

	world := NewWorld(cfg.Workload)

	// registered here rather than in init: the counter reads this world's slots
	prometheus.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "slotsim_update_retries_total",
		Help: "Update iterations discarded after losing their compare-and-swap",
	}, func() float64 {
		var n uint64
		for i := range world.accounts {
			n += world.accounts[i].Stats().UpdateRetries
		}
		n += world.profile.Stats().UpdateRetries
		return float64(n)
	}))

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      Router(world),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	done := make(chan error, 1)
	go func() { done <- world.Run(rootCtx) }()

	log.Info().
		Int("slots", cfg.Workload.Slots).
		Int("writers", cfg.Workload.Writers).
		Int("readers", cfg.Workload.Readers).
		Msg("workload running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var err error
	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutdown...")
		cancel()
		err = <-done
	case err = <-done:
	}

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)

	if err != nil {
		log.Fatal().Err(err).Msg("workload failed")
	}
}
