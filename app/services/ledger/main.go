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

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/ledgersim/app/services/ledger/handlers"
	"github.com/ardanlabs/ledgersim/business/core/contract"
	"github.com/ardanlabs/ledgersim/business/core/ledger"
	"github.com/ardanlabs/ledgersim/business/core/ledger/worker"
	"github.com/ardanlabs/ledgersim/foundation/contract/gas"
	"github.com/ardanlabs/ledgersim/foundation/events"
	"github.com/ardanlabs/ledgersim/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("LEDGER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:60s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			APIHost         string        `conf:"default:0.0.0.0:8080"`
			CorsOrigin      string        `conf:"default:*"`
		}
		Ledger struct {
			Difficulty     uint     `conf:"default:2"`
			MaxDifficulty  uint     `conf:"default:5"`
			MaxAttempts    uint64   `conf:"default:0"`
			Peers          []string `conf:"default:alice;bob;carol"`
			SelectStrategy string   `conf:"default:fee"`
			AutoMine       bool     `conf:"default:false"`
			Miner          string   `conf:"default:alice"`
		}
		Contract struct {
			StepDelay time.Duration `conf:"default:0s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "LEDGER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// Mining is unbounded, so the difficulty must stay tractable.
	if cfg.Ledger.Difficulty > cfg.Ledger.MaxDifficulty {
		return fmt.Errorf("difficulty %d exceeds the max difficulty %d", cfg.Ledger.Difficulty, cfg.Ledger.MaxDifficulty)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Ledger Support

	// The engine packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	logEv := logger.EvHandler(log, "00000000-0000-0000-0000-000000000000")
	ev := func(v string, args ...any) {
		logEv(v, args...)
		evts.Sendf(v, args...)
	}

	// The ledger owns the simulated network of peers and the mempool.
	lgr, err := ledger.New(ledger.Config{
		Difficulty:     cfg.Ledger.Difficulty,
		Peers:          cfg.Ledger.Peers,
		SelectStrategy: cfg.Ledger.SelectStrategy,
		MaxAttempts:    cfg.Ledger.MaxAttempts,
		EvHandler:      ev,
	})
	if err != nil {
		return fmt.Errorf("constructing ledger: %w", err)
	}

	defer lgr.Shutdown()

	var minerID string
	for _, st := range lgr.Statuses() {
		log.Infow("startup", "status", "peer joined", "name", st.Name, "id", st.ID, "address", st.Address)
		if st.Name == cfg.Ledger.Miner {
			minerID = st.ID
		}
	}

	// The worker mines pending transactions in the background on the
	// configured peer. It registers itself with the ledger.
	if cfg.Ledger.AutoMine {
		if minerID == "" {
			return fmt.Errorf("miner %q is not one of the peers", cfg.Ledger.Miner)
		}
		worker.Run(lgr, minerID, ev)
	}

	// The sandbox owns the deployed contract instances.
	sbx, err := contract.New(contract.Config{
		StepDelay: cfg.Contract.StepDelay,
		Gas:       gas.New(),
		EvHandler: ev,
	})
	if err != nil {
		return fmt.Errorf("constructing contract sandbox: %w", err)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, lgr)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start API Service

	log.Infow("startup", "status", "initializing V1 API support")

	// Construct the mux for the API calls.
	apiMux := handlers.APIMux(handlers.MuxConfig{
		Shutdown:   shutdown,
		Log:        log,
		Ledger:     lgr,
		Contract:   sbx,
		Evts:       evts,
		CorsOrigin: cfg.Web.CorsOrigin,
	})

	// Construct a server to service the requests against the mux.
	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      apiMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}
