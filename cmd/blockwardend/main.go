package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/SoarinFerret/BlockWarden/internal/config"
	"github.com/SoarinFerret/BlockWarden/internal/enforce"
	"github.com/SoarinFerret/BlockWarden/internal/engine"
	"github.com/SoarinFerret/BlockWarden/internal/ipc"
	"github.com/SoarinFerret/BlockWarden/internal/logging"
	"github.com/SoarinFerret/BlockWarden/internal/loginctl"
	"github.com/SoarinFerret/BlockWarden/internal/notify"
	"github.com/SoarinFerret/BlockWarden/internal/state"
	"github.com/SoarinFerret/BlockWarden/internal/store"
)

func main() {
	// check for argument to determine config location
	argPath := config.DefaultConfigPath()
	if len(os.Args) > 1 {
		argPath = os.Args[1]
	}
	cfg, err := config.LoadConfigFromFile(argPath)
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatal("Failed to initialize logging: ", err)
	}
	defer logger.Sync()
	logger.Infof("Using config file at: %s", argPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("blockwardend: %v", err)
	}
	logger.Info("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	if err := os.MkdirAll(cfg.Storage.Path, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	st, err := store.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
	}
	defer st.Close()

	act := openActuator(ctx, cfg, logger.Named("enforce"))
	if c, ok := act.(io.Closer); ok {
		defer c.Close()
	}

	seeds, err := cfg.Seeds()
	if err != nil {
		return err
	}

	// initialize the state manager
	mgr := state.NewManager(ctx, st, act,
		state.WithLogger(logger.Named("state")),
		state.WithSeed(seeds),
	)
	defer mgr.Close()

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	opts := []engine.Option{
		engine.WithInterval(cfg.Daemon.TickInterval.Duration),
		engine.WithLogger(logger.Named("engine")),
	}
	if *cfg.Notify.Enabled {
		opts = append(opts, engine.WithNotifier(notify.NewDesktop(conn)))
	}
	eng := engine.NewEngine(mgr, opts...)

	if err := ipc.Export(conn, &ipc.BlockWarden{
		Manager: mgr,
		Resumer: eng,
		Log:     logger.Named("ipc"),
	}); err != nil {
		return err
	}
	logger.Infof("Serving %s on the session bus", ipc.ServiceName)

	var wg sync.WaitGroup

	// Start the loginctl listener (system D-Bus)
	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher := loginctl.NewWatcher(eng, logger.Named("loginctl"))
		if err := watcher.Watch(ctx); err != nil {
			logger.Warnf("logind watcher error, resume edges limited to refresh calls: %v", err)
		}
	}()

	// Start the reconciliation loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := eng.Run(ctx); err != nil {
			logger.Errorf("reconciliation loop error: %v", err)
		}
	}()

	wg.Wait()
	return nil
}

// openActuator connects the configured enforcement backend. Failures degrade
// to the no-op actuator so the session clock keeps working.
func openActuator(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) enforce.Actuator {
	act, err := enforce.New(cfg.Enforcement.Backend, cfg.Enforcement.Service)
	if err != nil {
		logger.Warnf("Enforcement backend unavailable, continuing without it: %v", err)
		return enforce.Noop{}
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if !act.Available(ctx) {
		logger.Warn("Enforcer is not reachable yet, blocks will be skipped until it is")
		return act
	}
	status, err := act.AuthorizationStatus(ctx)
	if err != nil {
		logger.Warnf("Failed to query enforcement authorization: %v", err)
		return act
	}
	if status == enforce.AuthorizationNotDetermined {
		if status, err = act.RequestAuthorization(ctx); err != nil {
			logger.Warnf("Failed to request enforcement authorization: %v", err)
			return act
		}
	}
	logger.Infof("Enforcement authorization: %s", status)
	return act
}
