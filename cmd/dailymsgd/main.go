// Command dailymsgd runs the daily reminder daemon: it opens a WhatsApp
// session shortly before the configured send time each day, sends one
// message from the pool to the configured recipient, and closes the
// session again a few minutes later.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	btclog "github.com/btcsuite/btclog/v2"
	"github.com/spf13/cobra"

	"github.com/Maxi49/dailymessaging/internal/build"
	"github.com/Maxi49/dailymessaging/internal/config"
	"github.com/Maxi49/dailymessaging/internal/dispatch"
	"github.com/Maxi49/dailymessaging/internal/journal"
	"github.com/Maxi49/dailymessaging/internal/schedule"
	"github.com/Maxi49/dailymessaging/internal/session"
	"github.com/Maxi49/dailymessaging/internal/wa"
)

var (
	envFile  string
	dbPath   string
	logDir   string
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dailymsgd",
		Short:         "Daily WhatsApp reminder daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	rootCmd.Flags().StringVar(
		&envFile, "env-file", "", "path to a .env file "+
			"(default: ./.env if present)",
	)
	rootCmd.Flags().StringVar(
		&dbPath, "db", "", "path to the SQLite database "+
			"(overrides "+config.EnvDBPath+")",
	)
	rootCmd.Flags().StringVar(
		&logDir, "log-dir", "", "directory for rotating log files "+
			"(overrides "+config.EnvLogDir+")",
	)
	rootCmd.Flags().StringVar(
		&logLevel, "log-level", "", "log level: trace, debug, info, "+
			"warn, error (overrides "+config.EnvLogLevel+")",
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dailymsgd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	// Flags win over environment.
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logDir != "" {
		cfg.LogDir = logDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logs, err := build.NewLoggerSet(&build.LogConfig{
		Level:  cfg.LogLevel,
		LogDir: cfg.LogDir,
	})
	if err != nil {
		return err
	}
	defer logs.Close()

	log := logs.Logger(build.SubMain)
	zone := cfg.Zone()

	log.Infof("Starting dailymsgd: window %v-%v, message at %v (%v)",
		cfg.OpenAt, cfg.CloseAt, cfg.MessageAt, zone)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	store, err := journal.Open(cfg.DBPath, logs.Logger(build.SubJournal))
	if err != nil {
		return err
	}
	defer store.Close()

	container, err := wa.NewContainer(
		ctx, store.DB(), logs.Logger(build.SubWhatsApp),
	)
	if err != nil {
		return err
	}

	registry := schedule.NewRegistry(logs.Logger(build.SubSchedule))

	dispatcher := dispatch.New(dispatch.Config{
		Recipient: cfg.Recipient,
		Messages:  cfg.Messages,
		MessageAt: cfg.MessageAt,
		Zone:      zone,
		Registry:  registry,
		Recorder:  store,
	}, logs.Logger(build.SubDispatch))

	factory := wa.NewFactory(container, wa.Config{
		PairPhone: cfg.PairPhone,
		Log:       logs.Logger(build.SubWhatsApp),
	})

	ctrl := session.NewController(session.ControllerConfig{
		OpenAt:  cfg.OpenAt,
		CloseAt: cfg.CloseAt,
		Zone:    zone,
	}, factory, registry, dispatcher, logs.Logger(build.SubSession))

	ctrl.Start(ctx)
	defer ctrl.Stop()

	// Always open once at startup so a first-time pairing has a live
	// connection to work with, then settle onto the daily schedule.
	ctrl.RequestOpen()

	go settleSchedule(ctx, cfg, ctrl, zone, log)

	<-ctx.Done()
	log.Infof("Shutdown signal received")

	return nil
}

// settleSchedule waits out the pairing grace after the forced startup open
// and then decides whether the session should stay up: inside the daily
// window it stays and the armed timers take over, outside it is closed
// after an extra grace, which also arms the next open.
func settleSchedule(ctx context.Context, cfg *config.Config,
	ctrl *session.Controller, zone *time.Location, log btclog.Logger) {

	if !sleepCtx(ctx, cfg.PairingGrace) {
		return
	}

	now := time.Now()
	if schedule.InWindow(now, cfg.OpenAt, cfg.CloseAt, zone) {
		log.Infof("Inside the daily window; keeping session open")
		return
	}

	log.Infof("Outside the daily window; closing in %v", cfg.CloseGrace)
	if !sleepCtx(ctx, cfg.CloseGrace) {
		return
	}

	ctrl.RequestClose()
}

// sleepCtx sleeps for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
