// Package main wires together the stock harvester service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/marketops/stock-harvester/internal/api"
	"github.com/marketops/stock-harvester/internal/clock/system"
	"github.com/marketops/stock-harvester/internal/config"
	"github.com/marketops/stock-harvester/internal/delivery"
	"github.com/marketops/stock-harvester/internal/driver/headless"
	"github.com/marketops/stock-harvester/internal/harvest"
	"github.com/marketops/stock-harvester/internal/id/uuid"
	"github.com/marketops/stock-harvester/internal/logging"
	"github.com/marketops/stock-harvester/internal/metrics"
	"github.com/marketops/stock-harvester/internal/notify"
	"github.com/marketops/stock-harvester/internal/probe"
	queueMemory "github.com/marketops/stock-harvester/internal/queue/memory"
	"github.com/marketops/stock-harvester/internal/runner"
	"github.com/marketops/stock-harvester/internal/sink/csvfile"
	localStorage "github.com/marketops/stock-harvester/internal/storage/local"
	storeMemory "github.com/marketops/stock-harvester/internal/store/memory"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Credentials land in the environment via .env in development;
	// absence of the file is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runStore := storeMemory.NewRunStore()
	queue := queueMemory.NewQueue(cfg.Runner.QueueDepth)
	clock := system.New()
	idGen := uuid.New()

	sink, err := csvfile.New(cfg.Sink.Path)
	if err != nil {
		logger.Fatal("sink init failed", zap.Error(err))
	}
	snapshots, err := localStorage.New(localStorage.Config{BaseDir: cfg.Snapshot.Dir})
	if err != nil {
		logger.Fatal("snapshot store init failed", zap.Error(err))
	}

	mailer := notify.NewMailer(notify.Config{
		Host:           cfg.SMTP.Host,
		Port:           cfg.SMTP.Port,
		Sender:         cfg.SMTP.Sender,
		Password:       cfg.SMTP.Password,
		Recipient:      cfg.SMTP.Recipient,
		AttachmentName: cfg.SMTP.Attachment,
	})
	pipeline := delivery.New(sink, mailer, clock, logger.Named("delivery"))

	factory := headless.NewFactory(headless.Config{
		UserAgent:         cfg.Driver.UserAgent,
		NavigationTimeout: cfg.NavTimeout(),
		RowSelector:       cfg.Driver.RowSelector,
		WindowWidth:       cfg.Driver.WindowWidth,
		WindowHeight:      cfg.Driver.WindowHeight,
	})
	defer factory.Close()

	var prober harvest.Prober
	if cfg.Probe.Enabled {
		prober = probe.New(probe.Config{
			UserAgent: cfg.Driver.UserAgent,
			Timeout:   time.Duration(cfg.Probe.TimeoutSeconds) * time.Second,
		})
	}

	loop := harvest.NewLoop(harvest.LoopConfig{
		URL:             cfg.Target.URL,
		InitialSettle:   time.Duration(cfg.Harvest.InitialSettleSeconds) * time.Second,
		ScrollAdvances:  cfg.Harvest.ScrollAdvances,
		ScrollSettle:    time.Duration(cfg.Harvest.ScrollSettleSeconds) * time.Second,
		BottomSettle:    time.Duration(cfg.Harvest.BottomSettleSeconds) * time.Second,
		WaitRowsTimeout: time.Duration(cfg.Harvest.WaitRowsSeconds) * time.Second,
		IterationPause:  time.Duration(cfg.Harvest.IterationPauseMs) * time.Millisecond,
		SnapshotEvery:   cfg.Harvest.SnapshotEvery,
		Convergence: harvest.ConvergenceConfig{
			NoNewRecordLimit:  cfg.Harvest.NoNewRecordLimit,
			StableHeightLimit: cfg.Harvest.StableHeightLimit,
			MaxIterations:     cfg.Harvest.MaxIterations,
		},
	}, harvest.NewExtractor(clock), snapshots, logger.Named("harvest"))

	runnerCfg := runner.Config{TargetURL: cfg.Target.URL}
	for i := 0; i < cfg.Runner.Concurrency; i++ {
		r := runner.New(
			queue,
			runStore,
			factory,
			prober,
			loop,
			pipeline,
			runnerCfg,
			logger.Named("runner").With(zap.Int("index", i)),
		)
		go r.Run(ctx)
	}

	apiServer := api.NewServer(
		runStore,
		queue,
		idGen,
		clock,
		api.Config{TargetURL: cfg.Target.URL},
		logger.Named("api"),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
}
