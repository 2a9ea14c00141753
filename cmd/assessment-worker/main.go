// Command assessment-worker consumes audio tasks, assesses pronunciation and
// publishes the scored results.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"speech-assessment-platform/backend/internal/apigateway"
	"speech-assessment-platform/backend/internal/config"
	"speech-assessment-platform/backend/internal/coreengine/assessment"
	"speech-assessment-platform/backend/internal/coreengine/recognition"
	"speech-assessment-platform/backend/internal/messaging"
	"speech-assessment-platform/backend/internal/messaging/codec"
	"speech-assessment-platform/backend/internal/metrics"
	"speech-assessment-platform/backend/internal/objectstore"
	"speech-assessment-platform/backend/internal/observability"
)

var version = "dev"

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "assessment-worker",
		Short:         "Assess pronunciation of submitted exercise recordings",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to the YAML config file (default: $SPEECHAI_CONFIG or ./speechai.yaml)")

	if err := root.Execute(); err != nil {
		os.Stderr.WriteString("assessment-worker: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codecs, err := codec.NewDefaultRegistry()
	if err != nil {
		logger.Fatal("failed to build codecs", zap.Error(err))
	}

	var objects objectstore.ObjectReader
	if cfg.ObjectStore.Endpoint != "" {
		mc, err := objectstore.NewMinioClient(ctx, cfg.ObjectStore, false, logger)
		if err != nil {
			logger.Fatal("failed to initialize object store", zap.Error(err))
		}
		objects = mc
	}

	rec, err := recognition.New(ctx, cfg.Recognition, objectstore.NewAudioResolver(objects), logger)
	if err != nil {
		logger.Fatal("failed to initialize recognizer", zap.Error(err))
	}
	if c, ok := rec.(io.Closer); ok {
		defer c.Close()
	}

	session, err := messaging.Open(cfg.AMQP, cfg.AppName, logger)
	if err != nil {
		logger.Fatal("failed to set up messaging", zap.Error(err))
	}
	defer session.Close()

	pub, err := messaging.NewPublisher(session.Channel, cfg.AMQP, codecs)
	if err != nil {
		logger.Fatal("failed to create publisher", zap.Error(err))
	}
	worker := assessment.NewWorker(rec, pub, codecs, cfg.Worker, logger)

	deliveries, err := messaging.Consume(session.Channel, cfg.AMQP, cfg.AMQP.TaskQueue, cfg.AppName, worker.ManualAck())
	if err != nil {
		logger.Fatal("failed to start consumer", zap.Error(err))
	}

	if cfg.Worker.StatusAddr != "" {
		startStatusServer(ctx, cfg, session, logger)
	}

	go func() {
		if amqpErr, ok := <-session.NotifyLost(); ok && amqpErr != nil {
			logger.Error("broker connection lost", zap.Error(amqpErr))
		}
	}()

	if err := worker.Run(ctx, deliveries); err != nil {
		logger.Error("worker stopped", zap.Error(err))
		return err
	}
	logger.Info("worker stopped")
	return nil
}

func startStatusServer(ctx context.Context, cfg *config.Config, session *messaging.Session, logger *zap.Logger) {
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)
	metrics.SetBuildInfo("assessment-worker", version)

	router := apigateway.SetupStatusRouter(reg, session.Health, logger)
	go func() {
		if err := apigateway.Serve(ctx, cfg.Worker.StatusAddr, router, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
}
