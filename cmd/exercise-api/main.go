// Command exercise-api accepts exercise submissions over HTTP and queues them
// for assessment.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"speech-assessment-platform/backend/internal/apigateway"
	"speech-assessment-platform/backend/internal/config"
	"speech-assessment-platform/backend/internal/exercisemanagement"
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
		Use:           "exercise-api",
		Short:         "HTTP front door that queues exercise recordings for assessment",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to the YAML config file (default: $SPEECHAI_CONFIG or ./speechai.yaml)")

	if err := root.Execute(); err != nil {
		os.Stderr.WriteString("exercise-api: " + err.Error() + "\n")
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

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics.Register(prometheus.DefaultRegisterer)
	metrics.SetBuildInfo("exercise-api", version)

	codecs, err := codec.NewDefaultRegistry()
	if err != nil {
		logger.Fatal("failed to build codecs", zap.Error(err))
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

	var store exercisemanagement.AudioStore
	if cfg.ObjectStore.Endpoint != "" {
		mc, err := objectstore.NewMinioClient(ctx, cfg.ObjectStore, true, logger)
		if err != nil {
			logger.Fatal("failed to initialize object store", zap.Error(err))
		}
		store = mc
	} else {
		logger.Warn("object store not configured, uploads are disabled")
	}
	if cfg.HTTP.APIKey == "" {
		logger.Warn("http.api_key is empty, the exercise API is unauthenticated")
	}

	service := exercisemanagement.NewExerciseService(pub, store, logger)
	handlers := exercisemanagement.NewHandlers(service, int64(cfg.HTTP.MaxUploadMB)<<20)
	router := apigateway.SetupExerciseRouter(handlers, cfg.HTTP.APIKey, prometheus.DefaultGatherer, session.Health, logger)

	if err := apigateway.Serve(ctx, cfg.HTTP.Addr, router, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
