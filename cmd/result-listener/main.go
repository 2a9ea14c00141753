// Command result-listener logs every assessment result published by the
// worker.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"speech-assessment-platform/backend/internal/config"
	"speech-assessment-platform/backend/internal/messaging"
	"speech-assessment-platform/backend/internal/messaging/codec"
	"speech-assessment-platform/backend/internal/observability"
	"speech-assessment-platform/backend/internal/resultlistener"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "result-listener",
		Short:         "Log assessment results from the result queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to the YAML config file (default: $SPEECHAI_CONFIG or ./speechai.yaml)")

	if err := root.Execute(); err != nil {
		os.Stderr.WriteString("result-listener: " + err.Error() + "\n")
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

	session, err := messaging.Open(cfg.AMQP, cfg.AppName+"-results", logger)
	if err != nil {
		logger.Fatal("failed to set up messaging", zap.Error(err))
	}
	defer session.Close()

	deliveries, err := messaging.Consume(session.Channel, cfg.AMQP, cfg.AMQP.ResultQueue, cfg.AppName+"-results", false)
	if err != nil {
		logger.Fatal("failed to start consumer", zap.Error(err))
	}

	logger.Info("listening for results", zap.String("queue", cfg.AMQP.ResultQueue))
	if err := resultlistener.NewListener(codecs, logger).Run(ctx, deliveries); err != nil {
		logger.Error("listener stopped", zap.Error(err))
		return err
	}
	return nil
}
