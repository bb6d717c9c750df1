package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/mlregistry/internal/server"
	"github.com/inferloop/mlregistry/pkg/constants"
)

var (
	configFile string
	logLevel   string
	port       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:     constants.AppName,
		Short:   constants.AppDescription,
		Version: constants.AppVersion,
		RunE:    run,
	}

	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "API port (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	config, err := server.LoadConfig(configFile)
	if err != nil {
		return err
	}

	if logLevel != "" {
		config.LogLevel = logLevel
	}
	if port != 0 {
		config.Port = port
	}

	logger := setupLogger(config)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, config, logger)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"version": constants.AppVersion,
		"port":    config.Port,
	}).Info("Starting model registry server")

	return srv.Start(ctx)
}

func setupLogger(config *server.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if config.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
