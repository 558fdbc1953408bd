package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Smehapavi/AgriNex/internal/poller"
	"github.com/Smehapavi/AgriNex/pkg/metrics"
	"github.com/Smehapavi/AgriNex/pkg/mq"
)

var pollerCmd = &cobra.Command{
	Use:   "poller",
	Short: "Run the simulated field stations",
	Long: `Run the field poller that:
- Simulates a number of field stations
- Generates sensor readings and plant disease predictions
- Publishes them to RabbitMQ for the serve command to ingest`,
	RunE: runPoller,
}

func init() {
	rootCmd.AddCommand(pollerCmd)

	pollerCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	pollerCmd.Flags().String("queue-name", "field-data", "RabbitMQ queue for field records")
	pollerCmd.Flags().Int("stations", 3, "number of simulated field stations")
	pollerCmd.Flags().Duration("interval", 5*time.Second, "interval between polls")
	pollerCmd.Flags().Float64("prediction-rate", 0.2, "chance per station and poll of publishing a prediction")
	pollerCmd.Flags().Int("metrics-port", 0, "port exposing Prometheus metrics (0 disables)")

	_ = viper.BindPFlag("poller.rabbitmq.url", pollerCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("poller.rabbitmq.queue", pollerCmd.Flags().Lookup("queue-name"))
	_ = viper.BindPFlag("poller.stations", pollerCmd.Flags().Lookup("stations"))
	_ = viper.BindPFlag("poller.interval", pollerCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("poller.prediction_rate", pollerCmd.Flags().Lookup("prediction-rate"))
	_ = viper.BindPFlag("poller.metrics_port", pollerCmd.Flags().Lookup("metrics-port"))
}

func runPoller(_ *cobra.Command, _ []string) error {
	logger := GetLogger("agrinex-poller")
	logger.Info("starting poller service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := mq.New(&mq.Config{
		Logger:  logger,
		Metrics: metrics.NewMQMetrics(metrics.Namespace),
		URL:     viper.GetString("poller.rabbitmq.url"),
		Queue:   viper.GetString("poller.rabbitmq.queue"),
	})
	if err != nil {
		return fmt.Errorf("failed to create mq client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close mq client", "error", err)
		}
	}()

	p, err := poller.New(&poller.Config{
		Logger:         logger,
		Publisher:      client,
		Metrics:        metrics.NewPollerMetrics(metrics.Namespace),
		Stations:       viper.GetInt("poller.stations"),
		Interval:       viper.GetDuration("poller.interval"),
		PredictionRate: viper.GetFloat64("poller.prediction_rate"),
	})
	if err != nil {
		logger.Error("failed to create poller", "error", err)
		return err
	}

	logger.Info("poller configuration",
		"queue", client.Queue(),
		"stations", viper.GetInt("poller.stations"),
		"interval", viper.GetDuration("poller.interval"),
	)

	if port := viper.GetInt("poller.metrics_port"); port > 0 {
		app := fiber.New(fiber.Config{DisableStartupMessage: true})
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
		go func() {
			if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() { _ = app.Shutdown() }()
		logger.Info("serving metrics", "port", port)
	}

	if err := p.Run(ctx); err != nil {
		logger.Error("poller error", "error", err)
		return err
	}

	logger.Info("poller stopped")
	return nil
}
