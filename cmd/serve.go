package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Smehapavi/AgriNex/internal/backend"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the AgriNex backend",
	Long: `Run the backend server that:
- Serves the REST API and Prometheus metrics over HTTP
- Serves the FieldService gRPC API
- Consumes field sensor readings and predictions from RabbitMQ
- Optionally runs the autopilot spray loop`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("store-driver", "memory", "record store driver (memory, postgres, mysql, sqlite)")
	serveCmd.Flags().String("store-dsn", "", "record store connection string")
	serveCmd.Flags().Int("http-port", 5000, "HTTP server port")
	serveCmd.Flags().String("allow-origins", "*", "CORS allowed origins")
	serveCmd.Flags().Duration("request-timeout", 15*time.Second, "per-request handler timeout")
	serveCmd.Flags().Int("grpc-port", 9090, "gRPC server port (0 disables)")
	serveCmd.Flags().String("rabbitmq-url", "", "RabbitMQ URL (empty disables ingest)")
	serveCmd.Flags().String("queue-name", "field-data", "RabbitMQ queue for field records")
	serveCmd.Flags().String("ml-url", "", "ML service base URL (empty disables image classification)")
	serveCmd.Flags().Duration("ml-timeout", 30*time.Second, "ML service request timeout")
	serveCmd.Flags().Int("prediction-window", 10, "number of recent predictions considered by the decision engine")
	serveCmd.Flags().Duration("history-timeout", 10*time.Second, "timeout for the history fan-out")
	serveCmd.Flags().Bool("metrics", true, "expose Prometheus metrics")
	serveCmd.Flags().Bool("autopilot", false, "spray automatically when the recommendation calls for it")
	serveCmd.Flags().String("autopilot-nozzle", "nozzle-1", "nozzle used by the autopilot")
	serveCmd.Flags().Duration("autopilot-interval", time.Minute, "time between autopilot evaluations")
	serveCmd.Flags().Duration("autopilot-cooldown", 10*time.Minute, "minimum time between autopilot sprays on the nozzle")

	_ = viper.BindPFlag("store.driver", serveCmd.Flags().Lookup("store-driver"))
	_ = viper.BindPFlag("store.dsn", serveCmd.Flags().Lookup("store-dsn"))
	_ = viper.BindPFlag("http.port", serveCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("http.allow_origins", serveCmd.Flags().Lookup("allow-origins"))
	_ = viper.BindPFlag("http.request_timeout", serveCmd.Flags().Lookup("request-timeout"))
	_ = viper.BindPFlag("grpc.port", serveCmd.Flags().Lookup("grpc-port"))
	_ = viper.BindPFlag("rabbitmq.url", serveCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("rabbitmq.queue", serveCmd.Flags().Lookup("queue-name"))
	_ = viper.BindPFlag("ml.url", serveCmd.Flags().Lookup("ml-url"))
	_ = viper.BindPFlag("ml.timeout", serveCmd.Flags().Lookup("ml-timeout"))
	_ = viper.BindPFlag("decision.prediction_window", serveCmd.Flags().Lookup("prediction-window"))
	_ = viper.BindPFlag("history.timeout", serveCmd.Flags().Lookup("history-timeout"))
	_ = viper.BindPFlag("metrics.enabled", serveCmd.Flags().Lookup("metrics"))
	_ = viper.BindPFlag("autopilot.enabled", serveCmd.Flags().Lookup("autopilot"))
	_ = viper.BindPFlag("autopilot.nozzle", serveCmd.Flags().Lookup("autopilot-nozzle"))
	_ = viper.BindPFlag("autopilot.interval", serveCmd.Flags().Lookup("autopilot-interval"))
	_ = viper.BindPFlag("autopilot.cooldown", serveCmd.Flags().Lookup("autopilot-cooldown"))
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := GetLogger("agrinex-serve")
	logger.Info("starting serve command")

	config := &backend.ServerConfig{
		Logger:           logger,
		StoreDriver:      viper.GetString("store.driver"),
		StoreDSN:         viper.GetString("store.dsn"),
		HTTPPort:         viper.GetInt("http.port"),
		AllowOrigins:     viper.GetString("http.allow_origins"),
		RequestTimeout:   viper.GetDuration("http.request_timeout"),
		GRPCPort:         viper.GetInt("grpc.port"),
		RabbitMQURL:      viper.GetString("rabbitmq.url"),
		QueueName:        viper.GetString("rabbitmq.queue"),
		MLURL:            viper.GetString("ml.url"),
		MLTimeout:        viper.GetDuration("ml.timeout"),
		PredictionWindow: viper.GetInt("decision.prediction_window"),
		HistoryTimeout:   viper.GetDuration("history.timeout"),
		EnableMetrics:    viper.GetBool("metrics.enabled"),
		Autopilot: backend.AutopilotConfig{
			Enabled:  viper.GetBool("autopilot.enabled"),
			NozzleID: viper.GetString("autopilot.nozzle"),
			Interval: viper.GetDuration("autopilot.interval"),
			Cooldown: viper.GetDuration("autopilot.cooldown"),
		},
	}

	server, err := backend.NewServer(config)
	if err != nil {
		logger.Error("failed to create backend server", "error", err)
		return err
	}

	logger.Info("backend server configuration",
		"store_driver", config.StoreDriver,
		"http_port", config.HTTPPort,
		"grpc_port", config.GRPCPort,
		"queue", config.QueueName,
		"ingest_enabled", config.RabbitMQURL != "",
		"ml_enabled", config.MLURL != "",
		"autopilot_enabled", config.Autopilot.Enabled,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("backend server error", "error", err)
		return err
	}

	logger.Info("backend server stopped")
	return nil
}
