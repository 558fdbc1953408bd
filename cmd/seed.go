package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Smehapavi/AgriNex/internal/seed"
	"github.com/Smehapavi/AgriNex/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the store with sample data",
	Long: `Seed the record store with the sample predictions, sensor readings and spray
logs, cycling them to the requested counts. Generated station data can be added on
top. Existing records are removed first unless --clear=false is given.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		// store.* is shared with serve; bind it to this command's flags only when seed runs.
		if err := viper.BindPFlag("store.driver", cmd.Flags().Lookup("store-driver")); err != nil {
			return err
		}
		return viper.BindPFlag("store.dsn", cmd.Flags().Lookup("store-dsn"))
	},
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("store-driver", "memory", "record store driver (memory, postgres, mysql, sqlite)")
	seedCmd.Flags().String("store-dsn", "", "record store connection string")
	seedCmd.Flags().Bool("clear", true, "remove existing records before seeding")
	seedCmd.Flags().Int("predictions", seed.DefaultPredictions, "number of predictions")
	seedCmd.Flags().Int("sensors", seed.DefaultSensors, "number of sensor readings")
	seedCmd.Flags().Int("sprays", seed.DefaultSprays, "number of spray logs")
	seedCmd.Flags().Int("stations", 0, "additional generated stations, one reading and prediction each")

	_ = viper.BindPFlag("seed.clear", seedCmd.Flags().Lookup("clear"))
	_ = viper.BindPFlag("seed.predictions", seedCmd.Flags().Lookup("predictions"))
	_ = viper.BindPFlag("seed.sensors", seedCmd.Flags().Lookup("sensors"))
	_ = viper.BindPFlag("seed.sprays", seedCmd.Flags().Lookup("sprays"))
	_ = viper.BindPFlag("seed.stations", seedCmd.Flags().Lookup("stations"))
}

func runSeed(_ *cobra.Command, _ []string) error {
	logger := GetLogger("agrinex-seed")
	ctx := context.Background()

	driver := viper.GetString("store.driver")
	if driver == "" || driver == store.DriverMemory {
		logger.Warn("seeding the memory store; records are lost when the command exits")
	}

	backend, err := store.Open(ctx, &store.Config{
		Logger: logger,
		Driver: driver,
		DSN:    viper.GetString("store.dsn"),
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	gateway, err := store.NewGateway(&store.GatewayConfig{Logger: logger, Backend: backend})
	if err != nil {
		return fmt.Errorf("failed to create store gateway: %w", err)
	}

	seeder, err := seed.NewSeeder(&seed.SeederConfig{Logger: logger, Store: gateway})
	if err != nil {
		return fmt.Errorf("failed to create seeder: %w", err)
	}

	res, err := seeder.Run(ctx, seed.Options{
		Clear:       viper.GetBool("seed.clear"),
		Predictions: viper.GetInt("seed.predictions"),
		Sensors:     viper.GetInt("seed.sensors"),
		Sprays:      viper.GetInt("seed.sprays"),
		Stations:    viper.GetInt("seed.stations"),
	})
	if err != nil {
		logger.Error("seed failed", "error", err)
		return err
	}

	fmt.Printf("Seeded %d predictions, %d sensor readings and %d spray logs\n",
		res.Predictions, res.Sensors, res.Sprays)
	return nil
}
