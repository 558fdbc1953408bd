package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/internal/rpc"
	"github.com/Smehapavi/AgriNex/internal/spray"
)

var fieldCmd = &cobra.Command{
	Use:   "field",
	Short: "Query a running server over gRPC",
}

var fieldRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Print the current spray recommendation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withFieldClient(cmd.Context(), func(ctx context.Context, c *rpc.Client) (any, error) {
			return c.Recommendation(ctx)
		})
	},
}

var fieldHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the merged history or one kind of record",
	RunE: func(cmd *cobra.Command, _ []string) error {
		req := rpc.HistoryRequest{
			Kind:    viper.GetString("field.history.type"),
			Limit:   viper.GetInt("field.history.limit"),
			PerKind: viper.GetInt("field.history.per_kind"),
		}
		return withFieldClient(cmd.Context(), func(ctx context.Context, c *rpc.Client) (any, error) {
			return c.History(ctx, req)
		})
	},
}

var fieldSprayCmd = &cobra.Command{
	Use:   "spray",
	Short: "Execute a manual spray command",
	RunE: func(cmd *cobra.Command, _ []string) error {
		pesticide, err := domain.ParsePesticideType(viper.GetString("field.spray.pesticide"))
		if err != nil {
			return err
		}

		sc := spray.Command{
			NozzleID:        viper.GetString("field.spray.nozzle"),
			PesticideType:   pesticide,
			Mode:            domain.SprayModeManual,
			DurationSeconds: viper.GetFloat64("field.spray.duration"),
			VolumeML:        viper.GetFloat64("field.spray.volume"),
		}
		if zone := viper.GetString("field.spray.zone"); zone != "" {
			sc.Location = &domain.SprayLocation{Zone: zone}
		}

		return withFieldClient(cmd.Context(), func(ctx context.Context, c *rpc.Client) (any, error) {
			return c.ExecuteSpray(ctx, sc)
		})
	},
}

func init() {
	rootCmd.AddCommand(fieldCmd)
	fieldCmd.AddCommand(fieldRecommendCmd, fieldHistoryCmd, fieldSprayCmd)

	fieldCmd.PersistentFlags().String("addr", "localhost:9090", "FieldService gRPC address")
	fieldCmd.PersistentFlags().Duration("timeout", 10*time.Second, "request timeout")

	fieldHistoryCmd.Flags().String("type", "", "record kind (predictions, sensors, sprays); empty merges all")
	fieldHistoryCmd.Flags().Int("limit", 0, "maximum entries of a single kind")
	fieldHistoryCmd.Flags().Int("per-kind", 0, "entries per kind in the merged feed")

	fieldSprayCmd.Flags().String("nozzle", "nozzle-1", "nozzle id")
	fieldSprayCmd.Flags().String("pesticide", "fungicide", "pesticide type (fungicide, herbicide, insecticide, fertilizer)")
	fieldSprayCmd.Flags().Float64("duration", 0, "spray duration in seconds (0 uses the default)")
	fieldSprayCmd.Flags().Float64("volume", 0, "spray volume in millilitres (0 uses the default)")
	fieldSprayCmd.Flags().String("zone", "", "field zone")

	_ = viper.BindPFlag("field.addr", fieldCmd.PersistentFlags().Lookup("addr"))
	_ = viper.BindPFlag("field.timeout", fieldCmd.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag("field.history.type", fieldHistoryCmd.Flags().Lookup("type"))
	_ = viper.BindPFlag("field.history.limit", fieldHistoryCmd.Flags().Lookup("limit"))
	_ = viper.BindPFlag("field.history.per_kind", fieldHistoryCmd.Flags().Lookup("per-kind"))
	_ = viper.BindPFlag("field.spray.nozzle", fieldSprayCmd.Flags().Lookup("nozzle"))
	_ = viper.BindPFlag("field.spray.pesticide", fieldSprayCmd.Flags().Lookup("pesticide"))
	_ = viper.BindPFlag("field.spray.duration", fieldSprayCmd.Flags().Lookup("duration"))
	_ = viper.BindPFlag("field.spray.volume", fieldSprayCmd.Flags().Lookup("volume"))
	_ = viper.BindPFlag("field.spray.zone", fieldSprayCmd.Flags().Lookup("zone"))
}

// withFieldClient dials the server, runs call and prints its result as indented JSON.
func withFieldClient(ctx context.Context, call func(context.Context, *rpc.Client) (any, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, viper.GetDuration("field.timeout"))
	defer cancel()

	client, err := rpc.Dial(viper.GetString("field.addr"))
	if err != nil {
		return err
	}
	defer client.Close()

	out, err := call(ctx, client)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
