package rpc_test

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Smehapavi/AgriNex/internal/decision"
	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/internal/history"
	"github.com/Smehapavi/AgriNex/internal/rpc"
	"github.com/Smehapavi/AgriNex/internal/spray"
	"github.com/Smehapavi/AgriNex/internal/store"
)

var _ = Describe("FieldService", func() {
	var (
		ctx        context.Context
		logger     *slog.Logger
		backend    *store.Memory
		gateway    *store.Gateway
		grpcServer *grpc.Server
		listener   *bufconn.Listener
		client     *rpc.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))

		backend = store.NewMemory()
		var err error
		gateway, err = store.NewGateway(&store.GatewayConfig{Logger: logger, Backend: backend})
		Expect(err).NotTo(HaveOccurred())

		advisor, err := decision.NewAdvisor(&decision.AdvisorConfig{Logger: logger, Source: gateway})
		Expect(err).NotTo(HaveOccurred())
		handler, err := spray.NewHandler(&spray.HandlerConfig{Logger: logger, Recorder: gateway})
		Expect(err).NotTo(HaveOccurred())
		aggregator, err := history.NewAggregator(&history.AggregatorConfig{Logger: logger, Source: gateway})
		Expect(err).NotTo(HaveOccurred())

		svc, err := rpc.NewFieldService(&rpc.FieldServiceConfig{
			Logger:      logger,
			Recommender: advisor,
			History:     aggregator,
			Sprayer:     handler,
		})
		Expect(err).NotTo(HaveOccurred())

		listener = bufconn.Listen(1024 * 1024)
		grpcServer = rpc.NewGRPCServer(svc, nil)
		go func() { _ = grpcServer.Serve(listener) }()

		client, err = rpc.Dial("passthrough:///bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return listener.DialContext(ctx)
			}),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(client.Close()).To(Succeed())
		grpcServer.Stop()
	})

	Describe("NewFieldService", func() {
		DescribeTable("rejects incomplete configuration",
			func(cfg *rpc.FieldServiceConfig, substr string) {
				svc, err := rpc.NewFieldService(cfg)
				Expect(err).To(MatchError(ContainSubstring(substr)))
				Expect(svc).To(BeNil())
			},
			Entry("nil config", nil, "config cannot be nil"),
			Entry("missing logger", &rpc.FieldServiceConfig{}, "logger"),
			Entry("missing recommender", &rpc.FieldServiceConfig{Logger: slog.Default()}, "recommender"),
		)
	})

	It("should return the current recommendation", func() {
		_, err := gateway.AppendSensorReading(ctx, domain.SensorReading{
			SoilMoisture: 45,
			Humidity:     85,
			Temperature:  20,
			Weather:      domain.Weather{Condition: domain.WeatherFoggy},
		})
		Expect(err).NotTo(HaveOccurred())

		snapshot, err := client.Recommendation(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(snapshot.Sensor).NotTo(BeNil())
		Expect(snapshot.Recommendation.ShouldSpray).To(BeFalse())
		Expect(snapshot.Recommendation.Reason).To(Equal(decision.ReasonHighHumidity))
		Expect(snapshot.Recommendation.Urgency).To(Equal(domain.UrgencyInfo))
	})

	It("should execute a spray and return the log", func() {
		log, err := client.ExecuteSpray(ctx, spray.Command{
			NozzleID:      "nozzle-7",
			PesticideType: domain.PesticideHerbicide,
			Mode:          domain.SprayModeManual,
			VolumeML:      250,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(log.ID).NotTo(BeEmpty())
		Expect(log.Status).To(Equal(domain.SprayStatusCompleted))
		Expect(log.VolumeML).To(Equal(250.0))
		Expect(log.DurationSeconds).To(Equal(float64(domain.DefaultSprayDurationSeconds)))
	})

	It("should return the merged history", func() {
		_, err := gateway.AppendPrediction(ctx, domain.Prediction{DiseaseName: "Rust", Severity: domain.SeverityLow})
		Expect(err).NotTo(HaveOccurred())
		_, err = client.ExecuteSpray(ctx, spray.Command{
			NozzleID:      "nozzle-1",
			PesticideType: domain.PesticideFungicide,
			Mode:          domain.SprayModeAuto,
		})
		Expect(err).NotTo(HaveOccurred())

		entries, err := client.History(ctx, rpc.HistoryRequest{})
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
		Expect(entries[0]).To(HaveKeyWithValue("type", "spray"))
		Expect(entries[1]).To(HaveKeyWithValue("type", "prediction"))

		entries, err = client.History(ctx, rpc.HistoryRequest{Kind: "predictions", Limit: 5})
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0]).To(HaveKeyWithValue("diseaseName", "Rust"))
	})

	DescribeTable("maps errors to status codes",
		func(call func() error, code codes.Code) {
			err := call()
			Expect(status.Code(err)).To(Equal(code))
		},
		Entry("unknown history type", func() error {
			_, err := client.History(ctx, rpc.HistoryRequest{Kind: "weather"})
			return err
		}, codes.InvalidArgument),
		Entry("missing nozzle", func() error {
			_, err := client.ExecuteSpray(ctx, spray.Command{
				PesticideType: domain.PesticideFungicide,
				Mode:          domain.SprayModeManual,
			})
			return err
		}, codes.InvalidArgument),
		Entry("store unavailable", func() error {
			Expect(backend.Close()).To(Succeed())
			_, err := client.Recommendation(ctx)
			return err
		}, codes.Unavailable),
	)

	Describe("direct calls", func() {
		It("should reject an unknown pesticide as an invalid argument", func() {
			advisor, _ := decision.NewAdvisor(&decision.AdvisorConfig{Logger: logger, Source: gateway})
			handler, _ := spray.NewHandler(&spray.HandlerConfig{Logger: logger, Recorder: gateway})
			aggregator, _ := history.NewAggregator(&history.AggregatorConfig{Logger: logger, Source: gateway})
			svc, err := rpc.NewFieldService(&rpc.FieldServiceConfig{
				Logger: logger, Recommender: advisor, History: aggregator, Sprayer: handler,
			})
			Expect(err).NotTo(HaveOccurred())

			in, err := structpb.NewStruct(map[string]any{"nozzleId": "n", "pesticideType": "bleach", "mode": "manual"})
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.ExecuteSpray(ctx, in)
			Expect(status.Code(err)).To(Equal(codes.InvalidArgument))
			Expect(errors.Is(err, domain.ErrStoreUnavailable)).To(BeFalse())
		})
	})
})
