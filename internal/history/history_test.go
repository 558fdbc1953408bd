package history_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/internal/history"
)

var base = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

// fakeSource serves fixed, presorted records and can fail or block per kind.
type fakeSource struct {
	predictions []domain.Prediction
	sensors     []domain.SensorReading
	sprays      []domain.SprayLog
	sensorErr   error
	blockSprays bool
	// barrier, when set, holds every fetch until all of them have started.
	barrier *sync.WaitGroup
}

func (f *fakeSource) rendezvous(ctx context.Context) error {
	if f.barrier == nil {
		return nil
	}
	f.barrier.Done()

	all := make(chan struct{})
	go func() {
		f.barrier.Wait()
		close(all)
	}()

	select {
	case <-all:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSource) LatestPredictions(ctx context.Context, n int) ([]domain.Prediction, error) {
	if err := f.rendezvous(ctx); err != nil {
		return nil, err
	}
	return head(f.predictions, n), nil
}

func (f *fakeSource) LatestSensorReadings(ctx context.Context, n int) ([]domain.SensorReading, error) {
	if err := f.rendezvous(ctx); err != nil {
		return nil, err
	}
	if f.sensorErr != nil {
		return nil, f.sensorErr
	}
	return head(f.sensors, n), nil
}

func (f *fakeSource) LatestSprayLogs(ctx context.Context, n int) ([]domain.SprayLog, error) {
	if err := f.rendezvous(ctx); err != nil {
		return nil, err
	}
	if f.blockSprays {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return head(f.sprays, n), nil
}

func head[T any](s []T, n int) []T {
	if n < len(s) {
		return s[:n]
	}
	return s
}

func sixRecordSource() *fakeSource {
	return &fakeSource{
		predictions: []domain.Prediction{
			{ID: "p10", DiseaseName: "Leaf Blight", Severity: domain.SeverityHigh, Timestamp: at(10)},
			{ID: "p8", DiseaseName: "Root Rot", Severity: domain.SeverityLow, Timestamp: at(8)},
		},
		sensors: []domain.SensorReading{
			{ID: "s9", SoilMoisture: 40, Timestamp: at(9)},
			{ID: "s5", SoilMoisture: 35, Timestamp: at(5)},
		},
		sprays: []domain.SprayLog{
			{ID: "x11", NozzleID: "nozzle-1", Timestamp: at(11)},
			{ID: "x1", NozzleID: "nozzle-2", Timestamp: at(1)},
		},
	}
}

func ids(entries []domain.HistoryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID()
	}
	return out
}

var _ = Describe("Aggregator", func() {
	var (
		ctx    context.Context
		logger *slog.Logger
		source *fakeSource
		agg    *history.Aggregator
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		source = sixRecordSource()

		var err error
		agg, err = history.NewAggregator(&history.AggregatorConfig{Logger: logger, Source: source})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewAggregator", func() {
		It("should return error when source is nil", func() {
			a, err := history.NewAggregator(&history.AggregatorConfig{Logger: logger})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("source"))
			Expect(a).To(BeNil())
		})
	})

	Describe("Aggregate", func() {
		It("should merge the three streams newest first", func() {
			entries, err := agg.Aggregate(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(entries)).To(Equal([]string{"x11", "p10", "s9", "p8", "s5", "x1"}))

			kinds := make([]domain.Kind, len(entries))
			for i, e := range entries {
				kinds[i] = e.Kind
			}
			Expect(kinds).To(Equal([]domain.Kind{
				domain.KindSpray, domain.KindPrediction, domain.KindSensor,
				domain.KindPrediction, domain.KindSensor, domain.KindSpray,
			}))
		})

		It("should fetch at most perKind records of each kind without global truncation", func() {
			entries, err := agg.Aggregate(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(entries)).To(Equal([]string{"x11", "p10", "s9"}))
		})

		It("should run the three fetches concurrently", func() {
			source.barrier = &sync.WaitGroup{}
			source.barrier.Add(3)

			a, err := history.NewAggregator(&history.AggregatorConfig{
				Logger:       logger,
				Source:       source,
				FetchTimeout: 2 * time.Second,
			})
			Expect(err).NotTo(HaveOccurred())

			entries, err := a.Aggregate(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(6))
		})

		It("should be idempotent without intervening writes", func() {
			first, err := agg.Aggregate(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			second, err := agg.Aggregate(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})

		It("should fail entirely when the sensor fetch fails", func() {
			source.sensorErr = domain.ErrStoreUnavailable

			entries, err := agg.Aggregate(ctx, 2)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, domain.ErrStoreUnavailable)).To(BeTrue())
			Expect(entries).To(BeNil())
		})

		It("should cancel sibling fetches once one fails", func() {
			source.sensorErr = errors.New("connection reset")
			source.blockSprays = true

			done := make(chan error, 1)
			go func() {
				_, err := agg.Aggregate(ctx, 2)
				done <- err
			}()

			var err error
			Eventually(done, 2*time.Second).Should(Receive(&err))
			Expect(err.Error()).To(ContainSubstring("connection reset"))
		})

		It("should honour the fetch timeout", func() {
			source.blockSprays = true
			a, err := history.NewAggregator(&history.AggregatorConfig{
				Logger:       logger,
				Source:       source,
				FetchTimeout: 20 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = a.Aggregate(ctx, 2)
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		})
	})

	Describe("AggregateKind", func() {
		It("should return a single tagged kind", func() {
			entries, err := agg.AggregateKind(ctx, domain.KindSensor, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(entries)).To(Equal([]string{"s9", "s5"}))
			for _, e := range entries {
				Expect(e.Kind).To(Equal(domain.KindSensor))
			}
		})

		It("should reject an unknown kind", func() {
			_, err := agg.AggregateKind(ctx, domain.KindUnknown, 10)
			Expect(domain.IsValidation(err)).To(BeTrue())
		})
	})
})

var _ = Describe("Merge", func() {
	entry := func(kind domain.Kind, id string, sec int) domain.HistoryEntry {
		switch kind {
		case domain.KindPrediction:
			return domain.PredictionEntry(domain.Prediction{ID: id, Timestamp: at(sec)})
		case domain.KindSensor:
			return domain.SensorEntry(domain.SensorReading{ID: id, Timestamp: at(sec)})
		default:
			return domain.SprayEntry(domain.SprayLog{ID: id, Timestamp: at(sec)})
		}
	}

	It("should return an empty list for no input", func() {
		Expect(history.Merge()).To(BeEmpty())
		Expect(history.Merge(nil, nil)).To(BeEmpty())
	})

	It("should break timestamp ties by kind precedence", func() {
		merged := history.Merge(
			[]domain.HistoryEntry{entry(domain.KindSpray, "x", 5)},
			[]domain.HistoryEntry{entry(domain.KindSensor, "s", 5)},
			[]domain.HistoryEntry{entry(domain.KindPrediction, "p", 5)},
		)
		Expect(ids(merged)).To(Equal([]string{"p", "s", "x"}))
	})

	It("should keep the input order of equal entries within a kind", func() {
		merged := history.Merge(
			[]domain.HistoryEntry{entry(domain.KindSensor, "s1", 5), entry(domain.KindSensor, "s2", 5), entry(domain.KindSensor, "s3", 4)},
			[]domain.HistoryEntry{entry(domain.KindSpray, "x1", 5)},
		)
		Expect(ids(merged)).To(Equal([]string{"s1", "s2", "x1", "s3"}))
	})

	It("should interleave many presorted lists", func() {
		var a, b, c []domain.HistoryEntry
		for i := 30; i > 0; i-- {
			switch i % 3 {
			case 0:
				a = append(a, entry(domain.KindPrediction, "", i))
			case 1:
				b = append(b, entry(domain.KindSensor, "", i))
			default:
				c = append(c, entry(domain.KindSpray, "", i))
			}
		}

		merged := history.Merge(a, b, c)
		Expect(merged).To(HaveLen(30))
		for i := 1; i < len(merged); i++ {
			Expect(merged[i-1].Timestamp.After(merged[i].Timestamp)).To(BeTrue())
		}
	})

	It("should serialize entries with their type tag", func() {
		merged := history.Merge([]domain.HistoryEntry{entry(domain.KindSensor, "s", 1)})
		raw, err := json.Marshal(merged)
		Expect(err).NotTo(HaveOccurred())

		var decoded []map[string]any
		Expect(json.Unmarshal(raw, &decoded)).To(Succeed())
		Expect(decoded).To(HaveLen(1))
		Expect(decoded[0]).To(HaveKeyWithValue("type", "sensor"))
		Expect(decoded[0]).To(HaveKeyWithValue("id", "s"))
	})
})
