package backend

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/pkg/wire"
)

var _ = Describe("Ingest E2E", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	publish := func(kind domain.Kind, v any) {
		body, err := wire.Encode(v)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		ExpectWithOffset(1, publisher.Push(ctx, kind.String(), body)).To(Succeed())
	}

	It("should store a sensor reading published to the queue", func() {
		publish(domain.KindSensor, domain.SensorReading{
			SoilMoisture: 41.5,
			NPKLevels:    domain.NPKLevels{Nitrogen: 60, Phosphorus: 40, Potassium: 55},
			Temperature:  22,
			Humidity:     65,
			Weather:      domain.Weather{Condition: domain.WeatherCloudy},
			Location:     domain.SensorLocation{Zone: "ingest-zone"},
		})

		Eventually(func() string {
			var latest domain.SensorReading
			getJSON("/api/sensors", &latest)
			return latest.Location.Zone
		}).WithTimeout(15 * time.Second).WithPolling(250 * time.Millisecond).Should(Equal("ingest-zone"))
	})

	It("should store a prediction published to the queue", func() {
		publish(domain.KindPrediction, domain.Prediction{
			PlantID:     "P-INGEST",
			DiseaseName: "Early Blight",
			Severity:    domain.SeverityMedium,
			Confidence:  71,
		})

		Eventually(func() []string {
			var preds []domain.Prediction
			getJSON("/api/predictions", &preds)
			ids := make([]string, 0, len(preds))
			for _, p := range preds {
				ids = append(ids, p.PlantID)
			}
			return ids
		}).WithTimeout(15 * time.Second).WithPolling(250 * time.Millisecond).Should(ContainElement("P-INGEST"))
	})

	It("should drop invalid messages and keep consuming", func() {
		Expect(publisher.Push(ctx, "sensor", []byte("not protobuf"))).To(Succeed())
		Expect(publisher.Push(ctx, "weather", []byte{})).To(Succeed())
		publish(domain.KindPrediction, map[string]any{
			"diseaseName": "Rust",
			"severity":    "extreme",
			"confidence":  50,
		})

		publish(domain.KindSensor, domain.SensorReading{
			SoilMoisture: 55,
			Temperature:  20,
			Humidity:     60,
			Weather:      domain.Weather{Condition: domain.WeatherSunny},
			Location:     domain.SensorLocation{Zone: "after-garbage"},
		})

		Eventually(func() string {
			var latest domain.SensorReading
			getJSON("/api/sensors", &latest)
			return latest.Location.Zone
		}).WithTimeout(15 * time.Second).WithPolling(250 * time.Millisecond).Should(Equal("after-garbage"))

		var preds []domain.Prediction
		getJSON("/api/predictions", &preds)
		for _, p := range preds {
			Expect(p.DiseaseName).NotTo(Equal("Rust"))
		}
	})
})
