package domain_test

import (
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Smehapavi/AgriNex/internal/domain"
)

func validReading() domain.SensorReading {
	return domain.SensorReading{
		SoilMoisture: 45,
		NPKLevels:    domain.NPKLevels{Nitrogen: 65, Phosphorus: 42, Potassium: 58},
		Temperature:  24.5,
		Humidity:     68,
		Weather:      domain.Weather{Condition: domain.WeatherCloudy},
		Location:     domain.SensorLocation{Zone: "Main Field"},
	}
}

func fieldOf(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}

func ptr(v float64) *float64 { return &v }

var _ = Describe("Records", func() {
	Describe("SensorReading.Validate", func() {
		It("should accept a reading inside every range", func() {
			r := validReading()
			Expect(r.Validate()).To(Succeed())
		})

		DescribeTable("range boundaries",
			func(mutate func(*domain.SensorReading), field string) {
				r := validReading()
				mutate(&r)
				err := r.Validate()
				if field == "" {
					Expect(err).NotTo(HaveOccurred())
					return
				}
				Expect(err).To(HaveOccurred())
				Expect(domain.IsValidation(err)).To(BeTrue())
				Expect(fieldOf(err)).To(Equal(field))
			},
			Entry("soil moisture at 0", func(r *domain.SensorReading) { r.SoilMoisture = 0 }, ""),
			Entry("soil moisture at 100", func(r *domain.SensorReading) { r.SoilMoisture = 100 }, ""),
			Entry("soil moisture below 0", func(r *domain.SensorReading) { r.SoilMoisture = -1 }, "soilMoisture"),
			Entry("soil moisture above 100", func(r *domain.SensorReading) { r.SoilMoisture = 101 }, "soilMoisture"),
			Entry("nitrogen above 100", func(r *domain.SensorReading) { r.NPKLevels.Nitrogen = 101 }, "npkLevels.nitrogen"),
			Entry("phosphorus below 0", func(r *domain.SensorReading) { r.NPKLevels.Phosphorus = -1 }, "npkLevels.phosphorus"),
			Entry("potassium above 100", func(r *domain.SensorReading) { r.NPKLevels.Potassium = 101 }, "npkLevels.potassium"),
			Entry("temperature at -50", func(r *domain.SensorReading) { r.Temperature = -50 }, ""),
			Entry("temperature below -50", func(r *domain.SensorReading) { r.Temperature = -51 }, "temperature"),
			Entry("temperature above 100", func(r *domain.SensorReading) { r.Temperature = 101 }, "temperature"),
			Entry("humidity above 100", func(r *domain.SensorReading) { r.Humidity = 101 }, "humidity"),
			Entry("humidity below 0", func(r *domain.SensorReading) { r.Humidity = -1 }, "humidity"),
			Entry("missing weather condition", func(r *domain.SensorReading) { r.Weather.Condition = domain.WeatherUnknown }, "weather.condition"),
			Entry("wind speed at 200", func(r *domain.SensorReading) { r.Weather.WindSpeed = ptr(200) }, ""),
			Entry("wind speed above 200", func(r *domain.SensorReading) { r.Weather.WindSpeed = ptr(201) }, "weather.windSpeed"),
			Entry("negative wind speed", func(r *domain.SensorReading) { r.Weather.WindSpeed = ptr(-1) }, "weather.windSpeed"),
			Entry("pressure at 800", func(r *domain.SensorReading) { r.Weather.Pressure = ptr(800) }, ""),
			Entry("pressure below 800", func(r *domain.SensorReading) { r.Weather.Pressure = ptr(799) }, "weather.pressure"),
			Entry("pressure above 1200", func(r *domain.SensorReading) { r.Weather.Pressure = ptr(1201) }, "weather.pressure"),
		)
	})

	Describe("Prediction.Validate", func() {
		var p domain.Prediction

		BeforeEach(func() {
			p = domain.Prediction{DiseaseName: "Leaf Blight", Severity: domain.SeverityHigh, Confidence: 87}
		})

		It("should accept a valid prediction", func() {
			Expect(p.Validate()).To(Succeed())
		})

		It("should require a disease name", func() {
			p.DiseaseName = ""
			Expect(fieldOf(p.Validate())).To(Equal("diseaseName"))
		})

		It("should require a severity", func() {
			p.Severity = domain.SeverityUnknown
			Expect(fieldOf(p.Validate())).To(Equal("severity"))
		})

		It("should reject confidence above 100", func() {
			p.Confidence = 101
			Expect(fieldOf(p.Validate())).To(Equal("confidence"))
		})

		It("should reject confidence below 0", func() {
			p.Confidence = -1
			Expect(fieldOf(p.Validate())).To(Equal("confidence"))
		})
	})

	Describe("SprayLog", func() {
		It("should fill defaults for status, duration and volume", func() {
			s := domain.SprayLog{NozzleID: "nozzle-1", PesticideType: domain.PesticideFungicide, Mode: domain.SprayModeManual}
			s.ApplyDefaults()
			Expect(s.Status).To(Equal(domain.SprayStatusCompleted))
			Expect(s.DurationSeconds).To(BeEquivalentTo(30))
			Expect(s.VolumeML).To(BeEquivalentTo(100))
			Expect(s.Validate()).To(Succeed())
		})

		It("should reject a non-positive volume", func() {
			s := domain.SprayLog{NozzleID: "nozzle-1", PesticideType: domain.PesticideFungicide, Mode: domain.SprayModeManual}
			s.ApplyDefaults()
			s.VolumeML = -5
			Expect(fieldOf(s.Validate())).To(Equal("volume"))
		})

		It("should require a nozzle id", func() {
			s := domain.SprayLog{PesticideType: domain.PesticideFungicide, Mode: domain.SprayModeManual}
			s.ApplyDefaults()
			Expect(fieldOf(s.Validate())).To(Equal("nozzleId"))
		})

		It("should reject an unknown pesticide type during decoding", func() {
			var s domain.SprayLog
			err := json.Unmarshal([]byte(`{"nozzleId":"n1","pesticideType":"acid","mode":"manual"}`), &s)
			Expect(err).To(HaveOccurred())
			Expect(fieldOf(err)).To(Equal("pesticideType"))
		})
	})

	Describe("enum parsing", func() {
		It("should parse case-insensitively", func() {
			sev, err := domain.ParseSeverity("HIGH")
			Expect(err).NotTo(HaveOccurred())
			Expect(sev).To(Equal(domain.SeverityHigh))
		})

		It("should map the classifier's Moderate to medium", func() {
			sev, err := domain.ParseSeverity("Moderate")
			Expect(err).NotTo(HaveOccurred())
			Expect(sev).To(Equal(domain.SeverityMedium))
		})

		It("should order severities", func() {
			Expect(domain.SeverityCritical.AtLeast(domain.SeverityHigh)).To(BeTrue())
			Expect(domain.SeverityMedium.AtLeast(domain.SeverityHigh)).To(BeFalse())
		})

		It("should accept plural kinds", func() {
			k, err := domain.ParseKind("sprays")
			Expect(err).NotTo(HaveOccurred())
			Expect(k).To(Equal(domain.KindSpray))
		})

		It("should reject unknown values", func() {
			_, err := domain.ParseWeatherCondition("hail")
			Expect(domain.IsValidation(err)).To(BeTrue())
		})
	})

	Describe("HistoryEntry JSON", func() {
		It("should flatten the record and add a type discriminator", func() {
			ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
			entry := domain.SprayEntry(domain.SprayLog{
				ID:              "s1",
				NozzleID:        "nozzle-2",
				PesticideType:   domain.PesticideInsecticide,
				Mode:            domain.SprayModeAuto,
				Status:          domain.SprayStatusCompleted,
				DurationSeconds: 30,
				VolumeML:        100,
				Timestamp:       ts,
			})

			raw, err := json.Marshal(entry)
			Expect(err).NotTo(HaveOccurred())

			var decoded map[string]any
			Expect(json.Unmarshal(raw, &decoded)).To(Succeed())
			Expect(decoded).To(HaveKeyWithValue("type", "spray"))
			Expect(decoded).To(HaveKeyWithValue("id", "s1"))
			Expect(decoded).To(HaveKeyWithValue("nozzleId", "nozzle-2"))
			Expect(decoded).To(HaveKeyWithValue("pesticideType", "insecticide"))
			Expect(decoded).To(HaveKeyWithValue("mode", "auto"))
		})

		It("should report the wrapped id", func() {
			entry := domain.PredictionEntry(domain.Prediction{ID: "p1"})
			Expect(entry.ID()).To(Equal("p1"))
			Expect(entry.Kind).To(Equal(domain.KindPrediction))
		})
	})
})

var _ = Describe("Errors", func() {
	It("should match upstream errors against the sentinel", func() {
		err := &domain.UpstreamError{Service: "ml", StatusCode: 503, Err: errors.New("unavailable")}
		Expect(errors.Is(err, domain.ErrUpstreamService)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("503"))
	})
})
