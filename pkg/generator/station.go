// Package generator simulates field stations that report soil and weather readings and
// plant-disease predictions.
package generator

import (
	"math"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/Smehapavi/AgriNex/internal/domain"
)

// Zones are the field zones stations are placed in.
var Zones = []string{"A", "B", "C", "D", "Main Field"}

type disease struct {
	name           string
	recommendation string
}

var diseases = []disease{
	{"Leaf Blight", "Immediate fungicide treatment required"},
	{"Root Rot", "Emergency treatment needed"},
	{"Powdery Mildew", "Monitor and treat if condition worsens"},
	{"Aphid Infestation", "Apply insecticide treatment"},
	{"Early Blight", "Remove affected leaves and apply fungicide"},
	{"Rust", "Apply fungicide and improve air circulation"},
}

// FieldStation describes a simulated sensor station.
type FieldStation struct {
	InstalledAt time.Time
	StationID   string  `fake:"{uuid}"`
	Firmware    string  `fake:"{appversion}"`
	Zone        string  `fake:"skip"`
	Latitude    float64 `fake:"{latitude}"`
	Longitude   float64 `fake:"{longitude}"`
}

// FieldDataGenerator produces correlated readings for one station. It is not safe for
// concurrent use.
type FieldDataGenerator struct {
	station          *FieldStation
	baselineTemp     float64
	baselineHumidity float64
	baselinePressure float64
	noise            float64
	pressureTrend    float64 // Simulates weather system movement
	lastPressure     float64
	moisture         float64
	npk              domain.NPKLevels
}

// NewFieldStation creates a station with fake identity data in a random zone.
func NewFieldStation() *FieldStation {
	var station FieldStation
	if err := gofakeit.Struct(&station); err != nil {
		return nil
	}
	station.Zone = gofakeit.RandomString(Zones)
	station.InstalledAt = time.Now().UTC()
	return &station
}

// NewFieldGenerator creates a generator for station with randomized baselines.
// Note: Uses math/rand which is acceptable for simulation data.
func NewFieldGenerator(station *FieldStation) *FieldDataGenerator {
	return &FieldDataGenerator{
		station:          station,
		baselineTemp:     18.0 + rand.Float64()*10,         // #nosec G404 - 18-28°C
		baselineHumidity: 55.0 + rand.Float64()*20,         // #nosec G404 - 55-75%
		baselinePressure: 1013.0 + (rand.Float64()-0.5)*20, // #nosec G404 - 1003-1023 hPa
		noise:            rand.Float64() * 2,               // #nosec G404
		pressureTrend:    (rand.Float64() - 0.5) * 0.5,     // #nosec G404 - Slow trend
		lastPressure:     1013.0,
		moisture:         gofakeit.Float64Range(30, 60),
		npk: domain.NPKLevels{
			Nitrogen:   gofakeit.Float64Range(40, 80),
			Phosphorus: gofakeit.Float64Range(30, 60),
			Potassium:  gofakeit.Float64Range(40, 75),
		},
	}
}

// Station returns the station the generator reports for.
func (g *FieldDataGenerator) Station() *FieldStation {
	return g.station
}

// GenerateTemperature with daily pattern.
func (g *FieldDataGenerator) GenerateTemperature(t time.Time) float64 {
	hour := float64(t.Hour())

	// Daily cycle (peak around 2-3 PM)
	dailyCycle := 5 * math.Sin((hour-6)*math.Pi/12)

	noise := (rand.Float64() - 0.5) * g.noise // #nosec G404

	// Occasional anomalies (5% chance)
	anomaly := 0.0
	if rand.Float64() < 0.05 { // #nosec G404
		anomaly = (rand.Float64() - 0.5) * 15 // #nosec G404 - ±7.5°C spike
	}

	return clamp(g.baselineTemp+dailyCycle+noise+anomaly, -50, 100)
}

// GenerateHumidity with inverse temperature correlation.
func (g *FieldDataGenerator) GenerateHumidity(t time.Time, temperature float64) float64 {
	hour := float64(t.Hour())

	// Higher at night
	dailyCycle := -3 * math.Sin((hour-6)*math.Pi/12)
	tempEffect := -(temperature - g.baselineTemp) * 1.5
	noise := (rand.Float64() - 0.5) * g.noise * 0.5 // #nosec G404

	// Rain (3% chance)
	anomaly := 0.0
	if rand.Float64() < 0.03 { // #nosec G404
		anomaly = rand.Float64() * 20 // #nosec G404
	}

	return clamp(g.baselineHumidity+dailyCycle+tempEffect+noise+anomaly, 20, 98)
}

// GeneratePressure with slow trending behavior.
func (g *FieldDataGenerator) GeneratePressure(t time.Time) float64 {
	randomChange := (rand.Float64() - 0.5) * 0.5 // #nosec G404

	// Occasionally reverse trend (10% chance)
	if rand.Float64() < 0.1 { // #nosec G404
		g.pressureTrend = -g.pressureTrend + (rand.Float64()-0.5)*0.2 // #nosec G404
	}

	dayOfYear := float64(t.YearDay())
	seasonalPattern := 5 * math.Sin(dayOfYear*2*math.Pi/365)

	newPressure := g.lastPressure + randomChange + g.pressureTrend
	newPressure = g.baselinePressure + (newPressure-g.baselinePressure)*0.7 + seasonalPattern
	newPressure = clamp(newPressure, 980, 1040)

	g.lastPressure = newPressure
	return newPressure
}

// GenerateSoilMoisture lets the soil dry out slowly and recover when humidity is high.
func (g *FieldDataGenerator) GenerateSoilMoisture(humidity float64) float64 {
	drying := 0.3 + rand.Float64()*0.7 // #nosec G404
	g.moisture -= drying

	if humidity > 85 {
		g.moisture += gofakeit.Float64Range(5, 15)
	}

	// Irrigation cycle once the soil is dry (8% chance per reading)
	if g.moisture < 25 && rand.Float64() < 0.08 { // #nosec G404
		g.moisture = gofakeit.Float64Range(45, 60)
	}

	g.moisture = clamp(g.moisture, 5, 95)
	return g.moisture
}

// GenerateNPK drifts the nutrient levels by a small random step.
func (g *FieldDataGenerator) GenerateNPK() domain.NPKLevels {
	step := func(v float64) float64 {
		return clamp(v+(rand.Float64()-0.55)*0.8, 0, 100) // #nosec G404
	}
	g.npk = domain.NPKLevels{
		Nitrogen:   step(g.npk.Nitrogen),
		Phosphorus: step(g.npk.Phosphorus),
		Potassium:  step(g.npk.Potassium),
	}
	return g.npk
}

// ConditionFor derives the weather condition from humidity and pressure.
func ConditionFor(humidity, pressure float64) domain.WeatherCondition {
	switch {
	case pressure < 995 && humidity > 85:
		return domain.WeatherStormy
	case humidity > 90:
		return domain.WeatherRainy
	case humidity > 85:
		return domain.WeatherFoggy
	case pressure < 1010 || humidity > 70:
		return domain.WeatherCloudy
	default:
		return domain.WeatherSunny
	}
}

// GenerateReading generates a reading with realistic correlations.
func (g *FieldDataGenerator) GenerateReading(t time.Time) domain.SensorReading {
	temperature := g.GenerateTemperature(t)
	humidity := g.GenerateHumidity(t, temperature)
	pressure := g.GeneratePressure(t)
	moisture := g.GenerateSoilMoisture(humidity)
	wind := round(gofakeit.Float64Range(0, 35), 1)
	roundedPressure := round(pressure, 2)

	npk := g.GenerateNPK()

	return domain.SensorReading{
		SoilMoisture: round(moisture, 2),
		NPKLevels: domain.NPKLevels{
			Nitrogen:   round(npk.Nitrogen, 1),
			Phosphorus: round(npk.Phosphorus, 1),
			Potassium:  round(npk.Potassium, 1),
		},
		Temperature: round(temperature, 2),
		Humidity:    round(humidity, 2),
		Weather: domain.Weather{
			Condition: ConditionFor(humidity, pressure),
			WindSpeed: &wind,
			Pressure:  &roundedPressure,
		},
		Location: domain.SensorLocation{
			Zone: g.station.Zone,
			Coordinates: &domain.GeoPoint{
				Lat: g.station.Latitude,
				Lng: g.station.Longitude,
			},
		},
	}
}

// GeneratePrediction simulates a disease classification for a plant near the station.
// Severity follows classifier confidence the same way the ML service grades it.
func (g *FieldDataGenerator) GeneratePrediction() domain.Prediction {
	confidence := gofakeit.Float64Range(40, 99)

	p := domain.Prediction{
		PlantID:    g.plantID(),
		Confidence: round(confidence, 1),
		Severity:   SeverityForConfidence(confidence),
		Location: &domain.FieldPosition{
			Zone: g.station.Zone,
			X:    float64(gofakeit.Number(0, 100)),
			Y:    float64(gofakeit.Number(0, 100)),
		},
	}

	// One in four plants is healthy.
	if rand.Float64() < 0.25 { // #nosec G404
		p.DiseaseName = "Healthy"
		p.Severity = domain.SeverityLow
		p.Status = domain.PlantHealthy
		p.Recommendation = "Continue regular monitoring"
		return p
	}

	d := diseases[rand.Intn(len(diseases))] // #nosec G404
	p.DiseaseName = d.name
	p.Status = domain.PlantUnhealthy
	p.Recommendation = d.recommendation
	return p
}

// SeverityForConfidence grades a classifier confidence percentage: 85 and above is high,
// 60 and above is medium, anything lower is low.
func SeverityForConfidence(confidence float64) domain.Severity {
	switch {
	case confidence >= 85:
		return domain.SeverityHigh
	case confidence >= 60:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func (g *FieldDataGenerator) plantID() string {
	return g.station.Zone[:1] + "-" + gofakeit.DigitN(3)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
