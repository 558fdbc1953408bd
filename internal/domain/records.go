// Package domain holds the record types shared by every AgriNex component: sensor readings,
// disease predictions, spray logs and the tagged history entry that unifies them.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Defaults applied to spray commands that omit duration or volume.
const (
	DefaultSprayDurationSeconds = 30
	DefaultSprayVolumeML        = 100
)

// NPKLevels are soil nutrient concentrations, each in [0,100].
type NPKLevels struct {
	Nitrogen   float64 `json:"nitrogen" yaml:"nitrogen"`
	Phosphorus float64 `json:"phosphorus" yaml:"phosphorus"`
	Potassium  float64 `json:"potassium" yaml:"potassium"`
}

// Weather is the weather station part of a sensor reading.
type Weather struct {
	Condition WeatherCondition `json:"condition" yaml:"condition"`
	WindSpeed *float64         `json:"windSpeed,omitempty" yaml:"windSpeed,omitempty"`
	Pressure  *float64         `json:"pressure,omitempty" yaml:"pressure,omitempty"`
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// SensorLocation places a sensor reading in the field.
type SensorLocation struct {
	Zone        string    `json:"zone,omitempty" yaml:"zone,omitempty"`
	Coordinates *GeoPoint `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
}

// SensorReading is one snapshot of the field sensors.
type SensorReading struct {
	ID           string         `json:"id" yaml:"-"`
	SoilMoisture float64        `json:"soilMoisture" yaml:"soilMoisture"`
	NPKLevels    NPKLevels      `json:"npkLevels" yaml:"npkLevels"`
	Temperature  float64        `json:"temperature" yaml:"temperature"`
	Humidity     float64        `json:"humidity" yaml:"humidity"`
	Weather      Weather        `json:"weather" yaml:"weather"`
	Location     SensorLocation `json:"location" yaml:"location"`
	Timestamp    time.Time      `json:"timestamp" yaml:"-"`
}

// Validate checks every numeric range and enum of the reading.
func (r *SensorReading) Validate() error {
	checks := []error{
		checkRange("soilMoisture", r.SoilMoisture, 0, 100),
		checkRange("npkLevels.nitrogen", r.NPKLevels.Nitrogen, 0, 100),
		checkRange("npkLevels.phosphorus", r.NPKLevels.Phosphorus, 0, 100),
		checkRange("npkLevels.potassium", r.NPKLevels.Potassium, 0, 100),
		checkRange("temperature", r.Temperature, -50, 100),
		checkRange("humidity", r.Humidity, 0, 100),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if !r.Weather.Condition.Valid() {
		return &ValidationError{Field: "weather.condition", Reason: "is required"}
	}
	if r.Weather.WindSpeed != nil {
		if err := checkRange("weather.windSpeed", *r.Weather.WindSpeed, 0, 200); err != nil {
			return err
		}
	}
	if r.Weather.Pressure != nil {
		if err := checkRange("weather.pressure", *r.Weather.Pressure, 800, 1200); err != nil {
			return err
		}
	}
	if c := r.Location.Coordinates; c != nil {
		if err := checkRange("location.coordinates.lat", c.Lat, -90, 90); err != nil {
			return err
		}
		if err := checkRange("location.coordinates.lng", c.Lng, -180, 180); err != nil {
			return err
		}
	}
	return nil
}

// FieldPosition locates a plant on the field grid.
type FieldPosition struct {
	Zone string  `json:"zone,omitempty" yaml:"zone,omitempty"`
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
}

// Prediction is a disease classification result for one plant.
type Prediction struct {
	ID             string         `json:"id" yaml:"-"`
	PlantID        string         `json:"plantId,omitempty" yaml:"plantId,omitempty"`
	DiseaseName    string         `json:"diseaseName" yaml:"diseaseName"`
	Severity       Severity       `json:"severity" yaml:"severity"`
	Confidence     float64        `json:"confidence" yaml:"confidence"`
	Location       *FieldPosition `json:"location,omitempty" yaml:"location,omitempty"`
	Recommendation string         `json:"recommendation,omitempty" yaml:"recommendation,omitempty"`
	Status         PlantStatus    `json:"status,omitempty" yaml:"status,omitempty"`
	Timestamp      time.Time      `json:"timestamp" yaml:"-"`
}

// Validate checks the required disease name, severity and confidence range.
func (p *Prediction) Validate() error {
	if err := required("diseaseName", p.DiseaseName); err != nil {
		return err
	}
	if !p.Severity.Valid() {
		return &ValidationError{Field: "severity", Reason: "is required"}
	}
	if err := checkRange("confidence", p.Confidence, 0, 100); err != nil {
		return err
	}
	if p.Status != PlantStatusUnknown && !p.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown value %d", p.Status)}
	}
	return nil
}

// TargetPlant names the plant a spray was aimed at.
type TargetPlant struct {
	PlantID     string `json:"plantId,omitempty" yaml:"plantId,omitempty"`
	DiseaseName string `json:"diseaseName,omitempty" yaml:"diseaseName,omitempty"`
}

// GridPoint is a position on the field grid.
type GridPoint struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// SprayLocation places a spray action in the field.
type SprayLocation struct {
	Zone        string     `json:"zone,omitempty" yaml:"zone,omitempty"`
	Coordinates *GridPoint `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
}

// SprayLog records a spray command and its outcome.
type SprayLog struct {
	ID              string         `json:"id" yaml:"-"`
	NozzleID        string         `json:"nozzleId" yaml:"nozzleId"`
	PesticideType   PesticideType  `json:"pesticideType" yaml:"pesticideType"`
	Mode            SprayMode      `json:"mode" yaml:"mode"`
	Status          SprayStatus    `json:"status" yaml:"status"`
	DurationSeconds float64        `json:"duration" yaml:"duration"`
	VolumeML        float64        `json:"volume" yaml:"volume"`
	TargetPlant     *TargetPlant   `json:"targetPlant,omitempty" yaml:"targetPlant,omitempty"`
	Location        *SprayLocation `json:"location,omitempty" yaml:"location,omitempty"`
	Timestamp       time.Time      `json:"timestamp" yaml:"-"`
}

// ApplyDefaults fills status, duration and volume when they were left unset.
func (s *SprayLog) ApplyDefaults() {
	if s.Status == SprayStatusUnknown {
		s.Status = SprayStatusCompleted
	}
	if s.DurationSeconds == 0 {
		s.DurationSeconds = DefaultSprayDurationSeconds
	}
	if s.VolumeML == 0 {
		s.VolumeML = DefaultSprayVolumeML
	}
}

// Validate checks the nozzle id, the enums and the positive duration and volume.
func (s *SprayLog) Validate() error {
	if err := required("nozzleId", s.NozzleID); err != nil {
		return err
	}
	if !s.PesticideType.Valid() {
		return &ValidationError{Field: "pesticideType", Reason: "is required"}
	}
	if !s.Mode.Valid() {
		return &ValidationError{Field: "mode", Reason: "is required"}
	}
	if !s.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "is required"}
	}
	if err := checkPositive("duration", s.DurationSeconds); err != nil {
		return err
	}
	return checkPositive("volume", s.VolumeML)
}

// HistoryEntry is one item of the merged history feed. Exactly one of the record
// pointers is set, matching Kind.
type HistoryEntry struct {
	Kind       Kind
	Timestamp  time.Time
	Prediction *Prediction
	Sensor     *SensorReading
	Spray      *SprayLog
}

// PredictionEntry tags a prediction for the history feed.
func PredictionEntry(p Prediction) HistoryEntry {
	return HistoryEntry{Kind: KindPrediction, Timestamp: p.Timestamp, Prediction: &p}
}

// SensorEntry tags a sensor reading for the history feed.
func SensorEntry(r SensorReading) HistoryEntry {
	return HistoryEntry{Kind: KindSensor, Timestamp: r.Timestamp, Sensor: &r}
}

// SprayEntry tags a spray log for the history feed.
func SprayEntry(s SprayLog) HistoryEntry {
	return HistoryEntry{Kind: KindSpray, Timestamp: s.Timestamp, Spray: &s}
}

// ID returns the id of the wrapped record.
func (e HistoryEntry) ID() string {
	switch e.Kind {
	case KindPrediction:
		return e.Prediction.ID
	case KindSensor:
		return e.Sensor.ID
	case KindSpray:
		return e.Spray.ID
	}
	return ""
}

// Record returns the wrapped record.
func (e HistoryEntry) Record() any {
	switch e.Kind {
	case KindPrediction:
		return e.Prediction
	case KindSensor:
		return e.Sensor
	case KindSpray:
		return e.Spray
	}
	return nil
}

// MarshalJSON renders the wrapped record's fields with an added "type" discriminator.
func (e HistoryEntry) MarshalJSON() ([]byte, error) {
	rec := e.Record()
	if rec == nil {
		return nil, fmt.Errorf("history entry has no record for kind %s", e.Kind)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["type"] = json.RawMessage(fmt.Sprintf("%q", e.Kind.String()))
	return json.Marshal(fields)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Clone returns a copy of r that shares no memory with it.
func (r SensorReading) Clone() SensorReading {
	r.Weather.WindSpeed = clonePtr(r.Weather.WindSpeed)
	r.Weather.Pressure = clonePtr(r.Weather.Pressure)
	r.Location.Coordinates = clonePtr(r.Location.Coordinates)
	return r
}

// Clone returns a copy of p that shares no memory with it.
func (p Prediction) Clone() Prediction {
	p.Location = clonePtr(p.Location)
	return p
}

// Clone returns a copy of s that shares no memory with it.
func (s SprayLog) Clone() SprayLog {
	s.TargetPlant = clonePtr(s.TargetPlant)
	if s.Location != nil {
		loc := *s.Location
		loc.Coordinates = clonePtr(loc.Coordinates)
		s.Location = &loc
	}
	return s
}
