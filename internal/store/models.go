package store

import (
	"time"

	"github.com/Smehapavi/AgriNex/internal/domain"
)

// sensorReadingRow is the flattened table layout of a SensorReading.
type sensorReadingRow struct {
	RecordedAt       time.Time `gorm:"column:recorded_at;precision:6;index:idx_sensor_recorded;not null"`
	Lat              *float64
	Lng              *float64
	WindSpeed        *float64
	Pressure         *float64
	ID               string  `gorm:"primaryKey;size:36"`
	Zone             string  `gorm:"size:64;index:idx_sensor_zone"`
	WeatherCondition string  `gorm:"size:16;not null"`
	SoilMoisture     float64 `gorm:"not null"`
	Nitrogen         float64 `gorm:"not null"`
	Phosphorus       float64 `gorm:"not null"`
	Potassium        float64 `gorm:"not null"`
	Temperature      float64 `gorm:"not null"`
	Humidity         float64 `gorm:"not null"`
}

// TableName specifies the table name for sensor readings.
func (sensorReadingRow) TableName() string {
	return "sensor_readings"
}

func sensorRowFrom(r *domain.SensorReading) sensorReadingRow {
	row := sensorReadingRow{
		ID:               r.ID,
		RecordedAt:       r.Timestamp.UTC(),
		SoilMoisture:     r.SoilMoisture,
		Nitrogen:         r.NPKLevels.Nitrogen,
		Phosphorus:       r.NPKLevels.Phosphorus,
		Potassium:        r.NPKLevels.Potassium,
		Temperature:      r.Temperature,
		Humidity:         r.Humidity,
		WeatherCondition: r.Weather.Condition.String(),
		WindSpeed:        r.Weather.WindSpeed,
		Pressure:         r.Weather.Pressure,
		Zone:             r.Location.Zone,
	}
	if c := r.Location.Coordinates; c != nil {
		row.Lat, row.Lng = &c.Lat, &c.Lng
	}
	return row
}

func (row sensorReadingRow) toDomain() domain.SensorReading {
	r := domain.SensorReading{
		ID:           row.ID,
		SoilMoisture: row.SoilMoisture,
		NPKLevels: domain.NPKLevels{
			Nitrogen:   row.Nitrogen,
			Phosphorus: row.Phosphorus,
			Potassium:  row.Potassium,
		},
		Temperature: row.Temperature,
		Humidity:    row.Humidity,
		Weather: domain.Weather{
			WindSpeed: row.WindSpeed,
			Pressure:  row.Pressure,
		},
		Location:  domain.SensorLocation{Zone: row.Zone},
		Timestamp: row.RecordedAt.UTC(),
	}
	r.Weather.Condition, _ = domain.ParseWeatherCondition(row.WeatherCondition)
	if row.Lat != nil && row.Lng != nil {
		r.Location.Coordinates = &domain.GeoPoint{Lat: *row.Lat, Lng: *row.Lng}
	}
	return r
}

// predictionRow is the flattened table layout of a Prediction. Severity is stored as its
// rank so that minimum-severity filters are plain comparisons.
type predictionRow struct {
	RecordedAt     time.Time `gorm:"column:recorded_at;precision:6;index:idx_prediction_recorded;not null"`
	X              *float64
	Y              *float64
	ID             string  `gorm:"primaryKey;size:36"`
	PlantID        string  `gorm:"size:64"`
	DiseaseName    string  `gorm:"size:128;not null"`
	Zone           string  `gorm:"size:64;index:idx_prediction_zone"`
	Recommendation string  `gorm:"type:text"`
	Status         string  `gorm:"size:16"`
	Confidence     float64 `gorm:"not null"`
	Severity       uint8   `gorm:"not null;index:idx_prediction_severity"`
}

// TableName specifies the table name for predictions.
func (predictionRow) TableName() string {
	return "predictions"
}

func predictionRowFrom(p *domain.Prediction) predictionRow {
	row := predictionRow{
		ID:             p.ID,
		RecordedAt:     p.Timestamp.UTC(),
		PlantID:        p.PlantID,
		DiseaseName:    p.DiseaseName,
		Severity:       uint8(p.Severity),
		Confidence:     p.Confidence,
		Recommendation: p.Recommendation,
	}
	if p.Status.Valid() {
		row.Status = p.Status.String()
	}
	if l := p.Location; l != nil {
		row.Zone = l.Zone
		row.X, row.Y = &l.X, &l.Y
	}
	return row
}

func (row predictionRow) toDomain() domain.Prediction {
	p := domain.Prediction{
		ID:             row.ID,
		PlantID:        row.PlantID,
		DiseaseName:    row.DiseaseName,
		Severity:       domain.Severity(row.Severity),
		Confidence:     row.Confidence,
		Recommendation: row.Recommendation,
		Timestamp:      row.RecordedAt.UTC(),
	}
	if row.Status != "" {
		p.Status, _ = domain.ParsePlantStatus(row.Status)
	}
	if row.X != nil && row.Y != nil {
		p.Location = &domain.FieldPosition{Zone: row.Zone, X: *row.X, Y: *row.Y}
	} else if row.Zone != "" {
		p.Location = &domain.FieldPosition{Zone: row.Zone}
	}
	return p
}

// sprayLogRow is the flattened table layout of a SprayLog.
type sprayLogRow struct {
	RecordedAt    time.Time `gorm:"column:recorded_at;precision:6;index:idx_spray_recorded;not null"`
	X             *float64
	Y             *float64
	ID            string  `gorm:"primaryKey;size:36"`
	NozzleID      string  `gorm:"size:64;not null;index:idx_spray_nozzle"`
	PesticideType string  `gorm:"size:16;not null"`
	Mode          string  `gorm:"size:8;not null"`
	Status        string  `gorm:"size:16;not null"`
	TargetPlantID string  `gorm:"size:64"`
	TargetDisease string  `gorm:"size:128"`
	Zone          string  `gorm:"size:64;index:idx_spray_zone"`
	Duration      float64 `gorm:"not null"`
	Volume        float64 `gorm:"not null"`
}

// TableName specifies the table name for spray logs.
func (sprayLogRow) TableName() string {
	return "spray_logs"
}

func sprayRowFrom(s *domain.SprayLog) sprayLogRow {
	row := sprayLogRow{
		ID:            s.ID,
		RecordedAt:    s.Timestamp.UTC(),
		NozzleID:      s.NozzleID,
		PesticideType: s.PesticideType.String(),
		Mode:          s.Mode.String(),
		Status:        s.Status.String(),
		Duration:      s.DurationSeconds,
		Volume:        s.VolumeML,
	}
	if t := s.TargetPlant; t != nil {
		row.TargetPlantID, row.TargetDisease = t.PlantID, t.DiseaseName
	}
	if l := s.Location; l != nil {
		row.Zone = l.Zone
		if c := l.Coordinates; c != nil {
			row.X, row.Y = &c.X, &c.Y
		}
	}
	return row
}

func (row sprayLogRow) toDomain() domain.SprayLog {
	s := domain.SprayLog{
		ID:              row.ID,
		NozzleID:        row.NozzleID,
		DurationSeconds: row.Duration,
		VolumeML:        row.Volume,
		Timestamp:       row.RecordedAt.UTC(),
	}
	s.PesticideType, _ = domain.ParsePesticideType(row.PesticideType)
	s.Mode, _ = domain.ParseSprayMode(row.Mode)
	s.Status, _ = domain.ParseSprayStatus(row.Status)
	if row.TargetPlantID != "" || row.TargetDisease != "" {
		s.TargetPlant = &domain.TargetPlant{PlantID: row.TargetPlantID, DiseaseName: row.TargetDisease}
	}
	if row.Zone != "" || row.X != nil {
		s.Location = &domain.SprayLocation{Zone: row.Zone}
		if row.X != nil && row.Y != nil {
			s.Location.Coordinates = &domain.GridPoint{X: *row.X, Y: *row.Y}
		}
	}
	return s
}
