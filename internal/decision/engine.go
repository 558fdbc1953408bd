// Package decision turns the current field snapshot into a spray recommendation.
package decision

import (
	"github.com/Smehapavi/AgriNex/internal/domain"
)

// Reason strings reported by Evaluate. The critical-disease reason is followed by the
// disease name.
const (
	ReasonCriticalDisease = "Critical disease detected: "
	ReasonLowMoisture     = "Low soil moisture detected"
	ReasonHighHumidity    = "High humidity - spraying not recommended"
	ReasonNormal          = "All conditions normal - no spraying needed"
)

// Thresholds used by the moisture and humidity rules.
const (
	LowMoistureThreshold  = 30.0
	HighHumidityThreshold = 80.0
	CriticalSeverityFloor = domain.SeverityHigh
)

// Recommendation is the outcome of one evaluation.
type Recommendation struct {
	TargetPlant          *domain.TargetPlant  `json:"targetPlant,omitempty"`
	Reason               string               `json:"reason"`
	ShouldSpray          bool                 `json:"shouldSpray"`
	RecommendedPesticide domain.PesticideType `json:"recommendedPesticide,omitempty"`
	Urgency              domain.Urgency       `json:"urgency"`
}

// Evaluate applies the rules in order and returns the first match:
//
//  1. a prediction of high or critical severity calls for fungicide;
//  2. soil moisture below 30 calls for fertilizer;
//  3. humidity above 80 holds spraying back;
//  4. otherwise nothing needs spraying.
//
// A nil sensor is treated as a normal reading, so only rule 1 can fire without one.
// Evaluate has no side effects and never sprays.
func Evaluate(sensor *domain.SensorReading, predictions []domain.Prediction) Recommendation {
	for _, p := range predictions {
		if p.Severity.AtLeast(CriticalSeverityFloor) {
			return Recommendation{
				ShouldSpray:          true,
				RecommendedPesticide: domain.PesticideFungicide,
				Reason:               ReasonCriticalDisease + p.DiseaseName,
				Urgency:              domain.UrgencyError,
				TargetPlant:          &domain.TargetPlant{PlantID: p.PlantID, DiseaseName: p.DiseaseName},
			}
		}
	}

	if sensor != nil && sensor.SoilMoisture < LowMoistureThreshold {
		return Recommendation{
			ShouldSpray:          true,
			RecommendedPesticide: domain.PesticideFertilizer,
			Reason:               ReasonLowMoisture,
			Urgency:              domain.UrgencyWarning,
		}
	}

	if sensor != nil && sensor.Humidity > HighHumidityThreshold {
		return Recommendation{
			Reason:  ReasonHighHumidity,
			Urgency: domain.UrgencyInfo,
		}
	}

	return Recommendation{
		Reason:  ReasonNormal,
		Urgency: domain.UrgencySuccess,
	}
}
