package domain

import (
	"fmt"
	"strings"
)

// enumSet describes a closed set of names for a small integer enum whose zero value is
// reserved for "unknown". Parsing is case-insensitive and honours aliases.
type enumSet[T ~uint8] struct {
	field   string
	names   []string
	aliases map[string]T
}

func (e enumSet[T]) name(v T) string {
	if int(v) < len(e.names) {
		return e.names[v]
	}
	return fmt.Sprintf("%s(%d)", e.field, v)
}

func (e enumSet[T]) valid(v T) bool {
	return v > 0 && int(v) < len(e.names)
}

func (e enumSet[T]) parse(raw string) (T, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	for i := 1; i < len(e.names); i++ {
		if e.names[i] == key {
			return T(i), nil
		}
	}
	if v, ok := e.aliases[key]; ok {
		return v, nil
	}
	return 0, &ValidationError{
		Field:  e.field,
		Reason: fmt.Sprintf("unknown value %q (allowed: %s)", raw, strings.Join(e.names[1:], ", ")),
	}
}

func (e enumSet[T]) marshal(v T) ([]byte, error) {
	if !e.valid(v) {
		return []byte{}, nil
	}
	return []byte(e.names[v]), nil
}

// Severity is the escalation level of a disease prediction, ordered low < medium < high < critical.
type Severity uint8

// Severity values.
const (
	SeverityUnknown Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severities = enumSet[Severity]{
	field: "severity",
	names: []string{"", "low", "medium", "high", "critical"},
	// The classifier reports "Moderate" for mid-confidence results.
	aliases: map[string]Severity{"moderate": SeverityMedium},
}

// ParseSeverity parses a severity name.
func ParseSeverity(s string) (Severity, error) { return severities.parse(s) }

func (s Severity) String() string { return severities.name(s) }

// Valid reports whether s is one of the declared severities.
func (s Severity) Valid() bool { return severities.valid(s) }

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool { return s >= other }

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) { return severities.marshal(s) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// PesticideType is the agent loaded into a nozzle.
type PesticideType uint8

// PesticideType values.
const (
	PesticideUnknown PesticideType = iota
	PesticideFungicide
	PesticideHerbicide
	PesticideInsecticide
	PesticideFertilizer
)

var pesticides = enumSet[PesticideType]{
	field: "pesticideType",
	names: []string{"", "fungicide", "herbicide", "insecticide", "fertilizer"},
}

// ParsePesticideType parses a pesticide type name.
func ParsePesticideType(s string) (PesticideType, error) { return pesticides.parse(s) }

func (p PesticideType) String() string { return pesticides.name(p) }

// Valid reports whether p is one of the declared pesticide types.
func (p PesticideType) Valid() bool { return pesticides.valid(p) }

// MarshalText implements encoding.TextMarshaler.
func (p PesticideType) MarshalText() ([]byte, error) { return pesticides.marshal(p) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PesticideType) UnmarshalText(b []byte) error {
	v, err := ParsePesticideType(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// SprayMode tells whether a spray was started by an operator or by the recommendation loop.
type SprayMode uint8

// SprayMode values.
const (
	SprayModeUnknown SprayMode = iota
	SprayModeManual
	SprayModeAuto
)

var sprayModes = enumSet[SprayMode]{
	field: "mode",
	names: []string{"", "manual", "auto"},
}

// ParseSprayMode parses a spray mode name.
func ParseSprayMode(s string) (SprayMode, error) { return sprayModes.parse(s) }

func (m SprayMode) String() string { return sprayModes.name(m) }

// Valid reports whether m is manual or auto.
func (m SprayMode) Valid() bool { return sprayModes.valid(m) }

// MarshalText implements encoding.TextMarshaler.
func (m SprayMode) MarshalText() ([]byte, error) { return sprayModes.marshal(m) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *SprayMode) UnmarshalText(b []byte) error {
	v, err := ParseSprayMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// SprayStatus is the recorded outcome of a spray command.
type SprayStatus uint8

// SprayStatus values.
const (
	SprayStatusUnknown SprayStatus = iota
	SprayStatusPending
	SprayStatusInProgress
	SprayStatusCompleted
	SprayStatusFailed
)

var sprayStatuses = enumSet[SprayStatus]{
	field: "status",
	names: []string{"", "pending", "in_progress", "completed", "failed"},
}

// ParseSprayStatus parses a spray status name.
func ParseSprayStatus(s string) (SprayStatus, error) { return sprayStatuses.parse(s) }

func (s SprayStatus) String() string { return sprayStatuses.name(s) }

// Valid reports whether s is a declared spray status.
func (s SprayStatus) Valid() bool { return sprayStatuses.valid(s) }

// MarshalText implements encoding.TextMarshaler.
func (s SprayStatus) MarshalText() ([]byte, error) { return sprayStatuses.marshal(s) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SprayStatus) UnmarshalText(b []byte) error {
	v, err := ParseSprayStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// WeatherCondition is the sky condition reported by the weather station.
type WeatherCondition uint8

// WeatherCondition values.
const (
	WeatherUnknown WeatherCondition = iota
	WeatherSunny
	WeatherCloudy
	WeatherRainy
	WeatherStormy
	WeatherFoggy
)

var weatherConditions = enumSet[WeatherCondition]{
	field: "weather.condition",
	names: []string{"", "sunny", "cloudy", "rainy", "stormy", "foggy"},
}

// ParseWeatherCondition parses a weather condition name.
func ParseWeatherCondition(s string) (WeatherCondition, error) { return weatherConditions.parse(s) }

func (w WeatherCondition) String() string { return weatherConditions.name(w) }

// Valid reports whether w is a declared weather condition.
func (w WeatherCondition) Valid() bool { return weatherConditions.valid(w) }

// MarshalText implements encoding.TextMarshaler.
func (w WeatherCondition) MarshalText() ([]byte, error) { return weatherConditions.marshal(w) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *WeatherCondition) UnmarshalText(b []byte) error {
	v, err := ParseWeatherCondition(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// PlantStatus is the classifier's overall verdict for the photographed plant.
type PlantStatus uint8

// PlantStatus values.
const (
	PlantStatusUnknown PlantStatus = iota
	PlantHealthy
	PlantUnhealthy
)

var plantStatuses = enumSet[PlantStatus]{
	field: "status",
	names: []string{"", "healthy", "unhealthy"},
}

// ParsePlantStatus parses a plant status name.
func ParsePlantStatus(s string) (PlantStatus, error) { return plantStatuses.parse(s) }

func (p PlantStatus) String() string { return plantStatuses.name(p) }

// Valid reports whether p is healthy or unhealthy.
func (p PlantStatus) Valid() bool { return plantStatuses.valid(p) }

// MarshalText implements encoding.TextMarshaler.
func (p PlantStatus) MarshalText() ([]byte, error) { return plantStatuses.marshal(p) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PlantStatus) UnmarshalText(b []byte) error {
	v, err := ParsePlantStatus(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Urgency grades a recommendation for display.
type Urgency uint8

// Urgency values.
const (
	UrgencyUnknown Urgency = iota
	UrgencyInfo
	UrgencySuccess
	UrgencyWarning
	UrgencyError
)

var urgencies = enumSet[Urgency]{
	field: "urgency",
	names: []string{"", "info", "success", "warning", "error"},
}

// ParseUrgency parses an urgency name.
func ParseUrgency(s string) (Urgency, error) { return urgencies.parse(s) }

func (u Urgency) String() string { return urgencies.name(u) }

// MarshalText implements encoding.TextMarshaler.
func (u Urgency) MarshalText() ([]byte, error) { return urgencies.marshal(u) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *Urgency) UnmarshalText(b []byte) error {
	v, err := ParseUrgency(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// Kind identifies one of the three record streams. The declaration order is the
// precedence used to break timestamp ties when streams are merged.
type Kind uint8

// Kind values.
const (
	KindUnknown Kind = iota
	KindPrediction
	KindSensor
	KindSpray
)

var kinds = enumSet[Kind]{
	field: "type",
	names: []string{"", "prediction", "sensor", "spray"},
	aliases: map[string]Kind{
		"predictions": KindPrediction,
		"sensors":     KindSensor,
		"sprays":      KindSpray,
	},
}

// AllKinds lists the record kinds in tie-break precedence order.
var AllKinds = []Kind{KindPrediction, KindSensor, KindSpray}

// ParseKind parses a kind name; plural forms used by the history query are accepted.
func ParseKind(s string) (Kind, error) { return kinds.parse(s) }

func (k Kind) String() string { return kinds.name(k) }

// Valid reports whether k names a record stream.
func (k Kind) Valid() bool { return kinds.valid(k) }

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return kinds.marshal(k) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
