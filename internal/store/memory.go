package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Smehapavi/AgriNex/internal/domain"
)

var errClosed = errors.New("store closed")

// Memory is an in-process Backend. It is the default for development and tests.
type Memory struct {
	sensors     []domain.SensorReading
	predictions []domain.Prediction
	sprays      []domain.SprayLog
	mu          sync.RWMutex
	closed      bool
}

var _ Backend = (*Memory)(nil)

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) InsertSensorReading(_ context.Context, r *domain.SensorReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("insert sensor reading", errClosed)
	}
	m.sensors = append(m.sensors, r.Clone())
	return nil
}

func (m *Memory) InsertPrediction(_ context.Context, p *domain.Prediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("insert prediction", errClosed)
	}
	m.predictions = append(m.predictions, p.Clone())
	return nil
}

func (m *Memory) InsertSprayLog(_ context.Context, s *domain.SprayLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("insert spray log", errClosed)
	}
	m.sprays = append(m.sprays, s.Clone())
	return nil
}

func (m *Memory) SensorReadings(ctx context.Context, q Query) ([]domain.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, unavailable("query sensor readings", errClosed)
	}
	return selectNewest(m.sensors, q, domain.SensorReading.Clone, func(r domain.SensorReading) (time.Time, string, bool) {
		return r.Timestamp, r.ID, q.Zone == "" || r.Location.Zone == q.Zone
	}), nil
}

func (m *Memory) Predictions(ctx context.Context, q Query) ([]domain.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, unavailable("query predictions", errClosed)
	}
	return selectNewest(m.predictions, q, domain.Prediction.Clone, func(p domain.Prediction) (time.Time, string, bool) {
		ok := p.Severity.AtLeast(q.MinSeverity)
		if q.Zone != "" {
			ok = ok && p.Location != nil && p.Location.Zone == q.Zone
		}
		return p.Timestamp, p.ID, ok
	}), nil
}

func (m *Memory) SprayLogs(ctx context.Context, q Query) ([]domain.SprayLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, unavailable("query spray logs", errClosed)
	}
	return selectNewest(m.sprays, q, domain.SprayLog.Clone, func(s domain.SprayLog) (time.Time, string, bool) {
		ok := q.NozzleID == "" || s.NozzleID == q.NozzleID
		if q.Zone != "" {
			ok = ok && s.Location != nil && s.Location.Zone == q.Zone
		}
		return s.Timestamp, s.ID, ok
	}), nil
}

func (m *Memory) Clear(_ context.Context, kind domain.Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("clear "+kind.String(), errClosed)
	}
	switch kind {
	case domain.KindSensor:
		m.sensors = nil
	case domain.KindPrediction:
		m.predictions = nil
	case domain.KindSpray:
		m.sprays = nil
	default:
		return &domain.ValidationError{Field: "kind", Reason: "unknown record kind"}
	}
	return nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return unavailable("ping", errClosed)
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// selectNewest clones the records accepted by key, orders them newest first with ties
// broken by id descending, and applies q.Since and q.Limit.
func selectNewest[T any](records []T, q Query, clone func(T) T, key func(T) (time.Time, string, bool)) []T {
	type keyed struct {
		ts  time.Time
		id  string
		rec T
	}

	matched := make([]keyed, 0, len(records))
	for _, rec := range records {
		ts, id, ok := key(rec)
		if !ok || (!q.Since.IsZero() && ts.Before(q.Since)) {
			continue
		}
		matched = append(matched, keyed{ts: ts, id: id, rec: rec})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].ts.Equal(matched[j].ts) {
			return matched[i].ts.After(matched[j].ts)
		}
		return matched[i].id > matched[j].id
	})

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]T, len(matched))
	for i, k := range matched {
		out[i] = clone(k.rec)
	}
	return out
}
