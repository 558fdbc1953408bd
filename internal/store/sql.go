package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Smehapavi/AgriNex/internal/domain"
)

// SQLConfig holds the configuration of the SQL backend.
type SQLConfig struct {
	Logger *slog.Logger
	Driver string
	DSN    string
}

// SQL is a Backend on top of gorm. PostgreSQL connections come from a pgx pool; MySQL and
// SQLite use their gorm drivers directly.
type SQL struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Backend = (*SQL)(nil)

// NewSQL opens the database, verifies the connection and migrates the three tables.
func NewSQL(ctx context.Context, cfg *SQLConfig) (*SQL, error) {
	if cfg == nil {
		return nil, errors.New("sql store config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.DSN == "" {
		return nil, errors.New("store dsn cannot be empty")
	}

	cfg.Logger.Info("connecting to database", "driver", cfg.Driver)

	s := &SQL{logger: cfg.Logger}

	dialector, err := s.dialector(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		s.closePool()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db

	sqlDB, err := db.DB()
	if err != nil {
		s.closePool()
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	s.sqlDB = sqlDB

	if cfg.Driver == DriverSQLite {
		// Every connection to ":memory:" opens a separate database.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cfg.Logger.Info("database connection established", "driver", cfg.Driver)

	if err := s.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *SQL) dialector(ctx context.Context, driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverPostgres:
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		s.pool = pool
		return postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)}), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

func (s *SQL) migrate(ctx context.Context) error {
	s.logger.Info("running database migrations")

	if err := s.db.WithContext(ctx).AutoMigrate(
		&sensorReadingRow{},
		&predictionRow{},
		&sprayLogRow{},
	); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	s.logger.Info("database migrations completed successfully")
	return nil
}

func (s *SQL) InsertSensorReading(ctx context.Context, r *domain.SensorReading) error {
	row := sensorRowFrom(r)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return unavailable("insert sensor reading", err)
	}
	return nil
}

func (s *SQL) InsertPrediction(ctx context.Context, p *domain.Prediction) error {
	row := predictionRowFrom(p)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return unavailable("insert prediction", err)
	}
	return nil
}

func (s *SQL) InsertSprayLog(ctx context.Context, l *domain.SprayLog) error {
	row := sprayRowFrom(l)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return unavailable("insert spray log", err)
	}
	return nil
}

func (s *SQL) SensorReadings(ctx context.Context, q Query) ([]domain.SensorReading, error) {
	tx := s.newest(ctx, &sensorReadingRow{}, q)
	if q.Zone != "" {
		tx = tx.Where("zone = ?", q.Zone)
	}

	var rows []sensorReadingRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, unavailable("query sensor readings", err)
	}

	out := make([]domain.SensorReading, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (s *SQL) Predictions(ctx context.Context, q Query) ([]domain.Prediction, error) {
	tx := s.newest(ctx, &predictionRow{}, q)
	if q.Zone != "" {
		tx = tx.Where("zone = ?", q.Zone)
	}
	if q.MinSeverity.Valid() {
		tx = tx.Where("severity >= ?", uint8(q.MinSeverity))
	}

	var rows []predictionRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, unavailable("query predictions", err)
	}

	out := make([]domain.Prediction, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (s *SQL) SprayLogs(ctx context.Context, q Query) ([]domain.SprayLog, error) {
	tx := s.newest(ctx, &sprayLogRow{}, q)
	if q.Zone != "" {
		tx = tx.Where("zone = ?", q.Zone)
	}
	if q.NozzleID != "" {
		tx = tx.Where("nozzle_id = ?", q.NozzleID)
	}

	var rows []sprayLogRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, unavailable("query spray logs", err)
	}

	out := make([]domain.SprayLog, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// newest starts a query over model ordered newest first with the shared Since and Limit
// filters applied.
func (s *SQL) newest(ctx context.Context, model any, q Query) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(model)
	if !q.Since.IsZero() {
		tx = tx.Where("recorded_at >= ?", q.Since.UTC())
	}
	tx = tx.Order("recorded_at DESC").Order("id DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx
}

func (s *SQL) Clear(ctx context.Context, kind domain.Kind) error {
	var model any
	switch kind {
	case domain.KindSensor:
		model = &sensorReadingRow{}
	case domain.KindPrediction:
		model = &predictionRow{}
	case domain.KindSpray:
		model = &sprayLogRow{}
	default:
		return &domain.ValidationError{Field: "kind", Reason: "unknown record kind"}
	}

	err := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(model).Error
	if err != nil {
		return unavailable("clear "+kind.String()+" records", err)
	}
	return nil
}

func (s *SQL) Ping(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the database handle and, for PostgreSQL, the pgx pool behind it.
func (s *SQL) Close() error {
	if s.sqlDB == nil {
		s.closePool()
		return nil
	}

	s.logger.Info("closing database connection")
	err := s.sqlDB.Close()
	s.closePool()
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.logger.Info("database connection closed")
	return nil
}

func (s *SQL) closePool() {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}
