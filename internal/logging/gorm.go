package logging

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// #region gorm-models
// RunParam is the Postgres row of a run parameter.
type RunParam struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"index;not null"`
	Key       string `gorm:"not null"`
	Value     string `gorm:"not null"`
	CreatedAt time.Time
}

// RunMetric is the Postgres row of a metric value.
type RunMetric struct {
	ID        uint    `gorm:"primaryKey"`
	RunID     string  `gorm:"index;not null"`
	Key       string  `gorm:"not null"`
	Step      int     `gorm:"not null"`
	Value     float64 `gorm:"not null"`
	CreatedAt time.Time
}

// #endregion gorm-models

// #region gorm-sink
// GormExperiment mirrors a run's parameters and metrics into Postgres.
type GormExperiment struct {
	db    *gorm.DB
	runID string
}

// OpenPostgres connects to dsn and migrates the metric tables.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.AutoMigrate(&RunParam{}, &RunMetric{}); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return db, nil
}

// NewGormExperiment returns a sink writing rows for runID through db.
func NewGormExperiment(db *gorm.DB, runID string) *GormExperiment {
	return &GormExperiment{db: db, runID: runID}
}

func (g *GormExperiment) LogParam(key, value string) error {
	if err := g.db.Create(&RunParam{RunID: g.runID, Key: key, Value: value}).Error; err != nil {
		return fmt.Errorf("log param %s: %w", key, err)
	}
	return nil
}

func (g *GormExperiment) LogScalar(key string, v float64) error {
	if err := g.db.Create(&RunMetric{RunID: g.runID, Key: key, Value: v}).Error; err != nil {
		return fmt.Errorf("log metric %s: %w", key, err)
	}
	return nil
}

func (g *GormExperiment) LogSequence(key string, vs []float64) error {
	if len(vs) == 0 {
		return nil
	}
	rows := make([]RunMetric, len(vs))
	for i, v := range vs {
		rows[i] = RunMetric{RunID: g.runID, Key: key, Step: i, Value: v}
	}
	if err := g.db.Create(&rows).Error; err != nil {
		return fmt.Errorf("log metric %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (g *GormExperiment) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// #endregion gorm-sink
