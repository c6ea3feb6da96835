package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/strikeline/strikeline/pkg/logger"
	"github.com/strikeline/strikeline/pkg/types"
)

// PositionRecord is the gorm model for a persisted position. The composite
// unique index over the key columns is what makes Save an upsert.
type PositionRecord struct {
	ID                 uint   `gorm:"primaryKey"`
	Ticker             string `gorm:"size:16;uniqueIndex:idx_position_key"`
	Expiry             string `gorm:"size:10;uniqueIndex:idx_position_key"`
	Strikes            string `gorm:"size:64;uniqueIndex:idx_position_key"`
	Status             string `gorm:"size:16;index"`
	Score              float64
	Premium            float64
	Collateral         float64
	ReturnOnCollateral float64
	Width              float64
	ShortDelta         float64
	OpenInterest       int
	BidAskPct          float64
	Quantity           int
	Created            time.Time
	Updated            time.Time
}

// TableName pins the table name independent of gorm pluralization rules.
func (PositionRecord) TableName() string { return "positions" }

// PostgresRepository persists positions to a shared PostgreSQL instance.
type PostgresRepository struct {
	db  *gorm.DB
	log logger.Logger
}

// NewPostgres opens the pool and migrates the positions table.
func NewPostgres(dsn string, log logger.Logger) (*PostgresRepository, error) {
	if log == nil {
		log = logger.Default()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.AutoMigrate(&PositionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate positions table: %w", err)
	}
	return &PostgresRepository{db: db, log: log}, nil
}

// Save implements interfaces.PositionRepository. Rows conflict on the key
// columns and update in place, so repeated drains stay idempotent.
func (r *PostgresRepository) Save(ctx context.Context, positions []types.Position) error {
	if len(positions) == 0 {
		return nil
	}

	records := make([]PositionRecord, 0, len(positions))
	for _, p := range positions {
		records = append(records, ToRecord(p))
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ticker"}, {Name: "expiry"}, {Name: "strikes"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "score", "premium", "collateral", "return_on_collateral",
			"width", "short_delta", "open_interest", "bid_ask_pct", "quantity", "updated",
		}),
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("save positions: %w", err)
	}

	r.log.Debug("positions saved", logger.WithField("saved", len(records)))
	return nil
}

// Load reads every persisted position, in key order.
func (r *PostgresRepository) Load() ([]types.Position, error) {
	var records []PositionRecord
	if err := r.db.Order("ticker, expiry, strikes").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	positions := make([]types.Position, 0, len(records))
	for _, rec := range records {
		positions = append(positions, FromRecord(rec))
	}
	return positions, nil
}

// Close implements interfaces.PositionRepository.
func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ToRecord maps a position onto its gorm row.
func ToRecord(p types.Position) PositionRecord {
	return PositionRecord{
		Ticker:             p.Key.Ticker,
		Expiry:             p.Key.Expiry,
		Strikes:            p.Key.Strikes,
		Status:             string(p.Status),
		Score:              p.Score,
		Premium:            p.Premium,
		Collateral:         p.Collateral,
		ReturnOnCollateral: p.ReturnOnCollateral,
		Width:              p.Width,
		ShortDelta:         p.ShortDelta,
		OpenInterest:       p.OpenInterest,
		BidAskPct:          p.BidAskPct,
		Quantity:           p.Quantity,
		Created:            p.Created,
		Updated:            p.Updated,
	}
}

// FromRecord maps a gorm row back onto a position.
func FromRecord(rec PositionRecord) types.Position {
	return types.Position{
		Key:                types.Key{Ticker: rec.Ticker, Expiry: rec.Expiry, Strikes: rec.Strikes},
		Status:             types.Status(rec.Status),
		Score:              rec.Score,
		Premium:            rec.Premium,
		Collateral:         rec.Collateral,
		ReturnOnCollateral: rec.ReturnOnCollateral,
		Width:              rec.Width,
		ShortDelta:         rec.ShortDelta,
		OpenInterest:       rec.OpenInterest,
		BidAskPct:          rec.BidAskPct,
		Quantity:           rec.Quantity,
		Created:            rec.Created,
		Updated:            rec.Updated,
	}
}
