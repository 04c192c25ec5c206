package store

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"namethat/internal/models"
)

// GormStore is the PostgreSQL-backed repository.
type GormStore struct {
	db *gorm.DB
}

var _ Repository = (*GormStore)(nil)

// OpenPostgres connects to dsn with a pooled connection. Tables are
// migrated by the stores built on the returned handle.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(
		&models.GameSession{},
		&models.GameRound{},
		&models.UserStats{},
	); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (g *GormStore) CreateSession(ctx context.Context, s *models.GameSession) error {
	return g.db.WithContext(ctx).Omit(clause.Associations).Create(s).Error
}

func (g *GormStore) GetSession(ctx context.Context, id string) (*models.GameSession, error) {
	var s models.GameSession
	err := g.db.WithContext(ctx).
		Preload("Rounds", func(db *gorm.DB) *gorm.DB { return db.Order("round_number ASC") }).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (g *GormStore) UpdateSession(ctx context.Context, s *models.GameSession) error {
	res := g.db.WithContext(ctx).Model(s).
		Select("is_active", "total_rounds", "correct_guesses", "finished_at").
		Updates(s)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *GormStore) CreateRound(ctx context.Context, r *models.GameRound) error {
	return g.db.WithContext(ctx).Create(r).Error
}

func (g *GormStore) UpdateRound(ctx context.Context, r *models.GameRound) error {
	res := g.db.WithContext(ctx).Model(r).
		Select("user_guess", "is_correct", "time_taken", "answered_at").
		Updates(r)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *GormStore) GetUserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	var st models.UserStats
	if err := g.db.WithContext(ctx).First(&st, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

func (g *GormStore) SaveUserStats(ctx context.Context, st *models.UserStats) error {
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_games_played", "total_rounds_played", "total_correct_guesses", "best_score_percentage", "average_time_per_guess", "last_played", "updated_at"}),
		}).
		Create(st).Error
}

func (g *GormStore) FinishStaleSessions(ctx context.Context, before time.Time) (int64, error) {
	res := g.db.WithContext(ctx).Model(&models.GameSession{}).
		Where("is_active = ? AND updated_at < ?", true, before).
		Updates(map[string]interface{}{
			"is_active":   false,
			"finished_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (g *GormStore) Transaction(ctx context.Context, fn func(repo Repository) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
