package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// record is the table row; the session itself is stored as a JSON blob so
// the token shape can change without a migration.
type record struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Data      string    `gorm:"type:text;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	UpdatedAt time.Time
}

func (record) TableName() string { return "web_sessions" }

type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrate sessions: %w", err)
	}
	return &GormStore{db: db, now: time.Now}, nil
}

func (g *GormStore) Get(ctx context.Context, id string) (*Session, error) {
	var rec record
	err := g.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, g.now()).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal([]byte(rec.Data), &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (g *GormStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}

	rec := record{ID: s.ID, Data: string(data), ExpiresAt: s.ExpiresAt}
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at", "updated_at"}),
		}).
		Create(&rec).Error
}

func (g *GormStore) Delete(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Delete(&record{}, "id = ?", id).Error
}

func (g *GormStore) Prune(ctx context.Context) (int, error) {
	res := g.db.WithContext(ctx).Where("expires_at <= ?", g.now()).Delete(&record{})
	return int(res.RowsAffected), res.Error
}
