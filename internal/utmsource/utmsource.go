// Package utmsource reads the catalog of named traffic sources referenced by
// the utm_id tracking parameter.
package utmsource

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("utm_source_not_found")

// Source is one catalog row. Slug is the canonical utm_source value.
type Source struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	Slug      string    `gorm:"uniqueIndex" json:"slug"`
	Status    string    `gorm:"default:active" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Source) TableName() string { return "utm_sources" }

type Repository interface {
	FindByID(ctx context.Context, id int64) (*Source, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id int64) (*Source, error) {
	var s Source
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

var Module = fx.Module("utmsource",
	fx.Provide(NewRepository),
)
