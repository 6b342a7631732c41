// Package referrer reads the affiliates projection of the users table. The
// tracking path only ever checks that a ref parameter points at a real
// account.
package referrer

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Referrer is the slim affiliate row attached to clicks via ref_id.
type Referrer struct {
	ID    int64  `gorm:"primaryKey" json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (Referrer) TableName() string { return "users" }

type Repository interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Referrer{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

var Module = fx.Module("referrer",
	fx.Provide(NewRepository),
)
