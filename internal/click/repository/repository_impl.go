package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	clickdomain "github.com/afftrack/clickpipe/internal/click/domain"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) clickdomain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, click *clickdomain.Click) error {
	return r.db.WithContext(ctx).Create(click).Error
}

func (r *repository) Update(ctx context.Context, click *clickdomain.Click) error {
	return r.db.WithContext(ctx).Save(click).Error
}

func (r *repository) FindByID(ctx context.Context, id int64) (*clickdomain.Click, error) {
	var click clickdomain.Click
	if err := r.db.WithContext(ctx).First(&click, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, clickdomain.ErrClickNotFound
		}
		return nil, err
	}
	return &click, nil
}

func (r *repository) FindByClickID(ctx context.Context, clickID string) (*clickdomain.Click, error) {
	var click clickdomain.Click
	if err := r.db.WithContext(ctx).First(&click, "click_id = ?", clickID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, clickdomain.ErrClickNotFound
		}
		return nil, err
	}
	return &click, nil
}

func (r *repository) RecentByIP(ctx context.Context, offerID int64, realIP string, since time.Time) (*clickdomain.Click, error) {
	var click clickdomain.Click
	err := r.db.WithContext(ctx).
		Where("offer_id = ? AND real_ip = ? AND created_at >= ?", offerID, realIP, since).
		Order("created_at DESC").
		First(&click).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &click, nil
}

func (r *repository) CountForOffer(ctx context.Context, offerID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&clickdomain.Click{}).
		Where("offer_id = ?", offerID).
		Count(&count).Error
	return count, err
}

func (r *repository) CountForOfferSince(ctx context.Context, offerID int64, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&clickdomain.Click{}).
		Where("offer_id = ? AND created_at >= ?", offerID, since).
		Count(&count).Error
	return count, err
}

func (r *repository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&clickdomain.Click{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

var sortColumns = map[string]string{
	"created_at":    "created_at",
	"converted_at":  "converted_at",
	"ip_risk_score": "ip_risk_score",
	"fraud_score":   "fraud_score",
	"payout":        "payout",
	"revenue":       "revenue",
}

func (r *repository) List(ctx context.Context, filter clickdomain.ListFilter) (*clickdomain.ListResult, error) {
	query := r.db.WithContext(ctx).Model(&clickdomain.Click{})

	if filter.OfferID != nil {
		query = query.Where("offer_id = ?", *filter.OfferID)
	}
	if filter.RefID != nil {
		query = query.Where("ref_id = ?", *filter.RefID)
	}
	if filter.Country != nil {
		query = query.Where("country = ?", *filter.Country)
	}
	if filter.DeviceType != nil {
		query = query.Where("device_type = ?", *filter.DeviceType)
	}
	if filter.Converted != nil {
		query = query.Where("converted = ?", *filter.Converted)
	}
	if filter.VPNDetected != nil {
		query = query.Where("vpn_detected = ?", *filter.VPNDetected)
	}
	if filter.ProxyDetected != nil {
		query = query.Where("proxy_detected = ?", *filter.ProxyDetected)
	}
	if filter.MinRiskScore != nil {
		query = query.Where("ip_risk_score >= ?", *filter.MinRiskScore)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 15
	}
	if perPage > 100 {
		perPage = 100
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if filter.SortDir == "asc" {
		direction = "ASC"
	}

	var clicks []clickdomain.Click
	err := query.
		Order(column + " " + direction).
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&clicks).Error
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	return &clickdomain.ListResult{
		Clicks:     clicks,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}
