package core

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository defines the interface for data access operations.
type Repository interface {
	// Device operations
	CreateDevice(ctx context.Context, device *Device) error
	GetDevice(ctx context.Context, id uint) (*Device, error)
	GetDeviceByUID(ctx context.Context, uid string) (*Device, error)
	ListDevices(ctx context.Context) ([]*Device, error)
	ListDevicesByStatus(ctx context.Context, status string) ([]*Device, error)
	UpdateDeviceStatus(ctx context.Context, id uint, status string) error
	DeleteDevice(ctx context.Context, id uint) error

	// Transaction operations
	CreateTransaction(ctx context.Context, tx *Transaction) error
	CreateTransactionBatch(ctx context.Context, txs []*Transaction) error
	ListTransactions(ctx context.Context, deviceID uint, limit, offset int) ([]*Transaction, error)
	CountTransactions(ctx context.Context, deviceID uint) (int64, error)

	// Transaction support
	WithTransaction(ctx context.Context, fn func(context.Context, Repository) error) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository wraps a gorm handle in the Repository interface.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTransaction(ctx context.Context, fn func(c context.Context, r Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewRepository(tx))
	})
}

func (r *repository) CreateDevice(ctx context.Context, d *Device) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *repository) GetDevice(ctx context.Context, id uint) (*Device, error) {
	var d Device
	return &d, r.db.WithContext(ctx).First(&d, id).Error
}

func (r *repository) GetDeviceByUID(ctx context.Context, uid string) (*Device, error) {
	var d Device
	return &d, r.db.WithContext(ctx).Where("uid = ?", uid).First(&d).Error
}

func (r *repository) ListDevices(ctx context.Context) ([]*Device, error) {
	var devices []*Device
	return devices, r.db.WithContext(ctx).Order("created_at DESC").Find(&devices).Error
}

func (r *repository) ListDevicesByStatus(ctx context.Context, status string) ([]*Device, error) {
	var devices []*Device
	return devices, r.db.WithContext(ctx).Where("status = ?", status).
		Order("created_at DESC").Find(&devices).Error
}

func (r *repository) UpdateDeviceStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&Device{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

// DeleteDevice removes the device row and all of its transactions in one
// database transaction. The schema also carries ON DELETE CASCADE; the
// explicit delete keeps the cascade observable on stores without it.
func (r *repository) DeleteDevice(ctx context.Context, id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("device_id = ?", id).Delete(&Transaction{}).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).Delete(&Device{}, id).Error
	})
}

func (r *repository) CreateTransaction(ctx context.Context, t *Transaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *repository) CreateTransactionBatch(ctx context.Context, txs []*Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(txs, 100).Error
}

// ListTransactions returns transactions newest first. deviceID 0 means all
// devices.
func (r *repository) ListTransactions(ctx context.Context, deviceID uint, limit, offset int) ([]*Transaction, error) {
	var txs []*Transaction
	q := r.db.WithContext(ctx).Order("event_time DESC")
	if deviceID > 0 {
		q = q.Where("device_id = ?", deviceID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return txs, q.Find(&txs).Error
}

func (r *repository) CountTransactions(ctx context.Context, deviceID uint) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&Transaction{})
	if deviceID > 0 {
		q = q.Where("device_id = ?", deviceID)
	}
	return count, q.Count(&count).Error
}
