package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"example.com/backstage/services/simulator/internal/infrastructure"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DeviceService implements the device lifecycle: create, activate,
// deactivate, delete. It wraps the record store and the generator and
// enforces state-machine legality; it does not serialize concurrent calls
// on the same id — a concurrent activate/deactivate race resolves through
// the status checks, one caller losing with an invalid-state error.
type DeviceService struct {
	store     Repository
	generator *Generator
	cache     *infrastructure.Cache
	logger    *logrus.Logger
}

// NewDeviceService creates a DeviceService. cache may be nil.
func NewDeviceService(store Repository, generator *Generator, cache *infrastructure.Cache, logger *logrus.Logger) *DeviceService {
	return &DeviceService{
		store:     store,
		generator: generator,
		cache:     cache,
		logger:    logger,
	}
}

// CreateDevice validates and persists a new device in inactive status.
func (s *DeviceService) CreateDevice(ctx context.Context, name, deviceType, address string) (*Device, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}
	if strings.TrimSpace(address) == "" {
		return nil, ErrAddressRequired
	}
	if !ValidDeviceType(deviceType) {
		return nil, ErrInvalidType
	}

	device := &Device{
		UID:     uuid.New().String(),
		Name:    name,
		Type:    deviceType,
		Address: address,
		Status:  DeviceStatusInactive,
	}

	if err := s.store.CreateDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	s.cacheDevice(ctx, device)
	s.logger.WithFields(logrus.Fields{
		"device_uid": device.UID,
		"type":       device.Type,
	}).Info("Device created")

	return device, nil
}

// ListDevices returns all devices, most-recently-created first.
func (s *DeviceService) ListDevices(ctx context.Context) ([]*Device, error) {
	return s.store.ListDevices(ctx)
}

// GetDevice fetches a device by id.
func (s *DeviceService) GetDevice(ctx context.Context, id uint) (*Device, error) {
	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return device, nil
}

// GetDeviceByUID fetches a device by its UID, cache first.
func (s *DeviceService) GetDeviceByUID(ctx context.Context, uid string) (*Device, error) {
	if cached, err := s.getCachedDevice(ctx, uid); err == nil && cached != nil {
		return cached, nil
	}

	device, err := s.store.GetDeviceByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	s.cacheDevice(ctx, device)
	return device, nil
}

// ActivateDevice flips the device to active and starts its generation
// chain. The status is persisted before the chain starts: a crash between
// the two leaves a device marked active but not generating, which restart
// reconciliation repairs, rather than a chain running against a device
// believed inactive.
func (s *DeviceService) ActivateDevice(ctx context.Context, id uint) (*Device, error) {
	device, err := s.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	if device.Status == DeviceStatusActive {
		return nil, ErrDeviceAlreadyActive
	}

	if err := s.store.UpdateDeviceStatus(ctx, id, DeviceStatusActive); err != nil {
		return nil, fmt.Errorf("failed to persist device status: %w", err)
	}

	device.Status = DeviceStatusActive
	device.UpdatedAt = time.Now()
	s.generator.Start(device)
	s.cacheDevice(ctx, device)

	s.logger.WithField("device_uid", device.UID).Info("Device activated")
	return device, nil
}

// DeactivateDevice stops the generation chain and then persists the
// inactive status, the reverse ordering of activation: a crash in between
// leaves a device still marked active but not generating, never a leaked
// chain on a device recorded as inactive.
func (s *DeviceService) DeactivateDevice(ctx context.Context, id uint) (*Device, error) {
	device, err := s.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	if device.Status == DeviceStatusInactive {
		return nil, ErrDeviceAlreadyInactive
	}

	s.generator.Stop(id)

	if err := s.store.UpdateDeviceStatus(ctx, id, DeviceStatusInactive); err != nil {
		return nil, fmt.Errorf("failed to persist device status: %w", err)
	}

	device.Status = DeviceStatusInactive
	device.UpdatedAt = time.Now()
	s.cacheDevice(ctx, device)

	s.logger.WithField("device_uid", device.UID).Info("Device deactivated")
	return device, nil
}

// DeleteDevice stops the chain if one is running (idempotent even when the
// persisted status has drifted) and removes the device with all of its
// transactions.
func (s *DeviceService) DeleteDevice(ctx context.Context, id uint) error {
	device, err := s.GetDevice(ctx, id)
	if err != nil {
		return err
	}

	s.generator.Stop(id)

	if err := s.store.DeleteDevice(ctx, id); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	s.uncacheDevice(ctx, device.UID)
	s.logger.WithField("device_uid", device.UID).Info("Device deleted")
	return nil
}

// ListTransactions returns a page of transactions, newest first.
// deviceID 0 spans all devices.
func (s *DeviceService) ListTransactions(ctx context.Context, deviceID uint, limit, offset int) ([]*Transaction, int64, error) {
	txs, err := s.store.ListTransactions(ctx, deviceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountTransactions(ctx, deviceID)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// ActiveCount exposes the generator's live chain count for health checks.
func (s *DeviceService) ActiveCount() int {
	return s.generator.ActiveCount()
}

// ReconcileActive restarts generation chains for every persisted-active
// device. Run once at startup: the registry is process-local, so after a
// restart a device can be recorded active without a live chain.
func (s *DeviceService) ReconcileActive(ctx context.Context) error {
	devices, err := s.store.ListDevicesByStatus(ctx, DeviceStatusActive)
	if err != nil {
		return fmt.Errorf("failed to list active devices: %w", err)
	}

	for _, device := range devices {
		s.generator.Start(device)
	}

	if len(devices) > 0 {
		s.logger.WithField("count", len(devices)).Info("Restarted generation for active devices")
	}
	return nil
}

func (s *DeviceService) cacheDevice(ctx context.Context, device *Device) {
	if s.cache != nil {
		data, _ := json.Marshal(device)
		s.cache.Set(ctx, fmt.Sprintf("device:%s", device.UID), string(data), 24*time.Hour)
	}
}

func (s *DeviceService) getCachedDevice(ctx context.Context, uid string) (*Device, error) {
	if s.cache == nil {
		return nil, errors.New("cache not available")
	}

	data, err := s.cache.Get(ctx, fmt.Sprintf("device:%s", uid))
	if err != nil {
		return nil, err
	}

	var device Device
	if err := json.Unmarshal([]byte(data), &device); err != nil {
		return nil, err
	}
	return &device, nil
}

func (s *DeviceService) uncacheDevice(ctx context.Context, uid string) {
	if s.cache != nil {
		s.cache.Delete(ctx, fmt.Sprintf("device:%s", uid))
	}
}
