package core

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// memoryStore is an in-memory Repository used by the core tests. It
// mimics the store contract the generator and the lifecycle service rely
// on, including cascade on device delete, and can be told to fail a
// number of transaction writes.
type memoryStore struct {
	mu           sync.Mutex
	devices      map[uint]*Device
	transactions []*Transaction
	nextID       uint

	failWrites int // fail this many CreateTransaction calls
	writeErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		devices: make(map[uint]*Device),
	}
}

func (m *memoryStore) failNextWrites(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = n
	m.writeErr = err
}

func (m *memoryStore) CreateDevice(_ context.Context, d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	d.ID = m.nextID
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	copied := *d
	m.devices[d.ID] = &copied
	return nil
}

func (m *memoryStore) GetDevice(_ context.Context, id uint) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *d
	return &copied, nil
}

func (m *memoryStore) GetDeviceByUID(_ context.Context, uid string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.devices {
		if d.UID == uid {
			copied := *d
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryStore) ListDevices(_ context.Context) ([]*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	devices := make([]*Device, 0, len(m.devices))
	for _, d := range m.devices {
		copied := *d
		devices = append(devices, &copied)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].CreatedAt.After(devices[j].CreatedAt)
	})
	return devices, nil
}

func (m *memoryStore) ListDevicesByStatus(ctx context.Context, status string) ([]*Device, error) {
	all, _ := m.ListDevices(ctx)
	var devices []*Device
	for _, d := range all {
		if d.Status == status {
			devices = append(devices, d)
		}
	}
	return devices, nil
}

func (m *memoryStore) UpdateDeviceStatus(_ context.Context, id uint, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	d.Status = status
	d.UpdatedAt = time.Now()
	return nil
}

func (m *memoryStore) DeleteDevice(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.devices, id)

	// cascade
	kept := m.transactions[:0]
	for _, tx := range m.transactions {
		if tx.DeviceID != id {
			kept = append(kept, tx)
		}
	}
	m.transactions = kept
	return nil
}

func (m *memoryStore) CreateTransaction(_ context.Context, tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites > 0 {
		m.failWrites--
		return m.writeErr
	}
	copied := *tx
	copied.CreatedAt = time.Now()
	m.transactions = append(m.transactions, &copied)
	return nil
}

func (m *memoryStore) CreateTransactionBatch(ctx context.Context, txs []*Transaction) error {
	for _, tx := range txs {
		if err := m.CreateTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryStore) ListTransactions(_ context.Context, deviceID uint, limit, offset int) ([]*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txs []*Transaction
	for _, tx := range m.transactions {
		if deviceID == 0 || tx.DeviceID == deviceID {
			copied := *tx
			txs = append(txs, &copied)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].EventTime.After(txs[j].EventTime)
	})
	if offset > 0 {
		if offset >= len(txs) {
			return nil, nil
		}
		txs = txs[offset:]
	}
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (m *memoryStore) CountTransactions(_ context.Context, deviceID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, tx := range m.transactions {
		if deviceID == 0 || tx.DeviceID == deviceID {
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) WithTransaction(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

// txCount is a lock-safe shorthand for assertions.
func (m *memoryStore) txCount(deviceID uint) int {
	n, _ := m.CountTransactions(context.Background(), deviceID)
	return int(n)
}

// deviceTransactions returns one device's transactions in write order.
func (m *memoryStore) deviceTransactions(deviceID uint) []*Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txs []*Transaction
	for _, tx := range m.transactions {
		if tx.DeviceID == deviceID {
			copied := *tx
			txs = append(txs, &copied)
		}
	}
	return txs
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestDevice persists a device directly in the fake store.
func newTestDevice(store *memoryStore, name, deviceType, status string) *Device {
	d := &Device{
		UID:     uuid.New().String(),
		Name:    name,
		Type:    deviceType,
		Address: "10.0.0.1",
		Status:  status,
	}
	store.CreateDevice(context.Background(), d)
	return d
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
