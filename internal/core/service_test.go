package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(store *memoryStore) (*DeviceService, *Generator) {
	gen := newTestGenerator(store)
	svc := NewDeviceService(store, gen, nil, newTestLogger())
	return svc, gen
}

func TestCreateDeviceValidation(t *testing.T) {
	svc, _ := newTestService(newMemoryStore())
	ctx := context.Background()

	tests := []struct {
		name       string
		deviceName string
		deviceType string
		address    string
		wantErr    error
	}{
		{"missing name", "", DeviceTypeAccessController, "10.0.0.1", ErrNameRequired},
		{"blank name", "   ", DeviceTypeAccessController, "10.0.0.1", ErrNameRequired},
		{"missing address", "Gate A", DeviceTypeAccessController, "", ErrAddressRequired},
		{"unknown type", "Gate A", "turnstile", "10.0.0.1", ErrInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateDevice(ctx, tt.deviceName, tt.deviceType, tt.address)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestCreateDeviceStartsInactive(t *testing.T) {
	store := newMemoryStore()
	svc, gen := newTestService(store)

	device, err := svc.CreateDevice(context.Background(), "Gate A", DeviceTypeAccessController, "10.0.0.1")
	require.NoError(t, err)

	assert.NotZero(t, device.ID)
	assert.NotEmpty(t, device.UID)
	assert.Equal(t, DeviceStatusInactive, device.Status)
	assert.False(t, gen.IsRunning(device.ID), "creation never schedules generation")

	stored, err := store.GetDevice(context.Background(), device.ID)
	require.NoError(t, err)
	assert.Equal(t, DeviceStatusInactive, stored.Status)
}

func TestGetDeviceNotFound(t *testing.T) {
	svc, _ := newTestService(newMemoryStore())

	_, err := svc.GetDevice(context.Background(), 42)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestActivateDevice(t *testing.T) {
	store := newMemoryStore()
	svc, gen := newTestService(store)
	ctx := context.Background()

	device, err := svc.CreateDevice(ctx, "Gate A", DeviceTypeAccessController, "10.0.0.1")
	require.NoError(t, err)

	activated, err := svc.ActivateDevice(ctx, device.ID)
	require.NoError(t, err)
	defer gen.StopAll()

	assert.Equal(t, DeviceStatusActive, activated.Status)
	assert.True(t, gen.IsRunning(device.ID))

	stored, err := store.GetDevice(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, DeviceStatusActive, stored.Status, "status persists before the chain starts")

	require.True(t, waitFor(2*time.Second, func() bool {
		return store.txCount(device.ID) >= 1
	}), "an activated device generates transactions")
}

func TestActivateTwiceFails(t *testing.T) {
	store := newMemoryStore()
	svc, gen := newTestService(store)
	ctx := context.Background()

	device, err := svc.CreateDevice(ctx, "Gate A", DeviceTypeAccessController, "10.0.0.1")
	require.NoError(t, err)

	_, err = svc.ActivateDevice(ctx, device.ID)
	require.NoError(t, err)
	defer gen.StopAll()

	_, err = svc.ActivateDevice(ctx, device.ID)
	assert.ErrorIs(t, err, ErrDeviceAlreadyActive)
	assert.Equal(t, 1, gen.ActiveCount(), "a rejected activation never spawns a second chain")
}

func TestActivateMissingDevice(t *testing.T) {
	svc, _ := newTestService(newMemoryStore())

	_, err := svc.ActivateDevice(context.Background(), 42)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestDeactivateDevice(t *testing.T) {
	store := newMemoryStore()
	svc, gen := newTestService(store)
	ctx := context.Background()

	device, err := svc.CreateDevice(ctx, "Gate A", DeviceTypeAccessController, "10.0.0.1")
	require.NoError(t, err)
	_, err = svc.ActivateDevice(ctx, device.ID)
	require.NoError(t, err)

	deactivated, err := svc.DeactivateDevice(ctx, device.ID)
	require.NoError(t, err)

	assert.Equal(t, DeviceStatusInactive, deactivated.Status)
	assert.False(t, gen.IsRunning(device.ID))

	frozen := store.txCount(device.ID)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, frozen, store.txCount(device.ID), "no writes after deactivation returns")

	stored, err := store.GetDevice(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, DeviceStatusInactive, stored.Status)
}

func TestDeactivateInactiveFails(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	device, err := svc.CreateDevice(ctx, "Gate A", DeviceTypeAccessController, "10.0.0.1")
	require.NoError(t, err)

	_, err = svc.DeactivateDevice(ctx, device.ID)
	assert.ErrorIs(t, err, ErrDeviceAlreadyInactive)
}

func TestActivateDeactivateCycle(t *testing.T) {
	store := newMemoryStore()
	svc, gen := newTestService(store)
	ctx := context.Background()

	device, err := svc.CreateDevice(ctx, "Gate A", DeviceTypeAccessController, "10.0.0.1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.ActivateDevice(ctx, device.ID)
		require.NoError(t, err)
		assert.True(t, gen.IsRunning(device.ID))

		_, err = svc.DeactivateDevice(ctx, device.ID)
		require.NoError(t, err)
		assert.False(t, gen.IsRunning(device.ID))
	}
	assert.Zero(t, gen.ActiveCount())
}

func TestDeleteDeviceCascades(t *testing.T) {
	store := newMemoryStore()
	svc, gen := newTestService(store)
	ctx := context.Background()

	device, err := svc.CreateDevice(ctx, "Gate A", DeviceTypeAccessController, "10.0.0.1")
	require.NoError(t, err)
	_, err = svc.ActivateDevice(ctx, device.ID)
	require.NoError(t, err)

	require.True(t, waitFor(2*time.Second, func() bool {
		return store.txCount(device.ID) >= 2
	}))

	require.NoError(t, svc.DeleteDevice(ctx, device.ID))

	assert.False(t, gen.IsRunning(device.ID), "delete stops a running chain first")
	assert.Zero(t, store.txCount(device.ID), "no orphaned transactions survive the delete")

	_, err = svc.GetDevice(ctx, device.ID)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestDeleteInactiveDevice(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	device, err := svc.CreateDevice(ctx, "Gate A", DeviceTypeAccessController, "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDevice(ctx, device.ID))

	_, err = svc.GetDevice(ctx, device.ID)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestDeleteMissingDevice(t *testing.T) {
	svc, _ := newTestService(newMemoryStore())

	err := svc.DeleteDevice(context.Background(), 42)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestListTransactionsPagination(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	device := newTestDevice(store, "Gate A", DeviceTypeAccessController, DeviceStatusInactive)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		store.CreateTransaction(ctx, &Transaction{
			ID:        uuid.New().String(),
			DeviceID:  device.ID,
			DeviceUID: device.UID,
			Username:  "alice",
			EventType: EventTypeAccessGranted,
			EventTime: base.Add(time.Duration(i) * time.Minute),
		})
	}

	txs, total, err := svc.ListTransactions(ctx, device.ID, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
	require.Len(t, txs, 4)
	assert.True(t, txs[0].EventTime.After(txs[3].EventTime), "newest first")

	txs, total, err = svc.ListTransactions(ctx, device.ID, 4, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
	assert.Len(t, txs, 2)
}

func TestReconcileActive(t *testing.T) {
	store := newMemoryStore()
	svc, gen := newTestService(store)
	ctx := context.Background()

	a := newTestDevice(store, "Gate A", DeviceTypeAccessController, DeviceStatusActive)
	b := newTestDevice(store, "Lobby Reader", DeviceTypeFaceReader, DeviceStatusActive)
	newTestDevice(store, "Parking", DeviceTypeANPR, DeviceStatusInactive)

	require.NoError(t, svc.ReconcileActive(ctx))
	defer gen.StopAll()

	assert.Equal(t, 2, gen.ActiveCount())
	assert.True(t, gen.IsRunning(a.ID))
	assert.True(t, gen.IsRunning(b.ID))

	require.True(t, waitFor(2*time.Second, func() bool {
		return store.txCount(a.ID) >= 1 && store.txCount(b.ID) >= 1
	}), "reconciled devices resume generating")
}
