package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"example.com/backstage/services/simulator/internal/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Publisher is a best-effort sink for generated transactions. A failed
// publish is logged and never affects the generation chain.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, topic string, message interface{}) error
}

// Generator owns the registry of live generation chains, one per active
// device. It is the sole authority for whether a device is currently
// generating; the lifecycle service never touches chain internals.
type Generator struct {
	store      Repository
	source     *EventSource
	publishers []Publisher
	logger     *logrus.Logger

	mu     sync.Mutex
	chains map[uint]*chain
}

// chain is the bookkeeping for one device's self-rescheduling timer loop.
// Closing stop cancels the armed timer and prevents any re-arm; done is
// closed by the chain goroutine once it has fully terminated.
type chain struct {
	deviceID  uint
	deviceUID string
	stop      chan struct{}
	done      chan struct{}
}

// NewGenerator creates a Generator. The registry is owned by this instance;
// construct one per process (or per test) and inject it explicitly.
func NewGenerator(store Repository, source *EventSource, publishers []Publisher, logger *logrus.Logger) *Generator {
	return &Generator{
		store:      store,
		source:     source,
		publishers: publishers,
		logger:     logger,
		chains:     make(map[uint]*chain),
	}
}

// Start launches a generation chain for the device and returns immediately.
// Starting an already-running device is a no-op; two chains must never run
// for the same id.
func (g *Generator) Start(device *Device) {
	g.mu.Lock()
	if _, running := g.chains[device.ID]; running {
		g.mu.Unlock()
		g.logger.WithField("device_uid", device.UID).
			Warn("Generation chain already running, ignoring start")
		return
	}

	c := &chain{
		deviceID:  device.ID,
		deviceUID: device.UID,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	g.chains[device.ID] = c
	active := len(g.chains)
	g.mu.Unlock()

	metrics.ActiveChains.Set(float64(active))
	g.logger.WithFields(logrus.Fields{
		"device_id":  device.ID,
		"device_uid": device.UID,
	}).Info("Generation chain started")

	go g.run(c)
}

// Stop cancels the device's chain and waits for its goroutine to finish.
// A fire already in flight completes its write; the chain then terminates
// instead of re-arming, so no write for this device can begin after Stop
// returns. Stopping an absent device is a no-op.
func (g *Generator) Stop(deviceID uint) {
	g.mu.Lock()
	c, running := g.chains[deviceID]
	if !running {
		g.mu.Unlock()
		return
	}
	delete(g.chains, deviceID)
	active := len(g.chains)
	g.mu.Unlock()

	close(c.stop)
	<-c.done

	metrics.ActiveChains.Set(float64(active))
	g.logger.WithFields(logrus.Fields{
		"device_id":  deviceID,
		"device_uid": c.deviceUID,
	}).Info("Generation chain stopped")
}

// StopAll cancels every chain and waits for full quiescence. Idempotent;
// called once at process shutdown before the store is closed.
func (g *Generator) StopAll() {
	g.mu.Lock()
	stopped := make([]*chain, 0, len(g.chains))
	for id, c := range g.chains {
		stopped = append(stopped, c)
		delete(g.chains, id)
	}
	g.mu.Unlock()

	for _, c := range stopped {
		close(c.stop)
	}
	for _, c := range stopped {
		<-c.done
	}

	metrics.ActiveChains.Set(0)
	if len(stopped) > 0 {
		g.logger.WithField("count", len(stopped)).Info("All generation chains stopped")
	}
}

// IsRunning reports registry membership for the device id.
func (g *Generator) IsRunning(deviceID uint) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, running := g.chains[deviceID]
	return running
}

// ActiveCount returns the number of live chains.
func (g *Generator) ActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.chains)
}

// run is the fire-and-reschedule loop: arm a randomized timer, fire, and
// re-arm until stopped. A write failure skips that one event and the loop
// continues; generation never silently dies on a transient store error.
func (g *Generator) run(c *chain) {
	defer close(c.done)

	for {
		timer := time.NewTimer(g.source.NextDelay())
		select {
		case <-c.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		// Stop may have landed while the timer was firing; check before
		// beginning a fire so Stop's guarantee holds.
		select {
		case <-c.stop:
			return
		default:
		}

		g.fire(c)
	}
}

// fire builds one transaction, writes it, and fans it out to the sinks.
func (g *Generator) fire(c *chain) {
	now := time.Now()
	payload, _ := json.Marshal(map[string]interface{}{
		"source":       "simulator",
		"generated_at": now.Format(time.RFC3339Nano),
	})

	tx := &Transaction{
		ID:        uuid.New().String(),
		DeviceID:  c.deviceID,
		DeviceUID: c.deviceUID,
		Username:  g.source.PickUsername(),
		EventType: g.source.PickEventType(),
		EventTime: now,
		Payload:   payload,
	}

	ctx := context.Background()
	if err := g.store.CreateTransaction(ctx, tx); err != nil {
		metrics.GenerationFailures.Inc()
		g.logger.WithError(err).WithFields(logrus.Fields{
			"device_uid": c.deviceUID,
			"event_type": tx.EventType,
		}).Warn("Transaction write failed, skipping event")
		return
	}

	metrics.TransactionsGenerated.WithLabelValues(tx.EventType).Inc()

	topic := fmt.Sprintf("access/%s/events", c.deviceUID)
	for _, pub := range g.publishers {
		if err := pub.Publish(ctx, topic, tx); err != nil {
			metrics.PublishFailures.WithLabelValues(pub.Name()).Inc()
			g.logger.WithError(err).WithFields(logrus.Fields{
				"sink":       pub.Name(),
				"device_uid": c.deviceUID,
			}).Warn("Event publish failed")
		}
	}
}
