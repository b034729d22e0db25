package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"example.com/backstage/services/simulator/internal/core"
	"example.com/backstage/services/simulator/internal/infrastructure"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	seedDeviceUID string
	seedCount     int
	seedDays      int
	seedDryRun    bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Bulk-generate historical transactions for existing devices",
	Long: `Generates a batch of pseudo-random historical transactions for one or all
devices, spread over a past time window. Useful for populating a fresh
database before demos or load tests without waiting for live generation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed()
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVarP(&seedDeviceUID, "device", "d", "", "Device UID to seed transactions for (default: all devices)")
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 100, "Number of transactions to generate per device")
	seedCmd.Flags().IntVar(&seedDays, "days", 7, "Spread event times over the past N days")
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "Show what would be generated without writing")
}

func runSeed() error {
	if seedCount <= 0 {
		return fmt.Errorf("count must be positive")
	}
	if seedDays <= 0 {
		return fmt.Errorf("days must be positive")
	}

	db, err := infrastructure.NewDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	store := core.NewRepository(db.DB)
	source := core.NewEventSource(
		cfg.Generator.Usernames,
		cfg.Generator.EventTypes,
		cfg.Generator.MinDelay,
		cfg.Generator.MaxDelay,
	)

	ctx := context.Background()

	var targets []*core.Device
	if seedDeviceUID != "" {
		device, err := store.GetDeviceByUID(ctx, seedDeviceUID)
		if err != nil {
			return fmt.Errorf("failed to find device %s: %w", seedDeviceUID, err)
		}
		targets = []*core.Device{device}
	} else {
		targets, err = store.ListDevices(ctx)
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}
	}

	if len(targets) == 0 {
		logger.Info("No devices to seed")
		return nil
	}

	window := time.Duration(seedDays) * 24 * time.Hour
	now := time.Now()

	for _, device := range targets {
		if seedDryRun {
			logger.WithFields(logrus.Fields{
				"device_uid": device.UID,
				"count":      seedCount,
				"days":       seedDays,
			}).Info("Would seed transactions (dry run)")
			continue
		}

		batch := make([]*core.Transaction, 0, seedCount)
		for i := 0; i < seedCount; i++ {
			eventTime := now.Add(-time.Duration(rand.Int64N(int64(window))))
			payload, _ := json.Marshal(map[string]interface{}{
				"source":       "seed",
				"generated_at": now.Format(time.RFC3339Nano),
			})

			batch = append(batch, &core.Transaction{
				ID:        uuid.New().String(),
				DeviceID:  device.ID,
				DeviceUID: device.UID,
				Username:  source.PickUsername(),
				EventType: source.PickEventType(),
				EventTime: eventTime,
				Payload:   payload,
			})
		}

		if err := store.CreateTransactionBatch(ctx, batch); err != nil {
			logger.WithError(err).WithField("device_uid", device.UID).
				Error("Failed to seed transactions")
			continue
		}

		logger.WithFields(logrus.Fields{
			"device_uid": device.UID,
			"count":      len(batch),
		}).Info("Seeded transactions")
	}

	return nil
}
