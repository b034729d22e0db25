package cmd

import (
	"context"
	"fmt"

	"example.com/backstage/services/simulator/internal/core"
	"example.com/backstage/services/simulator/internal/infrastructure"
	"github.com/spf13/cobra"
)

var migrateWithDemoDevices bool

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Applies all pending database migrations to ensure the schema is up to date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateWithDemoDevices, "demo-devices", false, "insert demo devices when the devices table is empty")
}

func runMigrations() error {
	logger.Info("Running database migrations...")

	db, err := infrastructure.NewDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	models := []interface{}{
		&core.Device{},
		&core.Transaction{},
	}

	for _, model := range models {
		if err := db.Migrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
		logger.Infof("Migrated %T", model)
	}

	if migrateWithDemoDevices {
		if err := insertDemoDevices(db); err != nil {
			logger.WithError(err).Warn("Failed to insert demo devices")
		}
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

func insertDemoDevices(db *infrastructure.Database) error {
	var count int64
	if err := db.DB.Model(&core.Device{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	logger.Info("Inserting demo devices...")

	demoDevices := []struct {
		name, deviceType, address string
	}{
		{"Main Gate", core.DeviceTypeAccessController, "10.0.0.1"},
		{"Lobby Face Reader", core.DeviceTypeFaceReader, "10.0.0.2"},
		{"Parking Entrance", core.DeviceTypeANPR, "10.0.0.3"},
	}

	// Use the service for validation but without a generator; demo devices
	// are created inactive and never started here.
	store := core.NewRepository(db.DB)
	devices := core.NewDeviceService(store, nil, nil, logger)

	for _, d := range demoDevices {
		device, err := devices.CreateDevice(context.Background(), d.name, d.deviceType, d.address)
		if err != nil {
			logger.WithError(err).WithField("name", d.name).Warn("Failed to create demo device")
			continue
		}
		logger.WithField("device_uid", device.UID).Info("Created demo device")
	}

	return nil
}
