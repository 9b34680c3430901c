package main

import (
	"bitwise74/cardio-api/config"
	"bitwise74/cardio-api/db"
	"bitwise74/cardio-api/internal/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type options struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:          "cardioctl",
		Short:        "Operator tasks for the cardio API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Setup(o.configPath)
			if err != nil {
				return err
			}
			o.cfg = cfg

			_, err = logger.Setup(cfg.App.LogLevel, cfg.App.DevMode())
			return err
		},
	}

	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "path to the config file (default ./config.toml)")

	root.AddCommand(
		newMigrateCmd(o),
		newAdminCmd(o),
		newPurgeCmd(o),
		newSettingsCmd(o),
	)

	return root
}

// open connects and migrates, the connection is closed when the command ends
func (o *options) open(cmd *cobra.Command) (*gorm.DB, error) {
	gdb, err := db.New(o.cfg.Database)
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}

	cmd.PostRunE = func(*cobra.Command, []string) error { return sqlDB.Close() }
	return gdb, nil
}
