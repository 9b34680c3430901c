package main

import (
	"bitwise74/cardio-api/internal/bootstrap"
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/internal/settings"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newMigrateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and run data migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// db.New migrates on open
			if _, err := o.open(cmd); err != nil {
				return err
			}

			cmd.Println("Database is up to date")
			return nil
		},
	}
}

func newAdminCmd(o *options) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Grant or revoke admin rights",
	}

	admin.AddCommand(
		setAdminCmd(o, "promote", true),
		setAdminCmd(o, "demote", false),
	)

	return admin
}

func setAdminCmd(o *options, use string, isAdmin bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " the user with the given email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := o.open(cmd)
			if err != nil {
				return err
			}

			email := strings.ToLower(strings.TrimSpace(args[0]))
			if err := setAdmin(cmd, gdb, email, isAdmin); err != nil {
				return err
			}

			cmd.Printf("%s: admin=%t\n", email, isAdmin)
			return nil
		},
	}
}

func setAdmin(cmd *cobra.Command, gdb *gorm.DB, email string, isAdmin bool) error {
	r := gdb.WithContext(cmd.Context()).Model(&model.User{}).Where("email = ?", email).Update("is_admin", isAdmin)
	if r.Error != nil {
		return r.Error
	}

	if r.RowsAffected == 0 {
		return fmt.Errorf("no user with email %s", email)
	}

	return nil
}

func newPurgeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Run every cleanup job once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap.New(cmd.Context(), o.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Cleanup.RunOnce(cmd.Context())
			cmd.Println("Cleanup finished")
			return nil
		},
	}
}

func newSettingsCmd(o *options) *cobra.Command {
	s := &cobra.Command{
		Use:   "settings",
		Short: "Read and change system settings",
	}

	s.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gdb, err := o.open(cmd)
			if err != nil {
				return err
			}

			st := settings.New(gdb, 0)
			all, err := st.All(cmd.Context())
			if err != nil {
				return err
			}

			for _, v := range all {
				cmd.Printf("%s=%s\n", v.Key, v.Value)
			}
			return nil
		},
	})

	s.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := o.open(cmd)
			if err != nil {
				return err
			}

			st := settings.New(gdb, 0)
			if _, err := st.Set(cmd.Context(), args[0], args[1], nil); err != nil {
				if errors.Is(err, settings.ErrUnknownKey) {
					return fmt.Errorf("unknown setting %q", args[0])
				}
				return err
			}

			cmd.Printf("%s=%s\n", args[0], args[1])
			return nil
		},
	})

	return s
}
