package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lokhman/silex-arm/config"
	"github.com/lokhman/silex-arm/dbc"
	"github.com/lokhman/silex-arm/migrations"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configPath string

func readConfig() (*config.Config, error) {
	cfg, err := config.ReadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// openProfile opens one configured connection. The caller must close it.
func openProfile(cfg *config.Config, name string) (*dbc.DB, error) {
	p, ok := cfg.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not configured", name)
	}
	db, err := dbc.NewFromConfig(p)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}
	return db, nil
}

var rootCmd = &cobra.Command{
	Use:   "arm",
	Short: "Active-record mapper administration",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config already exists at %s", configPath)
		}
		cfg := &config.Config{
			Locale:        "en",
			DefaultLocale: "en",
			Profiles: map[string]config.Profile{
				"default": {Driver: "sqlite3", DSN: "arm.db"},
			},
			Storage: config.StorageConfig{Type: "filesystem", Root: "files"},
		}
		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("creating config file: %w", err)
		}
		defer f.Close()

		m := &config.Manager{}
		if err := m.Write(f, cfg); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Printf("Configuration initialized at %s\n", configPath)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		fmt.Printf("Configuration from %s:\n\n", configPath)
		fmt.Printf("Locale:         %s\n", cfg.Locale)
		fmt.Printf("Default Locale: %s\n", cfg.DefaultLocale)
		fmt.Printf("Storage:        %s\n", cfg.Storage.Type)
		for name, p := range cfg.Profiles {
			fmt.Printf("Profile %-12s %s %s\n", name+":", p.Driver, p.DSN)
		}
		return nil
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the shared schema objects",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up [profile...]",
	Short: "Apply pending migrations to the configured profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		names := args
		if len(names) == 0 {
			for name := range cfg.Profiles {
				names = append(names, name)
			}
		}
		for _, name := range names {
			db, err := openProfile(cfg, name)
			if err != nil {
				return err
			}
			err = migrations.Up(db.Unwrap(), db.Driver())
			db.Close()
			if err != nil {
				return fmt.Errorf("profile %s: %w", name, err)
			}
			fmt.Printf("Profile %s: migrations applied\n", name)
		}
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status [profile...]",
	Short: "Show the migration state of the configured profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		names := args
		if len(names) == 0 {
			for name := range cfg.Profiles {
				names = append(names, name)
			}
		}
		for _, name := range names {
			db, err := openProfile(cfg, name)
			if err != nil {
				return err
			}
			version, dirty, err := migrations.CheckStatus(db.Unwrap(), db.Driver())
			db.Close()
			if err != nil {
				return fmt.Errorf("profile %s: %w", name, err)
			}
			state := "clean"
			if dirty {
				state = "dirty"
			}
			fmt.Printf("Profile %s: version %d (%s)\n", name, version, state)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "arm.toml", "path to the configuration file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
