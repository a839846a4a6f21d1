// Package cli defines the Cobra commands of the workshop binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/RepairWorkshop/internal/config"
	"github.com/AaronLay10/RepairWorkshop/internal/progress"
	"github.com/AaronLay10/RepairWorkshop/internal/storage"
	"github.com/AaronLay10/RepairWorkshop/internal/storage/postgres"
	"github.com/AaronLay10/RepairWorkshop/internal/storage/sqlite"
	"github.com/AaronLay10/RepairWorkshop/internal/version"
	"github.com/AaronLay10/RepairWorkshop/internal/workshop"
)

const defaultConfigFile = "workshop.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "workshop",
	Short: "Repair mini-game engine",
	Long: `Workshop runs the repair mini-games of a tool workbench: players fix
the broken elements of one tool at a time, unlocking the next tool as
each one is repaired.`,
	Version:       version.Version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"workshop.yaml path (default: $WORKSHOP_CONFIG, then ./workshop.yaml if present)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(resetCmd)
}

// loadConfig resolves the config file from the flag, the environment or the
// working directory, and falls back to defaults when none exists.
func loadConfig() (*config.WorkshopConfig, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("WORKSHOP_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadWorkshopConfig(path)
}

// openBackend opens the configured store and ensures its schema.
func openBackend(ctx context.Context, cfg *config.WorkshopConfig) (storage.Backend, error) {
	switch cfg.StorageDriver() {
	case config.DriverPostgres:
		return postgres.New(cfg.Workshop.ID)
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLitePath(), cfg.Workshop.ID)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver())
}

func loadCatalog(cfg *config.WorkshopConfig) (*workshop.Catalog, error) {
	if cfg.Catalog == "" {
		return workshop.DefaultCatalog()
	}
	return workshop.LoadCatalog(cfg.Catalog)
}

// state is the persisted game state of one workshop.
type state struct {
	cfg      *config.WorkshopConfig
	backend  storage.Backend
	unlocks  *workshop.Manager
	recorder *progress.Recorder
}

// openState loads config, store, catalog, unlocks and progress. Callers close
// the returned state.
func openState(ctx context.Context) (*state, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	unlocks, err := workshop.NewManager(ctx, catalog, backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	recorder, err := progress.NewRecorder(ctx, backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return &state{cfg: cfg, backend: backend, unlocks: unlocks, recorder: recorder}, nil
}

func (s *state) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

var errNotConfirmed = errors.New("refusing to reset without --yes")
