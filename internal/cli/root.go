// Package cli is taskctl, the operator command line for the task store.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"task-gravity-backend/internal/config"
	"task-gravity-backend/internal/db"
	"task-gravity-backend/internal/store"
	"task-gravity-backend/internal/tasks"
)

// OpenFunc opens the store named by cfg. The returned func releases it.
type OpenFunc func(ctx context.Context, cfg *config.Config) (tasks.Store, func() error, error)

type app struct {
	configPath string
	ownerID    string

	open OpenFunc
	cfg  *config.Config
}

// NewRootCmd builds taskctl against the store from the loaded config.
func NewRootCmd() *cobra.Command {
	return newRootCmd(OpenStore)
}

func newRootCmd(open OpenFunc) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Manage tasks on the gravity board",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file (default: environment)")
	root.PersistentFlags().StringVar(&a.ownerID, "owner", os.Getenv("TASK_OWNER"), "Owner (user) id the command acts for")

	root.AddCommand(
		a.migrateCmd(),
		a.addCmd(),
		a.listCmd(),
		a.treeCmd(),
		a.rootsCmd(),
		a.gravityCmd(),
		a.moveCmd(),
		a.rmCmd(),
		a.statsCmd(),
		a.decayCmd(),
		a.focusCmd(),
		a.tokenCmd(),
	)
	return root
}

func (a *app) loadConfig() error {
	if a.configPath == "" {
		a.cfg = config.Load()
		return a.cfg.Validate()
	}
	cfg, err := config.LoadFile(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) owner() (string, error) {
	id := strings.TrimSpace(a.ownerID)
	if id == "" {
		return "", fmt.Errorf("❌ --owner (or TASK_OWNER) is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("❌ owner must be a uuid: %w", err)
	}
	return id, nil
}

// withService opens the store, runs fn for the owner and closes the store again.
func (a *app) withService(ctx context.Context, fn func(svc *tasks.Service, ownerID string) error) error {
	ownerID, err := a.owner()
	if err != nil {
		return err
	}
	st, closeFn, err := a.open(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()
	return fn(tasks.NewService(st, nil), ownerID)
}

// OpenStore connects to Postgres (applying the schema) or starts an empty memory store.
func OpenStore(ctx context.Context, cfg *config.Config) (tasks.Store, func() error, error) {
	if cfg.Store == config.StoreMemory {
		return store.NewMemory(), func() error { return nil }, nil
	}
	dbx, err := db.Connect(ctx, cfg.ConnString())
	if err != nil {
		return nil, nil, fmt.Errorf("❌ failed to connect DB: %w", err)
	}
	if err := db.EnsureSchema(ctx, dbx); err != nil {
		dbx.Close()
		return nil, nil, fmt.Errorf("❌ failed to apply schema: %w", err)
	}
	return store.NewPostgres(dbx), dbx.Close, nil
}
