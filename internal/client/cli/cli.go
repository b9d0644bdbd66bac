// Package cli implements the field app's command-line interface.
package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wassertech/fieldsync/internal/client/api"
	"github.com/wassertech/fieldsync/internal/client/config"
	"github.com/wassertech/fieldsync/internal/client/deletion"
	"github.com/wassertech/fieldsync/internal/client/services"
	"github.com/wassertech/fieldsync/internal/client/store"
	"github.com/wassertech/fieldsync/internal/client/sync"
	"github.com/wassertech/fieldsync/internal/logging"
	"github.com/wassertech/fieldsync/internal/policy"
)

// app holds everything a command needs, wired once in preRun.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	logger   logging.Logger
	meta     *store.Meta
	notifier *store.Notifier
	api      *api.Client
	engine   *sync.Engine
	service  *services.RecordService
}

var (
	flagConfig string
	flagServer string
	flagDB     string
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "fieldsync",
		Short: "Offline-first field service companion",
		Long: `fieldsync keeps a local copy of the client/site/installation hierarchy,
lets technicians work offline, and synchronizes with the back office
whenever a connection is available.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to JSON config file")
	root.PersistentFlags().StringVarP(&flagServer, "server", "a", "", "base URL of the sync backend")
	root.PersistentFlags().StringVarP(&flagDB, "db", "d", "", "path of the local database file")

	root.AddCommand(newLoginCmd(a))
	root.AddCommand(newLogoutCmd(a))
	root.AddCommand(newSyncCmd(a))
	root.AddCommand(newResyncCmd(a))
	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newAddCmd(a))
	root.AddCommand(newArchiveCmd(a))
	root.AddCommand(newDeleteCmd(a))
	return root
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.LoadConfig(flagConfig)
	if err != nil {
		return err
	}
	if flagServer != "" {
		cfg.ServerURL = flagServer
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	a.cfg = cfg
	a.logger = logging.NewDefault()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open local database: %w", err)
	}
	a.db = db
	a.meta = store.NewMeta(db)
	a.notifier = store.NewNotifier()
	a.api = api.New(cfg.ServerURL, cfg.HTTPTimeout, a.meta, a.logger)
	a.engine = sync.NewEngine(db, a.api, a.notifier, a.logger)

	scope, err := a.loadScope(ctx)
	if err != nil {
		return err
	}
	tracker := deletion.NewTracker(db, a.logger)
	a.service = services.NewRecordService(db, tracker, a.notifier, scope)
	return nil
}

// loadScope rebuilds the policy scope from the stored session. Before the
// first login every role check fails closed.
func (a *app) loadScope(ctx context.Context) (policy.Scope, error) {
	role, clientID, err := a.meta.Session(ctx)
	if err != nil {
		return policy.Scope{}, err
	}
	return policy.Scope{Role: policy.Role(role), ClientID: clientID}, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
