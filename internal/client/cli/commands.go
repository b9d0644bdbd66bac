package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wassertech/fieldsync/internal/client/models"
	"github.com/wassertech/fieldsync/internal/client/store"
	"github.com/wassertech/fieldsync/internal/client/sync"
	"github.com/wassertech/fieldsync/internal/wire"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in and store the session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), "Password: ")
			password, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			resp, err := a.api.Login(cmd.Context(), args[0], string(password))
			if err != nil {
				return err
			}
			if err := a.meta.SetToken(cmd.Context(), resp.Token); err != nil {
				return err
			}
			if err := a.meta.SetSession(cmd.Context(), resp.Role, resp.ClientID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", args[0], resp.Role)
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.meta.ClearToken(cmd.Context())
		},
	}
}

func newSyncCmd(a *app) *cobra.Command {
	var retry bool
	var only []string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push local changes and pull remote ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := make([]wire.Kind, 0, len(only))
			for _, name := range only {
				kind := wire.Kind(name)
				if !kind.Valid() {
					return fmt.Errorf("unknown entity kind %q", name)
				}
				kinds = append(kinds, kind)
			}

			run := func(ctx context.Context) (*sync.Result, error) {
				return a.engine.SyncKinds(ctx, kinds...)
			}
			if retry {
				run = a.engine.RetrySync
			}
			res, err := run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Push.Skipped {
				fmt.Fprintln(out, "push: nothing to send")
			} else {
				fmt.Fprintf(out, "push: %d accepted, %d conflicts, %d deletes acknowledged\n",
					res.Push.Accepted, res.Push.Conflicts, res.Push.TombstonesAcked)
			}
			fmt.Fprintf(out, "pull: %d applied, %d deleted, cursor %d\n",
				res.Pull.Applied, res.Pull.Deleted, res.Pull.Cursor)
			if res.PushErr != nil {
				fmt.Fprintf(out, "warning: push failed: %v\n", res.PushErr)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&retry, "retry", false, "requeue conflicted records before syncing")
	cmd.Flags().StringSliceVar(&only, "only", nil, "pull only these entity kinds (cursor is not advanced)")
	return cmd
}

func newResyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Reset the cursor and download everything again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.meta.ResetCursor(cmd.Context()); err != nil {
				return err
			}
			res, err := a.engine.SyncFull(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "full resync done: %d records, %d deletes, cursor %d\n",
				res.Pull.Applied, res.Pull.Deleted, res.Pull.Cursor)
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending changes and the sync cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cursor, err := a.meta.Cursor(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "cursor: %d\n", cursor)

			records := store.NewRecords(a.db)
			for _, kind := range wire.Kinds {
				counts, err := records.StatusCounts(ctx, kind)
				if err != nil {
					return err
				}
				queued := counts[models.StatusQueued]
				conflicts := counts[models.StatusConflict]
				if queued == 0 && conflicts == 0 {
					continue
				}
				fmt.Fprintf(out, "%-26s queued=%d conflicts=%d\n", kind, queued, conflicts)
			}

			pending, err := store.NewTombstones(a.db).Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "pending deletes: %d\n", pending)
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List live records of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := wire.Kind(args[0])
			if !kind.Valid() {
				return fmt.Errorf("unknown entity kind %q", args[0])
			}

			var rows []store.Row
			var err error
			if parent != "" {
				rows, err = a.service.ListByParent(cmd.Context(), kind, parent)
			} else {
				rows, err = a.service.List(cmd.Context(), kind)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, row := range rows {
				rec, err := row.Record()
				if err != nil {
					return err
				}
				name := rec.StringField("name")
				if name == "" {
					name = rec.StringField("title")
				}
				fmt.Fprintf(out, "%s  %-10s %s\n", row.ID, row.SyncStatus, name)
			}
			fmt.Fprintf(out, "%d record(s)\n", len(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "filter by parent record id")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "add <kind> <name>",
		Short: "Create a record",
		Long: `Create a record of the given kind with the given display name.
Hierarchy kinds need --parent pointing at the owning record.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := wire.Kind(args[0])
			if !kind.Valid() {
				return fmt.Errorf("unknown entity kind %q", args[0])
			}
			if kind.ParentField() != "" && parent == "" {
				return fmt.Errorf("%s records need --parent", kind)
			}

			payload, err := payloadFor(kind, args[1], parent)
			if err != nil {
				return err
			}
			id, err := a.service.Create(cmd.Context(), kind, payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "id of the owning record")
	return cmd
}

func newArchiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <kind> <id>",
		Short: "Archive a record (it keeps syncing, hidden from listings)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := wire.Kind(args[0])
			if !kind.Valid() {
				return fmt.Errorf("unknown entity kind %q", args[0])
			}
			return a.service.Archive(cmd.Context(), kind, args[1])
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete a record and propagate the delete on next sync",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := wire.Kind(args[0])
			if !kind.Valid() {
				return fmt.Errorf("unknown entity kind %q", args[0])
			}
			if !yes && !confirm(cmd, fmt.Sprintf("delete %s/%s?", kind, args[1])) {
				return nil
			}
			return a.service.Delete(cmd.Context(), kind, args[1])
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, _ := reader.ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

// payloadFor builds the minimal typed payload for a CLI-created record.
func payloadFor(kind wire.Kind, name, parent string) (any, error) {
	switch kind {
	case wire.KindClients:
		return models.Client{Name: name}, nil
	case wire.KindSites:
		return models.Site{ClientID: parent, Name: name}, nil
	case wire.KindInstallations:
		return models.Installation{SiteID: parent, Name: name}, nil
	case wire.KindComponents:
		return models.Component{InstallationID: parent, Name: name}, nil
	case wire.KindComponentTemplates:
		return models.ComponentTemplate{Name: name}, nil
	case wire.KindIconPacks:
		return models.IconPack{Name: name}, nil
	default:
		return nil, fmt.Errorf("%s records cannot be created from the command line", kind)
	}
}
