package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astromechza/shared-list/pkg/cli"
	"github.com/astromechza/shared-list/pkg/client"
	"github.com/astromechza/shared-list/pkg/list"
	"github.com/astromechza/shared-list/pkg/session"
	"github.com/astromechza/shared-list/pkg/tui"
)

func main() {
	cli.Main(newRootCmd())
}

type app struct {
	cfg    *cli.Config
	client *client.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "listctl",
		Short: "Read and edit the shared list",
		Long: `Read and edit the shared list on a listd server.

Without a subcommand the interactive editor starts. Edits are sent back
after a short quiet period, and on exit.`,
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			notes := tui.NewNotifier()
			s := a.session(session.WithNotify(notes.Notify))
			defer s.Close()
			return tui.Run(cmd.Context(), s, notes, a.cfg.GetString("code"))
		},
	}
	root.PersistentFlags().String("config", "", "optional config file (yaml, toml or json)")
	root.PersistentFlags().String("log-level", "warn", "debug, info, warn or error")
	root.PersistentFlags().String("server", "http://localhost:8080", "the listd server")
	root.PersistentFlags().String("code", "", "the shared access code")
	root.PersistentFlags().Duration("debounce", session.DefaultDebounce, "quiet period before edits are sent")

	root.AddCommand(
		newLsCmd(a),
		newAddCmd(a),
		newDoneCmd(a),
		newEditCmd(a),
		newRmCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	a.cfg = cli.NewConfig("LISTCTL")
	a.cfg.MustBindEnv("code", "LIST_ACCESS_CODE", "LISTCTL_CODE")
	configFile, _ := cmd.Flags().GetString("config")
	if err := a.cfg.Load(cmd, configFile); err != nil {
		return err
	}
	if err := cli.SetupLogging(a.cfg.GetString("log-level")); err != nil {
		return err
	}
	c, err := client.New(a.cfg.GetString("server"), nil)
	if err != nil {
		return fmt.Errorf("invalid server: %w", err)
	}
	a.client = c
	return nil
}

func (a *app) session(opts ...session.Option) *session.Session {
	opts = append([]session.Option{session.WithDebounce(a.cfg.GetDuration("debounce"))}, opts...)
	return session.New(a.client, opts...)
}

// edit unlocks a session, applies fn and flushes before returning.
func (a *app) edit(ctx context.Context, fn func(s *session.Session, items []list.Item) error) error {
	s := a.session()
	defer s.Close()
	if err := s.Unlock(ctx, a.cfg.GetString("code")); err != nil {
		return describe(s, err)
	}
	if err := fn(s, s.Snapshot().Items); err != nil {
		return err
	}
	if !s.Snapshot().FlushScheduled {
		return nil
	}
	if err := s.Flush(ctx); err != nil {
		return describe(s, err)
	}
	return nil
}

// describe prefers the message the session shows a user.
func describe(s *session.Session, err error) error {
	if msg := s.Snapshot().Message; msg != "" {
		return fmt.Errorf("%s (%w)", msg, err)
	}
	return err
}

// resolveID accepts a full id or a unique prefix of one.
func resolveID(items []list.Item, ref string) (list.Item, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return list.Item{}, fmt.Errorf("empty item id")
	}
	var found []list.Item
	for _, it := range items {
		if it.ID == ref {
			return it, nil
		}
		if strings.HasPrefix(it.ID, ref) {
			found = append(found, it)
		}
	}
	switch len(found) {
	case 0:
		return list.Item{}, fmt.Errorf("no item matches %q", ref)
	case 1:
		return found[0], nil
	default:
		return list.Item{}, fmt.Errorf("%q matches %d items", ref, len(found))
	}
}
