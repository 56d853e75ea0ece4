package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astromechza/shared-list/pkg/cli"
	"github.com/astromechza/shared-list/pkg/store"
	"github.com/astromechza/shared-list/pkg/viz"
)

func main() {
	cli.Main(newRootCmd())
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listdebug <sqlite file>",
		Short: "Dump the change history of a sqlite list store",
		Long: `Dump the change history of a sqlite list store.

Every change is logged, then the history is printed as a dot digraph on
stdout. --svg renders it with graphviz instead.`,
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().String("log-level", "info", "debug, info, warn or error")
	cmd.Flags().Bool("svg", false, "render an svg into the temp directory")
	cmd.Flags().String("out", "", "render an svg to this path")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		if err := cli.SetupLogging(level); err != nil {
			return err
		}
		path := strings.TrimPrefix(args[0], "sqlite:")
		st, err := store.OpenSQLite(path)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()

		doc, err := st.Automerge(cmd.Context())
		if err != nil {
			return err
		}
		if doc == nil {
			return errors.New("the store holds no list yet")
		}
		slog.Info("loaded doc", "contents", doc.RootMap().GoString())
		slog.Info("loaded heads", "heads", doc.Heads())

		steps, err := viz.History(doc)
		if err != nil {
			return err
		}
		for i, s := range steps {
			slog.Info("change", "i", fmt.Sprintf("%4d", i), "hash", s.Hash, "actor", s.Actor, "dep", s.Dependencies, "items", len(s.Document.Items))
		}

		svg, _ := cmd.Flags().GetBool("svg")
		out, _ := cmd.Flags().GetString("out")
		switch {
		case out != "":
			if err := viz.RenderSvgFile(steps, out); err != nil {
				return err
			}
			slog.Info("rendered", "path", out)
		case svg:
			tf, err := viz.RenderToTemp(steps)
			if err != nil {
				return err
			}
			slog.Info("rendered", "path", tf)
		default:
			return viz.WriteDot(steps, cmd.OutOrStdout())
		}
		return nil
	}
	return cmd
}
