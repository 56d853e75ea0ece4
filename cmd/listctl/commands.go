package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astromechza/shared-list/pkg/list"
	"github.com/astromechza/shared-list/pkg/session"
	"github.com/astromechza/shared-list/pkg/tui"
)

func newLsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "Print the list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := a.client.Fetch(cmd.Context(), a.cfg.GetString("code"))
			if err != nil {
				return err
			}
			printItems(cmd.OutOrStdout(), items)
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <label>...",
		Short: "Add an item to the top of the list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(cmd.Context(), func(s *session.Session, _ []list.Item) error {
				item, err := s.Add(strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tui.SuccessStyle.Render("✔ added "+item.ID))
				return nil
			})
		},
	}
}

func newDoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle an item between done and not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(cmd.Context(), func(s *session.Session, items []list.Item) error {
				item, err := resolveID(items, args[0])
				if err != nil {
					return err
				}
				if err := s.Toggle(item.ID); err != nil {
					return err
				}
				item.Done = !item.Done
				fmt.Fprintln(cmd.OutOrStdout(), tui.ItemLine(item))
				return nil
			})
		},
	}
}

func newEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <label>...",
		Short: "Change the label of an item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := strings.TrimSpace(strings.Join(args[1:], " "))
			if label == "" {
				return session.ErrEmptyLabel
			}
			return a.edit(cmd.Context(), func(s *session.Session, items []list.Item) error {
				item, err := resolveID(items, args[0])
				if err != nil {
					return err
				}
				if err := s.EditLabel(item.ID, label); err != nil {
					return err
				}
				item.Label = label
				fmt.Fprintln(cmd.OutOrStdout(), tui.ItemLine(item))
				return nil
			})
		},
	}
}

func newRmCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove an item after confirmation",
		Args:  cobra.ExactArgs(1),
	}
	yes := cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.edit(cmd.Context(), func(s *session.Session, items []list.Item) error {
			item, err := resolveID(items, args[0])
			if err != nil {
				return err
			}
			if err := s.RequestRemove(item.ID); err != nil {
				return err
			}
			if !*yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete %q?", item.Label)) {
				s.CancelRemove()
				fmt.Fprintln(cmd.OutOrStdout(), tui.MutedStyle.Render("kept"))
				return nil
			}
			if _, err := s.ConfirmRemove(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.SuccessStyle.Render("✔ removed "+item.ID))
			return nil
		})
	}
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the list every time it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.client.Watch(cmd.Context(), a.cfg.GetString("code"), func(d list.Document) {
				slog.Debug("received document", "items", len(d.Items), "updatedAt", d.UpdatedAt)
				printItems(cmd.OutOrStdout(), d.Items)
			})
		},
	}
}

func printItems(w io.Writer, items []list.Item) {
	p := list.ProgressOf(items)
	lines := []string{tui.TitleStyle.Render("Shared list") + "   " + tui.AccentStyle.Render(tui.ProgressBar(p, 20))}
	if len(items) == 0 {
		lines = append(lines, tui.MutedStyle.Render("(empty)"))
	}
	for _, it := range items {
		lines = append(lines, tui.ItemLine(it)+"  "+tui.MutedStyle.Render(it.ID))
	}
	fmt.Fprintln(w, tui.Panel(lines...))
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprint(out, question+" [y/N] ")
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
