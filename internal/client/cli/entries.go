package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/failseed/internal/client/client"
	"github.com/dmitrijs2005/failseed/internal/netx"
	"github.com/spf13/cobra"
)

func (a *App) growsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grows",
		Short: "List growth records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			list, err := a.api.Grows(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return a.printJSON(list)
			}
			if len(list) == 0 {
				a.printf("No growth records yet. Start one with `failseed chat`.\n")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tHINT\tGROWTH")
			for _, e := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.CreatedAt.Local().Format("2006-01-02"), deref(e.Category, "-"), e.HintStatus, firstLine(deref(e.Growth, "")))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Bool("json", false, "print JSON instead of a table")
	return cmd
}

func (a *App) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one entry with its conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			e, err := a.api.Entry(cmd.Context(), args[0])
			if err != nil {
				return notFound(err, args[0])
			}

			a.printf("%s  %s\n\n", e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04"))
			for _, m := range e.ConversationHistory {
				a.printf("%s> %s\n", speaker(m.Role), m.Content)
			}
			if !e.IsCompleted {
				a.printf("\n(in progress, %d turns)\n", e.TurnCount)
				return nil
			}
			a.printf("\nGrowth:\n%s\n", deref(e.Growth, ""))
			if e.Hint != nil {
				a.printf("\nNext time (%s):\n%s\n", e.HintStatus, *e.Hint)
			}
			if e.Category != nil {
				a.printf("\nCategory: %s\n", *e.Category)
			}
			return nil
		},
	}
}

func (a *App) hintCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "hint <id> <none|tried|skipped>",
		Short:     "Record what you did with an entry's hint",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"none", "tried", "skipped"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			e, err := a.api.UpdateHint(cmd.Context(), args[0], args[1])
			if err != nil {
				return notFound(err, args[0])
			}
			a.printf("Hint for %s marked as %s\n", e.ID, e.HintStatus)
			return nil
		},
	}
}

func (a *App) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			deleted, err := a.api.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				a.printf("Nothing to delete: no entry %s\n", args[0])
				return nil
			}
			a.printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func (a *App) analyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Summarise your growth records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			s, err := a.api.Analytics(cmd.Context())
			if err != nil {
				return err
			}

			a.printf("Completed: %d of %d\n", s.Completed, s.Total)
			a.printf("Average turns: %.1f\n", s.AverageTurns)
			a.printf("\nBy category:\n")
			for _, k := range sortedKeys(s.ByCategory) {
				a.printf("  %-16s %d\n", k, s.ByCategory[k])
			}
			a.printf("\nHints:\n")
			for _, k := range sortedKeys(s.ByHintStatus) {
				a.printf("  %-16s %d\n", k, s.ByHintStatus[k])
			}
			return nil
		},
	}
}

func (a *App) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export your growth records as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx := cmd.Context()

			exp, err := a.api.Export(ctx)
			if err != nil {
				return err
			}

			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				a.printf("%d entries exported. Download until %s:\n%s\n",
					exp.Count, exp.ExpiresAt.Local().Format("15:04"), exp.URL)
				return nil
			}

			data, err := netx.DownloadPresignedURL(ctx, a.api.HTTPClient(), exp.URL)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return err
			}
			a.printf("%d entries written to %s\n", exp.Count, out)
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "download the export to this file")
	return cmd
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func notFound(err error, id string) error {
	if errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("no entry %s", id)
	}
	return err
}

func deref(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
