package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

const snippetLen = 80

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find earlier replies similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		k, _ := cmd.Flags().GetInt("limit")
		return searchReplies(cmd.Context(), cmd.OutOrStdout(), a, strings.Join(args, " "), k)
	}),
}

func searchReplies(ctx context.Context, out io.Writer, a *app, query string, k int) error {
	if a.index == nil {
		return errors.New("the vector store is disabled; set vectorstore.enabled in settings.yaml")
	}

	hits, err := a.index.Search(ctx, query, k)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(out, "No matching replies")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tSESSION\tMODEL\tREPLY")
	for _, h := range hits {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", h.Similarity, h.SessionID, h.Model, snippet(h.Content))
	}
	return w.Flush()
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen-1]) + "…"
}

func init() {
	searchCmd.Flags().IntP("limit", "k", 5, "maximum number of replies")
	rootCmd.AddCommand(searchCmd)
}
