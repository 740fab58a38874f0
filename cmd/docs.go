package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/BryanTheLai/stackrag/pkg/documents"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage the documents that PDF references resolve against",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known documents",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		return listDocuments(cmd.Context(), cmd.OutOrStdout(), a)
	}),
}

var docsAddCmd = &cobra.Command{
	Use:   "add <id> <filename>",
	Short: "Add or update a document",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		doc := documents.DocumentInfo{ID: args[0], Filename: args[1]}
		doc.CompanyName, _ = cmd.Flags().GetString("company")
		doc.DocType, _ = cmd.Flags().GetString("type")
		doc.ReportDate, _ = cmd.Flags().GetString("date")
		doc.StoragePath, _ = cmd.Flags().GetString("path")

		if err := a.catalog.Upsert(cmd.Context(), doc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", doc.ID, doc.Filename)
		return nil
	}),
}

func listDocuments(ctx context.Context, out io.Writer, a *app) error {
	docs, err := a.catalog.List(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tCOMPANY\tTYPE\tDATE")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Filename, d.CompanyName, d.DocType, d.ReportDate)
	}
	return w.Flush()
}

func init() {
	docsAddCmd.Flags().String("company", "", "company name")
	docsAddCmd.Flags().String("type", "", "document type, e.g. 10-K")
	docsAddCmd.Flags().String("date", "", "report date")
	docsAddCmd.Flags().String("path", "", "storage path of the file")
	docsCmd.AddCommand(docsListCmd, docsAddCmd)
	rootCmd.AddCommand(docsCmd)
}
