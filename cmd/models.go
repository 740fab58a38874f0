package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/BryanTheLai/stackrag/pkg/config"
	"github.com/BryanTheLai/stackrag/pkg/logger"
	"github.com/BryanTheLai/stackrag/pkg/ollama"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models",
	Long:  `List all models that have been downloaded to the configured Ollama server`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ollama.NewClient(config.Get().Ollama.URL)
		return listModels(cmd.Context(), cmd.OutOrStdout(), client, config.Get().Ollama.Model)
	},
}

// listModels prints installed models and marks the configured one.
func listModels(ctx context.Context, out io.Writer, client *ollama.Client, current string) error {
	log := logger.WithComponent("models")

	health := client.CheckHealth(ctx)
	if !health.Available {
		log.Error("Ollama unavailable", "error", health.Error)
		return fmt.Errorf("failed to list models: %w", health.Error)
	}

	if len(health.Models) == 0 {
		fmt.Fprintln(out, "No models found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tPARAMETER SIZE\tQUANTIZATION")
	for _, model := range health.Models {
		name := model.Name
		if ollama.SameModel(model.Name, current) {
			name += " *"
		}
		sizeGB := float64(model.Size) / (1024 * 1024 * 1024)
		fmt.Fprintf(w, "%s\t%.1fGB\t%s\t%s\n",
			name,
			sizeGB,
			model.Details.ParameterSize,
			model.Details.QuantizationLevel)
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
