package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BryanTheLai/stackrag/pkg/headless"
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Ask one question and print the rendered reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID, _ := cmd.Flags().GetString("session")
		live, _ := cmd.Flags().GetBool("live")
		recordPath, _ := cmd.Flags().GetString("record")

		var record io.Writer
		if recordPath != "" {
			f, err := os.Create(recordPath)
			if err != nil {
				return fmt.Errorf("failed to create recording: %w", err)
			}
			defer f.Close()
			record = f
		}

		src, err := a.source(cmd.Context())
		if err != nil {
			return err
		}

		res, err := headless.Run(cmd.Context(), headless.Options{
			Source:    src,
			Registry:  a.reg,
			Renderer:  a.renderer,
			Store:     a.store,
			Index:     a.index,
			Prompt:    strings.Join(args, " "),
			SessionID: sessionID,
			UserID:    a.cfg.Session.UserID,
			Model:     a.cfg.ActiveModel(),
			Live:      live || a.cfg.Render.Live,
			Columns:   terminalColumns(),
			Out:       cmd.OutOrStdout(),
			Record:    record,
		})
		if res != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "session %s\n", res.SessionID)
		}
		return err
	},
}

func init() {
	askCmd.Flags().StringP("session", "s", "", "continue this session instead of starting a new one")
	askCmd.Flags().Bool("live", false, "redraw the reply while it streams")
	askCmd.Flags().String("record", "", "write the raw reply fragments to this file")
	rootCmd.AddCommand(askCmd)
}
