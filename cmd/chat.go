package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/BryanTheLai/stackrag/pkg/config"
	"github.com/BryanTheLai/stackrag/pkg/headless"
	"github.com/BryanTheLai/stackrag/pkg/logger"
	"github.com/BryanTheLai/stackrag/pkg/stream"
)

const chatPrompt = "> "

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a line-oriented chat session",
	Long: `Read prompts one per line and stream each reply.
Type /new to start a fresh session and /quit to leave.`,
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		src, err := a.source(cmd.Context())
		if err != nil {
			return err
		}
		sessionID, _ := cmd.Flags().GetString("session")

		var lines lineReader
		if isTTY() && cmd.InOrStdin() == os.Stdin {
			lines = newLinerReader(config.BuildSettingsPath("chat_history"))
		} else {
			lines = newScannerReader(cmd.InOrStdin(), cmd.OutOrStdout())
		}
		defer lines.Close()

		return runChat(cmd.Context(), a, src, sessionID, lines, cmd.OutOrStdout())
	}),
}

// lineReader reads one prompt per call. It returns io.EOF when input ends.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close()
}

type scannerReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newScannerReader(in io.Reader, out io.Writer) *scannerReader {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	return &scannerReader{scanner: s, out: out}
}

func (r *scannerReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		fmt.Fprintln(r.out)
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *scannerReader) Close() {}

// linerReader adds line editing and a persistent input history.
type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader(historyFile string) *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return &linerReader{line: line, historyFile: historyFile}
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

func (r *linerReader) Close() {
	if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		r.line.WriteHistory(f)
		f.Close()
	} else {
		logger.WithComponent("chat").Warn("Could not save input history", "error", err)
	}
	r.line.Close()
}

func runChat(ctx context.Context, a *app, src stream.Source, sessionID string, lines lineReader, out io.Writer) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := lines.ReadLine(chatPrompt)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		switch input {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			sessionID = ""
			fmt.Fprintln(out, "Started a new session.")
			continue
		}

		res, err := headless.Run(ctx, headless.Options{
			Source:    src,
			Registry:  a.reg,
			Renderer:  a.renderer,
			Store:     a.store,
			Index:     a.index,
			Prompt:    input,
			SessionID: sessionID,
			UserID:    a.cfg.Session.UserID,
			Model:     a.cfg.ActiveModel(),
			Live:      a.cfg.Render.Live,
			Columns:   terminalColumns(),
			Out:       out,
		})
		if res == nil {
			// Nothing was sent; the session could not be loaded or created.
			return err
		}
		sessionID = res.SessionID
	}
}

func init() {
	chatCmd.Flags().StringP("session", "s", "", "continue this session")
	rootCmd.AddCommand(chatCmd)
}
