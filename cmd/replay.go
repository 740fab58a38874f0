package cmd

import (
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/BryanTheLai/stackrag/pkg/chat"
	"github.com/BryanTheLai/stackrag/pkg/render"
	"github.com/BryanTheLai/stackrag/pkg/stream"
	"github.com/BryanTheLai/stackrag/pkg/tags"
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Feed a recorded or plain-text reply through the demultiplexer",
	Long: `Replay a file written by "ask --record", or any text file, as if it were
streaming. With --chunk the input is re-split into random pieces of at most
that many bytes, which shows that chunk boundaries never change the result.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		chunk, _ := cmd.Flags().GetInt("chunk")
		seed, _ := cmd.Flags().GetUint64("seed")
		rendered, _ := cmd.Flags().GetBool("render")

		fragments := loadFragments(data)
		if chunk > 0 {
			fragments = rechunk(stream.Concat(textSegments(fragments)), chunk, seed)
		}

		var r *render.Renderer
		if rendered {
			r = a.renderer
		}
		return replay(cmd.OutOrStdout(), a.reg, r, fragments)
	}),
}

// loadFragments reads a recording, treating anything else as one fragment.
func loadFragments(data []byte) []string {
	frags, err := stream.ReadRecording(bytes.NewReader(data))
	if err != nil || len(frags) == 0 {
		return []string{string(data)}
	}
	return frags
}

func textSegments(frags []string) []stream.Segment {
	segs := make([]stream.Segment, len(frags))
	for i, f := range frags {
		segs[i] = stream.PlainText(f)
	}
	return segs
}

// rechunk splits s into pieces of 1..size bytes. Pieces may end inside a
// multi-byte rune.
func rechunk(s string, size int, seed uint64) []string {
	rng := rand.New(rand.NewPCG(seed, seed))
	var out []string
	for len(s) > 0 {
		n := 1 + rng.IntN(size)
		if n > len(s) {
			n = len(s)
		}
		out = append(out, s[:n])
		s = s[n:]
	}
	return out
}

// replay drives a turn with the fragments. Without a renderer it lists the
// resulting segments.
func replay(out io.Writer, reg *tags.Registry, r *render.Renderer, fragments []string) error {
	turn := chat.NewTurn(reg, chat.WithModel("replay"))
	for _, f := range fragments {
		if err := turn.OnChunk([]byte(f)); err != nil {
			return err
		}
	}
	if err := turn.OnComplete(""); err != nil {
		return err
	}

	view := turn.View()
	if r != nil {
		fmt.Fprintln(out, r.Render(view))
		return nil
	}

	fmt.Fprintf(out, "%d fragments, %d segments\n", len(fragments), len(view.Segments))
	for i, seg := range view.Segments {
		label := seg.Type.String()
		if seg.IsBlock() {
			label += " " + string(seg.Kind)
		}
		fmt.Fprintf(out, "%3d  %-12s %q\n", i, label, seg.Content)
	}
	return nil
}

func init() {
	replayCmd.Flags().Int("chunk", 0, "re-split the input into random chunks of at most this many bytes")
	replayCmd.Flags().Uint64("seed", 1, "seed for --chunk")
	replayCmd.Flags().Bool("render", false, "render the reply instead of listing segments")
	rootCmd.AddCommand(replayCmd)
}
