package headless

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/BryanTheLai/stackrag/pkg/chat"
	"github.com/BryanTheLai/stackrag/pkg/render"
)

// Output draws a turn to a writer. In live mode each refresh replaces the
// previous drawing in place.
type Output struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *render.Renderer
	live     bool
	cols     int
	lines    int
}

func NewOutput(w io.Writer, renderer *render.Renderer, live bool) *Output {
	return &Output{w: w, renderer: renderer, live: live}
}

// SetColumns sets the terminal width used to count soft-wrapped rows when
// redrawing. Zero counts one row per line.
func (o *Output) SetColumns(cols int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cols = cols
}

// Refresh redraws v when live.
func (o *Output) Refresh(v chat.TurnView) {
	if !o.live {
		return
	}
	o.draw(v)
}

// Final draws the finished turn, replacing any live drawing.
func (o *Output) Final(v chat.TurnView) {
	o.draw(v)
}

func (o *Output) draw(v chat.TurnView) {
	o.mu.Lock()
	defer o.mu.Unlock()

	text := o.renderer.Render(v)
	if o.lines > 0 {
		// cursor up, then clear to end of screen
		fmt.Fprintf(o.w, "\x1b[%dA\x1b[J", o.lines)
	}
	if text == "" {
		o.lines = 0
		return
	}
	fmt.Fprintln(o.w, text)
	o.lines = displayRows(text, o.cols)
}

// displayRows counts the terminal rows text occupies once lines wider than
// cols wrap.
func displayRows(text string, cols int) int {
	rows := 0
	for _, line := range strings.Split(text, "\n") {
		width := lipgloss.Width(line)
		if cols <= 0 || width <= cols {
			rows++
			continue
		}
		rows += (width + cols - 1) / cols
	}
	return rows
}
