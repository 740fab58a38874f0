// Package render turns a turn view into terminal output: prose as markdown,
// structured blocks as widgets, and anything undecodable verbatim.
package render

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/BryanTheLai/stackrag/pkg/blocks"
	"github.com/BryanTheLai/stackrag/pkg/chat"
	"github.com/BryanTheLai/stackrag/pkg/documents"
	"github.com/BryanTheLai/stackrag/pkg/logger"
	"github.com/BryanTheLai/stackrag/pkg/stream"
	"github.com/BryanTheLai/stackrag/pkg/tags"
)

const (
	DefaultWidth = 80
	minWidth     = 30

	lookupTimeout = 2 * time.Second
)

// DocumentLookup resolves the document a navigation block points at.
type DocumentLookup interface {
	Get(ctx context.Context, id string) (*documents.DocumentInfo, error)
}

// BlockRenderer draws one decoded block.
type BlockRenderer func(r *Renderer, block blocks.ParsedBlock) string

// Renderer draws turn views. It holds no per-turn state and may be shared.
type Renderer struct {
	parser    *blocks.Parser
	width     int
	style     string
	highlight bool
	docs      DocumentLookup

	prose    *glamour.TermRenderer
	widgets  map[tags.BlockKind]BlockRenderer
	footer   lipgloss.Style
	muted    lipgloss.Style
	rawStyle lipgloss.Style
}

type Option func(*Renderer)

func WithWidth(width int) Option {
	return func(r *Renderer) {
		if width > 0 {
			r.width = max(width, minWidth)
		}
	}
}

// WithStyle picks a glamour style by name. "auto" follows the terminal.
func WithStyle(name string) Option {
	return func(r *Renderer) { r.style = name }
}

// WithHighlight enables syntax highlighting of raw block fallbacks.
func WithHighlight(enabled bool) Option {
	return func(r *Renderer) { r.highlight = enabled }
}

// WithDocuments enables document details on navigation cards.
func WithDocuments(lookup DocumentLookup) Option {
	return func(r *Renderer) { r.docs = lookup }
}

// WithBlockRenderer draws kind with fn instead of the raw fallback.
func WithBlockRenderer(kind tags.BlockKind, fn BlockRenderer) Option {
	return func(r *Renderer) { r.widgets[kind] = fn }
}

func New(parser *blocks.Parser, opts ...Option) *Renderer {
	r := &Renderer{
		parser: parser,
		width:  DefaultWidth,
		style:  "auto",
		widgets: map[tags.BlockKind]BlockRenderer{
			tags.KindChart:  renderChart,
			tags.KindPDFNav: renderPDFNav,
		},
		footer:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6347")).Bold(true),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		rawStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
	for _, opt := range opts {
		opt(r)
	}

	prose, err := newProseRenderer(r.style, r.width)
	if err != nil {
		logger.WithComponent("render").Warn("Markdown renderer unavailable, using plain text", "style", r.style, "error", err)
	}
	r.prose = prose
	return r
}

func newProseRenderer(style string, width int) (*glamour.TermRenderer, error) {
	styleOpt := glamour.WithStandardStyle(style)
	if style == "" || style == "auto" {
		styleOpt = glamour.WithAutoStyle()
	}
	return glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
}

func (r *Renderer) Width() int {
	return r.width
}

// Render draws every segment of v followed by a status line when the turn
// did not complete normally.
func (r *Renderer) Render(v chat.TurnView) string {
	var parts []string
	for _, seg := range v.Segments {
		if out := r.RenderSegment(seg); out != "" {
			parts = append(parts, out)
		}
	}

	if footer := r.status(v); footer != "" {
		parts = append(parts, footer)
	}
	return strings.Join(parts, "\n")
}

func (r *Renderer) status(v chat.TurnView) string {
	switch v.Status {
	case chat.StatusErrored, chat.StatusCancelled:
		return r.footer.Render(chat.ErrorText(v.Err))
	case chat.StatusComplete:
		if v.Empty {
			return r.muted.Render(chat.EmptyTurnText)
		}
	}
	return ""
}

// RenderSegment draws a single segment. Blocks that do not decode, or whose
// kind has no widget, are shown verbatim with their markers.
func (r *Renderer) RenderSegment(seg stream.Segment) string {
	if !seg.IsBlock() {
		return r.renderProse(seg.Content)
	}

	block, ok := r.parser.TryParse(seg.Kind, seg.Content)
	if !ok {
		return r.renderRaw(seg.Content)
	}
	widget, ok := r.widgets[block.Kind]
	if !ok {
		return r.renderRaw(seg.Content)
	}
	return widget(r, block)
}

func (r *Renderer) renderProse(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if r.prose == nil {
		return text
	}

	out, err := r.prose.Render(escapeTags(text))
	if err != nil {
		logger.WithComponent("render").Debug("Markdown render failed, using plain text", "error", err)
		return text
	}
	return strings.Trim(out, "\n")
}

// escapeTags backslash-escapes every "<" that could start an HTML tag so the
// markdown renderer prints it instead of sanitizing it away. Code spans and
// fenced code keep their text untouched.
func escapeTags(text string) string {
	if !strings.Contains(text, "<") {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + 8)
	fenced := false
	for _, line := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			fenced = !fenced
			b.WriteString(line)
			continue
		}
		if fenced {
			b.WriteString(line)
			continue
		}

		inCode := false
		for j := 0; j < len(line); j++ {
			c := line[j]
			switch {
			case c == '`':
				inCode = !inCode
			case c == '<' && !inCode && startsTag(line[j+1:]) && (j == 0 || line[j-1] != '\\'):
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

func startsTag(rest string) bool {
	if rest == "" {
		return false
	}
	c := rest[0]
	return c == '/' || c == '!' || c == '?' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// lookupDocument returns the catalog entry for id. found is false when the
// catalog is configured and does not know the document.
func (r *Renderer) lookupDocument(id string) (doc *documents.DocumentInfo, found bool) {
	if r.docs == nil {
		return nil, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	doc, err := r.docs.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, documents.ErrNotFound) {
			logger.WithComponent("render").Warn("Document lookup failed", "document_id", id, "error", err)
			return nil, true
		}
		return nil, false
	}
	return doc, true
}
