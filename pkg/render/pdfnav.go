package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/BryanTheLai/stackrag/pkg/blocks"
)

func renderPDFNav(r *Renderer, block blocks.ParsedBlock) string {
	nav, ok := block.Payload.(blocks.PDFNavData)
	if !ok {
		return ""
	}

	header := lipgloss.NewStyle().Bold(true).Render(nav.Filename) +
		r.muted.Render(fmt.Sprintf("  page %d", nav.Page))

	lines := []string{header}

	doc, found := r.lookupDocument(nav.DocumentID)
	switch {
	case !found:
		lines = append(lines, r.footer.Render("Document unavailable"))
	case doc != nil:
		var details []string
		for _, d := range []string{doc.CompanyName, doc.DocType, doc.ReportDate} {
			if d != "" {
				details = append(details, d)
			}
		}
		if len(details) > 0 {
			lines = append(lines, r.muted.Render(strings.Join(details, " / ")))
		}
	}

	if nav.Context != "" {
		lines = append(lines, nav.Context)
	}
	if nav.Highlight != nil && nav.Highlight.Text != "" {
		quote := lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#FFBB28"))
		lines = append(lines, quote.Render(fmt.Sprintf("%q", nav.Highlight.Text)))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#0088FE")).
		Padding(0, 1).
		Width(r.width - 2).
		Render(strings.Join(lines, "\n"))
}
