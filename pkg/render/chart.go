package render

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/BryanTheLai/stackrag/pkg/blocks"
)

var chartColors = []string{
	"#0088FE", "#00C49F", "#FFBB28", "#FF8042", "#8884D8",
	"#82CA9D", "#A4DE6C", "#D0ED57", "#FFC658",
}

// metadataOrder puts the common metadata keys first; the rest follow sorted.
var metadataOrder = []string{"currency", "period", "unit"}

const (
	barRune    = "█"
	minBarSize = 10
)

type chartLine struct {
	label  string
	value  string
	size   float64 // fraction of the full bar, 0..1
	series int
}

func renderChart(r *Renderer, block blocks.ParsedBlock) string {
	c, ok := block.Payload.(blocks.ChartData)
	if !ok {
		return ""
	}

	titleStyle := lipgloss.NewStyle().Bold(true)
	title := c.Title
	if title == "" {
		title = "Chart"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString(" ")
	b.WriteString(r.muted.Render("(" + string(c.Type) + ")"))
	b.WriteString("\n")

	keys := c.SeriesKeys()
	lines := chartLines(c, keys)
	if len(lines) == 0 {
		b.WriteString(r.muted.Render("(no data)"))
	} else {
		b.WriteString(drawBars(lines, r.width))
	}

	if len(keys) > 1 {
		b.WriteString("\n")
		b.WriteString(legend(keys))
	}
	if meta := metadataLine(c.Metadata); meta != "" {
		b.WriteString("\n")
		b.WriteString(r.muted.Render(meta))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Render(b.String())
}

func chartLines(c blocks.ChartData, keys []string) []chartLine {
	if c.Type == blocks.ChartPie {
		return pieLines(c, keys[0])
	}

	var maxAbs float64
	for i := range c.Data {
		for _, k := range keys {
			if v, ok := c.Value(i, k); ok {
				maxAbs = math.Max(maxAbs, math.Abs(v))
			}
		}
	}

	var lines []chartLine
	for i := range c.Data {
		for s, k := range keys {
			label := c.RowName(i)
			if len(keys) > 1 {
				label += " " + k
			}
			v, ok := c.Value(i, k)
			if !ok {
				lines = append(lines, chartLine{label: label, value: "n/a", series: s})
				continue
			}
			size := 0.0
			if maxAbs > 0 && v > 0 {
				size = v / maxAbs
			}
			lines = append(lines, chartLine{label: label, value: formatValue(v), size: size, series: s})
		}
	}
	return lines
}

// pieLines shows each row's share of the total.
func pieLines(c blocks.ChartData, key string) []chartLine {
	var total float64
	for i := range c.Data {
		if v, ok := c.Value(i, key); ok && v > 0 {
			total += v
		}
	}

	var lines []chartLine
	for i := range c.Data {
		v, ok := c.Value(i, key)
		if !ok || v < 0 || total == 0 {
			lines = append(lines, chartLine{label: c.RowName(i), value: "n/a", series: i})
			continue
		}
		share := v / total
		lines = append(lines, chartLine{
			label:  c.RowName(i),
			value:  strconv.FormatFloat(share*100, 'f', 1, 64) + "%",
			size:   share,
			series: i,
		})
	}
	return lines
}

func drawBars(lines []chartLine, width int) string {
	labelW, valueW := 0, 0
	for _, l := range lines {
		labelW = max(labelW, lipgloss.Width(l.label))
		valueW = max(valueW, lipgloss.Width(l.value))
	}
	// border, padding and the two gaps
	barW := max(width-labelW-valueW-6, minBarSize)

	out := make([]string, len(lines))
	for i, l := range lines {
		n := int(math.Round(l.size * float64(barW)))
		bar := lipgloss.NewStyle().
			Foreground(lipgloss.Color(chartColors[l.series%len(chartColors)])).
			Render(strings.Repeat(barRune, n))
		out[i] = fmt.Sprintf("%-*s %s %s", labelW, l.label, bar, l.value)
	}
	return strings.Join(out, "\n")
}

func legend(keys []string) string {
	items := make([]string, len(keys))
	for i, k := range keys {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(chartColors[i%len(chartColors)])).Render(barRune)
		items[i] = swatch + " " + k
	}
	return strings.Join(items, "  ")
}

func metadataLine(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}

	var keys []string
	seen := make(map[string]bool)
	for _, k := range metadataOrder {
		if _, ok := meta[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range meta {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, meta[k]))
	}
	return strings.Join(parts, "  ")
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
