package blocks

import (
	"strconv"
	"strings"

	"github.com/BryanTheLai/stackrag/pkg/tags"
)

// ParsedBlock is a structured block whose interior decoded successfully.
type ParsedBlock struct {
	Kind    tags.BlockKind
	Payload any
}

type ChartType string

const (
	ChartBar      ChartType = "bar"
	ChartLine     ChartType = "line"
	ChartPie      ChartType = "pie"
	ChartComposed ChartType = "composed"
)

const defaultDataKey = "value"

// ChartData is the payload of a chart block.
type ChartData struct {
	Type           ChartType         `json:"type"`
	Title          string            `json:"title,omitempty"`
	Data           []map[string]any  `json:"data"`
	DataKeys       map[string]string `json:"data_keys,omitempty"`
	ComposedConfig *ComposedConfig   `json:"composed_config,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
}

// ComposedConfig lists the series of a composed chart by mark type.
type ComposedConfig struct {
	BarKeys  []string `json:"bar_keys,omitempty"`
	LineKeys []string `json:"line_keys,omitempty"`
	AreaKeys []string `json:"area_keys,omitempty"`
}

// SeriesKeys returns the row keys that carry plotted values. For simple
// charts it is data_keys[type] or "value"; composed charts collect their bar,
// line and area keys, keeping only keys present in the first row.
func (c ChartData) SeriesKeys() []string {
	if c.Type != ChartComposed {
		if k := c.DataKeys[string(c.Type)]; k != "" {
			return []string{k}
		}
		return []string{defaultDataKey}
	}

	var bar, line, area []string
	if c.ComposedConfig != nil {
		bar, line, area = c.ComposedConfig.BarKeys, c.ComposedConfig.LineKeys, c.ComposedConfig.AreaKeys
	}
	if len(bar) == 0 {
		bar = []string{c.dataKey("bar")}
	}
	if len(line) == 0 {
		line = []string{c.dataKey("line")}
	}
	if len(area) == 0 {
		area = []string{c.dataKey("area")}
	}

	seen := make(map[string]bool)
	var keys []string
	for _, group := range [][]string{bar, line, area} {
		for _, k := range group {
			if seen[k] || !c.hasKey(k) {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

func (c ChartData) dataKey(mark string) string {
	if k := c.DataKeys[mark]; k != "" {
		return k
	}
	return defaultDataKey
}

func (c ChartData) hasKey(key string) bool {
	if len(c.Data) == 0 {
		return false
	}
	_, ok := c.Data[0][key]
	return ok
}

// RowName returns the category label of row i.
func (c ChartData) RowName(i int) string {
	switch v := c.Data[i]["name"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Value returns row i's value for key. Numeric strings such as "1,200" are accepted.
func (c ChartData) Value(i int, key string) (float64, bool) {
	switch v := c.Data[i][key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", ""), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// PDFNavData is the payload of a document navigation block.
type PDFNavData struct {
	DocumentID string     `json:"documentId"`
	Filename   string     `json:"filename"`
	Page       int        `json:"page"`
	Context    string     `json:"context"`
	Highlight  *Highlight `json:"highlight,omitempty"`
}

type Highlight struct {
	Text string `json:"text"`
}
