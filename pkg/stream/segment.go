package stream

import (
	"strings"

	"github.com/BryanTheLai/stackrag/pkg/tags"
)

type SegmentType int

const (
	SegmentText SegmentType = iota
	SegmentBlock
)

func (t SegmentType) String() string {
	switch t {
	case SegmentText:
		return "text"
	case SegmentBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Segment is one finalized unit of demultiplexer output. For blocks, Content
// is the full delimited text including both markers.
type Segment struct {
	Type    SegmentType
	Kind    tags.BlockKind
	Content string
}

func PlainText(s string) Segment {
	return Segment{Type: SegmentText, Content: s}
}

func Block(kind tags.BlockKind, raw string) Segment {
	return Segment{Type: SegmentBlock, Kind: kind, Content: raw}
}

func (s Segment) IsBlock() bool {
	return s.Type == SegmentBlock
}

// Coalesce merges adjacent text segments. Block segments are kept as is.
func Coalesce(segs []Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		n := len(out)
		if s.Type == SegmentText && n > 0 && out[n-1].Type == SegmentText {
			out[n-1].Content += s.Content
			continue
		}
		out = append(out, s)
	}
	return out
}

// Concat joins the content of every segment, markers included.
func Concat(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Content)
	}
	return b.String()
}
