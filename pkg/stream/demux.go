package stream

import (
	"strings"

	"github.com/BryanTheLai/stackrag/pkg/logger"
	"github.com/BryanTheLai/stackrag/pkg/tags"
)

var demuxLog = logger.WithComponent("demux")

// Demultiplexer splits a fragmented text stream into plain text and
// delimited blocks. It holds the state of exactly one assistant turn and
// is not safe for concurrent use.
//
// While scanning, a trailing partial open marker is held back in the
// pending buffer so that a marker split across fragments is still matched.
// While buffering, only the active tag's close marker ends the block.
type Demultiplexer struct {
	specs []tags.TagSpec

	emitted strings.Builder
	pending string
	active  *tags.TagSpec

	// closeFrom is the offset in pending where the next close-marker
	// search starts; everything before it was already searched.
	closeFrom int

	flushed bool
}

func NewDemultiplexer(reg *tags.Registry) *Demultiplexer {
	return &Demultiplexer{specs: reg.AllSpecs()}
}

// Feed consumes one fragment and returns the segments it finalized.
// Feeding after Flush is ignored.
func (d *Demultiplexer) Feed(fragment string) []Segment {
	if d.flushed {
		demuxLog.Warn("Feed after flush ignored", "fragment_length", len(fragment))
		return nil
	}
	if fragment == "" {
		return nil
	}

	var out []Segment
	rest := fragment

	for {
		if d.active == nil {
			r := d.pending + rest
			d.pending = ""
			rest = ""

			i, spec := d.earliestOpen(r)
			if i < 0 {
				keep := d.partialOpenSuffix(r)
				out = d.emitText(out, r[:len(r)-keep])
				d.pending = r[len(r)-keep:]
				return out
			}

			out = d.emitText(out, r[:i])
			d.active = &spec
			d.pending = r[i:]
			d.closeFrom = len(spec.Open)
			demuxLog.Debug("Block opened", "kind", spec.Kind)
		} else {
			d.pending += rest
			rest = ""
		}

		j := d.findClose()
		if j < 0 {
			return out
		}

		block := Block(d.active.Kind, d.pending[:j])
		d.emitted.WriteString(block.Content)
		out = append(out, block)
		demuxLog.Debug("Block closed", "kind", d.active.Kind, "length", j)

		rest = d.pending[j:]
		d.pending = ""
		d.active = nil
		d.closeFrom = 0

		if rest == "" {
			return out
		}
	}
}

// Flush finalizes the turn. Any pending text, including an unterminated
// block, is emitted verbatim as plain text. Only the first call has effect.
func (d *Demultiplexer) Flush() []Segment {
	if d.flushed {
		return nil
	}
	d.flushed = true

	var out []Segment
	if d.active != nil {
		demuxLog.Debug("Unterminated block flushed as text", "kind", d.active.Kind, "length", len(d.pending))
	}
	out = d.emitText(out, d.pending)
	d.pending = ""
	d.active = nil
	return out
}

// earliestOpen finds the leftmost open marker in r. On equal positions the
// spec registered first wins.
func (d *Demultiplexer) earliestOpen(r string) (int, tags.TagSpec) {
	best := -1
	var match tags.TagSpec
	for _, s := range d.specs {
		i := strings.Index(r, s.Open)
		if i >= 0 && (best < 0 || i < best) {
			best = i
			match = s
		}
	}
	return best, match
}

// partialOpenSuffix returns the length of the longest suffix of r that is a
// proper prefix of some open marker.
func (d *Demultiplexer) partialOpenSuffix(r string) int {
	longest := 0
	for _, s := range d.specs {
		n := len(s.Open) - 1
		if n > len(r) {
			n = len(r)
		}
		for ; n > longest; n-- {
			if strings.HasSuffix(r, s.Open[:n]) {
				longest = n
				break
			}
		}
	}
	return longest
}

// findClose returns the offset just past the active close marker, or -1.
func (d *Demultiplexer) findClose() int {
	closeTag := d.active.Close
	from := d.closeFrom
	if k := strings.Index(d.pending[from:], closeTag); k >= 0 {
		return from + k + len(closeTag)
	}
	// The next search only needs to revisit a possible partial close marker.
	if next := len(d.pending) - len(closeTag) + 1; next > d.closeFrom {
		d.closeFrom = next
	}
	return -1
}

func (d *Demultiplexer) emitText(out []Segment, s string) []Segment {
	if s == "" {
		return out
	}
	d.emitted.WriteString(s)
	return append(out, PlainText(s))
}

// Buffering reports whether the demultiplexer is inside an open block.
func (d *Demultiplexer) Buffering() bool {
	return d.active != nil
}

// ActiveTag returns the tag whose close marker is awaited.
func (d *Demultiplexer) ActiveTag() (tags.TagSpec, bool) {
	if d.active == nil {
		return tags.TagSpec{}, false
	}
	return *d.active, true
}

// Pending returns text received but not yet emitted.
func (d *Demultiplexer) Pending() string {
	return d.pending
}

// Emitted returns the concatenated content of every emitted segment.
func (d *Demultiplexer) Emitted() string {
	return d.emitted.String()
}

func (d *Demultiplexer) Flushed() bool {
	return d.flushed
}

// Collect runs fragments through a fresh demultiplexer, flushes it and
// returns the output with adjacent text merged.
func Collect(reg *tags.Registry, fragments ...string) []Segment {
	d := NewDemultiplexer(reg)
	var out []Segment
	for _, f := range fragments {
		out = append(out, d.Feed(f)...)
	}
	out = append(out, d.Flush()...)
	return Coalesce(out)
}
