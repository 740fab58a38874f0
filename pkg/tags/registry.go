package tags

import (
	"errors"
	"fmt"
	"strings"
)

// BlockKind identifies the kind of structured block carried between a pair of markers.
type BlockKind string

const (
	KindChart  BlockKind = "chart"
	KindPDFNav BlockKind = "pdfnav"
)

var (
	ErrInvalidTag    = errors.New("invalid tag spec")
	ErrDuplicateOpen = errors.New("duplicate open marker")
	// ErrOverlappingOpen is returned when one open marker is a prefix of another.
	ErrOverlappingOpen = errors.New("overlapping open markers")
	ErrDuplicateKind   = errors.New("duplicate block kind")
)

// TagSpec describes one recognized block type.
type TagSpec struct {
	Open  string    `mapstructure:"open"`
	Close string    `mapstructure:"close"`
	Kind  BlockKind `mapstructure:"kind"`
}

// Registry is an ordered, immutable set of tag specs. Order is the
// tie-break priority when two open markers start at the same position.
type Registry struct {
	specs []TagSpec
}

// NewRegistry validates specs and builds a registry in the given order.
func NewRegistry(specs ...TagSpec) (*Registry, error) {
	opens := make(map[string]struct{}, len(specs))
	kinds := make(map[BlockKind]struct{}, len(specs))

	for i, s := range specs {
		if s.Open == "" || s.Close == "" {
			return nil, fmt.Errorf("spec %d (%q): empty marker: %w", i, s.Kind, ErrInvalidTag)
		}
		if s.Open == s.Close {
			return nil, fmt.Errorf("spec %d (%q): open and close markers are equal: %w", i, s.Kind, ErrInvalidTag)
		}
		if s.Kind == "" {
			return nil, fmt.Errorf("spec %d (%q): empty kind: %w", i, s.Open, ErrInvalidTag)
		}
		if _, ok := opens[s.Open]; ok {
			return nil, fmt.Errorf("spec %d: %q: %w", i, s.Open, ErrDuplicateOpen)
		}
		for _, prev := range specs[:i] {
			if strings.HasPrefix(s.Open, prev.Open) || strings.HasPrefix(prev.Open, s.Open) {
				return nil, fmt.Errorf("spec %d: %q and %q: %w", i, s.Open, prev.Open, ErrOverlappingOpen)
			}
		}
		if _, ok := kinds[s.Kind]; ok {
			return nil, fmt.Errorf("spec %d: %q: %w", i, s.Kind, ErrDuplicateKind)
		}
		opens[s.Open] = struct{}{}
		kinds[s.Kind] = struct{}{}
	}

	out := make([]TagSpec, len(specs))
	copy(out, specs)
	return &Registry{specs: out}, nil
}

// MustNewRegistry is NewRegistry for static tables; it panics on invalid input.
func MustNewRegistry(specs ...TagSpec) *Registry {
	r, err := NewRegistry(specs...)
	if err != nil {
		panic(err)
	}
	return r
}

var defaultSpecs = []TagSpec{
	{Open: "<ChartData>", Close: "</ChartData>", Kind: KindChart},
	{Open: "<PDFNav>", Close: "</PDFNav>", Kind: KindPDFNav},
}

// Default returns the registry for the block kinds the backend emits.
func Default() *Registry {
	return MustNewRegistry(defaultSpecs...)
}

// AllSpecs returns the specs in priority order. The slice is a copy.
func (r *Registry) AllSpecs() []TagSpec {
	out := make([]TagSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Lookup returns the spec registered for kind.
func (r *Registry) Lookup(kind BlockKind) (TagSpec, bool) {
	for _, s := range r.specs {
		if s.Kind == kind {
			return s, true
		}
	}
	return TagSpec{}, false
}

func (r *Registry) Len() int {
	return len(r.specs)
}

// With returns a new registry containing r's specs followed by extra.
// r itself is left untouched.
func (r *Registry) With(extra ...TagSpec) (*Registry, error) {
	all := make([]TagSpec, 0, len(r.specs)+len(extra))
	all = append(all, r.specs...)
	all = append(all, extra...)
	return NewRegistry(all...)
}
