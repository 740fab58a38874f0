// Package blocks decodes the payload of a structured block captured by the
// stream demultiplexer. Decoding is total: anything that is not a well-formed
// payload for its kind is reported as not applicable, never as an error.
package blocks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"

	"github.com/BryanTheLai/stackrag/pkg/logger"
	"github.com/BryanTheLai/stackrag/pkg/tags"
)

// decoder turns a validated JSON interior into a typed payload.
type decoder struct {
	schema *jsonschema.Resolved
	decode func(data []byte) (any, error)
}

var builtinDecoders = map[tags.BlockKind]decoder{
	tags.KindChart: {
		schema: mustResolve("chart", chartSchema),
		decode: func(data []byte) (any, error) {
			var c ChartData
			err := json.Unmarshal(data, &c)
			return c, err
		},
	},
	tags.KindPDFNav: {
		schema: mustResolve("pdfnav", pdfNavSchema),
		decode: func(data []byte) (any, error) {
			var p PDFNavData
			err := json.Unmarshal(data, &p)
			return p, err
		},
	},
}

// genericDecoder serves kinds registered at runtime without a typed payload.
var genericDecoder = decoder{
	decode: func(data []byte) (any, error) {
		var v any
		err := json.Unmarshal(data, &v)
		return v, err
	},
}

// Parser decodes raw block text for the kinds of one registry.
type Parser struct {
	reg    *tags.Registry
	repair bool
}

type Option func(*Parser)

// WithRepair lets the parser run a broken interior through a JSON repair
// pass once before giving up.
func WithRepair(enabled bool) Option {
	return func(p *Parser) {
		p.repair = enabled
	}
}

func NewParser(reg *tags.Registry, opts ...Option) *Parser {
	p := &Parser{reg: reg}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TryParse decodes raw, which must include kind's open and close markers.
// The boolean is false when the block is not applicable: unknown kind,
// missing markers, malformed JSON or a payload that fails validation.
func (p *Parser) TryParse(kind tags.BlockKind, raw string) (ParsedBlock, bool) {
	log := logger.WithComponent("block_parser")

	spec, ok := p.reg.Lookup(kind)
	if !ok {
		log.Debug("Unknown block kind", "kind", kind)
		return ParsedBlock{}, false
	}

	interior, ok := stripMarkers(spec, raw)
	if !ok {
		log.Debug("Block markers missing", "kind", kind, "raw_length", len(raw))
		return ParsedBlock{}, false
	}

	data, instance, err := p.decodeJSON(interior)
	if err != nil {
		log.Debug("Block interior is not JSON", "kind", kind, "error", err)
		return ParsedBlock{}, false
	}

	dec, ok := builtinDecoders[kind]
	if !ok {
		dec = genericDecoder
	}

	if dec.schema != nil {
		if err := dec.schema.Validate(instance); err != nil {
			log.Debug("Block payload failed validation", "kind", kind, "error", err)
			return ParsedBlock{}, false
		}
	}

	payload, err := dec.decode(data)
	if err != nil {
		log.Debug("Block payload decode failed", "kind", kind, "error", err)
		return ParsedBlock{}, false
	}

	return ParsedBlock{Kind: kind, Payload: payload}, true
}

func stripMarkers(spec tags.TagSpec, raw string) (string, bool) {
	if len(raw) < len(spec.Open)+len(spec.Close) {
		return "", false
	}
	if !strings.HasPrefix(raw, spec.Open) || !strings.HasSuffix(raw, spec.Close) {
		return "", false
	}
	return strings.TrimSpace(raw[len(spec.Open) : len(raw)-len(spec.Close)]), true
}

// decodeJSON returns the bytes that decoded and the generic value. With repair
// enabled a syntax error gets one repaired retry.
func (p *Parser) decodeJSON(interior string) ([]byte, any, error) {
	data := []byte(interior)
	var v any
	err := json.Unmarshal(data, &v)
	if err == nil {
		return data, v, nil
	}

	var syntaxErr *json.SyntaxError
	if !p.repair || interior == "" || !errors.As(err, &syntaxErr) {
		return nil, nil, err
	}

	fixed, rerr := jsonrepair.JSONRepair(interior)
	if rerr != nil {
		return nil, nil, fmt.Errorf("%w (repair failed: %v)", err, rerr)
	}
	data = []byte(fixed)
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, nil, fmt.Errorf("repaired JSON still invalid: %w", err)
	}
	return data, v, nil
}
