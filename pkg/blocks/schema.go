package blocks

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

func ptr[T any](v T) *T { return &v }

var chartSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"type", "data"},
	Properties: map[string]*jsonschema.Schema{
		"type": {
			Type: "string",
			Enum: []any{string(ChartBar), string(ChartLine), string(ChartPie), string(ChartComposed)},
		},
		"title": {Type: "string"},
		"data": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type:     "object",
				Required: []string{"name"},
				Properties: map[string]*jsonschema.Schema{
					"name": {Types: []string{"string", "number"}},
				},
			},
		},
		"data_keys": {
			Type:                 "object",
			AdditionalProperties: &jsonschema.Schema{Type: "string"},
		},
		"composed_config": {
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"bar_keys":  {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				"line_keys": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				"area_keys": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			},
		},
		"metadata": {Type: "object"},
	},
}

var pdfNavSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"documentId", "filename", "page"},
	Properties: map[string]*jsonschema.Schema{
		"documentId": {Type: "string", MinLength: ptr(1)},
		"filename":   {Type: "string"},
		"page":       {Type: "number", Minimum: ptr(1.0)},
		"context":    {Type: "string"},
		"highlight": {
			Type:     "object",
			Required: []string{"text"},
			Properties: map[string]*jsonschema.Schema{
				"text": {Type: "string"},
			},
		},
	},
}

func mustResolve(name string, s *jsonschema.Schema) *jsonschema.Resolved {
	r, err := s.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("blocks: resolve %s schema: %v", name, err))
	}
	return r
}
