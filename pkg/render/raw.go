package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/BryanTheLai/stackrag/pkg/logger"
)

// renderRaw shows block text exactly as it streamed, markers included.
func (r *Renderer) renderRaw(raw string) string {
	if !r.highlight {
		return r.rawStyle.Render(raw)
	}
	return highlight(raw)
}

// highlight colors raw as markup. On any tokenizer or formatter failure the
// text is returned unchanged.
func highlight(raw string) string {
	log := logger.WithComponent("render")

	lexer := lexers.Get("xml")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, raw)
	if err != nil {
		log.Debug("Failed to tokenize raw block, using plain text", "error", err)
		return raw
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, styles.Get("monokai"), iterator); err != nil {
		log.Debug("Failed to format raw block, using plain text", "error", err)
		return raw
	}
	return strings.TrimRight(buf.String(), "\n")
}
