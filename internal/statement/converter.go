package statement

import (
	"os"

	appErr "tuackng/pkg/errors"
)

const (
	// WideWidth disables paragraph wrapping in converted statements.
	WideWidth = 1000000
	// Preamble is prepended to every converted file so templates can share helpers.
	Preamble = "#import \"utils.typ\": *\n"
)

// Converter turns statement markdown into a Typst file body.
type Converter struct {
	parser   Parser
	renderer Renderer
}

// NewConverter creates a converter. Nil arguments select the markdown parser
// and the Typst renderer.
func NewConverter(parser Parser, renderer Renderer) *Converter {
	if parser == nil {
		parser = NewMarkdownParser()
	}
	if renderer == nil {
		renderer = NewTypstRenderer()
	}
	return &Converter{parser: parser, renderer: renderer}
}

// Convert parses source and renders it with the utils import preamble.
func (c *Converter) Convert(source []byte) (string, error) {
	doc, err := c.parser.Parse(source)
	if err != nil {
		return "", err
	}
	return Preamble + c.renderer.Render(doc, WideWidth), nil
}

// ConvertFile reads and converts the statement at path.
func (c *Converter) ConvertFile(path string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", appErr.Newf(appErr.StatementMissing, "statement %s does not exist", path).
				WithDetail("path", path)
		}
		return "", appErr.FilesystemFailure(err, "read", path)
	}

	out, err := c.Convert(source)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StatementParseError, "parse %s failed", path).
			WithDetail("path", path)
	}
	return out, nil
}
