package statement

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var mathFence = []byte("$$")

// KindMathBlock is the node kind of display math written between $$ fences.
var KindMathBlock = ast.NewNodeKind("MathBlock")

// MathBlock holds the raw lines of a display math block.
type MathBlock struct {
	ast.BaseBlock
	closed bool
}

func (n *MathBlock) Kind() ast.NodeKind { return KindMathBlock }

func (n *MathBlock) IsRaw() bool { return true }

func (n *MathBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

// Closed reports whether the closing fence was seen.
func (n *MathBlock) Closed() bool { return n.closed }

// KindMathInline is the node kind of $...$ spans.
var KindMathInline = ast.NewNodeKind("MathInline")

// MathInline is inline math. Display is set for $$...$$ inside a paragraph.
type MathInline struct {
	ast.BaseInline
	Literal []byte
	Display bool
}

func (n *MathInline) Kind() ast.NodeKind { return KindMathInline }

func (n *MathInline) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Literal": string(n.Literal)}, nil)
}

type mathBlockParser struct{}

func (p *mathBlockParser) Trigger() []byte { return []byte{'$'} }

func (p *mathBlockParser) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 || !bytes.HasPrefix(line[pos:], mathFence) {
		return nil, parser.NoChildren
	}

	node := &MathBlock{}
	rest := line[pos+len(mathFence):]
	start := segment.Start - segment.Padding + pos + len(mathFence)
	if end := bytes.Index(rest, mathFence); end >= 0 {
		if len(bytes.TrimSpace(rest[:end])) > 0 {
			node.Lines().Append(text.NewSegment(start, start+end))
		}
		node.closed = true
	} else if !util.IsBlank(rest) {
		node.Lines().Append(text.NewSegment(start, segment.Stop))
	}
	consumeLine(reader, line, segment)
	return node, parser.NoChildren
}

func (p *mathBlockParser) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	n := node.(*MathBlock)
	if n.closed {
		return parser.Close
	}

	line, segment := reader.PeekLine()
	if end := bytes.Index(line, mathFence); end >= 0 {
		if len(bytes.TrimSpace(line[:end])) > 0 {
			n.Lines().Append(text.NewSegment(segment.Start, segment.Start+end-segment.Padding))
		}
		n.closed = true
		consumeLine(reader, line, segment)
		return parser.Close
	}
	n.Lines().Append(segment)
	consumeLine(reader, line, segment)
	return parser.Continue | parser.NoChildren
}

func (p *mathBlockParser) Close(node ast.Node, reader text.Reader, pc parser.Context) {}

func (p *mathBlockParser) CanInterruptParagraph() bool { return true }

func (p *mathBlockParser) CanAcceptIndentedLine() bool { return false }

// consumeLine advances to the end of the current line, leaving the newline
// for the block loop.
func consumeLine(reader text.Reader, line []byte, segment text.Segment) {
	newline := 0
	if len(line) > 0 && line[len(line)-1] == '\n' {
		newline = 1
	}
	reader.Advance(segment.Len() - newline + segment.Padding)
}

type mathInlineParser struct{}

func (p *mathInlineParser) Trigger() []byte { return []byte{'$'} }

func (p *mathInlineParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if bytes.HasPrefix(line, mathFence) {
		end := bytes.Index(line[len(mathFence):], mathFence)
		if end <= 0 {
			return nil
		}
		body := line[len(mathFence) : len(mathFence)+end]
		block.Advance(end + 2*len(mathFence))
		return &MathInline{Literal: append([]byte(nil), body...), Display: true}
	}

	for i := 1; i < len(line); i++ {
		if line[i] == '\n' {
			return nil
		}
		if line[i] != '$' || line[i-1] == '\\' {
			continue
		}
		if i == 1 {
			return nil
		}
		block.Advance(i + 1)
		return &MathInline{Literal: append([]byte(nil), line[1:i]...)}
	}
	return nil
}

type mathExtension struct{}

// Math registers $...$ inline math and $$ fenced display math.
var Math goldmark.Extender = &mathExtension{}

func (e *mathExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithBlockParsers(util.Prioritized(&mathBlockParser{}, 90)),
		parser.WithInlineParsers(util.Prioritized(&mathInlineParser{}, 150)),
	)
}
