package extraction

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PlainText flattens extracted markdown into plain text. Headings, emphasis,
// links, and list markers reduce to their visible text, one block per line.
// Useful when a job requested markdown output but a downstream consumer
// (an embeddings call, say) wants raw text.
func PlainText(source []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				buf.Write(node.URL(source))
			}
		case *ast.FencedCodeBlock:
			if entering {
				writeRawLines(&buf, node, source)
			} else {
				endBlock(&buf)
			}
		case *ast.CodeBlock:
			if entering {
				writeRawLines(&buf, node, source)
			} else {
				endBlock(&buf)
			}
		default:
			if !entering && n.Type() == ast.TypeBlock {
				endBlock(&buf)
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimRight(buf.String(), "\n")
}

func writeRawLines(buf *bytes.Buffer, node interface{ Lines() *text.Segments }, source []byte) {
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
}

func endBlock(buf *bytes.Buffer) {
	if buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		buf.WriteByte('\n')
	}
}
