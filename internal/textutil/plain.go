package textutil

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var plainMD = goldmark.New(goldmark.WithExtensions(extension.Table))

// MarkdownToPlain extracts plain text from markdown for the FTS corpus.
// Table blocks, raw HTML and fenced code bodies are dropped; link and image
// alt text is kept; whitespace is normalized.
func MarkdownToPlain(src string) string {
	source := []byte(src)
	doc := plainMD.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if _, ok := n.(*ast.Paragraph); ok {
				b.WriteByte('\n')
			}
			if _, ok := n.(*ast.Heading); ok {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *extast.Table:
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			b.WriteByte(' ')
		case *ast.CodeSpan:
			// inline code is searchable text
		}
		return ast.WalkContinue, nil
	})

	return CollapseWhitespace(b.String())
}

// CorpusText prepares markdown content for FTS indexing: plain text with
// per-character CJK spacing so the unicode61 tokenizer yields per-character
// tokens.
func CorpusText(markdown string) string {
	return SpaceCJK(MarkdownToPlain(markdown))
}
