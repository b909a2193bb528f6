package textutil

import (
	"strings"
	"testing"
)

func TestMarkdownToPlain(t *testing.T) {
	md := `# Heading

Some **bold** text and a [link](https://example.com).

| col1 | col2 |
|------|------|
| a    | b    |

` + "```go\nfunc main() {}\n```" + `

Final paragraph.`

	plain := MarkdownToPlain(md)

	if !strings.Contains(plain, "Heading") {
		t.Errorf("expected heading text, got %q", plain)
	}
	if !strings.Contains(plain, "bold") || !strings.Contains(plain, "link") {
		t.Errorf("expected inline text preserved, got %q", plain)
	}
	if strings.Contains(plain, "col1") || strings.Contains(plain, "| a") {
		t.Errorf("table content should be stripped, got %q", plain)
	}
	if strings.Contains(plain, "func main") {
		t.Errorf("fenced code should be stripped, got %q", plain)
	}
	if strings.Contains(plain, "  ") {
		t.Errorf("whitespace should be collapsed, got %q", plain)
	}
}

func TestCorpusTextSpacesCJK(t *testing.T) {
	got := CorpusText("本文提出深度学习方法")
	if !strings.Contains(got, "深 度 学 习") {
		t.Errorf("CJK should be space-separated per character, got %q", got)
	}
}
