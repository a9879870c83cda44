package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want FileType
	}{
		{"README.md", Markdown},
		{"docs/guide.markdown", Markdown},
		{"src/main.rs", Code},
		{"app/index.tsx", Code},
		{"cmd/main.go", Code},
		{"data.json", JSON},
		{"config.yml", YAML},
		{"config.YAML", YAML},
		{"notes.txt", Text},
		{"report.pdf", PDF},
		{"letter.docx", DOCX},
		{"big.md#segment_2", Markdown},
		{"Makefile", Unknown},
		{"image.png", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.path))
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, Markdown, DetectLanguage("markdown"))
	assert.Equal(t, Code, DetectLanguage("Rust"))
	assert.Equal(t, Code, DetectLanguage("go"))
	assert.Equal(t, JSON, DetectLanguage("json"))
	assert.Equal(t, YAML, DetectLanguage("yml"))
	assert.Equal(t, Text, DetectLanguage("text"))
	assert.Equal(t, PDF, DetectLanguage("pdf"))
	assert.Equal(t, DOCX, DetectLanguage("docx"))
	assert.Equal(t, Unknown, DetectLanguage(""))
	assert.Equal(t, Unknown, DetectLanguage("cobol"))
}

func TestBuild_Markdown(t *testing.T) {
	t.Run("single heading", func(t *testing.T) {
		chunks := Build("# Title\nBody text.", Markdown)
		assert.Equal(t, []string{"# Title\nBody text."}, chunks)
	})

	t.Run("splits before headings", func(t *testing.T) {
		chunks := Build("intro\n# One\nfirst\n## Two\nsecond\n", Markdown)
		assert.Equal(t, []string{"intro", "# One\nfirst", "## Two\nsecond"}, chunks)
	})

	t.Run("leading heading does not produce empty chunk", func(t *testing.T) {
		chunks := Build("\n\n# One\nbody", Markdown)
		assert.Equal(t, []string{"# One\nbody"}, chunks)
	})
}

func TestBuild_Code(t *testing.T) {
	src := "use std::io;\n\nfn main() {\n}\n\npub fn helper() {}\nimpl Foo {}\n"
	chunks := Build(src, Code)
	require.Len(t, chunks, 4)
	assert.Equal(t, "use std::io;", chunks[0])
	assert.Equal(t, "fn main() {\n}", chunks[1])
	assert.Equal(t, "pub fn helper() {}", chunks[2])
	assert.Equal(t, "impl Foo {}", chunks[3])

	py := "import os\ndef a():\n    pass\nclass B:\n    pass\n"
	assert.Equal(t, []string{"import os", "def a():\n    pass", "class B:\n    pass"}, Build(py, Code))
}

func TestBuild_JSON(t *testing.T) {
	t.Run("one chunk per key sorted", func(t *testing.T) {
		chunks := Build(`{"b": {"x": 1}, "a": "<v>"}`, JSON)
		require.Len(t, chunks, 2)
		assert.Equal(t, "key: a\n\"<v>\"", chunks[0])
		assert.Equal(t, "key: b\n{\n  \"x\": 1\n}", chunks[1])
	})

	t.Run("array falls back to whole text", func(t *testing.T) {
		assert.Equal(t, []string{"[1, 2]"}, Build("[1, 2]", JSON))
	})

	t.Run("invalid falls back to whole text", func(t *testing.T) {
		assert.Equal(t, []string{"{not json"}, Build("{not json", JSON))
	})
}

func TestBuild_YAML(t *testing.T) {
	t.Run("document order", func(t *testing.T) {
		chunks := Build("zeta: 1\nalpha:\n  nested: true\n", YAML)
		require.Len(t, chunks, 2)
		assert.Equal(t, "key: zeta\n1", chunks[0])
		assert.Equal(t, "key: alpha\nnested: true", chunks[1])
	})

	t.Run("scalar falls back to whole text", func(t *testing.T) {
		assert.Equal(t, []string{"just text"}, Build("just text", YAML))
	})
}

func TestBuild_PDF(t *testing.T) {
	chunks := Build("page one\n\npara two\fpage two", PDF)
	assert.Equal(t, []string{"page one", "para two", "page two"}, chunks)
}

func TestBuild_TextAndDOCX(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Build("a\n\n\n\nb", Text))
	assert.Equal(t, []string{"a", "b"}, Build("a\n\nb", DOCX))
	assert.Empty(t, Build("  \n\n  ", Text))
}

func TestBuild_Unknown(t *testing.T) {
	assert.Equal(t, []string{"whole\n\ntext"}, Build("whole\n\ntext", Unknown))
	assert.Empty(t, Build("   ", Unknown))
}

func TestBuild_Resegment(t *testing.T) {
	t.Run("exactly max is kept", func(t *testing.T) {
		chunks := Build(strings.Repeat("a", MaxChunkChars), Unknown)
		require.Len(t, chunks, 1)
	})

	t.Run("long remainder becomes own window", func(t *testing.T) {
		chunks := Build(strings.Repeat("a", MaxChunkChars+MinChunkChars), Unknown)
		require.Len(t, chunks, 2)
		assert.Len(t, chunks[0], MaxChunkChars)
		assert.Len(t, chunks[1], MinChunkChars)
	})

	t.Run("short remainder is merged", func(t *testing.T) {
		chunks := Build(strings.Repeat("a", 2*MaxChunkChars+100), Unknown)
		require.Len(t, chunks, 2)
		assert.Len(t, chunks[0], MaxChunkChars)
		assert.Len(t, chunks[1], MaxChunkChars+100)
	})

	t.Run("counts runes", func(t *testing.T) {
		chunks := Build(strings.Repeat("é", MaxChunkChars), Unknown)
		require.Len(t, chunks, 1)
		assert.Equal(t, MaxChunkChars, utf8.RuneCountInString(chunks[0]))
	})

	t.Run("bounded", func(t *testing.T) {
		chunks := Build(strings.Repeat("word ", 3000), Text)
		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c), MaxChunkChars+MinChunkChars)
		}
	})
}

func TestFileType_String(t *testing.T) {
	assert.Equal(t, "markdown", Markdown.String())
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "docx", DOCX.String())
}
