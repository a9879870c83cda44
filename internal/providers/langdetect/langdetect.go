// Package langdetect guesses a source language from a file's name and content.
package langdetect

import (
	"path/filepath"
	"strings"
)

var byExtension = map[string]string{
	"rs":   "rust",
	"ts":   "typescript",
	"tsx":  "typescript",
	"js":   "javascript",
	"py":   "python",
	"go":   "go",
	"java": "java",
	"rb":   "ruby",
	"md":   "markdown",
	"json": "json",
	"yaml": "yaml",
	"yml":  "yaml",
	"toml": "toml",
	"txt":  "text",
	"pdf":  "pdf",
	"docx": "docx",
}

// Extension returns the lower-case extension of path without the dot.
func Extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Detect returns the language of a file, or "" when unknown.
// A shebang wins over the extension, which wins over content sniffing.
func Detect(path, content string) string {
	if lang := fromShebang(content); lang != "" {
		return lang
	}
	if lang, ok := byExtension[Extension(path)]; ok {
		return lang
	}
	return sniff(content)
}

func fromShebang(content string) string {
	line, _, _ := strings.Cut(content, "\n")
	if !strings.HasPrefix(line, "#!") {
		return ""
	}
	switch {
	case strings.Contains(line, "python"):
		return "python"
	case strings.Contains(line, "node"), strings.Contains(line, "deno"):
		return "javascript"
	case strings.Contains(line, "bash"), strings.Contains(line, "sh"):
		return "shell"
	}
	return ""
}

func sniff(content string) string {
	text := strings.ToLower(content)
	switch {
	case strings.Contains(text, "use std::"):
		return "rust"
	case strings.Contains(text, "import react"), strings.Contains(text, "export default"):
		return "javascript"
	case strings.Contains(text, "def ") && strings.Contains(text, "import "):
		return "python"
	}
	return ""
}
