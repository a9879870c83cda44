// Package chunker splits documents into bounded, file-type aware chunks.
package chunker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileType selects the splitting heuristic.
type FileType int

// File types.
const (
	Unknown FileType = iota
	Markdown
	Code
	Text
	JSON
	YAML
	PDF
	DOCX
)

// String returns the file type name.
func (f FileType) String() string {
	switch f {
	case Markdown:
		return "markdown"
	case Code:
		return "code"
	case Text:
		return "text"
	case JSON:
		return "json"
	case YAML:
		return "yaml"
	case PDF:
		return "pdf"
	case DOCX:
		return "docx"
	default:
		return "unknown"
	}
}

// Segment bounds, in characters.
const (
	MaxChunkChars = 1200
	MinChunkChars = 800
)

var codeBoundary = regexp.MustCompile(`^(pub\s+fn\s|fn\s|impl\s|def\s|class\s)`)

// Detect maps a document path, ignoring any "#..." suffix, to a file type.
func Detect(path string) FileType {
	if i := strings.IndexByte(path, '#'); i >= 0 {
		path = path[:i]
	}
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "md", "markdown":
		return Markdown
	case "rs", "ts", "tsx", "js", "py", "go", "java", "rb", "cpp", "c":
		return Code
	case "json":
		return JSON
	case "yaml", "yml":
		return YAML
	case "txt":
		return Text
	case "pdf":
		return PDF
	case "docx":
		return DOCX
	}
	return Unknown
}

// DetectLanguage maps a language hint to a file type.
func DetectLanguage(lang string) FileType {
	switch strings.ToLower(lang) {
	case "markdown":
		return Markdown
	case "rust", "typescript", "javascript", "python", "go", "java", "ruby", "c", "cpp":
		return Code
	case "json":
		return JSON
	case "yaml", "yml":
		return YAML
	case "text":
		return Text
	case "pdf":
		return PDF
	case "docx":
		return DOCX
	}
	return Unknown
}

// Build splits text by the heuristic of ft, re-segments long pieces and
// drops whitespace-only chunks.
func Build(text string, ft FileType) []string {
	var raw []string
	switch ft {
	case Markdown:
		raw = splitBefore(text, func(line string) bool { return strings.HasPrefix(line, "#") })
	case Code:
		raw = splitBefore(text, codeBoundary.MatchString)
	case Text:
		raw = paragraphs(text)
	case JSON:
		raw = jsonChunks(text)
	case YAML:
		raw = yamlChunks(text)
	case PDF:
		raw = pdfChunks(text)
	case DOCX:
		raw = orWhole(paragraphs(text), text)
	default:
		raw = []string{text}
	}

	out := make([]string, 0, len(raw))
	for _, chunk := range resegment(raw) {
		if strings.TrimSpace(chunk) != "" {
			out = append(out, chunk)
		}
	}
	return out
}

// resegment keeps chunks up to MaxChunkChars and cuts longer ones into
// MaxChunkChars windows. A trailing window shorter than MinChunkChars is
// merged into the one before it.
func resegment(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		runes := []rune(chunk)
		if len(runes) <= MaxChunkChars {
			out = append(out, chunk)
			continue
		}
		var windows []string
		for start := 0; start < len(runes); start += MaxChunkChars {
			end := min(start+MaxChunkChars, len(runes))
			piece := string(runes[start:end])
			if end-start < MinChunkChars && len(windows) > 0 {
				windows[len(windows)-1] += piece
				continue
			}
			windows = append(windows, piece)
		}
		out = append(out, windows...)
	}
	return out
}

// splitBefore starts a new chunk before every line matching boundary once
// the current chunk holds non-blank text.
func splitBefore(text string, boundary func(string) bool) []string {
	var chunks []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if boundary(line) && strings.TrimSpace(current.String()) != "" {
			flush()
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	flush()
	return orWhole(chunks, text)
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func pdfChunks(text string) []string {
	var out []string
	for _, page := range strings.Split(text, "\f") {
		out = append(out, paragraphs(page)...)
	}
	return orWhole(out, text)
}

func jsonChunks(text string) []string {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || len(obj) == 0 {
		return []string{text}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	chunks := make([]string, 0, len(keys))
	for _, k := range keys {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(obj[k]); err != nil {
			continue
		}
		chunks = append(chunks, fmt.Sprintf("key: %s\n%s", k, strings.TrimRight(buf.String(), "\n")))
	}
	return orWhole(chunks, text)
}

func yamlChunks(text string) []string {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil || len(doc.Content) == 0 {
		return []string{text}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return []string{text}
	}

	chunks := make([]string, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		out, err := yaml.Marshal(value)
		if err != nil {
			continue
		}
		chunks = append(chunks, fmt.Sprintf("key: %s\n%s", key.Value, strings.TrimSpace(string(out))))
	}
	return orWhole(chunks, text)
}

func orWhole(chunks []string, text string) []string {
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
