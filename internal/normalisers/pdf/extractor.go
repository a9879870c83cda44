// Package pdf extracts text and document properties from PDF files
// using poppler's pdftotext.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// CheckAvailable reports whether pdftotext can be found.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns how to install pdftotext.
func InstallInstructions() string {
	return `PDF extraction requires pdftotext (poppler):
  macOS:  brew install poppler
  Debian: apt install poppler-utils
  Fedora: dnf install poppler-utils`
}

// Result is the extracted text and properties of a PDF.
type Result struct {
	// Text has pages separated by form feeds.
	Text  string
	Pages int
	Title string
}

// Metadata returns the properties in provider metadata form.
func (r *Result) Metadata() map[string]any {
	return map[string]any{
		"number_of_pages": r.Pages,
		"title":           r.Title,
	}
}

// Extractor converts PDF bytes to text.
type Extractor struct {
	runner CommandRunner
}

// New creates an extractor that shells out to pdftotext.
func New() *Extractor {
	return &Extractor{runner: execRunner{}}
}

// NewWithRunner creates an extractor with a custom command runner.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Extract writes content to a temporary file and runs pdftotext on it.
func (e *Extractor) Extract(ctx context.Context, content []byte) (*Result, error) {
	dir, err := os.MkdirTemp("", "mnemo-pdf-")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(path, content, 0600); err != nil {
		return nil, fmt.Errorf("writing temp pdf: %w", err)
	}

	out, err := e.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}

	text := string(out)
	title := ExtractTitle(content)
	if title == "" {
		title = firstLineTitle(text)
	}
	return &Result{
		Text:  text,
		Pages: CountPages(content),
		Title: title,
	}, nil
}

var pageObject = regexp.MustCompile(`(?i)/type\s*/page\b`)

// CountPages counts page objects in the raw PDF. /Pages tree nodes are
// not counted.
func CountPages(content []byte) int {
	return len(pageObject.FindAll(content, -1))
}

// ExtractTitle returns the literal string of the first /Title entry.
func ExtractTitle(content []byte) string {
	idx := bytes.Index(content, []byte("/Title"))
	if idx < 0 {
		return ""
	}
	tail := content[idx:]
	start := bytes.IndexByte(tail, '(')
	if start < 0 {
		return ""
	}
	end := bytes.IndexByte(tail[start+1:], ')')
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(string(tail[start+1 : start+1+end]))
}

// firstLineTitle uses the first short non-empty line as a title.
func firstLineTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.Trim(line, "\f"))
		if line == "" || strings.IndexFunc(line, isNotPrintable) >= 0 {
			continue
		}
		if len(line) > 200 {
			continue
		}
		return line
	}
	return ""
}

func isNotPrintable(r rune) bool {
	return r < 0x20 && r != '\t'
}
