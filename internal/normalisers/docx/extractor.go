// Package docx extracts paragraph text and core properties from DOCX files.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// Result is the text and properties of a DOCX document.
type Result struct {
	// Text holds the paragraphs separated by blank lines.
	Text string

	Title   string
	Author  string
	Created string
}

// Metadata returns the document properties in provider metadata form.
func (r *Result) Metadata() map[string]any {
	return map[string]any{
		"author":  r.Author,
		"created": r.Created,
	}
}

// Extract reads word/document.xml and docProps/core.xml from content.
func Extract(content []byte) (*Result, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening docx archive: %w", domain.ErrInvalidInput)
	}

	res := &Result{}
	if raw, ok := readMember(reader, "word/document.xml"); ok {
		res.Text = parseDocumentXML(raw)
	} else {
		return nil, fmt.Errorf("word/document.xml missing: %w", domain.ErrInvalidInput)
	}
	if raw, ok := readMember(reader, "docProps/core.xml"); ok {
		var core coreXML
		if err := xml.Unmarshal(raw, &core); err == nil {
			res.Title = strings.TrimSpace(core.Title)
			res.Author = strings.TrimSpace(core.Creator)
			res.Created = strings.TrimSpace(core.Created)
		}
	}
	return res, nil
}

func readMember(reader *zip.Reader, name string) ([]byte, bool) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, false
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, false
		}
		return content, true
	}
	return nil, false
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML joins runs per paragraph and separates non-empty
// paragraphs with a blank line so chunking can split on them.
func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	paras := make([]string, 0, len(doc.Body.Paragraphs))
	for _, para := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, r := range para.Runs {
			for _, t := range r.Text {
				b.WriteString(t.Content)
			}
		}
		if p := strings.TrimSpace(b.String()); p != "" {
			paras = append(paras, p)
		}
	}
	return strings.Join(paras, "\n\n")
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
	Created string `xml:"created"`
}
