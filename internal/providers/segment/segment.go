// Package segment splits large documents into fingerprinted windows.
package segment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"unicode/utf8"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

const (
	// DefaultLargeThreshold is the content size above which a document is segmented.
	DefaultLargeThreshold = 200 * 1024

	// DefaultSegmentSize is the byte size of each segment window.
	DefaultSegmentSize = 50 * 1024
)

// Options controls segmentation.
type Options struct {
	LargeThreshold int
	SegmentSize    int
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{
		LargeThreshold: DefaultLargeThreshold,
		SegmentSize:    DefaultSegmentSize,
	}
}

func (o Options) withDefaults() Options {
	if o.LargeThreshold <= 0 {
		o.LargeThreshold = DefaultLargeThreshold
	}
	if o.SegmentSize <= 0 {
		o.SegmentSize = DefaultSegmentSize
	}
	return o
}

// Fingerprint returns the lowercase hex SHA-256 of content.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Split returns consecutive byte windows of at most size bytes. A window
// end is moved back so no rune is cut in half.
func Split(content string, size int) []string {
	if size <= 0 || len(content) <= size {
		return []string{content}
	}
	var out []string
	for start := 0; start < len(content); {
		end := start + size
		if end >= len(content) {
			out = append(out, content[start:])
			break
		}
		for end > start && !utf8.RuneStart(content[end]) {
			end--
		}
		if end == start {
			// size smaller than one rune
			_, n := utf8.DecodeRuneInString(content[start:])
			end = start + n
		}
		out = append(out, content[start:end])
		start = end
	}
	return out
}

// Documents builds the document for content, or one document per segment
// when content exceeds the large threshold. Segments share the template's
// attributes and get a "#segment_N" path suffix and their own fingerprint.
func Documents(tmpl domain.Document, content string, opts Options) []domain.Document {
	opts = opts.withDefaults()

	if len(content) <= opts.LargeThreshold {
		doc := tmpl
		doc.Content = content
		doc.Fingerprint = Fingerprint(content)
		return []domain.Document{doc}
	}

	parts := Split(content, opts.SegmentSize)
	docs := make([]domain.Document, 0, len(parts))
	for i, part := range parts {
		doc := tmpl
		doc.Path = fmt.Sprintf("%s%s%d", tmpl.Path, domain.SegmentMarker, i)
		doc.Content = part
		doc.Fingerprint = Fingerprint(part)
		docs = append(docs, doc)
	}
	return docs
}
