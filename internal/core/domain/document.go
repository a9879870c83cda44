package domain

import (
	"strings"
	"time"
)

// SegmentMarker separates a document path from its segment suffix.
const SegmentMarker = "#segment_"

// Document represents a source document discovered by a provider.
// Content is already normalised; Fingerprint is its content hash.
type Document struct {
	// Path identifies the document within its namespace.
	// Segments of large documents carry a "#segment_N" suffix.
	Path string

	// Content is the normalised text.
	Content string

	// Fingerprint is the hex SHA-256 of Content.
	Fingerprint string

	// Namespace is the logical partition (repository, "local", "openapi").
	Namespace string

	// ModifiedAt is the source modification time when known.
	ModifiedAt *time.Time

	// FileSize is the source size in bytes when known.
	FileSize *int64

	// FileType is the lower-case extension or a provider label ("openapi").
	FileType string

	// Language is the detected language, if any.
	Language string

	// Metadata carries provider specific attributes (author, title, pages).
	Metadata map[string]any
}

// BasePath returns the path without any segment suffix.
func (d *Document) BasePath() string {
	return BasePath(d.Path)
}

// Size returns the file size or zero when unknown.
func (d *Document) Size() int64 {
	if d.FileSize == nil {
		return 0
	}
	return *d.FileSize
}

// BasePath strips everything from the first '#' in a document path.
func BasePath(path string) string {
	if i := strings.IndexByte(path, '#'); i >= 0 {
		return path[:i]
	}
	return path
}

// Chunk is a bounded-length text segment of one document.
type Chunk struct {
	// DocumentPath links the chunk to its Document.
	DocumentPath string

	// Text is the chunk content.
	Text string

	// Tags are ontology tags assigned by the classifier.
	Tags []string

	// Embedding is the dense vector. Nil until the embedding step ran.
	Embedding []float32

	// ChunkIndex is contiguous per document starting at 0.
	ChunkIndex int

	// VectorID is set once the chunk was written to the vector store.
	VectorID string

	// Namespace is copied from the parent document.
	Namespace string

	// SparseIndices and SparseValues form the hashed bag-of-words vector.
	SparseIndices []uint32
	SparseValues  []float32
}
