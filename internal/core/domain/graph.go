package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Graph tables.
const (
	FileTable     = "file"
	ChunkTable    = "chunk"
	ContainsTable = "contains"
)

// RelationContains labels file -> chunk edges.
const RelationContains = "contains"

// FileNodeID returns the graph id of a document path.
func FileNodeID(path string) string {
	return FileTable + ":" + hashHex(path)
}

// ChunkNodeID returns the graph id of a chunk.
func ChunkNodeID(path string, index int) string {
	return ChunkTable + ":" + hashHex(path+"#"+strconv.Itoa(index))
}

// EdgeID returns the id of the edge from -> to.
func EdgeID(from, to string) string {
	return hashHex(from + "->" + to)
}

// QuoteSQL returns s as a single-quoted literal with quotes doubled.
func QuoteSQL(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
