package driven

import "context"

// GraphStore executes SQL-like statements over the file/chunk graph.
// Nodes live in the "file" and "chunk" tables; containment edges in
// "contains" with "in"/"out" references.
type GraphStore interface {
	// Execute runs one or more statements separated by semicolons.
	Execute(ctx context.Context, statements string) error

	// Query runs a SELECT and returns the result rows.
	Query(ctx context.Context, sql string) ([]map[string]any, error)
}
