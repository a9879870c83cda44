package memory

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
)

// Ensure GraphStore implements the interface.
var _ driven.GraphStore = (*GraphStore)(nil)

var (
	insertRe = regexp.MustCompile(`(?is)^INSERT\s+INTO\s+(\w+)\s*\(([^)]*)\)\s*VALUES\s*\((.*)\)$`)
	deleteRe = regexp.MustCompile(`(?is)^DELETE\s+FROM\s+(\w+)\s+WHERE\s+(.+)$`)
	selectRe = regexp.MustCompile(`(?is)^SELECT\s+(DISTINCT\s+)?(.+?)\s+FROM\s+(\w+)(?:\s+WHERE\s+(.+?))?(?:\s+LIMIT\s+(\d+))?$`)
	condRe   = regexp.MustCompile(`(?is)^(\w+)\s*=\s*'((?:[^']|'')*)'$`)
	orRe     = regexp.MustCompile(`(?i)\s+OR\s+`)
)

// GraphStore is an in-memory implementation of driven.GraphStore. It
// understands the INSERT, DELETE ... WHERE col = '..' [OR ...] and
// SELECT [DISTINCT] cols FROM t [WHERE ...] [LIMIT n] forms written and
// read by ingestion and retrieval.
type GraphStore struct {
	mu     sync.RWMutex
	tables map[string][]map[string]any
}

// NewGraphStore creates a new in-memory graph store.
func NewGraphStore() *GraphStore {
	return &GraphStore{tables: make(map[string][]map[string]any)}
}

// Execute runs every statement in order. The first malformed statement
// aborts the batch; statements before it stay applied.
func (s *GraphStore) Execute(_ context.Context, statements string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stmt := range splitStatements(statements) {
		if err := s.exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Query runs a single SELECT.
func (s *GraphStore) Query(_ context.Context, sql string) ([]map[string]any, error) {
	stmts := splitStatements(sql)
	if len(stmts) != 1 {
		return nil, fmt.Errorf("expected one statement, got %d: %w", len(stmts), domain.ErrInvalidInput)
	}
	m := selectRe.FindStringSubmatch(stmts[0])
	if m == nil {
		return nil, fmt.Errorf("unsupported query %q: %w", stmts[0], domain.ErrInvalidInput)
	}
	conds, err := parseConditions(m[4])
	if err != nil {
		return nil, err
	}
	limit := -1
	if m[5] != "" {
		limit, _ = strconv.Atoi(m[5])
	}
	cols := splitList(m[2])

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []map[string]any
	for _, row := range s.tables[strings.ToLower(m[3])] {
		if limit >= 0 && len(out) >= limit {
			break
		}
		if !matches(row, conds) {
			continue
		}
		projected := project(row, cols)
		if m[1] != "" {
			key := fmt.Sprint(projected)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, projected)
	}
	return out, nil
}

// Count returns the number of rows in table.
func (s *GraphStore) Count(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

func (s *GraphStore) exec(stmt string) error {
	if m := insertRe.FindStringSubmatch(stmt); m != nil {
		cols := splitList(m[2])
		vals := splitList(m[3])
		if len(cols) != len(vals) {
			return fmt.Errorf("insert into %s: %d columns, %d values: %w", m[1], len(cols), len(vals), domain.ErrInvalidInput)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = literal(vals[i])
		}
		table := strings.ToLower(m[1])
		s.tables[table] = append(s.tables[table], row)
		return nil
	}
	if m := deleteRe.FindStringSubmatch(stmt); m != nil {
		conds, err := parseConditions(m[2])
		if err != nil {
			return err
		}
		table := strings.ToLower(m[1])
		kept := s.tables[table][:0]
		for _, row := range s.tables[table] {
			if !matches(row, conds) {
				kept = append(kept, row)
			}
		}
		s.tables[table] = kept
		return nil
	}
	return fmt.Errorf("unsupported statement %q: %w", stmt, domain.ErrInvalidInput)
}

type condition struct {
	col, value string
}

// parseConditions parses "a = 'x' OR b = 'y'". An empty clause matches all.
func parseConditions(clause string) ([]condition, error) {
	clause = strings.TrimSpace(clause)
	if clause == "" {
		return nil, nil
	}
	var conds []condition
	for _, part := range orRe.Split(clause, -1) {
		m := condRe.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return nil, fmt.Errorf("unsupported condition %q: %w", part, domain.ErrInvalidInput)
		}
		conds = append(conds, condition{col: m[1], value: strings.ReplaceAll(m[2], "''", "'")})
	}
	return conds, nil
}

func matches(row map[string]any, conds []condition) bool {
	if len(conds) == 0 {
		return true
	}
	for _, c := range conds {
		if v, ok := row[c.col].(string); ok && v == c.value {
			return true
		}
	}
	return false
}

func project(row map[string]any, cols []string) map[string]any {
	out := make(map[string]any, len(cols))
	if len(cols) == 1 && cols[0] == "*" {
		for k, v := range row {
			out[k] = v
		}
		return out
	}
	for _, c := range cols {
		out[c] = row[c]
	}
	return out
}

func literal(v string) any {
	if strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'") && len(v) >= 2 {
		return strings.ReplaceAll(v[1:len(v)-1], "''", "'")
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

// splitStatements splits on semicolons outside single quotes.
func splitStatements(sql string) []string {
	return splitOutsideQuotes(sql, ';')
}

func splitList(s string) []string {
	return splitOutsideQuotes(s, ',')
}

func splitOutsideQuotes(s string, sep rune) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if part := strings.TrimSpace(cur.String()); part != "" {
			out = append(out, part)
		}
		cur.Reset()
	}
	for _, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
			cur.WriteRune(r)
		case r == sep && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
