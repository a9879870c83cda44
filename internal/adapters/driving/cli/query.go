package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/keyword"
)

var (
	querySession string
	queryNew     bool
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Assemble RAG context for a question",
	Long: `Ranks indexed chunks by vector similarity, keyword overlap, graph
links and ontology tags, and groups the best ones into project, domain and
company context. Results are cached for identical questions.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&querySession, "session", "s", "", "session id whose history expands the query")
	queryCmd.Flags().BoolVar(&queryNew, "new-session", false, "start a new session and print its id")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output context as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.Retrieval == nil {
		return errors.New("retrieval service not configured")
	}

	var (
		rc        *domain.RAGContext
		sessionID string
	)
	if querySession != "" || queryNew {
		rc, sessionID, err = svc.Retrieval.QueryWithSession(cmd.Context(), args[0], querySession)
	} else {
		rc, err = svc.Retrieval.Query(cmd.Context(), args[0], nil)
	}
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(rc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal context: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if sessionID != "" {
		cmd.Printf("Session: %s\n\n", sessionID)
	}
	printBucket(cmd, "Project", rc.ProjectChunks)
	printBucket(cmd, "Domain", rc.DomainChunks)
	printBucket(cmd, "Company", rc.CompanyChunks)
	if len(rc.OntologyTags) > 0 {
		cmd.Printf("Tags: %v\n", rc.OntologyTags)
	}
	if fix, ok := keyword.Suggest(args[0], vocabulary(rc)); ok {
		cmd.Printf("Did you mean: %s\n", fix)
	}
	return nil
}

// vocabulary collects the words of the retrieved chunks, placeholders
// excluded.
func vocabulary(rc *domain.RAGContext) []string {
	seen := make(map[string]bool)
	var words []string
	add := func(chunks ...string) {
		for _, c := range chunks {
			if isPlaceholder(c) {
				continue
			}
			for _, w := range keyword.Words(c) {
				if !seen[w] {
					seen[w] = true
					words = append(words, w)
				}
			}
		}
	}
	add(rc.ProjectChunks...)
	add(rc.DomainChunks...)
	add(rc.CompanyChunks...)
	for _, c := range rc.DebugCandidates {
		add(c.Chunk)
	}
	return words
}

func isPlaceholder(chunk string) bool {
	switch chunk {
	case domain.PlaceholderProjectChunk, domain.PlaceholderDomainChunk, domain.PlaceholderCompanyChunk:
		return true
	}
	return false
}

func printBucket(cmd *cobra.Command, name string, chunks []string) {
	if len(chunks) == 0 {
		return
	}
	cmd.Printf("%s:\n", name)
	for i, c := range chunks {
		cmd.Printf("  [%d] %s\n", i+1, snippet(c, 160))
	}
	cmd.Println()
}

// snippet shortens s to n runes on one line.
func snippet(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\r' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
