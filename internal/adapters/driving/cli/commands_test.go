package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mnemo/internal/adapters/driving/mcp"
	"github.com/custodia-labs/mnemo/internal/core/domain"
)

func TestRootCmd_HasPersistentFlags(t *testing.T) {
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.Equal(t, "v", rootCmd.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestCommands_WithoutServices(t *testing.T) {
	SetServices(nil)
	SetBootstrap(nil)

	_, err := execute("query", "anything")

	assert.ErrorContains(t, err, "services not configured")
}

func TestCommands_BootstrapRunsOnceAndReleases(t *testing.T) {
	SetServices(nil)
	defer SetServices(nil)
	defer SetBootstrap(nil)

	var calls, released int
	var gotPath string
	SetBootstrap(func(_ context.Context, path string) (*Services, func() error, error) {
		calls++
		gotPath = path
		return &Services{Metrics: &mockRecorder{}}, func() error { released++; return nil }, nil
	})

	_, err := execute("metrics", "--config", "/tmp/mnemo.toml")
	require.NoError(t, err)
	_, err = execute("metrics")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, released)
	assert.Equal(t, "/tmp/mnemo.toml", gotPath)
	configPath = ""
}

func TestCommands_BootstrapError(t *testing.T) {
	SetServices(nil)
	defer SetBootstrap(nil)
	SetBootstrap(func(context.Context, string) (*Services, func() error, error) {
		return nil, nil, errors.New("qdrant unreachable")
	})

	_, err := execute("candidates", "q")

	assert.ErrorContains(t, err, "qdrant unreachable")
}

func TestIngestCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("ingest")

	require.NoError(t, err)
	assert.Contains(t, out, "Job job-1: 2 documents, 5 chunks, 5 vectors, 7 graph nodes")
	assert.Equal(t, []string{"local"}, ts.ingestion.runs())
}

func TestIngestCmd_NamespaceAndJSON(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("ingest", "--namespace", "docs", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"status": "success"`)
	assert.Contains(t, out, `"chunks_produced": 5`)
	assert.Equal(t, []string{"docs"}, ts.ingestion.runs())
}

func TestIngestCmd_Failure(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.job = domain.JobResult{ID: "job-2", Status: domain.JobFailed, Err: domain.ErrNoVectorWrites}

	out, err := execute("ingest")

	assert.ErrorIs(t, err, domain.ErrNoVectorWrites)
	assert.Contains(t, out, "job-2 failed")
}

func TestIngestCmd_WatchUnavailable(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("ingest", "--watch")

	assert.ErrorContains(t, err, "watching is not available")
}

func TestWatchLoop_DebouncesBursts(t *testing.T) {
	ingestJSON = false
	ingestion := &mockIngestion{job: domain.JobResult{ID: "j", Status: domain.JobSuccess}}
	changes := make(chan string, 3)
	changes <- "a.md"
	changes <- "b.md"
	changes <- "c.md"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- watchLoop(ctx, &cobra.Command{}, ingestion, "local", changes)
	}()

	require.Eventually(t, func() bool { return len(ingestion.runs()) == 1 }, 3*time.Second, 10*time.Millisecond)
	close(changes)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"local"}, ingestion.runs())
}

func TestQueryCmd(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("query", "project layout")

	require.NoError(t, err)
	assert.Contains(t, out, "Project:")
	assert.Contains(t, out, "[1] project chunk")
	assert.Contains(t, out, "Domain:")
	assert.NotContains(t, out, "Company:")
	assert.NotContains(t, out, "Session:")
}

func TestQueryCmd_DidYouMean(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.retrieval.rc = &domain.RAGContext{
		ProjectChunks: []string{"The ingestion pipeline runs in stages."},
		DebugCandidates: []domain.DebugCandidate{
			{Chunk: domain.PlaceholderProjectChunk},
		},
	}

	out, err := execute("query", "pipline stages")
	require.NoError(t, err)
	assert.Contains(t, out, "Did you mean: pipeline stages")

	out, err = execute("query", "pipeline stages")
	require.NoError(t, err)
	assert.NotContains(t, out, "Did you mean")

	ts.retrieval.rc = &domain.RAGContext{ProjectChunks: []string{domain.PlaceholderProjectChunk}}
	out, err = execute("query", "test_projct_chunk")
	require.NoError(t, err)
	assert.NotContains(t, out, "Did you mean")
}

func TestQueryCmd_Session(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("query", "--new-session", "q")
	require.NoError(t, err)
	assert.Contains(t, out, "Session: new-session")
	assert.Empty(t, ts.retrieval.sessionArg)

	out, err = execute("query", "--session", "s-9", "q")
	require.NoError(t, err)
	assert.Contains(t, out, "Session: s-9")
	assert.Equal(t, "s-9", ts.retrieval.sessionArg)
}

func TestQueryCmd_JSON(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("query", "--json", "q")

	require.NoError(t, err)
	assert.Contains(t, out, `"project_chunks"`)
	assert.Contains(t, out, `"project chunk"`)
}

func TestQueryCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute("query")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestCandidatesCmd(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("candidates", "--limit", "2", "q")

	require.NoError(t, err)
	assert.Contains(t, out, "final")
	assert.Contains(t, out, "best")
	assert.Contains(t, out, "middle")
	assert.NotContains(t, out, "worst")
}

func TestScoreColor(t *testing.T) {
	assert.Same(t, highScore, scoreColor(0.5))
	assert.Same(t, midScore, scoreColor(0.2))
	assert.Same(t, lowScore, scoreColor(0.19))
}

func TestSessionShowCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	s := domain.NewRagSession("s-1")
	s.Append("how is the repo laid out", "see cmd/ and internal/")
	ts.store.sessions["s-1"] = s

	out, err := execute("session", "show", "s-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Session s-1 (1 of 10 entries)")
	assert.Contains(t, out, "Q: how is the repo laid out")

	_, err = execute("session", "show", "missing")
	assert.ErrorContains(t, err, "not found")
}

func TestRulesCmds(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Defaults apply")

	out, err = execute("rules", "add", "infra", "terraform", "helm")
	require.NoError(t, err)
	assert.Contains(t, out, "Added 2 pattern(s) for tag infra.")

	out, err = execute("rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "terraform")
	assert.NotContains(t, out, "Defaults apply")
}

func TestMetricsCmd(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("metrics")

	require.NoError(t, err)
	assert.Contains(t, out, `"vector_writes": 11`)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b", snippet("a\nb", 10))
	assert.Equal(t, "abc...", snippet("abcdef", 3))
}

func TestMCPServeCmd_RequiresRetrieval(t *testing.T) {
	SetServices(&Services{Namespace: "local"})
	defer SetServices(nil)

	_, err := execute("mcp", "serve")

	assert.ErrorIs(t, err, mcp.ErrMissingRetrievalService)
}

func TestMCPServeCmd_Alias(t *testing.T) {
	assert.Contains(t, mcpServeCmd.Aliases, "serve-mcp")
	require.NotNil(t, mcpServeCmd.Flags().Lookup("port"))
}
