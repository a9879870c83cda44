package services

import (
	"context"
	"crypto/sha1" //nolint:gosec // cache key only
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/core/ports/driving"
	"github.com/custodia-labs/mnemo/internal/keyword"
	"github.com/custodia-labs/mnemo/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// Retrieval defaults.
const (
	DefaultTopK       = 5
	DefaultGraphDepth = 2
	DefaultResultTTL  = 10 * time.Minute
	DefaultChunkTTL   = time.Hour

	// MaxBucketCandidates is how many top candidates are bucketed.
	MaxBucketCandidates = 10

	// MaxPreviousQueries bounds the session queries used for expansion.
	MaxPreviousQueries = 5

	neighborsPerDepth  = 50
	maxFileEdges       = 100
	graphSaturation    = 5
	fallbackQueryValue = 0.1
	placeholderScore   = 0.1
)

// Keyword score adjustments.
const (
	codePenalty      = 0.9
	headingBoost     = 1.10
	openAPIBoost     = 1.15
	projectKnowledge = 1.0
	domainKnowledge  = 0.8
	companyKnowledge = 0.6
)

var codeExtensions = map[string]bool{
	"rs": true, "ts": true, "tsx": true, "js": true, "py": true,
	"go": true, "java": true, "rb": true, "cpp": true, "c": true,
}

// RetrievalConfig tunes the orchestrator. Zero values take the defaults.
type RetrievalConfig struct {
	// Namespace filters vector search. Empty means "default".
	Namespace string

	TopK       int
	GraphDepth int
	ResultTTL  time.Duration
	ChunkTTL   time.Duration

	// Model embeds the query.
	Model string

	// Dimensions sizes the fallback query vector.
	Dimensions int

	// StrategySelection replaces the fixed fusion weights with those of
	// the strategy picked from the query shape.
	StrategySelection bool
}

func (c RetrievalConfig) withDefaults() RetrievalConfig {
	if c.Namespace == "" {
		c.Namespace = "default"
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.GraphDepth <= 0 {
		c.GraphDepth = DefaultGraphDepth
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = DefaultResultTTL
	}
	if c.ChunkTTL <= 0 {
		c.ChunkTTL = DefaultChunkTTL
	}
	return c
}

// RetrievalService fuses vector, keyword, graph and ontology signals into a
// ranked RAG context.
type RetrievalService struct {
	vectors  driven.VectorStore
	graph    driven.GraphStore
	cache    driven.CacheStore
	embedder driven.Embedder
	sessions driven.SessionStore
	cfg      RetrievalConfig
}

// NewRetrievalService creates a retrieval service. graph, cache, embedder
// and sessions may be nil: the matching signal or feature is then skipped.
func NewRetrievalService(
	vectors driven.VectorStore,
	graph driven.GraphStore,
	cache driven.CacheStore,
	embedder driven.Embedder,
	sessions driven.SessionStore,
	cfg RetrievalConfig,
) *RetrievalService {
	cfg = cfg.withDefaults()
	if cfg.Dimensions <= 0 && embedder != nil {
		cfg.Dimensions = embedder.Dimensions()
	}
	return &RetrievalService{
		vectors:  vectors,
		graph:    graph,
		cache:    cache,
		embedder: embedder,
		sessions: sessions,
		cfg:      cfg,
	}
}

// CacheKey returns the result cache key of a raw query.
func CacheKey(query string) string {
	sum := sha1.Sum([]byte(query)) //nolint:gosec // cache key only
	return "rag:" + hex.EncodeToString(sum[:])
}

// ChunkCacheKey returns the cache key of a resolved vector hit.
func ChunkCacheKey(id string) string {
	return "chunk:" + id
}

// Query returns the bucketed context for text, served from the result
// cache when possible.
func (s *RetrievalService) Query(
	ctx context.Context, text string, session *domain.RagSession,
) (*domain.RAGContext, error) {
	logger.Section("Retrieval")
	key := CacheKey(text)
	if cached, ok := s.cachedContext(ctx, key); ok {
		log.Debug("result cache hit for %s", key)
		return cached, nil
	}

	g := s.gather(ctx, text, session)
	rc := assemble(g)

	if s.cache != nil {
		if data, err := json.Marshal(rc); err != nil {
			log.Warn("encode rag context: %v", err)
		} else if err := s.cache.Set(ctx, key, data, s.cfg.ResultTTL); err != nil {
			log.Warn("cache rag context: %v", err)
		}
	}
	return rc, nil
}

// GatherCandidates returns every scored candidate, best first.
func (s *RetrievalService) GatherCandidates(
	ctx context.Context, text string, session *domain.RagSession,
) ([]domain.DebugCandidate, error) {
	return s.gather(ctx, text, session).candidates, nil
}

// QueryWithSession runs Query with the history of sessionID and records the
// exchange. An empty id starts a new session; an unknown id is created.
func (s *RetrievalService) QueryWithSession(
	ctx context.Context, text, sessionID string,
) (*domain.RAGContext, string, error) {
	if s.sessions == nil {
		return nil, "", errors.New("session store not configured")
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}

	rc, err := s.Query(ctx, text, session)
	if err != nil {
		return nil, session.ID, err
	}

	response := ""
	if len(rc.ProjectChunks) > 0 {
		response = rc.ProjectChunks[0]
	}
	session.Append(text, response)
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return rc, session.ID, fmt.Errorf("save session: %w", err)
	}
	return rc, session.ID, nil
}

func (s *RetrievalService) loadSession(ctx context.Context, id string) (*domain.RagSession, error) {
	if id == "" {
		return domain.NewRagSession(uuid.NewString()), nil
	}
	session, err := s.sessions.GetSession(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewRagSession(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

func (s *RetrievalService) cachedContext(ctx context.Context, key string) (*domain.RAGContext, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn("read result cache: %v", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var rc domain.RAGContext
	if err := json.Unmarshal(data, &rc); err != nil {
		log.Warn("decode cached rag context: %v", err)
		return nil, false
	}
	return &rc, true
}

// gathered is the outcome of candidate gathering.
type gathered struct {
	candidates []domain.DebugCandidate
	neighbors  []string
	tags       []string
}

// ChunkHit is a vector match resolved to its chunk.
type ChunkHit struct {
	Text      string   `json:"text"`
	Path      string   `json:"path"`
	Namespace string   `json:"namespace"`
	Tags      []string `json:"tags"`
}

func (s *RetrievalService) gather(ctx context.Context, text string, session *domain.RagSession) gathered {
	normalized := keyword.NormalizeQuery(text)
	tags := InferTags(normalized)
	previous := session.RecentQueries(MaxPreviousQueries)
	neighbors := s.graphNeighbors(ctx)
	extended := ExpandQuery(normalized, previous, tags, neighbors)

	weights := domain.DefaultRankingWeights
	if s.cfg.StrategySelection {
		strategy := domain.SelectStrategy(len(strings.Fields(normalized)), len(keyword.Keywords(normalized)), tags)
		log.Debug("strategy %s selected", strategy)
		weights = strategy.Weights()
	}

	indices, values := keyword.SparseVector(extended)
	matches := s.search(ctx, driven.VectorQuery{
		Dense:         s.queryVector(ctx, normalized),
		SparseIndices: indices,
		SparseValues:  values,
		TopK:          s.cfg.TopK,
		Namespace:     s.cfg.Namespace,
	})

	edges := make(map[string]int)
	candidates := make([]domain.DebugCandidate, 0, len(matches))
	for _, m := range matches {
		h := s.resolve(ctx, m)
		edgeCount, ok := edges[h.Path]
		if !ok {
			edgeCount = s.fileEdges(ctx, h.Path)
			edges[h.Path] = edgeCount
		}

		c := domain.DebugCandidate{
			Chunk:          h.Text,
			VectorScore:    m.Score,
			KeywordScore:   KeywordSignal(extended, h),
			GraphScore:     min(float32(edgeCount)/graphSaturation, 1),
			OntologyScore:  KnowledgeSignal(h.Tags),
			Tags:           h.Tags,
			NeighborsCount: edgeCount,
		}
		c.FinalScore = weights.Score(c.VectorScore, c.KeywordScore, c.GraphScore, c.OntologyScore)
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		candidates = append(candidates, domain.DebugCandidate{
			Chunk:      domain.PlaceholderProjectChunk,
			FinalScore: placeholderScore,
			Tags:       []string{domain.TagProject},
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FinalScore > candidates[j].FinalScore
	})

	log.Debug("gathered %d candidates for %q", len(candidates), normalized)
	return gathered{candidates: candidates, neighbors: neighbors, tags: tags}
}

// assemble buckets the best candidates by ontology tag.
func assemble(g gathered) *domain.RAGContext {
	rc := &domain.RAGContext{
		GraphNeighbors:  g.neighbors,
		OntologyTags:    g.tags,
		DebugCandidates: g.candidates,
	}
	top := g.candidates
	if len(top) > MaxBucketCandidates {
		top = top[:MaxBucketCandidates]
	}
	for _, c := range top {
		switch Bucket(c.Tags) {
		case domain.TagDomain:
			rc.DomainChunks = append(rc.DomainChunks, c.Chunk)
		case domain.TagCompany:
			rc.CompanyChunks = append(rc.CompanyChunks, c.Chunk)
		default:
			rc.ProjectChunks = append(rc.ProjectChunks, c.Chunk)
		}
	}
	if rc.IsEmpty() {
		rc.ProjectChunks = []string{domain.PlaceholderProjectChunk}
		rc.DomainChunks = []string{domain.PlaceholderDomainChunk}
		rc.CompanyChunks = []string{domain.PlaceholderCompanyChunk}
	}
	return rc
}

func (s *RetrievalService) queryVector(ctx context.Context, normalized string) []float32 {
	if s.embedder != nil && normalized != "" {
		vectors, err := s.embedder.Embed(ctx, s.cfg.Model, []string{normalized})
		if err == nil && len(vectors) == 1 && len(vectors[0]) > 0 {
			return vectors[0]
		}
		log.Warn("embed query, using fallback vector: %v", err)
	}
	v := make([]float32, max(s.cfg.Dimensions, 1))
	for i := range v {
		v[i] = fallbackQueryValue
	}
	return v
}

func (s *RetrievalService) search(ctx context.Context, q driven.VectorQuery) []driven.VectorMatch {
	if s.vectors == nil {
		return nil
	}
	matches, err := s.vectors.Search(ctx, q)
	if err != nil {
		log.Warn("vector search failed: %v", err)
		return nil
	}
	return matches
}

// resolve reads the chunk of a match from the chunk cache, falling back to
// the match payload and populating the cache.
func (s *RetrievalService) resolve(ctx context.Context, m driven.VectorMatch) ChunkHit {
	key := ChunkCacheKey(m.ID)
	if s.cache != nil {
		data, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			log.Warn("read chunk cache: %v", err)
		}
		if ok {
			var h ChunkHit
			if err := json.Unmarshal(data, &h); err == nil {
				return h
			}
		}
	}

	h := HitFromPayload(m.Payload)
	if s.cache != nil {
		if data, err := json.Marshal(h); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cfg.ChunkTTL); err != nil {
				log.Warn("cache chunk %s: %v", m.ID, err)
			}
		}
	}
	return h
}

// graphNeighbors returns the distinct node ids of the first containment
// edges, bounded by the configured depth.
func (s *RetrievalService) graphNeighbors(ctx context.Context) []string {
	if s.graph == nil {
		return nil
	}
	sql := fmt.Sprintf("SELECT DISTINCT in, out FROM %s LIMIT %d",
		domain.ContainsTable, neighborsPerDepth*s.cfg.GraphDepth)
	rows, err := s.graph.Query(ctx, sql)
	if err != nil {
		log.Warn("graph neighbors: %v", err)
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		for _, col := range []string{"in", "out"} {
			if row[col] == nil {
				continue
			}
			id := fmt.Sprint(row[col])
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// fileEdges counts containment edges touching the file node of path.
func (s *RetrievalService) fileEdges(ctx context.Context, path string) int {
	if s.graph == nil || path == "" {
		return 0
	}
	fid := domain.QuoteSQL(domain.FileNodeID(domain.BasePath(path)))
	sql := fmt.Sprintf("SELECT * FROM %s WHERE in = %s OR out = %s LIMIT %d",
		domain.ContainsTable, fid, fid, maxFileEdges)
	rows, err := s.graph.Query(ctx, sql)
	if err != nil {
		log.Warn("graph edges for %s: %v", path, err)
		return 0
	}
	return len(rows)
}

// InferTags maps query substrings to ontology buckets. The result is
// sorted and never empty.
func InferTags(normalized string) []string {
	var tags []string
	if strings.Contains(normalized, "project") || strings.Contains(normalized, "repo") {
		tags = append(tags, domain.TagProject)
	}
	if strings.Contains(normalized, "domain") {
		tags = append(tags, domain.TagDomain)
	}
	if strings.Contains(normalized, "company") || strings.Contains(normalized, "org") {
		tags = append(tags, domain.TagCompany)
	}
	if len(tags) == 0 {
		return []string{domain.TagProject}
	}
	sort.Strings(tags)
	return tags
}

// ExpandQuery joins the non-empty query parts with spaces.
func ExpandQuery(normalized string, previous, tags, neighbors []string) string {
	parts := make([]string, 0, 4)
	if normalized != "" {
		parts = append(parts, normalized)
	}
	for _, group := range [][]string{previous, tags, neighbors} {
		if len(group) > 0 {
			parts = append(parts, strings.Join(group, " "))
		}
	}
	return strings.Join(parts, " ")
}

// KeywordSignal scores h against the extended query, adjusted for code,
// headings and API documentation. The adjusted score may exceed 1.
func KeywordSignal(extended string, h ChunkHit) float32 {
	if extended == "" {
		return 0
	}
	score := keyword.Score(extended, h.Text)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(domain.BasePath(h.Path))), ".")
	if codeExtensions[ext] {
		score *= codePenalty
	}
	if strings.HasPrefix(strings.TrimSpace(h.Text), "#") {
		score *= headingBoost
	}
	if strings.HasPrefix(h.Namespace, "openapi") {
		score *= openAPIBoost
	}
	return score
}

// KnowledgeSignal scores the strongest ontology bucket present in tags.
func KnowledgeSignal(tags []string) float32 {
	switch {
	case anyContains(tags, domain.TagProject):
		return projectKnowledge
	case anyContains(tags, domain.TagDomain):
		return domainKnowledge
	case anyContains(tags, domain.TagCompany):
		return companyKnowledge
	}
	return 0
}

// Bucket returns the first of project, domain and company found in tags,
// defaulting to project.
func Bucket(tags []string) string {
	for _, b := range []string{domain.TagProject, domain.TagDomain, domain.TagCompany} {
		if anyContains(tags, b) {
			return b
		}
	}
	return domain.TagProject
}

func anyContains(tags []string, sub string) bool {
	for _, t := range tags {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}

// HitFromPayload reads a chunk from a vector payload. Older points use
// chunk_text and document or document_path, and may store tags as a comma
// separated string.
func HitFromPayload(p map[string]any) ChunkHit {
	h := ChunkHit{
		Text:      firstString(p, "text", "chunk_text"),
		Path:      firstString(p, "path", "document", "document_path"),
		Namespace: firstString(p, "namespace"),
	}
	switch tags := p["tags"].(type) {
	case []string:
		h.Tags = append(h.Tags, tags...)
	case []any:
		for _, t := range tags {
			if s, ok := t.(string); ok {
				h.Tags = append(h.Tags, s)
			}
		}
	case string:
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				h.Tags = append(h.Tags, t)
			}
		}
	}
	return h
}

func firstString(p map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := p[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
