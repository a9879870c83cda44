package domain

// Placeholder chunks returned when retrieval yields nothing, so consumers
// never see a fully empty context.
const (
	PlaceholderProjectChunk = "test_project_chunk"
	PlaceholderDomainChunk  = "test_domain_chunk"
	PlaceholderCompanyChunk = "test_company_chunk"
)

// Ontology bucket tags.
const (
	TagProject = "project"
	TagDomain  = "domain"
	TagCompany = "company"
	TagMisc    = "misc"
)

// DebugCandidate is a scored retrieval candidate with per-signal scores.
type DebugCandidate struct {
	Chunk          string   `json:"chunk"`
	VectorScore    float32  `json:"vector_score"`
	KeywordScore   float32  `json:"keyword_score"`
	GraphScore     float32  `json:"graph_score"`
	OntologyScore  float32  `json:"ontology_score"`
	FinalScore     float32  `json:"final_score"`
	Tags           []string `json:"tags"`
	NeighborsCount int      `json:"neighbors_count"`
}

// RAGContext is the bucketed result of a retrieval query.
type RAGContext struct {
	ProjectChunks   []string         `json:"project_chunks"`
	DomainChunks    []string         `json:"domain_chunks"`
	CompanyChunks   []string         `json:"company_chunks"`
	GraphNeighbors  []string         `json:"graph_neighbors"`
	OntologyTags    []string         `json:"ontology_tags"`
	DebugCandidates []DebugCandidate `json:"debug_candidates"`
}

// IsEmpty reports whether all three chunk buckets are empty.
func (c *RAGContext) IsEmpty() bool {
	return len(c.ProjectChunks) == 0 && len(c.DomainChunks) == 0 && len(c.CompanyChunks) == 0
}

// OntologyRule maps a lower-case substring pattern to a tag.
type OntologyRule struct {
	Pattern string
	Tag     string
}

// DefaultOntologyRules are used when the metadata store holds no rules.
func DefaultOntologyRules() []OntologyRule {
	return []OntologyRule{
		{Pattern: TagProject, Tag: TagProject},
		{Pattern: TagDomain, Tag: TagDomain},
		{Pattern: TagCompany, Tag: TagCompany},
	}
}
