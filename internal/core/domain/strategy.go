package domain

import "strings"

// RankingWeights combine the four retrieval signals into one score.
type RankingWeights struct {
	Vector    float32
	Keyword   float32
	Graph     float32
	Knowledge float32
}

// DefaultRankingWeights is the fixed fusion used by the orchestrator.
var DefaultRankingWeights = RankingWeights{Vector: 0.6, Keyword: 0.2, Graph: 0.1, Knowledge: 0.1}

// Score returns the weighted sum of the signals.
func (w RankingWeights) Score(vector, keyword, graph, knowledge float32) float32 {
	return vector*w.Vector + keyword*w.Keyword + graph*w.Graph + knowledge*w.Knowledge
}

// Strategy is a retrieval weighting profile selected from query shape.
type Strategy int

// Retrieval strategies.
const (
	StrategyCombined Strategy = iota
	StrategyKeywordHeavy
	StrategySemantic
	StrategyGraph
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyKeywordHeavy:
		return "keyword_heavy"
	case StrategySemantic:
		return "semantic"
	case StrategyGraph:
		return "graph"
	default:
		return "combined"
	}
}

// Weights returns the dense/sparse/graph/ontology weights of the strategy.
func (s Strategy) Weights() RankingWeights {
	switch s {
	case StrategyKeywordHeavy:
		return RankingWeights{Vector: 0.4, Keyword: 0.4, Graph: 0.1, Knowledge: 0.1}
	case StrategySemantic:
		return RankingWeights{Vector: 0.75, Keyword: 0.1, Graph: 0.1, Knowledge: 0.05}
	case StrategyGraph:
		return RankingWeights{Vector: 0.4, Keyword: 0.2, Graph: 0.3, Knowledge: 0.1}
	default:
		return DefaultRankingWeights
	}
}

// SelectStrategy picks a strategy from query token count, keyword count
// and inferred tags.
func SelectStrategy(queryTokens, keywordCount int, tags []string) Strategy {
	switch {
	case keywordCount > 6 && queryTokens <= 12:
		return StrategyKeywordHeavy
	case queryTokens > 18:
		return StrategySemantic
	}
	for _, t := range tags {
		if strings.Contains(t, "graph") {
			return StrategyGraph
		}
	}
	return StrategyCombined
}
