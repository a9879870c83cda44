package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankingWeights_Score(t *testing.T) {
	w := DefaultRankingWeights
	var v, k, g, o float32 = 0.5, 0.25, 1, 0.8

	got := w.Score(v, k, g, o)

	want := v*0.6 + k*0.2 + g*0.1 + o*0.1
	assert.Equal(t, want, got)
}

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		name     string
		tokens   int
		keywords int
		tags     []string
		want     Strategy
	}{
		{"keyword heavy short query", 10, 7, nil, StrategyKeywordHeavy},
		{"many keywords long query", 13, 7, nil, StrategyCombined},
		{"long query is semantic", 19, 3, nil, StrategySemantic},
		{"graph tag", 5, 2, []string{"project", "graph-nav"}, StrategyGraph},
		{"default combined", 5, 2, []string{"project"}, StrategyCombined},
		{"keyword heavy wins over graph", 12, 8, []string{"graph"}, StrategyKeywordHeavy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectStrategy(tt.tokens, tt.keywords, tt.tags))
		})
	}
}

func TestStrategy_Weights(t *testing.T) {
	assert.Equal(t, RankingWeights{0.4, 0.4, 0.1, 0.1}, StrategyKeywordHeavy.Weights())
	assert.Equal(t, RankingWeights{0.75, 0.1, 0.1, 0.05}, StrategySemantic.Weights())
	assert.Equal(t, RankingWeights{0.4, 0.2, 0.3, 0.1}, StrategyGraph.Weights())
	assert.Equal(t, DefaultRankingWeights, StrategyCombined.Weights())
}

func TestStrategy_String(t *testing.T) {
	assert.Equal(t, "keyword_heavy", StrategyKeywordHeavy.String())
	assert.Equal(t, "semantic", StrategySemantic.String())
	assert.Equal(t, "graph", StrategyGraph.String())
	assert.Equal(t, "combined", StrategyCombined.String())
}
