// Package ontology tags chunks by matching substring rules.
package ontology

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
)

// Classifier assigns tags to text from an ordered rule list.
type Classifier struct {
	rules []domain.OntologyRule
}

// NewClassifier creates a classifier. Patterns are matched lower-case.
func NewClassifier(rules []domain.OntologyRule) *Classifier {
	normalised := make([]domain.OntologyRule, len(rules))
	for i, r := range rules {
		normalised[i] = domain.OntologyRule{Pattern: strings.ToLower(r.Pattern), Tag: r.Tag}
	}
	return &Classifier{rules: normalised}
}

// Rules returns a copy of the classifier rules.
func (c *Classifier) Rules() []domain.OntologyRule {
	out := make([]domain.OntologyRule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns the tag of every matching rule in rule order, duplicates
// included. Text matching no rule is tagged "misc".
func (c *Classifier) Classify(text string) []string {
	lower := strings.ToLower(text)
	var tags []string
	for _, r := range c.rules {
		if r.Pattern != "" && strings.Contains(lower, r.Pattern) {
			tags = append(tags, r.Tag)
		}
	}
	if len(tags) == 0 {
		return []string{domain.TagMisc}
	}
	return tags
}

// LoadRules reads the rules from store and falls back to
// domain.DefaultOntologyRules when none are stored.
func LoadRules(ctx context.Context, store driven.OntologyRuleStore) ([]domain.OntologyRule, error) {
	if store == nil {
		return domain.DefaultOntologyRules(), nil
	}
	rules, err := store.LoadOntologyRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ontology rules: %w", err)
	}
	if len(rules) == 0 {
		return domain.DefaultOntologyRules(), nil
	}
	return rules, nil
}
