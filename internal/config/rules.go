package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
	"github.com/kirillkom/knowledge-retrieval-service/internal/core/usecase"
)

// strategyRulesFile is the on-disk shape of the scheduler rule table.
// Rules are applied in file order; the first match wins.
type strategyRulesFile struct {
	Rules []strategyRuleEntry `yaml:"rules"`
}

type strategyRuleEntry struct {
	QueryType  string                `yaml:"query_type"`
	Complexity string                `yaml:"complexity"`
	Strategy   string                `yaml:"strategy"`
	Name       string                `yaml:"name"`
	Params     domain.StrategyParams `yaml:"params"`
}

// LoadStrategyRules reads the scheduler rule table from a YAML file. An
// empty path selects the compiled-in defaults.
func LoadStrategyRules(path string) ([]usecase.StrategyRule, error) {
	if path == "" {
		return usecase.DefaultStrategyRules(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy rules %s: %w", path, err)
	}

	var file strategyRulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse strategy rules %s: %w", path, err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("strategy rules %s: no rules defined", path)
	}

	rules := make([]usecase.StrategyRule, 0, len(file.Rules))
	for i, entry := range file.Rules {
		service := domain.ServiceType(entry.Strategy)
		if !domain.KnownServiceType(service) {
			return nil, fmt.Errorf("strategy rules %s: rule %d: unknown strategy %q", path, i, entry.Strategy)
		}
		name := entry.Name
		if name == "" {
			name = string(service) + "_search"
		}
		rules = append(rules, usecase.StrategyRule{
			QueryType:  domain.QueryType(entry.QueryType),
			Complexity: domain.Complexity(entry.Complexity),
			Strategy: domain.RetrievalStrategy{
				ServiceType: service,
				Name:        name,
				Params:      entry.Params,
			},
		})
	}
	return rules, nil
}
