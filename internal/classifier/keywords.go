package classifier

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// KeywordRule maps a lower-case keyword to a canonical category label.
type KeywordRule struct {
	Keyword  string
	Category string
}

type keywordFile struct {
	Categories []struct {
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"categories"`
}

// ParseKeywords reads an ordered keyword table from YAML.
func ParseKeywords(data []byte) ([]KeywordRule, error) {
	var file keywordFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse keyword rules: %w", err)
	}

	var rules []KeywordRule
	for i, c := range file.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("parse keyword rules: category %d has no name", i)
		}
		for _, kw := range c.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			rules = append(rules, KeywordRule{Keyword: kw, Category: name})
		}
	}
	return rules, nil
}

// LoadKeywords reads a keyword table from a YAML file.
func LoadKeywords(path string) ([]KeywordRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword rules: %w", err)
	}
	return ParseKeywords(data)
}

// DefaultKeywords is the built-in keyword table.
func DefaultKeywords() []KeywordRule {
	rules, err := ParseKeywords(defaultKeywordsYAML)
	if err != nil {
		panic(err)
	}
	return rules
}

// matchKeywords returns the first rule whose keyword occurs in the
// transaction text, resolved against the existing category names.
func matchKeywords(rules []KeywordRule, t domain.Transaction, existing []string) *Result {
	text := strings.ToLower(joinNonEmpty(t.Description, t.Counterparty, t.Reference))
	if text == "" {
		return nil
	}
	for _, rule := range rules {
		if strings.Contains(text, rule.Keyword) {
			return &Result{Category: ResolveCategoryName(rule.Category, existing), Confidence: KeywordConfidence}
		}
	}
	return nil
}

// ResolveCategoryName maps a canonical label onto an existing category
// name: an exact case-insensitive match first, then a name containing the
// label or contained in it. Without a match the label is returned as is.
func ResolveCategoryName(label string, existing []string) string {
	folded := domain.FoldName(label)
	for _, name := range existing {
		if domain.FoldName(name) == folded {
			return name
		}
	}
	for _, name := range existing {
		n := domain.FoldName(name)
		if n == "" {
			continue
		}
		if strings.Contains(n, folded) || strings.Contains(folded, n) {
			return name
		}
	}
	return label
}
