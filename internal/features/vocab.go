package features

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the fixed skill vocabulary: canonical skill names with alias
// patterns, in file order. File order is the ranking used for top skills, so
// it must be preserved (a plain map would shuffle it).
type Vocabulary struct {
	skills []skillPattern
}

type skillPattern struct {
	canonical string
	rx        *regexp.Regexp
}

// LoadVocabulary reads a skills file of the form:
//
//	skills:
//	  sql: ["sql", "postgresql"]
//	  power bi: ["power bi", "powerbi"]
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skills vocabulary: %w", err)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary parses vocabulary YAML, preserving document order.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse skills vocabulary: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("skills vocabulary is empty")
	}

	root := doc.Content[0]
	skillsNode := mappingValue(root, "skills")
	if skillsNode == nil || skillsNode.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("skills vocabulary must have a top-level skills mapping")
	}

	v := &Vocabulary{}
	for i := 0; i+1 < len(skillsNode.Content); i += 2 {
		canonical := strings.ToLower(strings.TrimSpace(skillsNode.Content[i].Value))
		var aliases []string
		if err := skillsNode.Content[i+1].Decode(&aliases); err != nil {
			return nil, fmt.Errorf("skill %q: aliases must be a list: %w", canonical, err)
		}

		var patterns []string
		for _, a := range aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" {
				continue
			}
			// Escape, then let whitespace in an alias match any run of it.
			pat := strings.ReplaceAll(regexp.QuoteMeta(a), `\ `, `\s+`)
			patterns = append(patterns, pat)
		}
		if len(patterns) == 0 {
			continue
		}

		rx, err := regexp.Compile(`(?i)\b(?:` + strings.Join(patterns, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("skill %q: compiling aliases: %w", canonical, err)
		}
		v.skills = append(v.skills, skillPattern{canonical: canonical, rx: rx})
	}

	if len(v.skills) == 0 {
		return nil, fmt.Errorf("skills vocabulary defines no usable skills")
	}
	return v, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// Match returns every canonical skill whose alias pattern matches the
// normalized text, in vocabulary order.
func (v *Vocabulary) Match(normalized string) []string {
	var found []string
	for _, s := range v.skills {
		if s.rx.MatchString(normalized) {
			found = append(found, s.canonical)
		}
	}
	return found
}

// Len returns the number of skills in the vocabulary.
func (v *Vocabulary) Len() int {
	return len(v.skills)
}
