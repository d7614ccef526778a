package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

// Tokenize splits a spreadsheet label on whitespace, dropping repeated tokens.
func Tokenize(label string) []string {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		key := fold(f)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

// ContainsAllTokens reports whether name contains every token as a
// case-insensitive substring, in any order. Partial words match.
func ContainsAllTokens(name string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	folded := fold(name)
	for _, token := range tokens {
		if !strings.Contains(folded, fold(token)) {
			return false
		}
	}
	return true
}

func fold(s string) string {
	// Casers keep state, so each call gets its own.
	return cases.Fold().String(s)
}

// likePatterns converts tokens into escaped ILIKE substring patterns.
func likePatterns(tokens []string) []string {
	patterns := make([]string, 0, len(tokens))
	for _, token := range tokens {
		patterns = append(patterns, "%"+escapeLike(token)+"%")
	}
	return patterns
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
