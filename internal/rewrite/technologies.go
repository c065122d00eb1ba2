package rewrite

import (
	"regexp"
	"strings"
)

// techPattern matches capitalized words, version-like tokens, and a fixed
// vocabulary of well-known platform/tool names (the vocabulary alone is
// case-insensitive).
//
// This is a conservative heuristic, not a parser: novel lowercase tech names
// outside the vocabulary slip through (false negatives), and any capitalized
// word matches (false positives). The fabrication gate's guarantees are
// bounded by that.
// Tokens like "C#" and "C++" end on a symbol, where \b cannot match, so the
// capitalized branch pins the final character class instead of a boundary.
var techPattern = regexp.MustCompile(
	`\b[A-Z][A-Za-z0-9+.#-]*[A-Za-z0-9+#]|(?i:\b(?:aws|gcp|azure|sql|nosql|ci/cd|rest|graphql|kafka|kinesis|airflow|spark|hadoop|docker|kubernetes|postgresql|mysql|redis|mongodb|pytorch|tensorflow)\b)`,
)

// plainCapitalizedWord matches an ordinary capitalized word with no digits,
// symbols, or interior capitals. "Developed" qualifies; "PostgreSQL", "C#"
// and "Python3.11" do not.
var plainCapitalizedWord = regexp.MustCompile(`^[A-Z][a-z]+$`)

var knownToolVocabulary = map[string]bool{
	"aws": true, "gcp": true, "azure": true, "sql": true, "nosql": true,
	"ci/cd": true, "rest": true, "graphql": true, "kafka": true,
	"kinesis": true, "airflow": true, "spark": true, "hadoop": true,
	"docker": true, "kubernetes": true, "postgresql": true, "mysql": true,
	"redis": true, "mongodb": true, "pytorch": true, "tensorflow": true,
}

// ExtractTechnologies returns the technology-looking tokens in text,
// deduplicated case-insensitively, preserving the first spelling seen.
//
// A plain capitalized word at the very start of the text is exempt: bullets
// begin with a capitalized action verb ("Built", "Developed"), and treating
// the verb as a technology would make every verb change look like
// fabrication.
func ExtractTechnologies(text string) []string {
	matches := techPattern.FindAllStringIndex(text, -1)

	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		token := strings.TrimSpace(text[m[0]:m[1]])
		if token == "" {
			continue
		}
		key := strings.ToLower(token)
		if m[0] == 0 && plainCapitalizedWord.MatchString(token) && !knownToolVocabulary[key] {
			continue
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, token)
		}
	}
	return out
}

// noNewTechnologies reports whether every technology token found in the
// rewritten text already appears in the original text or the candidate's
// declared skills (case-insensitive).
func noNewTechnologies(original, rewritten string, candidateSkills []string) bool {
	allowed := make(map[string]bool)
	for _, tech := range ExtractTechnologies(original) {
		allowed[strings.ToLower(tech)] = true
	}
	for _, skill := range candidateSkills {
		allowed[strings.ToLower(skill)] = true
	}

	for _, tech := range ExtractTechnologies(rewritten) {
		if !allowed[strings.ToLower(tech)] {
			return false
		}
	}
	return true
}
