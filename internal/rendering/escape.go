// Package rendering prepares tailored bullet text for the LaTeX document
// renderer consuming the pipeline's output.
package rendering

import "strings"

// latexReplacements maps LaTeX reserved characters to their literal-safe
// representations. Escaping is applied exactly once per bullet, on the accept
// and fallback paths alike, so output formatting is uniform. It is NOT
// idempotent: escaping already-escaped text double-escapes the backslashes.
var latexReplacements = map[rune]string{
	'\\': `\textbackslash{}`,
	'&':  `\&`,
	'%':  `\%`,
	'$':  `\$`,
	'#':  `\#`,
	'_':  `\_`,
	'{':  `\{`,
	'}':  `\}`,
	'~':  `\textasciitilde{}`,
	'^':  `\textasciicircum{}`,
}

// EscapeLaTeX escapes every LaTeX reserved character in text
func EscapeLaTeX(text string) string {
	if text == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(text) * 2)

	for _, r := range text {
		if replacement, ok := latexReplacements[r]; ok {
			result.WriteString(replacement)
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}
