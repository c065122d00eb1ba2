package rewrite

import (
	"fmt"
	"strings"
)

// systemPrompt is the fixed system instruction for the rewrite model. It
// forbids fabrication outright; the gates below enforce what the model may
// still get wrong.
const systemPrompt = "You rewrite resume bullets to match a target job description. " +
	"Rules: Be concise; use strong action verbs; preserve facts; do not add technologies, employers, dates, or metrics " +
	"that are not present in the original bullet or candidate skills. Never fabricate. Keep first-person pronouns out."

const instructionTemplate = "Job Description (JD):\n%s\n\n" +
	"Candidate Skills: %s\n\n" +
	"Original Bullet: %q\n\n" +
	"Task: Rewrite the bullet so it aligns with the JD terminology and priorities while staying 100%% faithful to the original facts. " +
	"If the original is already optimal, return it unchanged."

const (
	lightHint = "Tone: light retouch only (minor wording)."
	heavyHint = "Tone: strong alignment (emphasize JD-relevant aspects)."
)

// buildPrompt assembles the user prompt for one bullet. Medium shares the
// strong-alignment hint with heavy; the intensity tiers differ upstream in
// which bullets they are applied to.
func buildPrompt(original, jobText string, skills []string, intensity Intensity) string {
	base := fmt.Sprintf(instructionTemplate, jobText, strings.Join(skills, ", "), original)

	hint := lightHint
	if intensity == IntensityMedium || intensity == IntensityHeavy {
		hint = heavyHint
	}
	return base + "\n" + hint
}
