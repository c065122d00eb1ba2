package pipeline

import (
	"fmt"

	"github.com/Multitrix/cv-to-job-description/internal/store"
	"github.com/Multitrix/cv-to-job-description/internal/types"
)

// Snippet identifiers are a pure function of (parent type, parent id,
// position), so re-ingesting an unchanged profile upserts the same ids and
// the index never grows with duplicates.

func experienceSnippetID(experienceID string, bulletIndex int) string {
	return fmt.Sprintf("exp::%s::%d", experienceID, bulletIndex)
}

func projectSnippetID(projectID string, bulletIndex int) string {
	return fmt.Sprintf("proj::%s::%d", projectID, bulletIndex)
}

func skillSnippetID(skill string) string {
	return fmt.Sprintf("skill::%s", skill)
}

// snippetsFromProfile flattens a profile into the store's (id, text,
// metadata) items: one per experience bullet, project bullet, and skill.
func snippetsFromProfile(profile *types.Profile) []store.Item {
	var items []store.Item

	for _, exp := range profile.Experiences {
		for idx, bullet := range exp.Bullets {
			items = append(items, store.Item{
				ID:   experienceSnippetID(exp.ID, idx),
				Text: bullet,
				Metadata: map[string]any{
					"type":          "experience",
					"experience_id": exp.ID,
					"title":         exp.Title,
					"company":       exp.Company,
					"start_date":    exp.StartDate,
					"end_date":      exp.EndDate,
				},
			})
		}
	}

	for _, proj := range profile.Projects {
		for idx, bullet := range proj.Bullets {
			items = append(items, store.Item{
				ID:   projectSnippetID(proj.ID, idx),
				Text: bullet,
				Metadata: map[string]any{
					"type":       "project",
					"project_id": proj.ID,
					"name":       proj.Name,
				},
			})
		}
	}

	for _, skill := range profile.Skills {
		items = append(items, store.Item{
			ID:       skillSnippetID(skill),
			Text:     skill,
			Metadata: map[string]any{"type": "skill"},
		})
	}

	return items
}
