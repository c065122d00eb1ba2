package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Multitrix/cv-to-job-description/internal/embeddings"
	"github.com/Multitrix/cv-to-job-description/internal/rewrite"
	"github.com/Multitrix/cv-to-job-description/internal/store"
	"github.com/Multitrix/cv-to-job-description/internal/types"
)

var originalBulletPattern = regexp.MustCompile(`Original Bullet: ("(?:[^"\\]|\\.)*")`)

// echoLLM replays the original bullet from the prompt, which passes the
// fidelity gate with similarity 1.0
type echoLLM struct{}

func (echoLLM) Generate(ctx context.Context, _, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m := originalBulletPattern.FindStringSubmatch(prompt)
	if m == nil {
		return "", fmt.Errorf("no bullet in prompt")
	}
	return strconv.Unquote(m[1])
}

func (echoLLM) Close() error { return nil }

func newPipelineUnderTest() (*Pipeline, *store.Memory) {
	embedder := embeddings.NewHashing(256)
	memory := store.NewMemory(embedder)
	rewriter := rewrite.New(echoLLM{}, embedder, rewrite.DefaultConfig(), zap.NewNop())
	return New(memory, embedder, rewriter, zap.NewNop(), DefaultOptions()), memory
}

func testProfile() *types.Profile {
	return &types.Profile{
		Experiences: []types.Experience{
			{
				ID:        "e1",
				Title:     "Backend Engineer",
				Company:   "Acme",
				StartDate: "2021-03",
				EndDate:   "2024-06",
				Bullets: []string{
					"Built Python backend services handling millions of requests",
					"Designed SQL schemas and optimized slow queries",
				},
				Skills: []string{"Python"},
			},
		},
		Skills: []string{"Python"},
	}
}

func testJob() types.JobDescription {
	return types.JobDescription{Description: "Python backend services, SQL"}
}

func TestSnippetIDs_PureFunctionOfParentAndPosition(t *testing.T) {
	assert.Equal(t, "exp::e1::0", experienceSnippetID("e1", 0))
	assert.Equal(t, "proj::p2::3", projectSnippetID("p2", 3))
	assert.Equal(t, "skill::Go", skillSnippetID("Go"))
	assert.Equal(t, experienceSnippetID("e1", 1), experienceSnippetID("e1", 1))
}

func TestSnippetsFromProfile(t *testing.T) {
	profile := testProfile()
	profile.Projects = []types.Project{{ID: "p1", Name: "Crawler", Bullets: []string{"Crawled the web"}}}

	items := snippetsFromProfile(profile)

	// 2 experience bullets + 1 project bullet + 1 skill
	require.Len(t, items, 4)
	assert.Equal(t, "exp::e1::0", items[0].ID)
	assert.Equal(t, "experience", items[0].Metadata["type"])
	assert.Equal(t, "2024-06", items[0].Metadata["end_date"])
	assert.Equal(t, "proj::p1::0", items[2].ID)
	assert.Equal(t, "Crawler", items[2].Metadata["name"])
	assert.Equal(t, "skill::Python", items[3].ID)
}

func TestDecideIntensity_Thresholds(t *testing.T) {
	p, _ := newPipelineUnderTest()

	tests := []struct {
		sim, keyword float64
		want         rewrite.Intensity
	}{
		{0.9, 0.5, rewrite.IntensityLight},
		{0.7, 0.0, rewrite.IntensityMedium},
		{0.5, 0.1, rewrite.IntensityHeavy},
		{0.82, 0.45, rewrite.IntensityLight}, // both bounds inclusive
		{0.819999, 0.45, rewrite.IntensityMedium},
		{0.82, 0.449999, rewrite.IntensityMedium},
		{0.0, 0.30, rewrite.IntensityMedium},
		{0.679999, 0.299999, rewrite.IntensityHeavy},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("sim=%v_kw=%v", tt.sim, tt.keyword), func(t *testing.T) {
			assert.Equal(t, tt.want, p.decideIntensity(tt.sim, tt.keyword))
		})
	}
}

func TestTailor_EndToEnd(t *testing.T) {
	p, memory := newPipelineUnderTest()
	profile := testProfile()

	tailored, err := p.Tailor(context.Background(), "user1", profile, testJob())
	require.NoError(t, err)

	// ingestion produced 2 bullet snippets + 1 skill snippet
	assert.Equal(t, 3, memory.Count("user1"))

	require.Len(t, tailored.Experiences, 1)
	require.Len(t, tailored.Experiences[0].Bullets, 2)
	for i, bullet := range tailored.Experiences[0].Bullets {
		assert.Equal(t, profile.Experiences[0].Bullets[i], bullet,
			"echoed rewrite equals the original (no reserved characters to escape)")
	}

	// entry identity and declared skills pass through untouched
	assert.Equal(t, "Backend Engineer", tailored.Experiences[0].Title)
	assert.Equal(t, "2021-03", tailored.Experiences[0].StartDate)
	assert.Equal(t, []string{"Python"}, tailored.Skills)
	assert.Equal(t, profile.Certifications, tailored.Certifications)

	// source profile was not mutated
	assert.Equal(t, testProfile(), profile)
}

func TestTailor_IdempotentIngestion(t *testing.T) {
	p, memory := newPipelineUnderTest()

	_, err := p.Tailor(context.Background(), "user1", testProfile(), testJob())
	require.NoError(t, err)
	_, err = p.Tailor(context.Background(), "user1", testProfile(), testJob())
	require.NoError(t, err)

	assert.Equal(t, 3, memory.Count("user1"), "re-ingesting an unchanged profile does not grow the index")
}

func TestTailor_RequiresUserID(t *testing.T) {
	p, _ := newPipelineUnderTest()

	_, err := p.Tailor(context.Background(), "", testProfile(), testJob())
	assert.Error(t, err)
}

func TestTailor_InvalidProfileRejected(t *testing.T) {
	p, _ := newPipelineUnderTest()
	profile := testProfile()
	profile.Experiences[0].ID = ""

	_, err := p.Tailor(context.Background(), "user1", profile, testJob())
	assert.Error(t, err)
}

func TestTailor_EmptyJobDescriptionRejected(t *testing.T) {
	p, _ := newPipelineUnderTest()

	_, err := p.Tailor(context.Background(), "user1", testProfile(), types.JobDescription{})
	assert.Error(t, err)
}

func TestTailor_CancellationFailsAtomically(t *testing.T) {
	p, _ := newPipelineUnderTest()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tailored, err := p.Tailor(ctx, "user1", testProfile(), testJob())
	assert.Error(t, err)
	assert.Nil(t, tailored, "no partially tailored profile on cancellation")
}

func TestTrimBullets_KeepsHighestSimilarity(t *testing.T) {
	p, _ := newPipelineUnderTest()
	p.opts.MaxBulletsPerExperience = 6

	exp := types.Experience{ID: "e1"}
	results := make([]rewrite.Result, 10)
	scores := make(map[string]bulletScore)
	for i := range results {
		results[i] = rewrite.Result{Text: fmt.Sprintf("bullet-%d", i), Outcome: rewrite.OutcomeAccepted}
		// descending index gets ascending similarity: bullet-9 is the best
		scores[experienceSnippetID("e1", i)] = bulletScore{sim: float64(i) / 10.0}
	}

	kept := p.trimBullets(exp, results, scores)

	require.Len(t, kept, 6)
	assert.Equal(t, "bullet-9", kept[0])
	assert.Equal(t, "bullet-4", kept[5])
}

func TestTrimBullets_TiesFallBackToOriginalOrder(t *testing.T) {
	p, _ := newPipelineUnderTest()
	p.opts.MaxBulletsPerExperience = 2

	exp := types.Experience{ID: "e1"}
	results := []rewrite.Result{
		{Text: "first"}, {Text: "second"}, {Text: "third"},
	}

	kept := p.trimBullets(exp, results, map[string]bulletScore{})

	assert.Equal(t, []string{"first", "second"}, kept, "unscored bullets keep first-N order")
}

func TestTrimBullets_NoTrimWhenUnderCap(t *testing.T) {
	p, _ := newPipelineUnderTest()

	kept := p.trimBullets(types.Experience{ID: "e1"}, []rewrite.Result{{Text: "only"}}, nil)
	assert.Equal(t, []string{"only"}, kept)
}

func TestUnionSkills(t *testing.T) {
	union := unionSkills([]string{"Go", "SQL"}, []string{"SQL", "Docker", ""})
	assert.Equal(t, []string{"Go", "SQL", "Docker"}, union)
}
