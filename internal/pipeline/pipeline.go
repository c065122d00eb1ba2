// Package pipeline orchestrates profile tailoring: ingestion into the
// similarity store, retrieval against the job description, ranking, rewrite
// intensity decisions, bullet rewriting, and reassembly of the validated
// tailored profile.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Multitrix/cv-to-job-description/internal/embeddings"
	"github.com/Multitrix/cv-to-job-description/internal/jobdesc"
	"github.com/Multitrix/cv-to-job-description/internal/rank"
	"github.com/Multitrix/cv-to-job-description/internal/rewrite"
	"github.com/Multitrix/cv-to-job-description/internal/store"
	"github.com/Multitrix/cv-to-job-description/internal/types"
)

// Options holds every tunable threshold of the pipeline. The defaults are
// empirical constants carried over without a documented derivation, which is
// why they live here instead of being hard constants.
type Options struct {
	// TopKRetrieval is how many snippets the store query returns
	TopKRetrieval int
	// RerankTopN is how many retrieved snippets get the expensive re-rank
	// (direct semantic comparison) that drives intensity decisions
	RerankTopN int
	// MaxBulletsPerExperience caps bullets kept per experience after rewrite
	MaxBulletsPerExperience int
	// RewriteConcurrency bounds parallel rewrite calls
	RewriteConcurrency int
	// Weights for the combined retrieval score
	Weights rank.Weights
	// Light tier requires sim >= LightSim AND keyword >= LightKeyword
	LightSim     float64
	LightKeyword float64
	// Medium tier requires sim >= MediumSim OR keyword >= MediumKeyword;
	// anything below both is heavy
	MediumSim     float64
	MediumKeyword float64
}

// DefaultOptions returns the standard pipeline tuning
func DefaultOptions() Options {
	return Options{
		TopKRetrieval:           60,
		RerankTopN:              20,
		MaxBulletsPerExperience: 6,
		RewriteConcurrency:      4,
		Weights:                 rank.DefaultWeights(),
		LightSim:                0.82,
		LightKeyword:            0.45,
		MediumSim:               0.68,
		MediumKeyword:           0.30,
	}
}

// Pipeline wires the similarity store, embedder, and rewriter into the
// tailoring flow. All backends are injected so tests can substitute fakes;
// none are ambient singletons.
type Pipeline struct {
	store    store.Store
	embedder embeddings.Embedder
	rewriter *rewrite.Rewriter
	log      *zap.Logger
	opts     Options
}

// New creates a Pipeline. A nil logger is replaced with a no-op logger.
func New(s store.Store, embedder embeddings.Embedder, rewriter *rewrite.Rewriter, log *zap.Logger, opts Options) *Pipeline {
	if opts.TopKRetrieval <= 0 {
		opts = DefaultOptions()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{store: s, embedder: embedder, rewriter: rewriter, log: log, opts: opts}
}

// bulletScore is the transient per-snippet ranking state used for intensity
// decisions and trimming
type bulletScore struct {
	sim       float64
	keyword   float64
	intensity rewrite.Intensity
}

// Tailor derives a tailored profile for one user from their full profile and
// a job description. The source profile is never mutated. The run either
// succeeds with a fully validated tailored profile or fails with one
// descriptive error; cancellation aborts atomically, never returning a
// partially tailored result.
func (p *Pipeline) Tailor(ctx context.Context, userID string, profile *types.Profile, jd types.JobDescription) (*types.TailoredProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	if err := jd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job description: %w", err)
	}

	// Ingest: flatten the profile into snippets and upsert. Idempotent, and
	// completed before the query below so a run always sees its own writes.
	snippets := snippetsFromProfile(profile)
	if err := p.store.Upsert(ctx, userID, snippets); err != nil {
		return nil, fmt.Errorf("failed to ingest profile: %w", err)
	}
	p.log.Info("ingested profile snippets",
		zap.String("user_id", userID),
		zap.Int("snippets", len(snippets)))

	keywords := jobdesc.DeriveKeywords(jd.Description)

	// Retrieve and rank, then re-derive similarity for the top N
	ranked, err := p.retrieveAndRank(ctx, userID, jd.Description, keywords)
	if err != nil {
		return nil, err
	}
	scores := p.rerank(ctx, ranked, jd.Description, keywords)

	// Rewrite every bullet under its decided intensity
	experiences, projects, err := p.rewriteAll(ctx, profile, jd.Description, scores)
	if err != nil {
		return nil, err
	}

	tailored := &types.TailoredProfile{
		Experiences:    experiences,
		Projects:       projects,
		Skills:         profile.Skills,
		Certifications: profile.Certifications,
	}

	if err := tailored.Validate(); err != nil {
		return nil, fmt.Errorf("tailored profile failed validation: %w", err)
	}

	return tailored, nil
}

// retrieveAndRank queries the store for job-relevant snippets and orders them
// by the combined score of store similarity, fuzzy keyword overlap over the
// snippet's descriptive metadata and text, and recency.
func (p *Pipeline) retrieveAndRank(ctx context.Context, userID, jobText string, keywords []string) ([]rank.Scored, error) {
	matches, err := p.store.Query(ctx, userID, jobText, p.opts.TopKRetrieval, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve snippets: %w", err)
	}

	scored := make([]rank.Scored, 0, len(matches))
	for _, match := range matches {
		title, _ := match.Metadata["title"].(string)
		company, _ := match.Metadata["company"].(string)
		text, _ := match.Metadata[store.MetadataTextKey].(string)

		keywordScore := rank.KeywordOverlapScore(title+" "+company+" "+text, keywords)
		recency := rank.RecencyScore(match.Metadata)
		combined := rank.Combine(p.opts.Weights, match.Score, keywordScore, recency)

		scored = append(scored, rank.Scored{ID: match.ID, Metadata: match.Metadata, Score: combined})
	}
	rank.Sort(scored)

	p.log.Info("retrieved and ranked snippets", zap.Int("candidates", len(scored)))
	return scored, nil
}

// rerank re-derives semantic similarity for the top N candidates by direct
// embedding comparison against the job text (more expensive and more
// authoritative than the store-returned score, which is kept as a fallback
// when the comparison fails), then decides each snippet's rewrite intensity.
func (p *Pipeline) rerank(ctx context.Context, ranked []rank.Scored, jobText string, keywords []string) map[string]bulletScore {
	topN := ranked
	if len(topN) > p.opts.RerankTopN {
		topN = topN[:p.opts.RerankTopN]
	}

	scores := make(map[string]bulletScore, len(topN))
	for _, candidate := range topN {
		text, _ := candidate.Metadata[store.MetadataTextKey].(string)

		sim := candidate.Score
		if vectors, err := p.embedder.Embed(ctx, []string{jobText, text}); err == nil && len(vectors) == 2 {
			sim = embeddings.Cosine(vectors[0], vectors[1])
		} else if err != nil {
			p.log.Debug("semantic comparison failed, using retrieval score",
				zap.String("snippet", candidate.ID), zap.Error(err))
		}

		keywordScore := rank.KeywordOverlapScore(text, keywords)
		intensity := p.decideIntensity(sim, keywordScore)
		scores[candidate.ID] = bulletScore{sim: sim, keyword: keywordScore, intensity: intensity}
	}

	return scores
}

// decideIntensity buckets one snippet into a rewrite tier from its semantic
// similarity and keyword overlap. Both light bounds are inclusive.
func (p *Pipeline) decideIntensity(sim, keyword float64) rewrite.Intensity {
	if sim >= p.opts.LightSim && keyword >= p.opts.LightKeyword {
		return rewrite.IntensityLight
	}
	if sim >= p.opts.MediumSim || keyword >= p.opts.MediumKeyword {
		return rewrite.IntensityMedium
	}
	return rewrite.IntensityHeavy
}

// rewriteJob addresses one bullet's rewrite so parallel results land in
// deterministic slots
type rewriteJob struct {
	entry     int
	bullet    int
	project   bool
	original  string
	intensity rewrite.Intensity
	skills    []string
}

// rewriteAll rewrites every experience and project bullet under its decided
// intensity, in parallel with a concurrency cap. Bullet order is restored
// from the job indices afterward, so the output is deterministic regardless
// of scheduling. A rewrite error (cancellation) aborts the whole run.
func (p *Pipeline) rewriteAll(ctx context.Context, profile *types.Profile, jobText string, scores map[string]bulletScore) ([]types.Experience, []types.Project, error) {
	var jobs []rewriteJob
	for i, exp := range profile.Experiences {
		skills := unionSkills(exp.Skills, profile.Skills)
		for j, bullet := range exp.Bullets {
			jobs = append(jobs, rewriteJob{
				entry:     i,
				bullet:    j,
				original:  bullet,
				intensity: p.intensityFor(experienceSnippetID(exp.ID, j), scores),
				skills:    skills,
			})
		}
	}
	for i, proj := range profile.Projects {
		skills := unionSkills(proj.Skills, profile.Skills)
		for j, bullet := range proj.Bullets {
			jobs = append(jobs, rewriteJob{
				entry:     i,
				bullet:    j,
				project:   true,
				original:  bullet,
				intensity: p.intensityFor(projectSnippetID(proj.ID, j), scores),
				skills:    skills,
			})
		}
	}

	expResults := make([][]rewrite.Result, len(profile.Experiences))
	for i, exp := range profile.Experiences {
		expResults[i] = make([]rewrite.Result, len(exp.Bullets))
	}
	projResults := make([][]rewrite.Result, len(profile.Projects))
	for i, proj := range profile.Projects {
		projResults[i] = make([]rewrite.Result, len(proj.Bullets))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.opts.RewriteConcurrency)
	for _, job := range jobs {
		group.Go(func() error {
			result, err := p.rewriter.Rewrite(groupCtx, job.original, jobText, job.skills, job.intensity)
			if err != nil {
				return err
			}
			if job.project {
				projResults[job.entry][job.bullet] = result
			} else {
				expResults[job.entry][job.bullet] = result
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, fmt.Errorf("rewrite aborted: %w", err)
	}

	experiences := make([]types.Experience, len(profile.Experiences))
	for i, exp := range profile.Experiences {
		bullets := p.trimBullets(exp, expResults[i], scores)
		experiences[i] = types.Experience{
			ID:        exp.ID,
			Title:     exp.Title,
			Company:   exp.Company,
			StartDate: exp.StartDate,
			EndDate:   exp.EndDate,
			Bullets:   bullets,
			Skills:    exp.Skills,
		}
	}

	projects := make([]types.Project, len(profile.Projects))
	for i, proj := range profile.Projects {
		bullets := make([]string, len(projResults[i]))
		for j, result := range projResults[i] {
			bullets[j] = result.Text
		}
		projects[i] = types.Project{
			ID:      proj.ID,
			Name:    proj.Name,
			Bullets: bullets,
			Skills:  proj.Skills,
		}
	}

	return experiences, projects, nil
}

// intensityFor looks up a snippet's decided tier; snippets outside the
// re-ranked top N default to light.
func (p *Pipeline) intensityFor(snippetID string, scores map[string]bulletScore) rewrite.Intensity {
	if score, ok := scores[snippetID]; ok {
		return score.intensity
	}
	return rewrite.IntensityLight
}

// trimBullets enforces the per-experience bullet cap, keeping the bullets
// with the highest re-ranked similarity rather than truncating positionally.
// Unscored bullets score 0.0, and the stable sort makes ties fall back to
// original order, so a fully unscored experience keeps its first N bullets.
func (p *Pipeline) trimBullets(exp types.Experience, results []rewrite.Result, scores map[string]bulletScore) []string {
	bullets := make([]string, len(results))
	for i, result := range results {
		bullets[i] = result.Text
	}

	limit := p.opts.MaxBulletsPerExperience
	if limit <= 0 || len(bullets) <= limit {
		return bullets
	}

	type scoredBullet struct {
		sim  float64
		text string
	}
	scored := make([]scoredBullet, len(bullets))
	for i, text := range bullets {
		sim := 0.0
		if s, ok := scores[experienceSnippetID(exp.ID, i)]; ok {
			sim = s.sim
		}
		scored[i] = scoredBullet{sim: sim, text: text}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].sim > scored[j].sim
	})

	kept := make([]string, limit)
	for i := 0; i < limit; i++ {
		kept[i] = scored[i].text
	}
	return kept
}

// unionSkills merges entry-level and profile-level skills, deduplicated,
// preserving first-seen order
func unionSkills(entrySkills, profileSkills []string) []string {
	seen := make(map[string]bool, len(entrySkills)+len(profileSkills))
	var out []string
	for _, group := range [][]string{entrySkills, profileSkills} {
		for _, skill := range group {
			if skill == "" || seen[skill] {
				continue
			}
			seen[skill] = true
			out = append(out, skill)
		}
	}
	return out
}
