package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Multitrix/cv-to-job-description/internal/db"
	"github.com/Multitrix/cv-to-job-description/internal/types"
)

type fakeTailorer struct {
	err      error
	lastUser string
	lastJD   types.JobDescription
}

func (f *fakeTailorer) Tailor(_ context.Context, userID string, profile *types.Profile, jd types.JobDescription) (*types.TailoredProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastUser = userID
	f.lastJD = jd
	return &types.TailoredProfile{
		Experiences:    profile.Experiences,
		Projects:       profile.Projects,
		Skills:         profile.Skills,
		Certifications: profile.Certifications,
	}, nil
}

type fakeRepo struct {
	profiles map[string]*types.Profile
	runs     []db.TailorRun
	saveErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{profiles: make(map[string]*types.Profile)}
}

func (f *fakeRepo) SaveProfile(_ context.Context, userID string, profile *types.Profile) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.profiles[userID] = profile
	return nil
}

func (f *fakeRepo) GetProfile(_ context.Context, userID string) (*db.StoredProfile, error) {
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &db.StoredProfile{UserID: userID, Profile: profile}, nil
}

func (f *fakeRepo) DeleteProfile(_ context.Context, userID string) error {
	if _, ok := f.profiles[userID]; !ok {
		return fmt.Errorf("profile not found: %s", userID)
	}
	delete(f.profiles, userID)
	return nil
}

func (f *fakeRepo) SaveRun(_ context.Context, userID string, jd types.JobDescription, tailored *types.TailoredProfile) (uuid.UUID, error) {
	id := uuid.New()
	f.runs = append(f.runs, db.TailorRun{ID: id, UserID: userID, JobTitle: jd.Title, Tailored: tailored})
	return id, nil
}

func (f *fakeRepo) ListRuns(_ context.Context, userID string, _ int) ([]db.TailorRun, error) {
	var runs []db.TailorRun
	for _, run := range f.runs {
		if run.UserID == userID {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

const profileJSON = `{
	"experiences": [
		{
			"id": "e1",
			"title": "Backend Engineer",
			"company": "Acme",
			"start_date": "2021-03",
			"bullets": ["Built Python services"],
			"skills": ["Python"]
		}
	],
	"skills": ["Python"]
}`

const jobJSON = `{"title": "Engineer", "description": "Python backend services, SQL"}`

func newTestServer(tailorer Tailorer, repo Repository) *Server {
	return New(Config{Addr: ":0"}, tailorer, repo, nil)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeTailorer{}, nil)
	defer s.rateLimiter.Stop()

	rec := doRequest(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestTailor_InlineProfile(t *testing.T) {
	tailorer := &fakeTailorer{}
	repo := newFakeRepo()
	s := newTestServer(tailorer, repo)
	defer s.rateLimiter.Stop()

	body := fmt.Sprintf(`{"user_id": "user1", "profile": %s, "job": %s}`, profileJSON, jobJSON)
	rec := doRequest(s, http.MethodPost, "/tailor", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TailorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Tailored)
	assert.Equal(t, "user1", tailorer.lastUser)
	assert.Equal(t, "Python backend services, SQL", tailorer.lastJD.Description)
	assert.NotEmpty(t, resp.RunID, "runs are recorded when persistence is configured")
	assert.Len(t, repo.runs, 1)
}

func TestTailor_StoredProfileFallback(t *testing.T) {
	repo := newFakeRepo()
	s := newTestServer(&fakeTailorer{}, repo)
	defer s.rateLimiter.Stop()

	rec := doRequest(s, http.MethodPut, "/profiles/user1", profileJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := fmt.Sprintf(`{"user_id": "user1", "job": %s}`, jobJSON)
	rec = doRequest(s, http.MethodPost, "/tailor", body)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestTailor_MissingStoredProfile(t *testing.T) {
	s := newTestServer(&fakeTailorer{}, newFakeRepo())
	defer s.rateLimiter.Stop()

	body := fmt.Sprintf(`{"user_id": "ghost", "job": %s}`, jobJSON)
	rec := doRequest(s, http.MethodPost, "/tailor", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTailor_NoRepoRequiresInlineProfile(t *testing.T) {
	s := newTestServer(&fakeTailorer{}, nil)
	defer s.rateLimiter.Stop()

	body := fmt.Sprintf(`{"user_id": "user1", "job": %s}`, jobJSON)
	rec := doRequest(s, http.MethodPost, "/tailor", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTailor_InvalidJob(t *testing.T) {
	s := newTestServer(&fakeTailorer{}, nil)
	defer s.rateLimiter.Stop()

	body := fmt.Sprintf(`{"user_id": "user1", "profile": %s, "job": {"title": "no description"}}`, profileJSON)
	rec := doRequest(s, http.MethodPost, "/tailor", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "description")
}

func TestTailor_InvalidProfileSchema(t *testing.T) {
	s := newTestServer(&fakeTailorer{}, nil)
	defer s.rateLimiter.Stop()

	body := fmt.Sprintf(`{"user_id": "user1", "profile": {"experiences": "nope"}, "job": %s}`, jobJSON)
	rec := doRequest(s, http.MethodPost, "/tailor", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTailor_PipelineFailure(t *testing.T) {
	s := newTestServer(&fakeTailorer{err: fmt.Errorf("backend down")}, nil)
	defer s.rateLimiter.Stop()

	body := fmt.Sprintf(`{"user_id": "user1", "profile": %s, "job": %s}`, profileJSON, jobJSON)
	rec := doRequest(s, http.MethodPost, "/tailor", body)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProfiles_SaveGetDelete(t *testing.T) {
	repo := newFakeRepo()
	s := newTestServer(&fakeTailorer{}, repo)
	defer s.rateLimiter.Stop()

	rec := doRequest(s, http.MethodPut, "/profiles/user1", profileJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(s, http.MethodGet, "/profiles/user1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Backend Engineer")

	rec = doRequest(s, http.MethodDelete, "/profiles/user1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/profiles/user1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfiles_SaveRejectsSchemaViolations(t *testing.T) {
	s := newTestServer(&fakeTailorer{}, newFakeRepo())
	defer s.rateLimiter.Stop()

	rec := doRequest(s, http.MethodPut, "/profiles/user1", `{"experiences": [{"id": "e1"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfiles_DisabledWithoutRepo(t *testing.T) {
	s := newTestServer(&fakeTailorer{}, nil)
	defer s.rateLimiter.Stop()

	rec := doRequest(s, http.MethodPut, "/profiles/user1", profileJSON)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListRuns(t *testing.T) {
	repo := newFakeRepo()
	tailorer := &fakeTailorer{}
	s := newTestServer(tailorer, repo)
	defer s.rateLimiter.Stop()

	body := fmt.Sprintf(`{"user_id": "user1", "profile": %s, "job": %s}`, profileJSON, jobJSON)
	rec := doRequest(s, http.MethodPost, "/tailor", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/profiles/user1/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"runs"`)

	rec = doRequest(s, http.MethodGet, "/profiles/user1/runs?limit=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
