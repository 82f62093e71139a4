package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iped-studio/app"
	"iped-studio/config"
	"iped-studio/database"
	"iped-studio/handlers"
	"iped-studio/middleware"
	"iped-studio/models"
	"iped-studio/session"
)

func TestMain(m *testing.M) {
	config.Load()
	os.Exit(m.Run())
}

// setupTestApp creates a temporary database and a Fiber app with the
// full route table wired up.
func setupTestApp(t *testing.T) (*fiber.App, *app.App, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "iped-studio-test-*")
	require.NoError(t, err, "Failed to create temp directory")

	db, err := database.New(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err, "Failed to initialize test database")
	require.NoError(t, db.Migrate(), "Failed to run migrations")

	repo := database.NewRepository(db)
	sessionStore := session.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	application := app.New(repo, sessionStore, nil, logger, "test-secret")

	srv := fiber.New()

	srv.Post("/api/auth/register", handlers.Register(application))
	srv.Post("/api/auth/login", handlers.Login(application))
	srv.Post("/api/auth/logout", handlers.Logout(application))
	srv.Get("/api/auth/me", handlers.Me(application))

	s := srv.Group("/s/:token")
	s.Get("/", handlers.Welcome(application))
	s.Post("/start", handlers.StartParticipation(application))
	s.Post("/personal-info", handlers.SubmitPersonalInfo(application))
	s.Post("/classification", handlers.SubmitClassification(application))
	s.Get("/tasks/:index", handlers.GetTask(application))
	s.Post("/tasks/:index/start", handlers.StartTask(application))
	s.Post("/tasks/:index/complete", handlers.CompleteTask(application))
	s.Get("/completed", handlers.Completed(application))
	s.Post("/abandon", handlers.Abandon(application))
	s.Post("/tracking", handlers.TrackInteraction(application))

	api := srv.Group("/api", middleware.AuthRequired(sessionStore))
	api.Post("/auth/token", handlers.APIToken(application))
	api.Get("/studies/draft", handlers.GetDraft(application))
	api.Get("/studies/draft/steps/:step", handlers.GetStep(application))
	api.Post("/studies/draft/steps/:step", handlers.SaveStep(application))
	api.Post("/studies/draft/reset", handlers.ResetDraft(application))
	api.Get("/studies", handlers.ListStudies(application))
	api.Get("/studies/:id", handlers.GetStudy(application))
	api.Put("/studies/:id/status", handlers.UpdateStudyStatus(application))
	api.Delete("/studies/:id", handlers.DeleteStudy(application))
	api.Get("/studies/:id/responses", handlers.GetStudyResponses(application))
	api.Get("/studies/:id/export", handlers.ExportStudyCSV(application))

	v1 := srv.Group("/api/v1", middleware.TokenAuth("test-secret"))
	v1.Get("/studies/:id/export", handlers.ExportStudyCSV(application))

	cleanup := func() {
		sessionStore.Stop()
		db.Close()
		os.RemoveAll(tmpDir)
	}
	return srv, application, cleanup
}

// seedStudy inserts an active study with 2 respondents, 2 tasks each
// and 4 text elements.
func seedStudy(t *testing.T, a *app.App, creatorID string) *models.Study {
	t.Helper()
	study := buildStudy(creatorID, "study-test", "sharetok")
	require.NoError(t, a.Repo.CreateStudy(study))
	return study
}

func buildStudy(creatorID, id, token string) *models.Study {
	elements := make([]models.StudyElement, 4)
	for i := range elements {
		elements[i] = models.StudyElement{
			ElementID:   fmt.Sprintf("E%d", i+1),
			Name:        fmt.Sprintf("Element %d", i+1),
			ElementType: "text",
			Content:     fmt.Sprintf("Statement %d", i+1),
		}
	}

	matrix := models.TaskMatrix{}
	for r := 0; r < 2; r++ {
		var tasks []models.TaskCell
		for tk := 0; tk < 2; tk++ {
			tasks = append(tasks, models.TaskCell{
				TaskID: fmt.Sprintf("r%d_t%d", r, tk),
				ElementsShown: map[string]int{
					"E1": 1, "E2": 1, "E3": 0, "E4": 0,
				},
			})
		}
		matrix[models.RespondentKey(r)] = tasks
	}

	return &models.Study{
		ID:              id,
		CreatorID:       creatorID,
		Title:           "Snack packaging appeal",
		StudyType:       "text",
		MainQuestion:    "How appealing is this combination?",
		OrientationText: "Rate each combination on the scale.",
		RatingScale:     models.RatingScale{MinValue: 1, MaxValue: 5, MinLabel: "Not at all", MaxLabel: "Very"},
		Elements:        elements,
		ClassificationQuestions: []models.ClassificationQuestion{
			{QuestionID: "Q1", QuestionText: "Age group?", QuestionType: "single_choice",
				AnswerOptions: []string{"18-30", "31-50", "50+"}, Order: 1},
		},
		IPEDParameters: models.IPEDParameters{
			NumElements: 4, TasksPerConsumer: 2, NumberOfRespondents: 2,
			MinActiveElements: 2, MaxActiveElements: 2, TotalTasks: 4,
		},
		Tasks:      matrix,
		ShareToken: token,
		ShareURL:   "http://localhost:3000/s/" + token,
		Status:     models.StudyStatusActive,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

func doJSON(t *testing.T, srv *fiber.App, method, url string, body any, cookies ...*http.Cookie) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := srv.Test(req, 5000)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

func cookieFromResponse(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestParticipationFlow(t *testing.T) {
	srv, application, cleanup := setupTestApp(t)
	defer cleanup()

	seedStudy(t, application, "creator-1")

	// Welcome page is public
	resp, body := doJSON(t, srv, "GET", "/s/sharetok/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["accepting_responses"])
	study := body["study"].(map[string]any)
	assert.Equal(t, "Snack packaging appeal", study["title"])

	// Start assigns slot 0 and sets the session cookie
	resp, body = doJSON(t, srv, "POST", "/s/sharetok/start", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(0), body["respondent_id"])
	assert.Equal(t, float64(2), body["total_tasks"])
	sessionCookie := cookieFromResponse(t, resp, "study_session")

	// Demographics and classification
	resp, _ = doJSON(t, srv, "POST", "/s/sharetok/personal-info",
		map[string]any{"age": "25-34", "gender": "female"}, sessionCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, srv, "POST", "/s/sharetok/classification",
		map[string]any{"answers": []map[string]any{
			{"question_id": "Q1", "answer": "18-30"},
		}}, sessionCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// First task shows the two active elements
	resp, body = doJSON(t, srv, "GET", "/s/sharetok/tasks/0", nil, sessionCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	task := body["task"].(map[string]any)
	assert.Equal(t, "r0_t0", task["task_id"])
	assert.Len(t, task["elements"].([]any), 2)

	resp, _ = doJSON(t, srv, "POST", "/s/sharetok/tasks/0/start", nil, sessionCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Tracking events are accepted mid-task
	resp, _ = doJSON(t, srv, "POST", "/s/sharetok/tracking",
		map[string]any{"type": "hover", "element_id": "E1", "duration": 1.2}, sessionCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	startTime := time.Now().Add(-5 * time.Second).Format(time.RFC3339)
	resp, body = doJSON(t, srv, "POST", "/s/sharetok/tasks/0/complete",
		map[string]any{"rating": 4, "task_start_time": startTime}, sessionCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["study_completed"])
	assert.Equal(t, float64(1), body["next_task_index"])

	resp, _ = doJSON(t, srv, "POST", "/s/sharetok/tasks/1/start", nil, sessionCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, srv, "POST", "/s/sharetok/tasks/1/complete",
		map[string]any{"rating": 2, "task_start_time": startTime}, sessionCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["study_completed"])

	resp, body = doJSON(t, srv, "GET", "/s/sharetok/completed", nil, sessionCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, float64(2), body["completed_tasks"])
}

func TestParticipationZeroAnchoredScale(t *testing.T) {
	srv, application, cleanup := setupTestApp(t)
	defer cleanup()

	study := buildStudy("creator-1", "study-zero", "zerotok")
	study.RatingScale = models.RatingScale{MinValue: 0, MaxValue: 4, MinLabel: "Never", MaxLabel: "Always"}
	require.NoError(t, application.Repo.CreateStudy(study))

	resp, _ := doJSON(t, srv, "POST", "/s/zerotok/start", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sessionCookie := cookieFromResponse(t, resp, "study_session")

	// A rating of 0 is a real answer on this scale, not a missing one
	startTime := time.Now().Add(-3 * time.Second).Format(time.RFC3339)
	resp, body := doJSON(t, srv, "POST", "/s/zerotok/tasks/0/complete",
		map[string]any{"rating": 0, "task_start_time": startTime}, sessionCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["study_completed"])

	// Out-of-scale ratings are still rejected
	resp, _ = doJSON(t, srv, "POST", "/s/zerotok/tasks/1/complete",
		map[string]any{"rating": 5, "task_start_time": startTime}, sessionCookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParticipationStudyFull(t *testing.T) {
	srv, application, cleanup := setupTestApp(t)
	defer cleanup()

	study := seedStudy(t, application, "creator-1")
	study.IPEDParameters.NumberOfRespondents = 1

	// Re-seed with one slot only
	require.NoError(t, application.Repo.DeleteStudy(study.ID))
	require.NoError(t, application.Repo.CreateStudy(study))

	resp, _ := doJSON(t, srv, "POST", "/s/sharetok/start", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, srv, "POST", "/s/sharetok/start", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body["error"], "full")
}

func TestParticipationInactiveStudy(t *testing.T) {
	srv, application, cleanup := setupTestApp(t)
	defer cleanup()

	study := seedStudy(t, application, "creator-1")
	require.NoError(t, application.Repo.UpdateStudyStatus(study.ID, models.StudyStatusPaused))

	// Welcome still resolves but reports the study is closed
	resp, body := doJSON(t, srv, "GET", "/s/sharetok/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["accepting_responses"])

	resp, _ = doJSON(t, srv, "POST", "/s/sharetok/start", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestParticipationUnknownToken(t *testing.T) {
	srv, _, cleanup := setupTestApp(t)
	defer cleanup()

	resp, _ := doJSON(t, srv, "GET", "/s/nope/", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestParticipationAbandon(t *testing.T) {
	srv, application, cleanup := setupTestApp(t)
	defer cleanup()

	seedStudy(t, application, "creator-1")

	resp, _ := doJSON(t, srv, "POST", "/s/sharetok/start", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sessionCookie := cookieFromResponse(t, resp, "study_session")

	resp, _ = doJSON(t, srv, "POST", "/s/sharetok/abandon",
		map[string]any{"reason": "too long"}, sessionCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The freed slot is handed out to the next respondent
	resp, body := doJSON(t, srv, "POST", "/s/sharetok/start", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(0), body["respondent_id"])
}
