package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/internal/router"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/pkg/ai"
)

type stubGenerator struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (g *stubGenerator) Generate(_ context.Context, _ string, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("https://files.test/certificates/%d.png", g.calls), nil
}

type stubUploader struct{}

func (stubUploader) Upload(_ context.Context, folder, name string, _ io.Reader) (string, error) {
	return "https://files.test/" + folder + "/" + name, nil
}

type stubGrader struct {
	score int
}

func (g stubGrader) Grade(context.Context, ai.GradingInput) (ai.GradingResult, error) {
	return ai.GradingResult{Score: g.score, Feedback: "Automated review complete"}, nil
}

type testEnv struct {
	app       *fiber.App
	db        *gorm.DB
	generator *stubGenerator
	scoring   service.ScoringService
	hub       *service.LeaderboardHub
}

// testAuth stands in for JWT validation: identity comes from X-Test-User and X-Test-Role.
func testAuth(c *fiber.Ctx) error {
	if raw := c.Get("X-Test-User"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err == nil {
			c.Locals("user_id", uint(id))
		}
	}
	role := c.Get("X-Test-Role")
	if role == "" {
		role = c.Query("role")
	}
	c.Locals("user_role", role)
	return c.Next()
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())
	generator := &stubGenerator{}

	studentRepo := repository.NewStudentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	leaderboardRepo := repository.NewLeaderboardRepository(db)
	certificationRepo := repository.NewCertificationRepository(db)

	activityService := service.NewActivityService(repository.NewActivityLogRepository(db), validate, logger)
	leaderboardService := service.NewLeaderboardService(leaderboardRepo, validate, nil, 0, logger)
	hub := service.NewLeaderboardHub(leaderboardService, logger)
	reportService := service.NewStudentReportService(service.StudentReportDependencies{
		Students:       studentRepo,
		Assignments:    assignmentRepo,
		Submissions:    submissionRepo,
		Leaderboard:    leaderboardRepo,
		Certifications: certificationRepo,
	}, 80, nil, 0, logger)

	engine := service.NewScoreEngine(generator, service.ScoreEngineConfig{QualificationScore: 80, Program: "Test Program"}, logger)
	scoring := service.NewScoringService(engine, repository.NewTransactor(db), service.NewLocalLocker(), 0, logger,
		leaderboardService, hub, service.NewScoreAuditListener(activityService, logger))

	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		Submissions:    submissionRepo,
		Assignments:    assignmentRepo,
		Students:       studentRepo,
		Leaderboard:    leaderboardRepo,
		Certifications: certificationRepo,
		Scoring:        scoring,
		Grader:         stubGrader{score: 70},
		Uploader:       stubUploader{},
		Folders:        service.SubmissionFolders{Submissions: "submissions", Feedback: "feedback"},
		Recorder:       activityService,
		Validator:      validate,
	}, logger)

	app := fiber.New()
	app.Use(middleware.CorrelationID())
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		AssignmentHandler:    handler.NewAssignmentHandler(service.NewAssignmentService(assignmentRepo, validate, stubUploader{}, "assignments", logger), logger),
		SubmissionHandler:    handler.NewSubmissionHandler(submissionService, logger),
		LeaderboardHandler:   handler.NewLeaderboardHandler(leaderboardService, scoring, hub, logger),
		CertificationHandler: handler.NewCertificationHandler(service.NewCertificationService(certificationRepo, validate, logger), logger),
		StudentReportHandler: handler.NewStudentReportHandler(reportService, logger),
		ActivityHandler:      handler.NewActivityHandler(activityService, logger),
		JWTMiddleware:        testAuth,
	})

	return &testEnv{app: app, db: db, generator: generator, scoring: scoring, hub: hub}
}

func seedStudent(t *testing.T, db *gorm.DB, first string) models.Student {
	t.Helper()
	student := models.Student{FirstName: first, LastName: "Tester", Email: strings.ToLower(first) + "@example.com"}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func seedAssignment(t *testing.T, db *gorm.DB, title string) models.Assignment {
	t.Helper()
	assignment := models.Assignment{Title: title, Description: "Solve it"}
	require.NoError(t, db.Create(&assignment).Error)
	return assignment
}

type envelope[T any] struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    T                 `json:"data"`
	Details map[string]string `json:"details"`
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}

func asUser(req *http.Request, id uint, role string) *http.Request {
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(id), 10))
	req.Header.Set("X-Test-Role", role)
	return req
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return req
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}
