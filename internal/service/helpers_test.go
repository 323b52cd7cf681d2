package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/pkg/ai"
)

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedStudent(t *testing.T, db *gorm.DB, first string) models.Student {
	t.Helper()
	student := models.Student{FirstName: first, LastName: "Student", Email: strings.ToLower(first) + "@example.com"}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func seedAssignment(t *testing.T, db *gorm.DB, title string) models.Assignment {
	t.Helper()
	assignment := models.Assignment{Title: title, Description: "Complete the exercise"}
	require.NoError(t, db.Create(&assignment).Error)
	return assignment
}

func seedSubmission(t *testing.T, db *gorm.DB, assignmentID, studentID uint, aiScore, mentorScore *int) models.Submission {
	t.Helper()
	submission := models.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Content:      "answer",
		AIScore:      aiScore,
		MentorScore:  mentorScore,
	}
	require.NoError(t, db.Omit("Assignment", "Student", "Feedback").Create(&submission).Error)
	return submission
}

func intPtr(v int) *int {
	return &v
}

func uintPtr(v uint) *uint {
	return &v
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, studentName, program string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, studentName+"|"+program)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("https://files.example.com/certificates/%d.png", len(f.calls)), nil
}

func (f *fakeGenerator) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeUploader struct {
	mu      sync.Mutex
	folders []string
	names   []string
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, folder, name string, reader io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders = append(f.folders, folder)
	f.names = append(f.names, name)
	return "https://files.example.com/" + folder + "/" + name, nil
}

type fakeGrader struct {
	result ai.GradingResult
	err    error
	inputs []ai.GradingInput
}

func (f *fakeGrader) Grade(_ context.Context, input ai.GradingInput) (ai.GradingResult, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return ai.GradingResult{}, f.err
	}
	return f.result, nil
}

type recordingListener struct {
	mu      sync.Mutex
	changes []ScoreChange
}

func (r *recordingListener) OnScoreChange(_ context.Context, change ScoreChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *recordingListener) all() []ScoreChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ScoreChange(nil), r.changes...)
}

func newTestEngine(generator CertificateGenerator) *ScoreEngine {
	engine := NewScoreEngine(generator, ScoreEngineConfig{QualificationScore: 80, Program: "General Qualification"}, zerolog.Nop())
	engine.now = func() time.Time { return fixedNow }
	return engine
}

func newTestScoringService(db *gorm.DB, generator CertificateGenerator, listeners ...ScoreListener) ScoringService {
	return NewScoringService(newTestEngine(generator), repository.NewTransactor(db), NewLocalLocker(), time.Second, zerolog.Nop(), listeners...)
}

func loadLeaderboardEntry(t *testing.T, db *gorm.DB, studentID uint) models.LeaderboardEntry {
	t.Helper()
	var entry models.LeaderboardEntry
	require.NoError(t, db.Where("student_id = ?", studentID).First(&entry).Error)
	return entry
}

func loadCertification(t *testing.T, db *gorm.DB, studentID uint) models.Certification {
	t.Helper()
	var cert models.Certification
	require.NoError(t, db.Where("student_id = ?", studentID).First(&cert).Error)
	return cert
}

func newTestValidator() *validator.Validate {
	return validator.New()
}

// newFileHeader builds a multipart file header the way fiber hands uploads to services.
func newFileHeader(t *testing.T, field, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	header.Set("Content-Type", "application/octet-stream")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content)) + 1024)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	files := form.File[field]
	require.Len(t, files, 1)
	return files[0]
}

func isValidationErr(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
