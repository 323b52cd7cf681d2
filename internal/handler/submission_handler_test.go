package handler_test

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
)

func createSubmission(t *testing.T, env *testEnv, student models.Student, assignment models.Assignment) dto.SubmissionResponse {
	t.Helper()
	req := formRequest(fiber.MethodPost, "/api/v2/submissions", url.Values{
		"assignment_id": {strconv.FormatUint(uint64(assignment.ID), 10)},
		"content":       {"func main() { fmt.Println(42) }"},
	})
	resp := doRequest(t, env.app, asUser(req, student.ID, "student"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body envelope[dto.SubmissionResponse]
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	return body.Data
}

func TestSubmissionHandlerCreateThenMentorGrade(t *testing.T) {
	env := setupTestEnv(t)
	student := seedStudent(t, env.db, "Ana")
	assignment := seedAssignment(t, env.db, "Recursion")

	created := createSubmission(t, env, student, assignment)
	require.Equal(t, student.ID, created.StudentID)
	require.NotNil(t, created.AIScore)
	require.Equal(t, 70, *created.AIScore)
	require.Equal(t, 70, created.EffectiveScore)
	require.NotNil(t, created.Standing)
	require.NotNil(t, created.Standing.Certification)
	require.Equal(t, models.CertificateStatusNotQualified, created.Standing.Certification.CertificateStatus)
	require.NotNil(t, created.Standing.Leaderboard.Rank)
	require.Equal(t, 1, *created.Standing.Leaderboard.Rank)

	gradeURL := fmt.Sprintf("/api/v2/submissions/%d/grade", created.ID)

	resp := doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodPost, gradeURL, map[string]interface{}{"mentor_score": 92}), student.ID, "student"))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodPost, gradeURL, map[string]interface{}{"mentor_score": 101}), 900, "mentor"))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var invalid envelope[interface{}]
	decodeResponse(t, resp, &invalid)
	require.False(t, invalid.Success)
	require.Contains(t, invalid.Details, "mentorscore")

	resp = doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodPost, gradeURL, map[string]interface{}{
		"mentor_score":    92,
		"mentor_feedback": "Clean and correct",
	}), 900, "mentor"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var graded envelope[dto.SubmissionResponse]
	decodeResponse(t, resp, &graded)
	require.Equal(t, "submission graded", graded.Message)
	require.Equal(t, 92, graded.Data.EffectiveScore)
	require.Equal(t, "Clean and correct", graded.Data.MentorFeedback)
	require.False(t, graded.Data.Standing.CertificatePending)
	require.Equal(t, models.CertificateStatusQualified, graded.Data.Standing.Certification.CertificateStatus)
	require.NotEmpty(t, graded.Data.Standing.Certification.FileURL)
	require.NotNil(t, graded.Data.Standing.Certification.IssueDate)
	require.Equal(t, 92, graded.Data.Standing.Leaderboard.TotalScore)

	resp = doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodPost, "/api/v2/submissions/999/grade", map[string]interface{}{"mentor_score": 50}), 900, "mentor"))
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSubmissionHandlerReportsPendingCertificate(t *testing.T) {
	env := setupTestEnv(t)
	student := seedStudent(t, env.db, "Pending")
	assignment := seedAssignment(t, env.db, "Graphs")
	created := createSubmission(t, env, student, assignment)

	env.generator.err = errors.New("object store unavailable")

	resp := doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodPost, fmt.Sprintf("/api/v2/submissions/%d/grade", created.ID), map[string]interface{}{"mentor_score": 95}), 900, "admin"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var graded envelope[dto.SubmissionResponse]
	decodeResponse(t, resp, &graded)
	require.Equal(t, 95, graded.Data.EffectiveScore)
	require.True(t, graded.Data.Standing.CertificatePending)
	require.Equal(t, models.CertificateStatusQualified, graded.Data.Standing.Certification.CertificateStatus)
	require.Empty(t, graded.Data.Standing.Certification.FileURL)
}

func TestSubmissionHandlerValidationAndScoping(t *testing.T) {
	env := setupTestEnv(t)
	owner := seedStudent(t, env.db, "Owner")
	other := seedStudent(t, env.db, "Other")
	assignment := seedAssignment(t, env.db, "Sorting")

	req := formRequest(fiber.MethodPost, "/api/v2/submissions", url.Values{
		"assignment_id": {strconv.FormatUint(uint64(assignment.ID), 10)},
	})
	resp := doRequest(t, env.app, asUser(req, owner.ID, "student"))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req = formRequest(fiber.MethodPost, "/api/v2/submissions", url.Values{
		"assignment_id": {"4040"},
		"content":       {"answer"},
	})
	resp = doRequest(t, env.app, asUser(req, owner.ID, "student"))
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	created := createSubmission(t, env, owner, assignment)

	resp = doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodGet, fmt.Sprintf("/api/v2/submissions/%d", created.ID), nil), other.ID, "student"))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodGet, fmt.Sprintf("/api/v2/submissions/%d", created.ID), nil), owner.ID, "student"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodGet, "/api/v2/submissions", nil), other.ID, "student"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var listed envelope[[]dto.SubmissionResponse]
	decodeResponse(t, resp, &listed)
	require.Empty(t, listed.Data)

	resp = doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodGet, fmt.Sprintf("/api/v2/submissions?student_id=%d", owner.ID), nil), 900, "mentor"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &listed)
	require.Len(t, listed.Data, 1)

	resp = doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodGet, "/api/v2/submissions/abc", nil), 900, "mentor"))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionHandlerReviewAndFeedback(t *testing.T) {
	env := setupTestEnv(t)
	student := seedStudent(t, env.db, "Reviewed")
	assignment := seedAssignment(t, env.db, "Dynamic programming")
	created := createSubmission(t, env, student, assignment)

	resp := doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodPost, fmt.Sprintf("/api/v2/submissions/%d/review", created.ID), map[string]interface{}{
		"mentor_score": 60,
		"feedback":     "Memoize the recursion",
	}), 900, "mentor"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var reviewed envelope[dto.SubmissionResponse]
	decodeResponse(t, resp, &reviewed)
	require.Equal(t, 60, reviewed.Data.EffectiveScore)
	require.Len(t, reviewed.Data.Feedback, 1)
	require.Equal(t, models.CertificateStatusNotQualified, reviewed.Data.Standing.Certification.CertificateStatus)

	feedbackURL := fmt.Sprintf("/api/v2/submissions/%d/feedback", created.ID)

	resp = doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodPost, feedbackURL, map[string]interface{}{
		"type":    "text",
		"content": "<script>alert(1)</script>",
	}), 900, "mentor"))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodPost, feedbackURL, map[string]interface{}{
		"type":    "text",
		"content": "Consider bottom-up tabulation",
	}), 900, "mentor"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var feedback envelope[dto.FeedbackResponse]
	decodeResponse(t, resp, &feedback)
	require.Equal(t, "text", feedback.Data.Type)
	require.Equal(t, uint(900), feedback.Data.MentorID)
	require.Equal(t, "Consider bottom-up tabulation", feedback.Data.Content)

	resp = doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodPost, feedbackURL, map[string]interface{}{
		"type": "audio",
	}), 900, "mentor"))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionHandlerPendingQueue(t *testing.T) {
	env := setupTestEnv(t)
	student := seedStudent(t, env.db, "Queued")
	first := seedAssignment(t, env.db, "Heaps")
	second := seedAssignment(t, env.db, "Queues")

	waiting := createSubmission(t, env, student, first)
	graded := createSubmission(t, env, student, second)
	resp := doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodPost, fmt.Sprintf("/api/v2/submissions/%d/grade", graded.ID), map[string]interface{}{"mentor_score": 75}), 900, "mentor"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodGet, "/api/v2/submissions/pending", nil), student.ID, "student"))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodGet, "/api/v2/submissions/pending", nil), 900, "mentor"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var queue envelope[[]dto.SubmissionResponse]
	decodeResponse(t, resp, &queue)
	require.Equal(t, "pending submissions retrieved", queue.Message)
	require.Len(t, queue.Data, 1)
	require.Equal(t, waiting.ID, queue.Data[0].ID)
	require.Nil(t, queue.Data[0].MentorScore)

	resp = doRequest(t, env.app, asUser(jsonRequest(t, fiber.MethodGet, fmt.Sprintf("/api/v2/submissions/pending?assignment_id=%d", second.ID), nil), 900, "teacher"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &queue)
	require.Empty(t, queue.Data)
}
