package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// SubmissionHandler manages submission and grading endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. Grading routes are
// restricted to mentors and admins.
func (h *SubmissionHandler) Register(router fiber.Router) {
	graders := middleware.RequireGrader()

	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/pending", graders, h.pending)
	router.Get("/:id", h.get)
	router.Post("/:id/grade", graders, h.grade)
	router.Post("/:id/review", graders, h.review)
	router.Post("/:id/feedback", graders, h.feedback)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	filter := dto.SubmissionFilter{}
	assignmentID, err := parseQueryUint(c, "assignment_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseQueryUint(c, "student_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	filter.AssignmentID = assignmentID
	filter.StudentID = studentID

	if middleware.IsStudent(c) {
		self := middleware.CurrentUserID(c)
		filter.StudentID = &self
	}

	submissions, err := h.service.List(requestContext(c), filter)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendList(c, "submissions retrieved", submissions)
}

// pending is the mentor grading queue: submissions without a mentor score,
// oldest first, optionally narrowed to one assignment.
func (h *SubmissionHandler) pending(c *fiber.Ctx) error {
	assignmentID, err := parseQueryUint(c, "assignment_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.service.List(requestContext(c), dto.SubmissionFilter{AssignmentID: assignmentID, Pending: true})
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}
	return utils.SendList(c, "pending submissions retrieved", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	if middleware.IsStudent(c) && submission.StudentID != middleware.CurrentUserID(c) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	// Students always submit as themselves.
	if middleware.IsStudent(c) {
		payload.StudentID = middleware.CurrentUserID(c)
	}

	file, err := optionalFormFile(c, "file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid file upload")
	}

	submission, err := h.service.Create(requestContext(c), activityActorFromContext(c), payload, file)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
}

func (h *SubmissionHandler) grade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmissionGradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Grade(requestContext(c), activityActorFromContext(c), id, payload)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, gradedMessage(submission), submission)
}

func (h *SubmissionHandler) review(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmissionReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Review(requestContext(c), activityActorFromContext(c), id, payload)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, gradedMessage(submission), submission)
}

func (h *SubmissionHandler) feedback(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmissionFeedbackRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	file, err := optionalFormFile(c, "file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid file upload")
	}

	entry, err := h.service.AddFeedback(requestContext(c), activityActorFromContext(c), id, payload, file)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "feedback added", entry)
}

func gradedMessage(submission dto.SubmissionResponse) string {
	if submission.Standing != nil && submission.Standing.CertificatePending {
		return "submission graded; certificate issuance pending"
	}
	return "submission graded"
}
