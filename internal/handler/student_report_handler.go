package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// StudentReportHandler serves per-student grade reports.
type StudentReportHandler struct {
	service service.StudentReportService
	logger  zerolog.Logger
}

// NewStudentReportHandler constructs the handler.
func NewStudentReportHandler(service service.StudentReportService, logger zerolog.Logger) *StudentReportHandler {
	return &StudentReportHandler{
		service: service,
		logger:  logger.With().Str("component", "student_report_handler").Logger(),
	}
}

// Register binds report routes.
func (h *StudentReportHandler) Register(router fiber.Router) {
	router.Get("/:id/report", h.report)
}

func (h *StudentReportHandler) report(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if middleware.IsStudent(c) && middleware.CurrentUserID(c) != studentID {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	report, err := h.service.GetReport(requestContext(c), studentID)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "student report retrieved", report)
}
