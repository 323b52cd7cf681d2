package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// CertificationHandler exposes certification read endpoints.
type CertificationHandler struct {
	service service.CertificationService
	logger  zerolog.Logger
}

// NewCertificationHandler constructs the handler.
func NewCertificationHandler(service service.CertificationService, logger zerolog.Logger) *CertificationHandler {
	return &CertificationHandler{
		service: service,
		logger:  logger.With().Str("component", "certification_handler").Logger(),
	}
}

// Register binds certification routes.
func (h *CertificationHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:studentId/preview", h.preview)
	router.Get("/:studentId", h.get)
}

func (h *CertificationHandler) list(c *fiber.Ctx) error {
	var query dto.CertificationQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	certifications, err := h.service.List(requestContext(c), query)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}
	return utils.SendList(c, "certifications retrieved", certifications)
}

func (h *CertificationHandler) get(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	certification, err := h.service.Get(requestContext(c), studentID)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "certification retrieved", certification)
}

func (h *CertificationHandler) preview(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	certification, err := h.service.Get(requestContext(c), studentID)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}
	if certification.FileURL == "" {
		return utils.SendError(c, fiber.StatusNotFound, "certificate document not available")
	}
	return c.Redirect(certification.FileURL, fiber.StatusFound)
}
