package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

func activityActorFromContext(c *fiber.Ctx) service.ActivityActor {
	return service.ActivityActor{
		ID:   middleware.CurrentUserID(c),
		Role: middleware.CurrentRole(c),
	}
}

// requestContext returns the request context tagged with the correlation id.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}

func parseQueryUint(c *fiber.Ctx, key string) (*uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, errors.New("invalid " + key)
	}
	result := uint(parsed)
	return &result, nil
}

// optionalFormFile returns the uploaded file under key, or nil when none was sent.
func optionalFormFile(c *fiber.Ctx, key string) (*multipart.FileHeader, error) {
	if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	file, err := c.FormFile(key)
	if err != nil {
		if errors.Is(err, fasthttp.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	return file, nil
}

// respondServiceError maps service sentinels to HTTP statuses.
func respondServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "validation failed", validationDetails(validationErrors))
	case errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrCertificationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrSubmissionEmpty),
		errors.Is(err, service.ErrFeedbackEmpty),
		errors.Is(err, service.ErrUnsupportedFileType),
		errors.Is(err, service.ErrAssignmentClosed),
		errors.Is(err, service.ErrInvalidDueDate):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrLockTimeout):
		return utils.SendError(c, fiber.StatusConflict, "score recalculation in progress, retry shortly")
	default:
		requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func validationDetails(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		key := strings.ToLower(fieldErr.Field())
		if fieldErr.Param() != "" {
			details[key] = fieldErr.Tag() + "=" + fieldErr.Param()
			continue
		}
		details[key] = fieldErr.Tag()
	}
	return details
}
