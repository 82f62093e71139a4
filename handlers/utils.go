package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"iped-studio/services"
	"iped-studio/validator"
)

func success(c *fiber.Ctx, data fiber.Map) error {
	return c.JSON(data)
}

func created(c *fiber.Ctx, data fiber.Map) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func notFound(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": message})
}

func forbidden(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": message})
}

func serverError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": message})
}

func serverErrorWithDetails(c *fiber.Ctx, message string, err error) error {
	requestID := ""
	if id, ok := c.Locals("requestID").(string); ok {
		requestID = id
	}

	slog.Error("server error",
		"request_id", requestID,
		"method", c.Method(),
		"path", c.Path(),
		"message", message,
		"error", err,
	)

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": message})
}

// serviceError maps known service errors to JSON responses; unknown
// errors become logged 500s.
func serviceError(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Validation failed",
			"fields": verrs,
		})
	}

	switch {
	case errors.Is(err, services.ErrInvalidStepPayload),
		errors.Is(err, services.ErrRatingOutOfRange):
		return badRequest(c, err.Error())
	case errors.Is(err, services.ErrUnknownStep),
		errors.Is(err, services.ErrStudyNotFound),
		errors.Is(err, services.ErrDraftNotFound),
		errors.Is(err, services.ErrResponseNotFound),
		errors.Is(err, services.ErrTaskIndexInvalid):
		return notFound(c, err.Error())
	case errors.Is(err, services.ErrStepLocked),
		errors.Is(err, services.ErrDraftIncomplete):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrStudyInactive),
		errors.Is(err, services.ErrStudyFull),
		errors.Is(err, services.ErrResponseFinished):
		return forbidden(c, err.Error())
	case errors.Is(err, services.ErrNoActiveSession):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	return serverErrorWithDetails(c, "Internal server error", err)
}
