package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"iped-studio/app"
	"iped-studio/middleware"
	"iped-studio/models"
)

// ListStudies returns the researcher's studies for the dashboard.
func ListStudies(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		studies, err := a.Studies.ListStudies(middleware.GetUserID(c))
		if err != nil {
			return serverErrorWithDetails(c, "Failed to list studies", err)
		}
		return success(c, fiber.Map{"studies": studies, "count": len(studies)})
	}
}

// GetStudy returns one study with its configuration and counters.
func GetStudy(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		study, err := a.Studies.GetStudy(c.Params("id"), middleware.GetUserID(c))
		if err != nil {
			return serviceError(c, err)
		}
		return success(c, fiber.Map{"study": study})
	}
}

// UpdateStudyStatus moves a study between active, paused and completed.
func UpdateStudyStatus(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.UpdateStudyStatusRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		if err := a.Validator.Validate(req); err != nil {
			return serviceError(c, err)
		}

		study, err := a.Studies.UpdateStatus(c.Params("id"), middleware.GetUserID(c), req.Status)
		if err != nil {
			return serviceError(c, err)
		}

		a.Logger.Info("study status changed", "study_id", study.ID, "status", study.Status)
		return success(c, fiber.Map{"study": fiber.Map{"id": study.ID, "status": study.Status}})
	}
}

// DeleteStudy removes a study and its responses.
func DeleteStudy(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := a.Studies.Delete(c.Params("id"), middleware.GetUserID(c)); err != nil {
			return serviceError(c, err)
		}
		return success(c, fiber.Map{"success": true})
	}
}

// GetStudyResponses returns every respondent record for a study.
func GetStudyResponses(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		study, responses, err := a.Studies.Responses(c.Params("id"), middleware.GetUserID(c))
		if err != nil {
			return serviceError(c, err)
		}
		return success(c, fiber.Map{
			"study_id":            study.ID,
			"total_responses":     study.TotalResponses,
			"completed_responses": study.CompletedResponses,
			"abandoned_responses": study.AbandonedResponses,
			"responses":           responses,
		})
	}
}

// ExportStudyCSV streams the per-task CSV export. Used by both the
// session-authenticated dashboard route and the Bearer-token API route.
func ExportStudyCSV(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		studyID := c.Params("id")
		userID := middleware.GetUserID(c)

		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition,
			fmt.Sprintf(`attachment; filename="study_%s_export.csv"`, studyID))

		if err := a.Studies.WriteCSV(c.Response().BodyWriter(), studyID, userID); err != nil {
			// Reset the headers set above before the error response.
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			c.Set(fiber.HeaderContentDisposition, "")
			return serviceError(c, err)
		}
		return nil
	}
}
