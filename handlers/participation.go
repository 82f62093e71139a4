package handlers

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"iped-studio/app"
	"iped-studio/config"
	"iped-studio/models"
)

// participantCookie carries the anonymous respondent session across the
// participation flow. It is scoped to the share link, not the account.
const participantCookie = "study_session"

func setParticipantCookie(c *fiber.Ctx, sessionID string) {
	c.Cookie(&fiber.Cookie{
		Name:     participantCookie,
		Value:    sessionID,
		HTTPOnly: true,
		Secure:   config.AppConfig.Env == "production",
		SameSite: "Lax",
		Path:     "/",
	})
}

// Welcome returns the study's public welcome payload. Unknown tokens
// are 404s; paused or completed studies report their status so the
// frontend can explain why participation is closed.
func Welcome(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		study, err := a.Participation.GetStudyByToken(c.Params("token"))
		if err != nil {
			return serviceError(c, err)
		}

		return success(c, fiber.Map{
			"study": fiber.Map{
				"title":            study.Title,
				"background":       study.Background,
				"language":         study.Language,
				"study_type":       study.StudyType,
				"main_question":    study.MainQuestion,
				"orientation_text": study.OrientationText,
				"status":           study.Status,
				"tasks_per_respondent": study.IPEDParameters.TasksPerConsumer,
			},
			"accepting_responses": study.Status == models.StudyStatusActive,
		})
	}
}

// StartParticipation assigns a respondent slot and opens the session.
func StartParticipation(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp, err := a.Participation.Start(c.Params("token"), c.IP(), c.Get("User-Agent"))
		if err != nil {
			return serviceError(c, err)
		}
		setParticipantCookie(c, resp.SessionID)

		a.Logger.Info("respondent started",
			"study_id", resp.StudyID,
			"respondent_id", resp.RespondentID,
		)

		return created(c, fiber.Map{
			"respondent_id": resp.RespondentID,
			"total_tasks":   resp.TotalTasksAssigned,
			"redirect_url":  participationURL(c.Params("token"), "personal-info"),
		})
	}
}

// SubmitPersonalInfo stores optional demographics.
func SubmitPersonalInfo(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.SubmitPersonalInfoRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		if err := a.Validator.Validate(req); err != nil {
			return serviceError(c, err)
		}

		if err := a.Participation.SubmitPersonalInfo(c.Cookies(participantCookie), req); err != nil {
			return serviceError(c, err)
		}
		return success(c, fiber.Map{
			"redirect_url": participationURL(c.Params("token"), "classification"),
		})
	}
}

// SubmitClassification stores classification answers and points the
// respondent at the first task.
func SubmitClassification(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.SubmitClassificationRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		if err := a.Validator.Validate(req); err != nil {
			return serviceError(c, err)
		}

		if err := a.Participation.SubmitClassification(c.Cookies(participantCookie), req); err != nil {
			return serviceError(c, err)
		}
		return success(c, fiber.Map{
			"redirect_url": participationURL(c.Params("token"), "tasks/0"),
		})
	}
}

// GetTask returns the elements and rating scale for one task.
func GetTask(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		index, err := strconv.Atoi(c.Params("index"))
		if err != nil {
			return badRequest(c, "Invalid task index")
		}

		view, err := a.Participation.GetTask(c.Params("token"), c.Cookies(participantCookie), index)
		if err != nil {
			return serviceError(c, err)
		}

		return success(c, fiber.Map{
			"task": fiber.Map{
				"task_id":     view.Task.TaskID,
				"task_index":  view.TaskIndex,
				"total_tasks": view.TotalTasks,
				"elements":    view.VisibleElements,
			},
			"main_question": view.Study.MainQuestion,
			"rating_scale":  view.Study.RatingScale,
		})
	}
}

// StartTask opens the timing session for a task.
func StartTask(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		index, err := strconv.Atoi(c.Params("index"))
		if err != nil {
			return badRequest(c, "Invalid task index")
		}

		ts, err := a.Participation.StartTask(c.Params("token"), c.Cookies(participantCookie), index)
		if err != nil {
			return serviceError(c, err)
		}
		return success(c, fiber.Map{
			"task_id":    ts.TaskID,
			"started_at": ts.CreatedAt,
		})
	}
}

// CompleteTask records the rating for a task and reports where the
// respondent goes next.
func CompleteTask(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		index, err := strconv.Atoi(c.Params("index"))
		if err != nil {
			return badRequest(c, "Invalid task index")
		}

		var req models.CompleteTaskRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		if err := a.Validator.Validate(req); err != nil {
			return serviceError(c, err)
		}

		result, err := a.Participation.CompleteTask(c.Params("token"), c.Cookies(participantCookie), index, req)
		if err != nil {
			return serviceError(c, err)
		}

		if result.StudyCompleted {
			return success(c, fiber.Map{
				"study_completed": true,
				"redirect_url":    participationURL(c.Params("token"), "completed"),
			})
		}
		return success(c, fiber.Map{
			"study_completed": false,
			"next_task_index": result.NextTaskIndex,
			"redirect_url":    participationURL(c.Params("token"), fmt.Sprintf("tasks/%d", result.NextTaskIndex)),
		})
	}
}

// Completed returns the thank-you payload and clears the respondent
// cookie.
func Completed(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp, err := a.Participation.GetResponse(c.Cookies(participantCookie))
		if err != nil {
			return serviceError(c, err)
		}
		c.ClearCookie(participantCookie)

		return success(c, fiber.Map{
			"status":          resp.Status,
			"completed_tasks": resp.CompletedTasksCount,
			"total_tasks":     resp.TotalTasksAssigned,
		})
	}
}

// Abandon marks the response abandoned.
func Abandon(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.AbandonRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}

		if err := a.Participation.Abandon(c.Cookies(participantCookie), req.Reason); err != nil {
			return serviceError(c, err)
		}
		c.ClearCookie(participantCookie)
		return success(c, fiber.Map{"success": true})
	}
}

// TrackInteraction records a fine-grained element event. Tracking
// failures never disturb the respondent flow, so errors other than a
// missing session are swallowed after logging.
func TrackInteraction(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.TrackInteractionRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		if err := a.Validator.Validate(req); err != nil {
			return serviceError(c, err)
		}

		if err := a.Participation.TrackInteraction(c.Cookies(participantCookie), req); err != nil {
			a.Logger.Warn("interaction tracking failed", "error", err)
		}
		return success(c, fiber.Map{"success": true})
	}
}

func participationURL(token, page string) string {
	return fmt.Sprintf("/s/%s/%s", token, page)
}
