package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"iped-studio/app"
	"iped-studio/config"
	"iped-studio/middleware"
	"iped-studio/models"
	"iped-studio/storage"
)

var allowedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// GetDraft returns the researcher's active draft, creating one if
// needed.
func GetDraft(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status, err := a.Drafts.Status(middleware.GetUserID(c))
		if err != nil {
			return serverErrorWithDetails(c, "Failed to load draft", err)
		}
		return success(c, fiber.Map{"draft": status})
	}
}

// GetStep returns the saved payload for a wizard step.
func GetStep(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		step := c.Params("step")
		draft, payload, err := a.Drafts.GetStep(middleware.GetUserID(c), step)
		if err != nil {
			return serviceError(c, err)
		}

		var data any
		if payload != nil {
			data = json.RawMessage(payload)
		}
		return success(c, fiber.Map{
			"step":         step,
			"current_step": draft.CurrentStep,
			"data":         data,
		})
	}
}

// SaveStep validates and stores a wizard step. Steps 3a and 3b trigger
// matrix generation and launch instead of a plain save.
func SaveStep(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := middleware.GetUserID(c)
		step := c.Params("step")

		switch step {
		case "3a":
			return generateMatrix(a, c, userID)
		case "3b":
			return launchStudy(a, c, userID)
		}

		draft, nextStep, err := a.Drafts.SaveStep(userID, step, c.Body())
		if err != nil {
			return serviceError(c, err)
		}
		return success(c, fiber.Map{
			"step":         step,
			"next_step":    nextStep,
			"current_step": draft.CurrentStep,
		})
	}
}

func generateMatrix(a *app.App, c *fiber.Ctx, userID string) error {
	_, matrix, summary, err := a.Drafts.GenerateMatrix(userID)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.Map{
		"step":      "3a",
		"next_step": "3b",
		"matrix":    matrix,
		"summary":   summary,
	})
}

func launchStudy(a *app.App, c *fiber.Ctx, userID string) error {
	// An empty body launches; an explicit launch_study=false does not.
	if len(c.Body()) > 0 {
		var req models.Step3bLaunch
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		if !req.LaunchStudy {
			return badRequest(c, "Set launch_study to true to launch the study")
		}
	}

	study, err := a.Drafts.Launch(userID, config.AppConfig.BaseURL)
	if err != nil {
		return serviceError(c, err)
	}

	a.Logger.Info("study launched",
		"study_id", study.ID,
		"creator_id", userID,
		"elements", len(study.Elements),
		"respondents", study.IPEDParameters.NumberOfRespondents,
	)

	return created(c, fiber.Map{
		"study": fiber.Map{
			"id":          study.ID,
			"title":       study.Title,
			"status":      study.Status,
			"share_token": study.ShareToken,
			"share_url":   study.ShareURL,
		},
	})
}

// ResetDraft discards the active draft so the wizard starts over.
func ResetDraft(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := a.Drafts.Reset(middleware.GetUserID(c)); err != nil {
			return serverErrorWithDetails(c, "Failed to reset draft", err)
		}
		return success(c, fiber.Map{"success": true})
	}
}

// UploadElementImage stores an element image in the object store and
// returns the URL to reference as the element's content in step 2a.
func UploadElementImage(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if a.Storage == nil {
			return serverError(c, "Object storage is not configured")
		}

		index, err := strconv.Atoi(c.Params("index"))
		if err != nil || index < 1 {
			return badRequest(c, "Invalid element index")
		}

		fileHeader, err := c.FormFile("image")
		if err != nil {
			return badRequest(c, "image file is required")
		}

		maxBytes := config.AppConfig.MaxUploadMB * 1024 * 1024
		if fileHeader.Size > maxBytes {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": fmt.Sprintf("Image exceeds the %dMB limit", config.AppConfig.MaxUploadMB),
			})
		}

		contentType := fileHeader.Header.Get("Content-Type")
		ext, ok := allowedImageTypes[contentType]
		if !ok {
			return badRequest(c, "Unsupported image type; use PNG, JPEG, GIF or WebP")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return serverErrorWithDetails(c, "Failed to read upload", err)
		}
		defer file.Close()

		userID := middleware.GetUserID(c)
		key := fmt.Sprintf("elements/%s/%s%s", userID, uuid.New().String(), ext)

		info, err := a.Storage.Put(c.Context(), key, file, storage.PutObjectOptions{
			Size:        fileHeader.Size,
			ContentType: contentType,
		})
		if err != nil {
			return serverErrorWithDetails(c, "Failed to store image", err)
		}

		url, err := a.Storage.PresignGet(c.Context(), key, 7*24*time.Hour)
		if err != nil {
			return serverErrorWithDetails(c, "Failed to create image URL", err)
		}

		return created(c, fiber.Map{
			"element_index": index,
			"key":           info.Key,
			"size":          info.Size,
			"content_type":  contentType,
			"url":           url,
		})
	}
}
