package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"iped-studio/app"
	"iped-studio/config"
	"iped-studio/middleware"
	"iped-studio/models"
	"iped-studio/services"
)

func setSessionCookie(c *fiber.Ctx, sess *models.Session) {
	c.Cookie(&fiber.Cookie{
		Name:     "session_id",
		Value:    sess.ID,
		Expires:  sess.ExpiresAt,
		HTTPOnly: true,
		Secure:   config.AppConfig.Env == "production",
		SameSite: "Lax",
		Path:     "/",
	})
}

// Register creates a researcher account and logs it in.
func Register(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		if err := a.Validator.Validate(req); err != nil {
			return serviceError(c, err)
		}

		user, err := a.Auth.Register(req)
		if err != nil {
			if errors.Is(err, services.ErrEmailTaken) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "Email already registered",
				})
			}
			return serverErrorWithDetails(c, "Failed to create account", err)
		}

		sess, err := a.Auth.Login(models.LoginRequest{Email: req.Email, Password: req.Password})
		if err != nil {
			return serverErrorWithDetails(c, "Failed to open session", err)
		}
		setSessionCookie(c, sess)

		return created(c, fiber.Map{
			"user": fiber.Map{
				"id":       user.ID,
				"email":    user.Email,
				"username": user.Username,
			},
		})
	}
}

// Login authenticates a researcher and sets the session cookie.
func Login(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		if err := a.Validator.Validate(req); err != nil {
			return serviceError(c, err)
		}

		sess, err := a.Auth.Login(req)
		if err != nil {
			if errors.Is(err, services.ErrInvalidCredentials) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid email or password",
				})
			}
			return serverErrorWithDetails(c, "Login failed", err)
		}
		setSessionCookie(c, sess)

		return success(c, fiber.Map{
			"user": fiber.Map{
				"id":       sess.UserID,
				"email":    sess.Email,
				"username": sess.Username,
			},
		})
	}
}

// Logout discards the researcher session.
func Logout(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if sessionID := c.Cookies("session_id"); sessionID != "" {
			a.Auth.Logout(sessionID)
		}
		c.ClearCookie("session_id")
		return success(c, fiber.Map{"success": true})
	}
}

// Me returns the current researcher's session information.
func Me(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies("session_id")
		if sessionID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"authenticated": false,
			})
		}

		sess, err := a.Auth.GetSessionInfo(sessionID)
		if err != nil {
			c.ClearCookie("session_id")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"authenticated": false,
			})
		}

		return success(c, fiber.Map{
			"authenticated": true,
			"user": fiber.Map{
				"id":       sess.UserID,
				"email":    sess.Email,
				"username": sess.Username,
			},
		})
	}
}

// APIToken mints a Bearer token for the export API. Requires an active
// session.
func APIToken(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := middleware.GetUserID(c)
		email := middleware.GetUserEmail(c)

		token, err := a.Auth.GenerateAPIToken(userID, email)
		if err != nil {
			return serverErrorWithDetails(c, "Failed to generate token", err)
		}
		return success(c, fiber.Map{
			"token":      token,
			"token_type": "Bearer",
			"expires_in": 24 * 60 * 60,
		})
	}
}
