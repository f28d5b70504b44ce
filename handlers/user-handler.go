package handler

import (
	"errors"
	"regexp"

	"github.com/biteclub/biteclub/database"
	"github.com/biteclub/biteclub/middleware"
	"github.com/biteclub/biteclub/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

func GetMe(c *fiber.Ctx) error {
	type UserResponse struct {
		ID            uint   `json:"id"`
		Email         string `json:"email"`
		Username      string `json:"username"`
		EmailVerified bool   `json:"email_verified"`
	}

	userID, err := middleware.CheckUserLoggedIn(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Authentication required",
			"data":    nil,
		})
	}

	db := database.GetDB()
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": "No user found with ID",
				"data":    nil,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Database error",
			"data":    nil,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "User found",
		"data": UserResponse{
			ID:            user.ID,
			Email:         user.Email,
			Username:      user.Username,
			EmailVerified: user.EmailVerified,
		},
	})
}

// UsernameAvailable answers the live availability check the username screen
// polls while the user types.
func UsernameAvailable(c *fiber.Ctx) error {
	username := c.Query("u")
	if !usernamePattern.MatchString(username) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Username must be 3-20 characters: lowercase letters, digits, underscores",
			"data":    nil,
		})
	}

	db := database.GetDB()
	var existing models.User
	err := db.Where("username = ?", username).First(&existing).Error

	available := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !available {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Database error",
			"data":    nil,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Availability checked",
		"data":    fiber.Map{"username": username, "available": available},
	})
}

// ClaimUsername sets the authenticated user's username once it is validated
// and still free.
func ClaimUsername(c *fiber.Ctx) error {
	type ClaimData struct {
		Username string `json:"username"`
	}

	userID, err := middleware.CheckUserLoggedIn(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Authentication required",
			"data":    nil,
		})
	}

	input := new(ClaimData)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid request body",
			"data":    nil,
		})
	}

	if !usernamePattern.MatchString(input.Username) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Username must be 3-20 characters: lowercase letters, digits, underscores",
			"data":    nil,
		})
	}

	db := database.GetDB()

	var existing models.User
	if err := db.Where("username = ? AND id != ?", input.Username, userID).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"status":  "error",
			"message": "Username already taken",
			"data":    nil,
		})
	}

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "error",
			"message": "User not found",
			"data":    nil,
		})
	}

	user.Username = input.Username
	if err := db.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to update user",
			"data":    nil,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Username claimed",
		"data":    fiber.Map{"username": user.Username},
	})
}
