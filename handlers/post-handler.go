package handler

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/biteclub/biteclub/database"
	"github.com/biteclub/biteclub/middleware"
	"github.com/biteclub/biteclub/models"
	"github.com/biteclub/biteclub/process"
	"github.com/biteclub/biteclub/uploads"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PostUploader runs the upload pipeline for a captured photo.
type PostUploader interface {
	Upload(ctx context.Context, image []byte, userID uint) (uploads.Result, error)
}

// ScoreTrigger re-invokes the scoring function for an existing post.
type ScoreTrigger interface {
	Score(ctx context.Context, imageURL, postID string) (models.ScoreResult, error)
}

var (
	postUploader PostUploader
	scoreTrigger ScoreTrigger

	// One in-flight upload per user; duplicate gestures are rejected, not
	// queued.
	uploading sync.Map
)

// SetupPosts wires the upload orchestrator and scoring trigger into the post
// handlers.
func SetupPosts(up PostUploader, sc ScoreTrigger) {
	postUploader = up
	scoreTrigger = sc
}

// UploadPost accepts a multipart "photo", normalizes it and drives the
// upload pipeline. It returns once the image is stored and the post row
// exists; the health score arrives later.
func UploadPost(c *fiber.Ctx) error {
	userID, err := middleware.CheckUserLoggedIn(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Authentication required",
			"data":    nil,
		})
	}

	if _, busy := uploading.LoadOrStore(userID, struct{}{}); busy {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"status":  "error",
			"message": "Upload already in progress",
			"data":    nil,
		})
	}
	defer uploading.Delete(userID)

	file, err := c.FormFile("photo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "No photo provided",
			"data":    nil,
		})
	}

	blobFile, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Error opening the file",
			"data":    nil,
		})
	}
	defer blobFile.Close()

	image, err := process.NormalizeJPEG(blobFile)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": err.Error(),
			"data":    nil,
		})
	}

	result, err := postUploader.Upload(context.Background(), image, userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": err.Error(),
			"data":    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Successfully uploaded the photo",
		"data":    result,
	})
}

func GetPosts(c *fiber.Ctx) error {
	userID, err := middleware.CheckUserLoggedIn(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Authentication required",
			"data":    nil,
		})
	}

	db := database.GetDB()
	var posts []models.Post
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&posts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Database error",
			"data":    nil,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Posts fetched",
		"data":    posts,
	})
}

// GetTodayScore sums the user's scored posts for the current day.
func GetTodayScore(c *fiber.Ctx) error {
	userID, err := middleware.CheckUserLoggedIn(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Authentication required",
			"data":    nil,
		})
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	db := database.GetDB()
	var posts []models.Post
	err = db.Where("user_id = ? AND health_score IS NOT NULL", userID).
		Where("created_at >= ? AND created_at < ?", startOfDay, endOfDay).
		Find(&posts).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Database error",
			"data":    nil,
		})
	}

	totalScore := 0
	for _, post := range posts {
		if post.HealthScore != nil {
			totalScore += *post.HealthScore
		}
	}

	postCount := len(posts)
	averageScore := 0.0
	if postCount > 0 {
		averageScore = math.Round(float64(totalScore)/float64(postCount)*10) / 10
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Today's score computed",
		"data": fiber.Map{
			"total_score":   totalScore,
			"post_count":    postCount,
			"average_score": averageScore,
		},
	})
}

// GetLatestUnscored returns the newest post still waiting for a score, so
// the client can re-trigger scoring after an interrupted upload.
func GetLatestUnscored(c *fiber.Ctx) error {
	userID, err := middleware.CheckUserLoggedIn(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Authentication required",
			"data":    nil,
		})
	}

	db := database.GetDB()
	var post models.Post
	err = db.Where("user_id = ? AND health_score IS NULL", userID).
		Order("created_at DESC").First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": "No unscored posts found",
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
		"message": "Latest unscored post",
		"data":    fiber.Map{"id": post.ID, "image_url": post.ImageURL},
	})
}

// RescorePost triggers scoring again for one of the user's posts. The call
// is synchronous; the result reports the fresh score.
func RescorePost(c *fiber.Ctx) error {
	userID, err := middleware.CheckUserLoggedIn(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Authentication required",
			"data":    nil,
		})
	}

	postID := c.Params("id")

	db := database.GetDB()
	var post models.Post
	if err := db.Where("id = ? AND user_id = ?", postID, userID).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": "Post not found",
				"data":    nil,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Database error",
			"data":    nil,
		})
	}

	result, err := scoreTrigger.Score(context.Background(), post.ImageURL, post.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": err.Error(),
			"data":    nil,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Post rescored",
		"data":    result,
	})
}
