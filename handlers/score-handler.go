package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/biteclub/biteclub/database"
	"github.com/biteclub/biteclub/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const persistTimeout = 10 * time.Second

// FoodAnalyzer computes a health score for a stored image.
type FoodAnalyzer interface {
	Analyze(ctx context.Context, imageURL string) (models.ScoreResult, error)
}

var scoreAnalyzer FoodAnalyzer

// SetupScoring wires the analyzer into the scoring function handler.
func SetupScoring(a FoodAnalyzer) {
	scoreAnalyzer = a
}

type foodScoringRequest struct {
	ImageURL string `json:"imageUrl"`
	PostID   string `json:"postId"`
}

func setCORSHeaders(c *fiber.Ctx) {
	c.Set("Access-Control-Allow-Origin", "*")
	c.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	c.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
}

// ScoreFood is the scoring function: fetch the image, run the model ladder,
// persist the score on the post. A duplicate invocation for the same post
// overwrites the previous result (last write wins).
func ScoreFood(c *fiber.Ctx) error {
	requestStart := time.Now()
	requestID := fmt.Sprintf("req_%d_%s", requestStart.UnixMilli(), uuid.NewString()[:8])

	setCORSHeaders(c)

	if c.Method() == fiber.MethodOptions {
		return c.SendString("ok")
	}

	if c.Method() != fiber.MethodPost {
		return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{
			"success": false,
			"error":   "Method not allowed",
		})
	}

	log.Printf("[%s] food scoring request received", requestID)

	var body foodScoringRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if body.ImageURL == "" || body.PostID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "imageUrl and postId are required",
		})
	}

	log.Printf("[%s] analyzing post %s", requestID, body.PostID)

	result, err := scoreAnalyzer.Analyze(context.Background(), body.ImageURL)
	if err != nil {
		return scoreError(c, requestID, requestStart, err)
	}

	if err := persistScore(body.PostID, result); err != nil {
		return scoreError(c, requestID, requestStart, err)
	}

	log.Printf("[%s] completed in %dms", requestID, time.Since(requestStart).Milliseconds())

	return c.JSON(fiber.Map{
		"success":       true,
		"score":         result.Score,
		"reasoning":     result.Reasoning,
		"confidence":    result.Confidence,
		"model":         result.Model,
		"analysis_time": result.AnalysisTime,
	})
}

func persistScore(postID string, result models.ScoreResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	details := models.ScoringDetails{
		Reasoning:    result.Reasoning,
		Confidence:   result.Confidence,
		Model:        result.Model,
		AnalysisTime: result.AnalysisTime,
		ScoredAt:     time.Now().UTC().Format(time.RFC3339),
	}

	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}

	db := database.GetDB()
	res := db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Updates(map[string]interface{}{
		"health_score":    result.Score,
		"scoring_details": datatypes.JSON(raw),
	})
	if res.Error != nil {
		return fmt.Errorf("database update failed: %v", res.Error)
	}

	return nil
}

func scoreError(c *fiber.Ctx, requestID string, requestStart time.Time, err error) error {
	log.Printf("[%s] failed after %dms: %v", requestID, time.Since(requestStart).Milliseconds(), err)

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
