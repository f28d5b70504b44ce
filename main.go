package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/biteclub/biteclub/auth"
	"github.com/biteclub/biteclub/config"
	"github.com/biteclub/biteclub/database"
	handler "github.com/biteclub/biteclub/handlers"
	"github.com/biteclub/biteclub/models"
	"github.com/biteclub/biteclub/router"
	"github.com/biteclub/biteclub/scoring"
	"github.com/biteclub/biteclub/storage"
	"github.com/biteclub/biteclub/uploads"
)

func main() {
	db := database.GetDB()

	// Run migrations
	err := database.MigrateModels(&models.User{}, &models.Post{})
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	auth.SetupAuthService()

	ctx := context.Background()

	uploader, err := storage.NewUploader(ctx,
		config.Config("GCS_PROJECT_ID"),
		config.Config("GCS_BUCKET_NAME"))
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}

	gemini, err := scoring.NewGeminiModel(ctx)
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}

	port := config.ConfigOr("PORT", "3000")
	scoreClient := scoring.NewClient(config.ConfigOr("SCORE_FUNCTION_URL",
		"http://localhost:"+port+"/functions/v1/score-food"))

	orchestrator := uploads.NewOrchestrator(uploader, db, scoreClient)

	handler.SetupPosts(orchestrator, scoreClient)
	handler.SetupScoring(scoring.NewAnalyzer(gemini))

	app := fiber.New()
	router.SetupRoutes(app)

	// close the database connection
	defer func() {
		if err := database.CloseDB(); err != nil {
			log.Fatalf("Error closing the database connection: %v", err)
		}
	}()

	fmt.Printf("Server is listening at the port %s\n", port)
	log.Fatal(app.Listen(":" + port))
}
