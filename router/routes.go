package router

import (
	"github.com/biteclub/biteclub/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	handler "github.com/biteclub/biteclub/handlers"
)

func SetupRoutes(app *fiber.App) {
	api := app.Group("/api", logger.New())
	api.Get("/hello", handler.Hello)

	// Auth
	auth := api.Group("/auth")
	auth.Post("/signup", handler.Signup)
	auth.Post("/login", handler.Login)
	auth.Post("/logout", handler.Logout)

	// User
	user := api.Group("/user", middleware.AuthMiddleware())
	user.Get("/me", handler.GetMe)
	user.Get("/username-available", handler.UsernameAvailable)
	user.Post("/username", handler.ClaimUsername)

	// Posts
	posts := api.Group("/posts", middleware.AuthMiddleware())
	posts.Post("/", handler.UploadPost)
	posts.Get("/", handler.GetPosts)
	posts.Get("/today-score", handler.GetTodayScore)
	posts.Get("/latest-unscored", handler.GetLatestUnscored)
	posts.Post("/:id/score", handler.RescorePost)

	// Scoring function; handles its own CORS and method checks
	functions := app.Group("/functions/v1")
	functions.All("/score-food", handler.ScoreFood)
}
