package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/biteclub/biteclub/database"
	"github.com/biteclub/biteclub/models"
	"github.com/biteclub/biteclub/uploads"
	"github.com/glebarez/sqlite"
	"github.com/go-pkgz/auth/v2/token"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeUploader struct {
	result uploads.Result
	err    error
	calls  int
}

func (f *fakeUploader) Upload(ctx context.Context, img []byte, userID uint) (uploads.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeTrigger struct {
	result models.ScoreResult
	err    error
}

func (f *fakeTrigger) Score(ctx context.Context, imageURL, postID string) (models.ScoreResult, error) {
	return f.result, f.err
}

// fakeAuth plays the role of the auth middleware for a fixed user id.
func fakeAuth(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user", token.User{ID: userID})
		return c.Next()
	}
}

func newPostApp(t *testing.T, up PostUploader, sc ScoreTrigger) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Each pooled connection would get its own :memory: database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}))
	database.SetDB(db)

	SetupPosts(up, sc)

	app := fiber.New()
	posts := app.Group("/api/posts", fakeAuth("1"))
	posts.Post("/", UploadPost)
	posts.Get("/", GetPosts)
	posts.Get("/today-score", GetTodayScore)
	posts.Get("/latest-unscored", GetLatestUnscored)
	posts.Post("/:id/score", RescorePost)

	return app, db
}

func photoRequest(t *testing.T) *http.Request {
	t.Helper()

	var img bytes.Buffer
	require.NoError(t, jpeg.Encode(&img, image.NewRGBA(image.Rect(0, 0, 16, 16)), nil))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("photo", "capture.jpg")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/posts/", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeEnvelope(t *testing.T, res *http.Response) map[string]interface{} {
	t.Helper()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	parsed := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	return parsed
}

func TestUploadPostSuccess(t *testing.T) {
	up := &fakeUploader{result: uploads.Result{
		ImageURL:  "https://storage.googleapis.com/b/food-photos/food_1_abc123.jpg",
		ImagePath: "food-photos/food_1_abc123.jpg",
		PostID:    "p-1",
	}}
	app, _ := newPostApp(t, up, &fakeTrigger{})

	res, err := app.Test(photoRequest(t), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body := decodeEnvelope(t, res)
	assert.Equal(t, "success", body["status"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "p-1", data["post_id"])
	assert.Equal(t, 1, up.calls)
}

func TestUploadPostMissingPhoto(t *testing.T) {
	app, _ := newPostApp(t, &fakeUploader{}, &fakeTrigger{})

	req := httptest.NewRequest(http.MethodPost, "/api/posts/", nil)
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestUploadPostTerminalFailure(t *testing.T) {
	up := &fakeUploader{err: uploads.ErrStorageUploadFailed}
	app, _ := newPostApp(t, up, &fakeTrigger{})

	res, err := app.Test(photoRequest(t), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

	body := decodeEnvelope(t, res)
	assert.Equal(t, "error", body["status"])
	assert.Contains(t, body["message"], "storage upload failed")
}

func TestGetTodayScoreAggregates(t *testing.T) {
	app, db := newPostApp(t, &fakeUploader{}, &fakeTrigger{})

	seven, four, six := 7, 4, 6
	require.NoError(t, db.Create(&models.Post{UserID: 1, ImageURL: "u1", ImagePath: "p1", HealthScore: &seven}).Error)
	require.NoError(t, db.Create(&models.Post{UserID: 1, ImageURL: "u2", ImagePath: "p2", HealthScore: &four}).Error)
	// Unscored and other-user posts stay out of the aggregate.
	require.NoError(t, db.Create(&models.Post{UserID: 1, ImageURL: "u3", ImagePath: "p3"}).Error)
	require.NoError(t, db.Create(&models.Post{UserID: 2, ImageURL: "u4", ImagePath: "p4", HealthScore: &six}).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/posts/today-score", nil)
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	data := decodeEnvelope(t, res)["data"].(map[string]interface{})
	assert.Equal(t, float64(11), data["total_score"])
	assert.Equal(t, float64(2), data["post_count"])
	assert.Equal(t, 5.5, data["average_score"])
}

func TestGetTodayScoreEmpty(t *testing.T) {
	app, _ := newPostApp(t, &fakeUploader{}, &fakeTrigger{})

	req := httptest.NewRequest(http.MethodGet, "/api/posts/today-score", nil)
	res, err := app.Test(req, -1)
	require.NoError(t, err)

	data := decodeEnvelope(t, res)["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["total_score"])
	assert.Equal(t, float64(0), data["post_count"])
	assert.Equal(t, float64(0), data["average_score"])
}

func TestGetLatestUnscored(t *testing.T) {
	app, db := newPostApp(t, &fakeUploader{}, &fakeTrigger{})

	five := 5
	require.NoError(t, db.Create(&models.Post{UserID: 1, ImageURL: "scored", ImagePath: "p", HealthScore: &five}).Error)
	pending := models.Post{UserID: 1, ImageURL: "pending", ImagePath: "p"}
	require.NoError(t, db.Create(&pending).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/posts/latest-unscored", nil)
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	data := decodeEnvelope(t, res)["data"].(map[string]interface{})
	assert.Equal(t, pending.ID, data["id"])
	assert.Equal(t, "pending", data["image_url"])
}

func TestGetLatestUnscoredNone(t *testing.T) {
	app, _ := newPostApp(t, &fakeUploader{}, &fakeTrigger{})

	req := httptest.NewRequest(http.MethodGet, "/api/posts/latest-unscored", nil)
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRescorePost(t *testing.T) {
	trigger := &fakeTrigger{result: models.ScoreResult{Score: 6, Reasoning: "ok", Confidence: 3}}
	app, db := newPostApp(t, &fakeUploader{}, trigger)

	post := models.Post{UserID: 1, ImageURL: "u", ImagePath: "p"}
	require.NoError(t, db.Create(&post).Error)

	req := httptest.NewRequest(http.MethodPost, "/api/posts/"+post.ID+"/score", nil)
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	data := decodeEnvelope(t, res)["data"].(map[string]interface{})
	assert.Equal(t, float64(6), data["score"])
}

func TestRescorePostNotOwned(t *testing.T) {
	app, db := newPostApp(t, &fakeUploader{}, &fakeTrigger{})

	post := models.Post{UserID: 2, ImageURL: "u", ImagePath: "p"}
	require.NoError(t, db.Create(&post).Error)

	req := httptest.NewRequest(http.MethodPost, "/api/posts/"+post.ID+"/score", nil)
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
