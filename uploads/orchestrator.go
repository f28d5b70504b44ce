package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/biteclub/biteclub/models"
	"gorm.io/gorm"
)

const maxUploadRetries = 3

var (
	ErrStorageUploadFailed  = errors.New("storage upload failed")
	ErrMetadataInsertFailed = errors.New("failed to create post record")
)

// ObjectStore uploads a named object and returns its public URL and path.
type ObjectStore interface {
	Upload(ctx context.Context, objectName string, file io.Reader) (url, path string, err error)
}

// ScoreTrigger invokes the scoring function for a stored image.
type ScoreTrigger interface {
	Score(ctx context.Context, imageURL, postID string) (models.ScoreResult, error)
}

// Result is what the caller gets back once the image is stored and the post
// row exists. The health score is always still pending at this point.
type Result struct {
	ImageURL  string `json:"image_url"`
	ImagePath string `json:"image_path"`
	PostID    string `json:"post_id"`
}

// Orchestrator drives the upload pipeline: store the binary, insert the post
// row, then trigger scoring in the background without blocking the caller.
type Orchestrator struct {
	store  ObjectStore
	db     *gorm.DB
	scorer ScoreTrigger

	// OnScored receives the score once background scoring succeeds.
	OnScored func(postID string, score int, reasoning string)

	sleep func(time.Duration)
}

func NewOrchestrator(store ObjectStore, db *gorm.DB, scorer ScoreTrigger) *Orchestrator {
	return &Orchestrator{
		store:  store,
		db:     db,
		scorer: scorer,
		sleep:  time.Sleep,
	}
}

// GenerateUniqueFilename builds a collision-resistant object name:
// food_<unixMillis>_<6-char base36>.jpg
func GenerateUniqueFilename() string {
	timestamp := time.Now().UnixMilli()
	random := randomBase36(6)
	return fmt.Sprintf("food_%d_%s.jpg", timestamp, random)
}

func randomBase36(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

// Upload stores the image, creates the post record and schedules scoring.
// It returns as soon as the row exists; scoring success is delivered through
// OnScored and scoring failure is only logged.
func (o *Orchestrator) Upload(ctx context.Context, image []byte, userID uint) (Result, error) {
	url, path, err := o.uploadWithRetry(ctx, image)
	if err != nil {
		return Result{}, err
	}

	post := models.Post{
		UserID:    userID,
		ImageURL:  url,
		ImagePath: path,
	}
	if err := o.db.WithContext(ctx).Create(&post).Error; err != nil {
		// The stored object is intentionally left orphaned here; there is no
		// compensating delete. See the known-gaps note in DESIGN.md.
		log.Printf("[UPLOAD] post creation failed, image orphaned at %s: %v", path, err)
		return Result{}, fmt.Errorf("%w: %v", ErrMetadataInsertFailed, err)
	}

	o.scheduleScoring(url, post.ID)

	return Result{ImageURL: url, ImagePath: path, PostID: post.ID}, nil
}

func (o *Orchestrator) uploadWithRetry(ctx context.Context, image []byte) (string, string, error) {
	var lastErr string

	for attempt := 1; attempt <= maxUploadRetries; attempt++ {
		filename := GenerateUniqueFilename()

		url, path, err := o.store.Upload(ctx, filename, bytes.NewReader(image))
		if err == nil {
			return url, path, nil
		}

		lastErr = err.Error()
		log.Printf("[UPLOAD] attempt %d/%d failed: %s", attempt, maxUploadRetries, lastErr)

		if attempt < maxUploadRetries {
			o.sleep(time.Duration(math.Pow(2, float64(attempt))) * time.Second)
		}
	}

	return "", "", fmt.Errorf("%w after %d attempts: %s", ErrStorageUploadFailed, maxUploadRetries, lastErr)
}

func (o *Orchestrator) scheduleScoring(imageURL, postID string) {
	go func() {
		result, err := o.scorer.Score(context.Background(), imageURL, postID)
		if err != nil {
			log.Printf("[UPLOAD] scoring failed for post %s: %v", postID, err)
			return
		}

		log.Printf("[UPLOAD] scoring completed for post %s: %d/10", postID, result.Score)
		if o.OnScored != nil {
			o.OnScored(postID, result.Score, result.Reasoning)
		}
	}()
}
