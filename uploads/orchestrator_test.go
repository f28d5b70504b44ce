package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/biteclub/biteclub/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeStore struct {
	failures int
	calls    int
}

func (f *fakeStore) Upload(ctx context.Context, objectName string, file io.Reader) (string, string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", "", errors.New("bucket unavailable")
	}
	path := "food-photos/" + objectName
	return "https://storage.googleapis.com/test-bucket/" + path, path, nil
}

type fakeScorer struct {
	result models.ScoreResult
	err    error
	called chan string
}

func (f *fakeScorer) Score(ctx context.Context, imageURL, postID string) (models.ScoreResult, error) {
	if f.called != nil {
		f.called <- postID
	}
	return f.result, f.err
}

func newTestDB(t *testing.T) *gorm.DB {
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

	return db
}

func newTestOrchestrator(t *testing.T, store ObjectStore, scorer ScoreTrigger) (*Orchestrator, *[]time.Duration) {
	t.Helper()

	var slept []time.Duration
	o := NewOrchestrator(store, newTestDB(t), scorer)
	o.sleep = func(d time.Duration) { slept = append(slept, d) }

	return o, &slept
}

func TestGenerateUniqueFilename(t *testing.T) {
	pattern := regexp.MustCompile(`^food_\d+_[0-9a-z]{6}\.jpg$`)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		name := GenerateUniqueFilename()
		assert.Regexp(t, pattern, name)
		seen[name] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestUploadCreatesUnscoredPost(t *testing.T) {
	scorer := &fakeScorer{result: models.ScoreResult{Score: 8, Reasoning: "ok"}}
	o, _ := newTestOrchestrator(t, &fakeStore{}, scorer)

	result, err := o.Upload(context.Background(), []byte("jpeg"), 7)
	require.NoError(t, err)

	assert.NotEmpty(t, result.PostID)
	assert.Contains(t, result.ImageURL, "food-photos/food_")
	assert.Contains(t, result.ImagePath, "food-photos/")

	var post models.Post
	require.NoError(t, o.db.First(&post, "id = ?", result.PostID).Error)
	assert.Equal(t, uint(7), post.UserID)
	assert.Nil(t, post.HealthScore, "health score must be null right after upload")
	assert.Empty(t, post.ScoringDetails)
}

func TestUploadRetriesWithBackoff(t *testing.T) {
	store := &fakeStore{failures: 2}
	o, slept := newTestOrchestrator(t, store, &fakeScorer{})

	_, err := o.Upload(context.Background(), []byte("jpeg"), 1)
	require.NoError(t, err)

	assert.Equal(t, 3, store.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestUploadFailsAfterThreeAttempts(t *testing.T) {
	store := &fakeStore{failures: 3}
	o, _ := newTestOrchestrator(t, store, &fakeScorer{})

	_, err := o.Upload(context.Background(), []byte("jpeg"), 1)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrStorageUploadFailed)
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Contains(t, err.Error(), "bucket unavailable")
	assert.Equal(t, 3, store.calls)

	var count int64
	o.db.Model(&models.Post{}).Count(&count)
	assert.Zero(t, count, "no post row after a terminal upload failure")
}

func TestUploadInsertFailureIsTerminal(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeStore{}, &fakeScorer{})
	require.NoError(t, o.db.Migrator().DropTable(&models.Post{}))

	_, err := o.Upload(context.Background(), []byte("jpeg"), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMetadataInsertFailed)
}

func TestUploadTriggersScoringInBackground(t *testing.T) {
	scorer := &fakeScorer{
		result: models.ScoreResult{Score: 9, Reasoning: "greens"},
		called: make(chan string, 1),
	}
	o, _ := newTestOrchestrator(t, &fakeStore{}, scorer)

	scored := make(chan struct{})
	o.OnScored = func(postID string, score int, reasoning string) {
		assert.Equal(t, 9, score)
		assert.Equal(t, "greens", reasoning)
		close(scored)
	}

	result, err := o.Upload(context.Background(), []byte("jpeg"), 1)
	require.NoError(t, err)

	select {
	case postID := <-scorer.called:
		assert.Equal(t, result.PostID, postID)
	case <-time.After(2 * time.Second):
		t.Fatal("scoring trigger never fired")
	}

	select {
	case <-scored:
	case <-time.After(2 * time.Second):
		t.Fatal("OnScored callback never fired")
	}
}

func TestUploadScoringFailureDoesNotAffectResult(t *testing.T) {
	scorer := &fakeScorer{
		err:    fmt.Errorf("edge function unreachable"),
		called: make(chan string, 1),
	}
	o, _ := newTestOrchestrator(t, &fakeStore{}, scorer)

	callbackFired := false
	o.OnScored = func(postID string, score int, reasoning string) { callbackFired = true }

	_, err := o.Upload(context.Background(), []byte("jpeg"), 1)
	require.NoError(t, err, "upload succeeds even when scoring fails")

	<-scorer.called
	time.Sleep(50 * time.Millisecond)
	assert.False(t, callbackFired)
}
