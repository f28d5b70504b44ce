package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/biteclub/biteclub/models"
)

const triggerTimeout = 30 * time.Second

var (
	// ErrScoreTimeout is returned when the scoring function does not answer
	// within the absolute trigger deadline. The in-flight request is
	// abandoned, not cancelled upstream.
	ErrScoreTimeout = errors.New("edge function timeout after 30 seconds")

	// ErrNoResponse is returned on an empty response body.
	ErrNoResponse = errors.New("no response from scoring system")
)

// Client invokes the remote scoring function over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		timeout:    triggerTimeout,
	}
}

type scoreRequest struct {
	ImageURL string `json:"imageUrl"`
	PostID   string `json:"postId"`
}

type scoreResponse struct {
	Success      bool    `json:"success"`
	Score        int     `json:"score"`
	Reasoning    string  `json:"reasoning"`
	Confidence   int     `json:"confidence"`
	Model        string  `json:"model"`
	AnalysisTime int64   `json:"analysis_time"`
	Error        *string `json:"error"`
}

// Score posts {imageUrl, postId} to the scoring function and waits at most
// 30 seconds for the result.
func (c *Client) Score(ctx context.Context, imageURL, postID string) (models.ScoreResult, error) {
	log.Printf("[HEALTH-SCORING] scoring post %s", postID)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(scoreRequest{ImageURL: imageURL, PostID: postID})
	if err != nil {
		return models.ScoreResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.ScoreResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.ScoreResult{}, ErrScoreTimeout
		}
		return models.ScoreResult{}, fmt.Errorf("scoring failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.ScoreResult{}, ErrScoreTimeout
		}
		return models.ScoreResult{}, fmt.Errorf("scoring failed: %w", err)
	}

	if len(raw) == 0 {
		return models.ScoreResult{}, ErrNoResponse
	}

	var parsed scoreResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.ScoreResult{}, fmt.Errorf("scoring failed: invalid response: %w", err)
	}

	if !parsed.Success {
		msg := "unknown scoring error"
		if parsed.Error != nil && *parsed.Error != "" {
			msg = *parsed.Error
		}
		return models.ScoreResult{}, fmt.Errorf("scoring failed: %s", msg)
	}

	log.Printf("[HEALTH-SCORING] score: %d/10", parsed.Score)

	return models.ScoreResult{
		Score:        parsed.Score,
		Reasoning:    parsed.Reasoning,
		Confidence:   parsed.Confidence,
		Model:        parsed.Model,
		AnalysisTime: parsed.AnalysisTime,
	}, nil
}
