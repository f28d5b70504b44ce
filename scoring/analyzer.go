package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/biteclub/biteclub/models"
)

const (
	maxAnalyzeRetries = 3
	retryBaseDelay    = 1000 * time.Millisecond

	imageFetchTimeout = 15 * time.Second
	inferenceTimeout  = 20 * time.Second

	// Copy buffer for streaming the downloaded image.
	fetchChunkSize = 32 * 1024
)

// Model variants in order of reliability; later attempts fall back down the
// list, and the last entry is reused once the list is exhausted.
var defaultModels = []string{
	"gemini-1.5-flash-8b",
	"gemini-1.5-flash",
	"gemini-1.0-pro-vision",
}

const foodPrompt = `You are a nutrition expert. Analyze this food image and provide a health score from 1-10 where:
- 10: Extremely healthy (fresh fruits, vegetables, lean proteins, whole grains)
- 8-9: Very healthy (balanced meals, minimal processing)
- 6-7: Moderately healthy (some processed ingredients but nutritious)
- 4-5: Neutral/mixed (equal healthy and unhealthy elements)
- 2-3: Somewhat unhealthy (high in processed foods, sugar, or fat)
- 1: Very unhealthy (junk food, heavily processed, high sugar/fat)

Respond with ONLY a JSON object in this exact format:
{"score": <number>, "reasoning": "<brief explanation>", "confidence": <1-5>}

Be decisive and assign a clear score. If it's not food, assign score 5 with appropriate reasoning.`

var jsonSpan = regexp.MustCompile(`(?s)\{.*\}`)

// FoodModel runs one vision-language inference and returns the raw text.
type FoodModel interface {
	GenerateContent(ctx context.Context, model, prompt string, image []byte) (string, error)
}

// Analyzer scores a food image with a prioritized model ladder and bounded
// exponential-backoff retries on overload.
type Analyzer struct {
	model      FoodModel
	models     []string
	httpClient *http.Client
	sleep      func(time.Duration)
}

func NewAnalyzer(model FoodModel) *Analyzer {
	return &Analyzer{
		model:      model,
		models:     defaultModels,
		httpClient: &http.Client{},
		sleep:      time.Sleep,
	}
}

// Analyze fetches the image and asks the model for a health score. Overload
// errors are retried with backoff and a more conservative model; anything
// else fails the analysis with the attempt count.
func (a *Analyzer) Analyze(ctx context.Context, imageURL string) (models.ScoreResult, error) {
	analysisStart := time.Now()

	for attempt := 1; attempt <= maxAnalyzeRetries; attempt++ {
		modelName := a.models[min(attempt-1, len(a.models)-1)]
		log.Printf("[GEMINI] attempt %d/%d using model: %s", attempt, maxAnalyzeRetries, modelName)

		result, err := a.analyzeOnce(ctx, modelName, imageURL)
		if err == nil {
			result.Model = modelName
			result.AnalysisTime = time.Since(analysisStart).Milliseconds()
			log.Printf("[GEMINI] score: %d/10 in %dms", result.Score, result.AnalysisTime)
			return result, nil
		}

		log.Printf("[GEMINI] attempt %d failed: %v", attempt, err)

		if isOverloadError(err) && attempt < maxAnalyzeRetries {
			delay := retryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			log.Printf("[GEMINI] API overloaded, retrying in %v", delay)
			a.sleep(delay)
			continue
		}

		return models.ScoreResult{}, fmt.Errorf("analysis failed after %d attempts: %v", attempt, err)
	}

	return models.ScoreResult{}, fmt.Errorf("analysis failed after %d attempts", maxAnalyzeRetries)
}

func (a *Analyzer) analyzeOnce(ctx context.Context, modelName, imageURL string) (models.ScoreResult, error) {
	image, err := a.fetchImage(ctx, imageURL)
	if err != nil {
		return models.ScoreResult{}, err
	}

	inferCtx, cancel := context.WithTimeout(ctx, inferenceTimeout)
	defer cancel()

	text, err := a.model.GenerateContent(inferCtx, modelName, foodPrompt, image)
	if err != nil {
		return models.ScoreResult{}, err
	}

	return parseScoreText(text)
}

func (a *Analyzer) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	log.Printf("[IMAGE-FETCH] fetching image from: %s", imageURL)

	ctx, cancel := context.WithTimeout(ctx, imageFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}

	res, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch image: %d %s", res.StatusCode, http.StatusText(res.StatusCode))
	}

	var buf bytes.Buffer
	if _, err := io.CopyBuffer(&buf, res.Body, make([]byte, fetchChunkSize)); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	log.Printf("[IMAGE-FETCH] image downloaded, size: %d bytes", buf.Len())
	return buf.Bytes(), nil
}

// parseScoreText extracts the first {...} span from the model output and
// validates it. An out-of-range or missing score fails closed; it is never
// clamped.
func parseScoreText(text string) (models.ScoreResult, error) {
	span := jsonSpan.FindString(text)
	if span == "" {
		return models.ScoreResult{}, fmt.Errorf("no JSON found in response")
	}

	var parsed struct {
		Score      *float64 `json:"score"`
		Reasoning  string   `json:"reasoning"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(span), &parsed); err != nil {
		return models.ScoreResult{}, fmt.Errorf("invalid JSON in response: %v", err)
	}

	if parsed.Score == nil || *parsed.Score < 1 || *parsed.Score > 10 {
		return models.ScoreResult{}, fmt.Errorf("invalid score in response")
	}

	reasoning := parsed.Reasoning
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}

	confidence := 3
	if parsed.Confidence != nil {
		confidence = int(*parsed.Confidence)
	}

	return models.ScoreResult{
		Score:      int(math.Round(*parsed.Score)),
		Reasoning:  reasoning,
		Confidence: confidence,
	}, nil
}

func isOverloadError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "503") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "Service Unavailable") ||
		strings.Contains(msg, "quota")
}
