package scoring

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

// GeminiModel backs the analyzer with Google's Gemini API.
type GeminiModel struct {
	client *genai.Client
}

// NewGeminiModel creates the client; the API key comes from the environment
// (GOOGLE_API_KEY / GEMINI_API_KEY).
func NewGeminiModel(ctx context.Context) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &GeminiModel{client: client}, nil
}

func (g *GeminiModel) GenerateContent(ctx context.Context, model, prompt string, image []byte) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image, "image/jpeg"),
		}, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.1),
		MaxOutputTokens: 1000,
	})
	if err != nil {
		return "", err
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", errors.New("no content in response")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	if sb.Len() == 0 {
		return "", errors.New("no text in response")
	}

	return sb.String(), nil
}
